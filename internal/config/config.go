// Package config layers built-in defaults, an optional YAML file and
// environment variables into one Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/forPelevin/vidbrief/internal/domain/segmenter"
	"github.com/forPelevin/vidbrief/internal/domain/summary"
	"github.com/forPelevin/vidbrief/internal/ports/adapters/asrhttp"
	"github.com/forPelevin/vidbrief/internal/ports/adapters/endpoint"
	"github.com/forPelevin/vidbrief/internal/ports/adapters/openrouter"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "vidbrief.yaml"

// StoreOff disables run persistence.
const StoreOff = "off"

const (
	ModeAuto     = "auto"
	ModeLocal    = "local"
	ModeExternal = "external"

	EngineWhisper = "whisper"
	EngineHTTP    = "http"
)

type Segments struct {
	Min               int     `yaml:"min"`
	Max               int     `yaml:"max"`
	SecondsPerSegment float64 `yaml:"seconds_per_segment"`
}

type Summary struct {
	// Mode is auto (external when an API key is set), local or external.
	Mode             string   `yaml:"mode"`
	StripFillers     bool     `yaml:"strip_fillers"`
	FillerWords      []string `yaml:"filler_words"`
	TitleMaxRunes    int      `yaml:"title_max_runes"`
	QuotesPerSegment int      `yaml:"quotes_per_segment"`
}

type OpenRouter struct {
	APIKey       string   `yaml:"api_key"`
	Model        string   `yaml:"model"`
	BaseURL      string   `yaml:"base_url"`
	AllowedHosts []string `yaml:"allowed_hosts"`
}

type Whisper struct {
	Bin   string `yaml:"bin"`
	Model string `yaml:"model"`
}

type RecognizerHTTP struct {
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"`
	PollAttempts int           `yaml:"poll_attempts"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type Recognizer struct {
	Engine   string         `yaml:"engine"`
	Language string         `yaml:"language"`
	Whisper  Whisper        `yaml:"whisper"`
	HTTP     RecognizerHTTP `yaml:"http"`
}

type FFmpeg struct {
	FFmpeg  string `yaml:"ffmpeg"`
	FFprobe string `yaml:"ffprobe"`
}

type Config struct {
	OutDir   string `yaml:"out_dir"`
	CacheDir string `yaml:"cache_dir"`
	// Store is the SQLite path for saved runs, or "off".
	Store string `yaml:"store"`

	Segments   Segments   `yaml:"segments"`
	Summary    Summary    `yaml:"summary"`
	OpenRouter OpenRouter `yaml:"openrouter"`
	Recognizer Recognizer `yaml:"recognizer"`
	FFmpeg     FFmpeg     `yaml:"ffmpeg"`

	ServerAddr string `yaml:"server_addr"`
	MPVSocket  string `yaml:"mpv_socket"`

	path string
}

func Default() Config {
	opts := summary.DefaultLocalOptions()
	return Config{
		OutDir:   "out",
		CacheDir: ".cache",
		Segments: Segments{
			Min:               segmenter.DefaultMinSegments,
			Max:               segmenter.DefaultMaxSegments,
			SecondsPerSegment: segmenter.DefaultSecondsPerSegment,
		},
		Summary: Summary{
			Mode:             ModeAuto,
			StripFillers:     opts.StripFillers,
			FillerWords:      opts.FillerWords,
			TitleMaxRunes:    opts.TitleMaxRunes,
			QuotesPerSegment: opts.QuotesPerSegment,
		},
		OpenRouter: OpenRouter{
			Model:   openrouter.DefaultModel,
			BaseURL: openrouter.BaseURLPolicy.Default,
		},
		Recognizer: Recognizer{
			Engine:   EngineWhisper,
			Language: "auto",
			Whisper: Whisper{
				Bin:   ".cache/bin/whisper.cpp",
				Model: ".cache/models/ggml-base.bin",
			},
			HTTP: RecognizerHTTP{
				PollAttempts: asrhttp.DefaultPollAttempts,
				PollInterval: asrhttp.DefaultPollInterval,
			},
		},
		FFmpeg:     FFmpeg{FFmpeg: "ffmpeg", FFprobe: "ffprobe"},
		ServerAddr: "127.0.0.1:8080",
	}
}

// Load reads path over the defaults. An empty path means DefaultFile in the
// working directory, which may be absent; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			cfg.Normalize()
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.path = path
	cfg.Normalize()
	return cfg, nil
}

// Path is the file the config was read from, if any.
func (c Config) Path() string { return c.path }

// ApplyEnv overrides settings from environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.OpenRouter.APIKey, "OPENROUTER_API_KEY")
	set(&c.OpenRouter.Model, "OPENROUTER_MODEL")
	set(&c.OpenRouter.BaseURL, "OPENROUTER_BASE_URL")
	if v := getenv("OPENROUTER_ALLOWED_HOSTS"); strings.TrimSpace(v) != "" {
		c.OpenRouter.AllowedHosts = endpoint.SplitHosts(v)
	}
	set(&c.Recognizer.HTTP.BaseURL, "ASR_BASE_URL")
	set(&c.Recognizer.HTTP.APIKey, "ASR_API_KEY")
	set(&c.Recognizer.Whisper.Model, "WHISPER_MODEL")
	set(&c.Store, "VIDBRIEF_STORE")
	set(&c.MPVSocket, "VIDBRIEF_MPV_SOCKET")
	if v := strings.TrimSpace(getenv("VIDBRIEF_MAX_SEGMENTS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Segments.Max = n
		}
	}
	c.Normalize()
}

// Normalize trims strings and fills settings left empty.
func (c *Config) Normalize() {
	d := Default()
	c.OutDir = strings.TrimSpace(c.OutDir)
	if c.OutDir == "" {
		c.OutDir = d.OutDir
	}
	c.CacheDir = strings.TrimSpace(c.CacheDir)
	if c.CacheDir == "" {
		c.CacheDir = d.CacheDir
	}
	c.Store = strings.TrimSpace(c.Store)
	if c.Store != "" && c.Store != StoreOff && c.Store != ":memory:" {
		c.Store = filepath.Clean(c.Store)
	}

	c.Summary.Mode = strings.ToLower(strings.TrimSpace(c.Summary.Mode))
	if c.Summary.Mode == "" {
		c.Summary.Mode = ModeAuto
	}
	if c.Summary.TitleMaxRunes <= 0 {
		c.Summary.TitleMaxRunes = d.Summary.TitleMaxRunes
	}
	if c.Summary.QuotesPerSegment <= 0 {
		c.Summary.QuotesPerSegment = d.Summary.QuotesPerSegment
	}

	c.OpenRouter.APIKey = strings.TrimSpace(c.OpenRouter.APIKey)
	c.OpenRouter.Model = strings.TrimSpace(c.OpenRouter.Model)
	if c.OpenRouter.Model == "" {
		c.OpenRouter.Model = d.OpenRouter.Model
	}
	c.OpenRouter.BaseURL = openrouter.BaseURLPolicy.Normalize(c.OpenRouter.BaseURL)

	c.Recognizer.Engine = strings.ToLower(strings.TrimSpace(c.Recognizer.Engine))
	if c.Recognizer.Engine == "" {
		c.Recognizer.Engine = EngineWhisper
	}
	if c.Recognizer.Language == "" {
		c.Recognizer.Language = d.Recognizer.Language
	}
	if c.Recognizer.HTTP.BaseURL != "" {
		c.Recognizer.HTTP.BaseURL = asrhttp.BaseURLPolicy.Normalize(c.Recognizer.HTTP.BaseURL)
	}
	if c.FFmpeg.FFmpeg == "" {
		c.FFmpeg.FFmpeg = d.FFmpeg.FFmpeg
	}
	if c.FFmpeg.FFprobe == "" {
		c.FFmpeg.FFprobe = d.FFmpeg.FFprobe
	}
	if c.ServerAddr == "" {
		c.ServerAddr = d.ServerAddr
	}
}

func (c Config) Validate() error {
	if err := c.SegmentPolicy().Validate(); err != nil {
		return fmt.Errorf("config: segments: %w", err)
	}
	switch c.Summary.Mode {
	case ModeAuto, ModeLocal:
	case ModeExternal:
		if c.OpenRouter.APIKey == "" {
			return errors.New("config: summary mode external requires OPENROUTER_API_KEY")
		}
	default:
		return fmt.Errorf("config: unknown summary mode %q", c.Summary.Mode)
	}
	if c.UseExternal() {
		if err := openrouter.ValidateBaseURL(c.OpenRouter.BaseURL, c.OpenRouter.AllowedHosts); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}

	switch c.Recognizer.Engine {
	case EngineWhisper:
	case EngineHTTP:
		if c.Recognizer.HTTP.BaseURL == "" {
			return errors.New("config: recognizer engine http requires ASR_BASE_URL")
		}
		if err := asrhttp.BaseURLPolicy.Validate(c.Recognizer.HTTP.BaseURL, nil); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if c.Recognizer.HTTP.PollAttempts < 1 {
			return errors.New("config: recognizer poll attempts must be >= 1")
		}
		if c.Recognizer.HTTP.PollInterval < 0 {
			return errors.New("config: recognizer poll interval must be >= 0")
		}
	default:
		return fmt.Errorf("config: unknown recognizer engine %q", c.Recognizer.Engine)
	}
	return nil
}

// UseExternal reports whether summaries go to the external model first.
func (c Config) UseExternal() bool {
	switch c.Summary.Mode {
	case ModeExternal:
		return true
	case ModeAuto:
		return c.OpenRouter.APIKey != ""
	default:
		return false
	}
}

func (c Config) SegmentPolicy() segmenter.Policy {
	return segmenter.Policy{
		MinSegments:       c.Segments.Min,
		MaxSegments:       c.Segments.Max,
		SecondsPerSegment: c.Segments.SecondsPerSegment,
	}
}

func (c Config) LocalOptions() summary.LocalOptions {
	return summary.LocalOptions{
		StripFillers:     c.Summary.StripFillers,
		FillerWords:      c.Summary.FillerWords,
		TitleMaxRunes:    c.Summary.TitleMaxRunes,
		QuotesPerSegment: c.Summary.QuotesPerSegment,
	}
}

// StorePath resolves the database location; empty means persistence is off.
func (c Config) StorePath(defaultPath string) string {
	switch c.Store {
	case StoreOff:
		return ""
	case "":
		return defaultPath
	default:
		return c.Store
	}
}
