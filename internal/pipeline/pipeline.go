package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/forPelevin/vidbrief/internal/config"
	"github.com/forPelevin/vidbrief/internal/domain/export"
	"github.com/forPelevin/vidbrief/internal/domain/runstate"
	"github.com/forPelevin/vidbrief/internal/domain/sample"
	"github.com/forPelevin/vidbrief/internal/domain/summary"
	"github.com/forPelevin/vidbrief/internal/fsutil"
	"github.com/forPelevin/vidbrief/internal/ports"
	"github.com/forPelevin/vidbrief/internal/ports/adapters/asrhttp"
	"github.com/forPelevin/vidbrief/internal/ports/adapters/clipboard"
	"github.com/forPelevin/vidbrief/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/vidbrief/internal/ports/adapters/logplayer"
	"github.com/forPelevin/vidbrief/internal/ports/adapters/mpv"
	"github.com/forPelevin/vidbrief/internal/ports/adapters/openrouter"
	"github.com/forPelevin/vidbrief/internal/ports/adapters/sqlitestore"
	"github.com/forPelevin/vidbrief/internal/ports/adapters/transcriptfile"
	"github.com/forPelevin/vidbrief/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/vidbrief/internal/types"
	"github.com/forPelevin/vidbrief/internal/usecase"
)

// DefaultDemoDuration is the length of a generated demo transcript.
const DefaultDemoDuration = 5 * time.Minute

const (
	FileManifest   = "summary.json"
	FileMarkdown   = "summary.md"
	FileTranscript = "transcript.txt"
	FileCaptions   = "captions.vtt"
)

// MaxInputBytes caps the size of a video accepted as input.
const MaxInputBytes = 1 << 30

var videoExts = map[string]struct{}{".mp4": {}, ".mov": {}, ".avi": {}, ".webm": {}}

type Config struct {
	// Exactly one source: a video, a transcript file, or Demo.
	Input          string
	TranscriptPath string
	Demo           bool
	DemoDuration   time.Duration

	Title string
	// Copy puts the Markdown summary on the clipboard.
	Copy bool

	Settings config.Config
	Logf     func(format string, args ...any)

	// Store and Clipboard override what Settings would open.
	Store     ports.RunStore
	Clipboard ports.Clipboard
	Tracker   *runstate.Tracker
}

func (c Config) Validate() error {
	sources := 0
	for _, set := range []bool{c.Input != "", c.TranscriptPath != "", c.Demo} {
		if set {
			sources++
		}
	}
	switch {
	case sources == 0:
		return errors.New("config: input is empty")
	case sources > 1:
		return errors.New("config: give a video, a transcript file or --demo, not several")
	}
	if c.Input != "" {
		info, err := os.Stat(c.Input)
		if err != nil {
			return fmt.Errorf("config: stat input: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("config: input %s is a directory", c.Input)
		}
		if _, ok := videoExts[strings.ToLower(filepath.Ext(c.Input))]; !ok {
			return fmt.Errorf("config: unsupported input format %q (want mp4, mov, avi or webm)", filepath.Ext(c.Input))
		}
		if info.Size() > MaxInputBytes {
			return fmt.Errorf("config: input is %d bytes, larger than the 1 GB limit", info.Size())
		}
		if c.Settings.Recognizer.Engine == config.EngineWhisper && c.Settings.Recognizer.Whisper.Model == "" {
			return errors.New("config: whisper model path is required")
		}
	}
	if c.TranscriptPath != "" {
		if _, err := os.Stat(c.TranscriptPath); err != nil {
			return fmt.Errorf("config: stat transcript: %w", err)
		}
	}
	if c.DemoDuration < 0 {
		return errors.New("config: demo duration must be >= 0")
	}
	return c.Settings.Validate()
}

type Result struct {
	Run     types.Run
	RunDir  string
	Files   types.ManifestFiles
	Message string
}

// NewAssembler builds the summary assembler the settings ask for.
func NewAssembler(s config.Config, logf func(format string, args ...any)) summary.Assembler {
	a := summary.Assembler{Local: summary.LocalStrategy{Options: s.LocalOptions()}, Logf: logf}
	if s.UseExternal() {
		a.External = summary.ExternalStrategy{
			Client: openrouter.New(s.OpenRouter.APIKey, s.OpenRouter.Model, s.OpenRouter.BaseURL),
		}
	}
	return a
}

// OpenStore opens the configured run store, or returns nil when
// persistence is off.
func OpenStore(s config.Config) (*sqlitestore.Store, error) {
	path := s.StorePath(sqlitestore.DefaultPath())
	if path == "" {
		return nil, nil
	}
	return sqlitestore.Open(path)
}

// OpenPlayer connects to mpv when a socket is configured and falls back to a
// player that only logs.
func OpenPlayer(ctx context.Context, s config.Config, logf func(format string, args ...any)) (ports.Player, func() error) {
	if s.MPVSocket != "" {
		c, err := mpv.Connect(ctx, s.MPVSocket)
		if err == nil {
			return c, c.Close
		}
		if logf != nil {
			logf("mpv unavailable (%v), seeking without a player", err)
		}
	}
	return &logplayer.Player{Logf: logf}, func() error { return nil }
}

func Run(ctx context.Context, cfg Config) (Result, error) {
	logf := cfg.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	s := cfg.Settings

	source := cfg.Input
	switch {
	case cfg.TranscriptPath != "":
		source = cfg.TranscriptPath
	case cfg.Demo:
		source = "demo:" + cfg.Title
	}
	title := strings.TrimSpace(cfg.Title)
	if title == "" && !cfg.Demo {
		title = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	}

	jobID := hash(source)
	cacheDir := filepath.Join(s.CacheDir, "runs", jobID)
	logf("preparing workspace")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return Result{}, err
	}
	logf("cache: %s", cacheDir)

	deps := usecase.Deps{
		Policy:    s.SegmentPolicy(),
		Assembler: NewAssembler(s, logf),
		Tracker:   cfg.Tracker,
		Logf:      logf,
	}
	in := usecase.Input{Title: title, Video: cfg.Input, CacheDir: cacheDir}

	switch {
	case cfg.TranscriptPath != "":
		tr, err := transcriptfile.Load(cfg.TranscriptPath)
		if err != nil {
			return Result{}, err
		}
		logf("transcript: %d utterances from %s", len(tr.Utterances), cfg.TranscriptPath)
		in.Transcript = &tr
	case cfg.Demo:
		d := cfg.DemoDuration
		if d == 0 {
			d = DefaultDemoDuration
		}
		tr := sample.Transcript(title, d)
		logf("demo transcript: %d utterances (%s)", len(tr.Utterances), sample.KindFor(title))
		in.Transcript = &tr
		in.Duration = d
	default:
		v := ffmpeg.New(s.FFmpeg.FFmpeg, s.FFmpeg.FFprobe)
		if err := v.Check(); err != nil {
			return Result{}, err
		}
		deps.Video = v
		switch s.Recognizer.Engine {
		case config.EngineHTTP:
			c := asrhttp.New(asrhttp.Options{
				BaseURL:      s.Recognizer.HTTP.BaseURL,
				APIKey:       s.Recognizer.HTTP.APIKey,
				Language:     s.Recognizer.Language,
				PollAttempts: s.Recognizer.HTTP.PollAttempts,
				PollInterval: s.Recognizer.HTTP.PollInterval,
				Logf:         logf,
			})
			deps.Uploader = c
			deps.Recognizer = c
		default:
			deps.Recognizer = whispercpp.New(s.Recognizer.Whisper.Bin, s.Recognizer.Whisper.Model, s.Recognizer.Language, cacheDir)
		}
	}

	res, err := usecase.New(deps).Run(ctx, in)
	if err != nil {
		return Result{}, err
	}
	if res.FallbackReason != nil {
		logf("external summary rejected, used local summary: %v", res.FallbackReason)
	}
	run := res.Run
	if cfg.TranscriptPath != "" {
		run.Input = cfg.TranscriptPath
	}

	store := cfg.Store
	if store == nil {
		st, err := OpenStore(s)
		if err != nil {
			return Result{}, err
		}
		if st != nil {
			defer st.Close()
			store = st
		}
	}

	runOutDir := buildRunOutDir(s.OutDir, slugSource(source, title), run.CreatedAt)
	logf("output run dir: %s", runOutDir)
	files, markdown, err := writeExports(runOutDir, run)
	if err != nil {
		discardRunDir(runOutDir, logf)
		return Result{}, err
	}
	if store != nil {
		if err := store.Save(ctx, run); err != nil {
			discardRunDir(runOutDir, logf)
			return Result{}, fmt.Errorf("save run: %w", err)
		}
		logf("saved run %s", run.ID)
	}

	if cfg.Copy {
		cb := cfg.Clipboard
		if cb == nil {
			cb = clipboard.New()
		}
		if err := cb.WriteAll(markdown); err != nil {
			logf("copy to clipboard failed: %v", err)
		} else {
			logf("summary copied to clipboard")
		}
	}

	msg := export.DoneMessage(run.Duration, len(run.Summary))
	logf("%s", msg)
	return Result{Run: run, RunDir: runOutDir, Files: files, Message: msg}, nil
}

// discardRunDir removes a run directory whose run was not recorded, so no
// export is left behind without its stored run.
func discardRunDir(dir string, logf func(format string, args ...any)) {
	if err := os.RemoveAll(dir); err != nil {
		logf("remove run dir %s: %v", dir, err)
	}
}

func writeExports(dir string, run types.Run) (types.ManifestFiles, string, error) {
	files := types.ManifestFiles{
		Markdown:   FileMarkdown,
		Transcript: FileTranscript,
		Captions:   FileCaptions,
	}
	markdown := export.Markdown(export.Document{
		Title:       run.Title,
		Duration:    run.Duration,
		Source:      run.Source,
		Records:     run.Summary,
		GeneratedAt: run.CreatedAt,
	})
	manifest, err := json.MarshalIndent(export.Manifest(run, files), "", "  ")
	if err != nil {
		return files, "", fmt.Errorf("marshal manifest: %w", err)
	}

	for name, body := range map[string]string{
		FileManifest:   string(manifest),
		FileMarkdown:   markdown,
		FileTranscript: export.PlainTranscript(run.Transcript) + "\n",
		FileCaptions:   export.WebVTT(run.Transcript),
	} {
		if err := fsutil.WriteFileAtomic(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			return files, "", err
		}
	}
	return files, markdown, nil
}

// slugSource is the name the run directory is derived from.
func slugSource(source, title string) string {
	if strings.HasPrefix(source, "demo:") {
		if title == "" {
			return "demo"
		}
		return "demo-" + title
	}
	return source
}

func buildRunOutDir(outRoot, input string, now time.Time) string {
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	name = normalizePathSegment(name)
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", input, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// ensure adapters implement ports
var (
	_ ports.VideoTool     = (*ffmpeg.Adapter)(nil)
	_ ports.Recognizer    = (*whispercpp.Adapter)(nil)
	_ ports.Recognizer    = (*asrhttp.Client)(nil)
	_ ports.AudioUploader = (*asrhttp.Client)(nil)
	_ ports.Summarizer    = (*openrouter.Adapter)(nil)
	_ ports.RunStore      = (*sqlitestore.Store)(nil)
	_ ports.Clipboard     = (*clipboard.Clipboard)(nil)
	_ ports.Player        = (*mpv.Client)(nil)
	_ ports.Player        = (*logplayer.Player)(nil)
)
