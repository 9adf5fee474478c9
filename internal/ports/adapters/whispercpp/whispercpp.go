package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/forPelevin/vidbrief/internal/types"
)

// Adapter runs a local whisper.cpp binary. The locator is a WAV path.
type Adapter struct {
	bin      string
	model    string
	language string
	cacheDir string
}

func New(binPath, modelPath, language, cacheDir string) *Adapter {
	return &Adapter{bin: binPath, model: modelPath, language: language, cacheDir: cacheDir}
}

func (a *Adapter) Recognize(ctx context.Context, wavPath string) (types.Transcript, error) {
	dir := a.cacheDir
	if dir == "" {
		dir = filepath.Dir(wavPath)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.Transcript{}, err
	}
	outPrefix := filepath.Join(dir, "whisper")
	args := []string{
		"-m", a.model,
		"-f", wavPath,
		"-oj",
		"-of", outPrefix,
	}
	if a.language != "" {
		args = append(args, "-l", a.language)
	}
	cmd := exec.CommandContext(ctx, a.bin, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return types.Transcript{}, ctx.Err()
		}
		return types.Transcript{}, &types.RecognitionError{Message: fmt.Sprintf("whisper.cpp: %v: %s", err, lastLine(string(b)))}
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return types.Transcript{}, err
	}
	return decode(jb)
}

// whisper.cpp -oj output; offsets are milliseconds.
type output struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func decode(b []byte) (types.Transcript, error) {
	var out output
	if err := json.Unmarshal(b, &out); err != nil {
		return types.Transcript{}, fmt.Errorf("decode whisper.cpp output: %w", err)
	}
	tr := types.Transcript{Utterances: make([]types.Utterance, 0, len(out.Transcription))}
	for _, s := range out.Transcription {
		text := strings.TrimSpace(s.Text)
		if text == "" || isNonSpeech(text) {
			continue
		}
		st, en := s.Offsets.From, s.Offsets.To
		if st < 0 {
			st = 0
		}
		if en < st {
			en = st
		}
		tr.Utterances = append(tr.Utterances, types.Utterance{Text: text, StartTimeMs: st, EndTimeMs: en})
	}
	return tr, nil
}

// whisper marks silence and music with bracketed tags such as [BLANK_AUDIO].
func isNonSpeech(s string) bool {
	return (strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")) ||
		(strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"))
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
