// Package transcriptfile loads an existing transcript so a run can skip
// audio extraction and recognition.
package transcriptfile

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/forPelevin/vidbrief/internal/types"
)

// Load picks the format from the extension; unknown extensions are sniffed.
func Load(path string) (types.Transcript, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return types.Transcript{}, err
	}
	var utts []types.Utterance
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		utts, err = ParseJSON(b)
	case ".vtt", ".srt":
		utts, err = ParseCues(bytes.NewReader(b))
	default:
		if t := bytes.TrimSpace(b); len(t) > 0 && (t[0] == '{' || t[0] == '[') {
			utts, err = ParseJSON(b)
		} else {
			utts, err = ParseCues(bytes.NewReader(b))
		}
	}
	if err != nil {
		return types.Transcript{}, fmt.Errorf("%s: %w", path, err)
	}
	utts, err = Normalize(utts)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("%s: %w", path, err)
	}
	return types.Transcript{Utterances: utts}, nil
}

// ParseJSON accepts a bare utterance array or {"transcript": [...]}.
func ParseJSON(b []byte) ([]types.Utterance, error) {
	t := bytes.TrimSpace(b)
	if len(t) == 0 {
		return nil, fmt.Errorf("empty file")
	}
	if t[0] == '[' {
		var utts []types.Utterance
		if err := json.Unmarshal(t, &utts); err != nil {
			return nil, fmt.Errorf("decode transcript: %w", err)
		}
		return utts, nil
	}
	var tr types.Transcript
	if err := json.Unmarshal(t, &tr); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	return tr.Utterances, nil
}

var (
	cueTimeRE = regexp.MustCompile(`^((?:\d+:)?\d{1,2}:\d{2}[\.,]\d{1,3})\s+-->\s+((?:\d+:)?\d{1,2}:\d{2}[\.,]\d{1,3})`)
	tagRE     = regexp.MustCompile(`<[^>]*>`)
)

// ParseCues reads WebVTT or SRT cues. Styling tags are removed and a cue
// that repeats the previous cue's text is merged into it, which is how
// rolling auto-captions look.
func ParseCues(r io.Reader) ([]types.Utterance, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var out []types.Utterance
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		m := cueTimeRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		st, err := ParseCueTime(m[1])
		if err != nil {
			return nil, err
		}
		en, err := ParseCueTime(m[2])
		if err != nil {
			return nil, err
		}

		var text []string
		for sc.Scan() {
			tl := strings.TrimSpace(sc.Text())
			if tl == "" {
				break
			}
			if clean := strings.TrimSpace(tagRE.ReplaceAllString(tl, "")); clean != "" {
				text = append(text, clean)
			}
		}
		if len(text) == 0 {
			continue
		}
		u := types.Utterance{Text: strings.Join(text, " "), StartTimeMs: st, EndTimeMs: en}
		if n := len(out); n > 0 && out[n-1].Text == u.Text {
			if u.EndTimeMs > out[n-1].EndTimeMs {
				out[n-1].EndTimeMs = u.EndTimeMs
			}
			continue
		}
		out = append(out, u)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseCueTime parses [HH:]MM:SS.mmm (or with a comma) into milliseconds.
func ParseCueTime(s string) (int64, error) {
	s = strings.Replace(strings.TrimSpace(s), ",", ".", 1)
	main, frac, _ := strings.Cut(s, ".")
	parts := strings.Split(main, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: cue time %q", types.ErrMalformedTimestamp, s)
	}
	var sec int64
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: cue time %q", types.ErrMalformedTimestamp, s)
		}
		sec = sec*60 + n
	}
	var ms int64
	if frac != "" {
		for len(frac) < 3 {
			frac += "0"
		}
		n, err := strconv.ParseInt(frac[:3], 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: cue time %q", types.ErrMalformedTimestamp, s)
		}
		ms = n
	}
	return sec*1000 + ms, nil
}

// Normalize trims text, drops blank utterances and enforces
// 0 <= start <= end with non-decreasing starts.
func Normalize(utts []types.Utterance) ([]types.Utterance, error) {
	tr, err := types.Transcript{Utterances: utts}.Normalized()
	if err != nil {
		return nil, err
	}
	return tr.Utterances, nil
}
