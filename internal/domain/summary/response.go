package summary

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/forPelevin/vidbrief/internal/domain/timecode"
	"github.com/forPelevin/vidbrief/internal/types"
)

// ResponseError means the summarizer answered but the answer is unusable.
// The assembler recovers from it locally.
type ResponseError struct {
	Reason string
}

func (e *ResponseError) Error() string { return "summary response: " + e.Reason }

func responseErrorf(format string, args ...any) error {
	return &ResponseError{Reason: fmt.Sprintf(format, args...)}
}

// Response is the structured answer expected from a summarizer.
type Response struct {
	VideoType string                `json:"video_type,omitempty"`
	Summary   []types.SummaryRecord `json:"summary"`
}

var reBoilerplate = regexp.MustCompile(`(?i)(\bpart\s*\d+\b|\bsegment\s*\d+\b|\bsection\s*\d+\b|this\s+(segment|section|part)\s+(covers|discusses|is about)|discussed\s+related\s+topics|第\s*[0-9一二三四五六七八九十]+\s*(部分|段|节))`)

// HasBoilerplate reports whether s looks like a templated placeholder rather
// than real content.
func HasBoilerplate(s string) bool {
	return reBoilerplate.MatchString(s)
}

// ExtractJSONObject returns the first well-formed JSON object in s. Code
// fences and surrounding prose are ignored.
func ExtractJSONObject(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", responseErrorf("empty content")
	}
	if strings.HasPrefix(t, "```") {
		if i := strings.Index(t, "\n"); i >= 0 {
			t = t[i+1:]
		}
		if j := strings.LastIndex(t, "```"); j >= 0 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}

	for off := 0; off < len(t); {
		i := strings.IndexByte(t[off:], '{')
		if i < 0 {
			break
		}
		start := off + i
		dec := json.NewDecoder(strings.NewReader(t[start:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err == nil {
			return string(raw), nil
		}
		off = start + 1
	}
	return "", responseErrorf("no JSON object in %q", truncate(t, 200))
}

// ParseResponse extracts and validates a summarizer answer. want is the
// number of segments the records must line up with; 0 skips that check.
func ParseResponse(raw string, want int) (Response, error) {
	obj, err := ExtractJSONObject(raw)
	if err != nil {
		return Response{}, err
	}
	var resp Response
	if err := json.Unmarshal([]byte(obj), &resp); err != nil {
		return Response{}, responseErrorf("decode: %v", err)
	}
	if err := ValidateRecords(resp.Summary, want); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// ValidateRecords checks fields, timestamp syntax and order.
func ValidateRecords(recs []types.SummaryRecord, want int) error {
	if len(recs) == 0 {
		return responseErrorf("no summary records")
	}
	if want > 0 && len(recs) != want {
		return responseErrorf("got %d records for %d segments", len(recs), want)
	}
	var prev int64 = -1
	for i, r := range recs {
		if strings.TrimSpace(r.Timestamp) == "" || strings.TrimSpace(r.Title) == "" || strings.TrimSpace(r.Content) == "" {
			return responseErrorf("record %d has an empty field", i)
		}
		sec, err := timecode.Decode(r.Timestamp)
		if err != nil {
			return &ResponseError{Reason: fmt.Sprintf("record %d: %v", i, err)}
		}
		if sec < prev {
			return responseErrorf("record %d timestamp %s goes backwards", i, r.Timestamp)
		}
		prev = sec
		if HasBoilerplate(r.Title) {
			return responseErrorf("record %d title %q is boilerplate", i, r.Title)
		}
	}
	return nil
}

// IsResponseError reports whether err is a recoverable bad answer.
func IsResponseError(err error) bool {
	var re *ResponseError
	return errors.As(err, &re)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
