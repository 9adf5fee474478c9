package types

import (
	"fmt"
	"strings"
	"time"
)

// Utterance is one recognized unit of speech. Offsets are milliseconds from
// media start.
type Utterance struct {
	Text        string `json:"text"`
	StartTimeMs int64  `json:"start_time"`
	EndTimeMs   int64  `json:"end_time"`
}

type Transcript struct {
	Utterances []Utterance `json:"transcript"`
}

// Span returns the end offset of the last utterance.
func (t Transcript) Span() time.Duration {
	if len(t.Utterances) == 0 {
		return 0
	}
	return time.Duration(t.Utterances[len(t.Utterances)-1].EndTimeMs) * time.Millisecond
}

// Normalized trims text, drops blank utterances and enforces
// 0 <= start <= end with non-decreasing starts.
func (t Transcript) Normalized() (Transcript, error) {
	out := make([]Utterance, 0, len(t.Utterances))
	var prev int64
	for i, u := range t.Utterances {
		u.Text = strings.TrimSpace(u.Text)
		if u.Text == "" {
			continue
		}
		if u.StartTimeMs < 0 {
			return Transcript{}, fmt.Errorf("utterance %d: negative start %d", i, u.StartTimeMs)
		}
		if u.EndTimeMs < u.StartTimeMs {
			return Transcript{}, fmt.Errorf("utterance %d: end %d before start %d", i, u.EndTimeMs, u.StartTimeMs)
		}
		if u.StartTimeMs < prev {
			return Transcript{}, fmt.Errorf("utterance %d: start %d before previous start %d", i, u.StartTimeMs, prev)
		}
		prev = u.StartTimeMs
		out = append(out, u)
	}
	return Transcript{Utterances: out}, nil
}

// Segment is a half-open utterance index range [Start, End).
type Segment struct {
	Start int
	End   int
}

func (s Segment) Len() int { return s.End - s.Start }

type SummaryRecord struct {
	Timestamp string `json:"timestamp"`
	Title     string `json:"title"`
	Content   string `json:"content"`
}

// Source tells which summarization path produced a set of records.
type Source string

const (
	SourceExternal      Source = "external"
	SourceLocal         Source = "local"
	SourceLocalFallback Source = "local_fallback"
)

// SummaryPrompt is the payload handed to an external summarizer.
type SummaryPrompt struct {
	VideoTitle      string          `json:"videoTitle"`
	DurationDisplay string          `json:"durationDisplay"`
	Transcript      []string        `json:"transcript"`
	Segments        []PromptSegment `json:"segments"`
}

// PromptSegment tells the summarizer where each expected record starts.
type PromptSegment struct {
	Timestamp string `json:"timestamp"`
	FirstLine int    `json:"first_line"`
	LastLine  int    `json:"last_line"`
}

// Run is the complete result of one processing run.
type Run struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Input      string          `json:"input,omitempty"`
	Duration   time.Duration   `json:"-"`
	Source     Source          `json:"mode"`
	Summary    []SummaryRecord `json:"summary"`
	Transcript []Utterance     `json:"transcript"`
	Segments   []Segment       `json:"-"`
	CreatedAt  time.Time       `json:"created_at"`
}

type Manifest struct {
	ID         string          `json:"id,omitempty"`
	Title      string          `json:"title"`
	Input      string          `json:"input,omitempty"`
	Duration   string          `json:"duration"`
	Mode       Source          `json:"mode"`
	Summary    []SummaryRecord `json:"summary"`
	Transcript []Utterance     `json:"transcript"`
	Files      ManifestFiles   `json:"files"`
}

type ManifestFiles struct {
	Markdown   string `json:"markdown"`
	Transcript string `json:"transcript"`
	Captions   string `json:"captions"`
}
