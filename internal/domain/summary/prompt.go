package summary

import (
	"strings"
	"time"

	"github.com/forPelevin/vidbrief/internal/domain/timecode"
	"github.com/forPelevin/vidbrief/internal/types"
)

// Input is everything an assembler needs for one run.
type Input struct {
	Title      string
	Duration   time.Duration
	Utterances []types.Utterance
	Segments   []types.Segment
}

// BuildPrompt serializes the transcript as "[ts] text" lines together with
// the segment boundaries the summarizer has to respect.
func BuildPrompt(in Input) types.SummaryPrompt {
	lines := make([]string, 0, len(in.Utterances))
	for _, u := range in.Utterances {
		lines = append(lines, TranscriptLine(u))
	}
	segs := make([]types.PromptSegment, 0, len(in.Segments))
	for _, s := range in.Segments {
		if s.Start < 0 || s.End > len(in.Utterances) || s.Len() < 1 {
			continue
		}
		segs = append(segs, types.PromptSegment{
			Timestamp: timecode.Encode(in.Utterances[s.Start].StartTimeMs),
			FirstLine: s.Start + 1,
			LastLine:  s.End,
		})
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = "Untitled video"
	}
	return types.SummaryPrompt{
		VideoTitle:      title,
		DurationDisplay: timecode.EncodeDuration(in.Duration),
		Transcript:      lines,
		Segments:        segs,
	}
}

// TranscriptLine renders one utterance the way it is shown to users and
// to the summarizer.
func TranscriptLine(u types.Utterance) string {
	return "[" + timecode.Encode(u.StartTimeMs) + "] " + strings.TrimSpace(u.Text)
}
