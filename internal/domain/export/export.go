// Package export renders summaries and transcripts for people and players.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/forPelevin/vidbrief/internal/domain/summary"
	"github.com/forPelevin/vidbrief/internal/domain/timecode"
	"github.com/forPelevin/vidbrief/internal/types"
)

// PlainTranscript renders one "[ts] text" line per utterance.
func PlainTranscript(utts []types.Utterance) string {
	lines := make([]string, 0, len(utts))
	for _, u := range utts {
		lines = append(lines, summary.TranscriptLine(u))
	}
	return strings.Join(lines, "\n")
}

// Document is what the Markdown export needs.
type Document struct {
	Title       string
	Duration    time.Duration
	Source      types.Source
	Records     []types.SummaryRecord
	GeneratedAt time.Time
}

func Markdown(doc Document) string {
	title := strings.TrimSpace(doc.Title)
	if title == "" {
		title = "Untitled video"
	}
	gen := doc.GeneratedAt
	if gen.IsZero() {
		gen = time.Now()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", oneLine(title))
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "Generated: %s\n", gen.UTC().Format("2006-01-02 15:04:05 UTC"))
	if doc.Duration > 0 {
		fmt.Fprintf(&b, "Duration: %s\n", timecode.EncodeDuration(doc.Duration))
	}
	if doc.Source != "" {
		fmt.Fprintf(&b, "Mode: %s\n", doc.Source)
	}
	b.WriteString("\n---\n")
	for i, r := range doc.Records {
		fmt.Fprintf(&b, "\n### %d. [%s] %s\n\n", i+1, strings.TrimSpace(r.Timestamp), oneLine(r.Title))
		b.WriteString(strings.TrimSpace(r.Content))
		b.WriteString("\n")
	}
	return b.String()
}

// Manifest is the machine-readable run description written next to the
// other exports.
func Manifest(run types.Run, files types.ManifestFiles) types.Manifest {
	return types.Manifest{
		ID:         run.ID,
		Title:      run.Title,
		Input:      run.Input,
		Duration:   timecode.EncodeDuration(run.Duration),
		Mode:       run.Source,
		Summary:    run.Summary,
		Transcript: run.Transcript,
		Files:      files,
	}
}

// Headings must stay on one line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// DoneMessage is the one-line status shown when a run finishes.
func DoneMessage(d time.Duration, points int) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("Done (%dm %ds, %d points)", secs/60, secs%60, points)
}
