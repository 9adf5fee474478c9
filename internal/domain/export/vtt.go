package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/forPelevin/vidbrief/internal/types"
)

const minCue = 500 * time.Millisecond

// WebVTT renders one cue per utterance for loading next to the video.
// Cues with no length get a short display window that never runs into
// the next cue.
func WebVTT(utts []types.Utterance) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n")
	n := 0
	for i, u := range utts {
		text := sanitizeVTT(u.Text)
		if text == "" {
			continue
		}
		st := time.Duration(u.StartTimeMs) * time.Millisecond
		en := time.Duration(u.EndTimeMs) * time.Millisecond
		if en <= st {
			en = st + minCue
			if i+1 < len(utts) {
				next := time.Duration(utts[i+1].StartTimeMs) * time.Millisecond
				if next > st && next < en {
					en = next
				}
			}
		}
		n++
		fmt.Fprintf(&b, "\n%d\n%s --> %s\n%s\n", n, vttTime(st), vttTime(en), text)
	}
	return b.String()
}

func vttTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hs := int(d / time.Hour)
	d -= time.Duration(hs) * time.Hour
	ms := int(d / time.Minute)
	d -= time.Duration(ms) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	milli := int(d / time.Millisecond)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hs, ms, s, milli)
}

// Cue payloads may not contain "-->" or blank lines.
func sanitizeVTT(s string) string {
	s = strings.ReplaceAll(s, "-->", "->")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}
