package summary

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/forPelevin/vidbrief/internal/domain/timecode"
	"github.com/forPelevin/vidbrief/internal/types"
)

// LocalOptions tunes the deterministic summary derivation.
type LocalOptions struct {
	StripFillers     bool
	FillerWords      []string
	TitleMaxRunes    int
	QuotesPerSegment int
}

// DefaultLocalOptions strips fillers and keeps titles to 20 runes with three
// quotes per segment.
func DefaultLocalOptions() LocalOptions {
	return LocalOptions{
		StripFillers:     true,
		FillerWords:      DefaultFillerWords(),
		TitleMaxRunes:    20,
		QuotesPerSegment: 3,
	}
}

// DefaultFillerWords lists the Chinese and English openers dropped from titles.
func DefaultFillerWords() []string {
	return []string{
		"好的", "好", "那么", "那", "嗯", "啊", "呃",
		"okay", "ok", "so", "well", "um", "uh", "like", "right", "yeah", "and",
	}
}

func (o LocalOptions) normalized() LocalOptions {
	if o.TitleMaxRunes <= 0 {
		o.TitleMaxRunes = 20
	}
	if o.QuotesPerSegment <= 0 {
		o.QuotesPerSegment = 1
	}
	return o
}

// Local derives one record per segment from the utterance text itself.
func Local(segments []types.Segment, utterances []types.Utterance, opts LocalOptions) ([]types.SummaryRecord, error) {
	if len(utterances) == 0 {
		return nil, types.ErrEmptyTranscript
	}
	if err := checkSegments(segments, len(utterances)); err != nil {
		return nil, err
	}
	opts = opts.normalized()

	out := make([]types.SummaryRecord, 0, len(segments))
	for i, seg := range segments {
		group := utterances[seg.Start:seg.End]
		texts := make([]string, len(group))
		lead := -1
		for j, u := range group {
			texts[j] = strings.TrimSpace(u.Text)
			if lead < 0 && texts[j] != "" {
				lead = j
			}
		}
		if lead < 0 {
			return nil, fmt.Errorf("segment %d (utterances %d-%d) has no text", i, seg.Start, seg.End-1)
		}

		rest := texts[lead+1:]
		picks := mostSalient(rest, opts.QuotesPerSegment-1)
		var b strings.Builder
		b.WriteString("“")
		b.WriteString(texts[lead])
		b.WriteString("”")
		for _, p := range picks {
			b.WriteByte(' ')
			b.WriteString(withTerminal(rest[p]))
		}

		out = append(out, types.SummaryRecord{
			Timestamp: timecode.Encode(group[0].StartTimeMs),
			Title:     deriveTitle(texts[lead], opts),
			Content:   b.String(),
		})
	}
	return out, nil
}

func checkSegments(segments []types.Segment, n int) error {
	if len(segments) == 0 {
		return fmt.Errorf("no segments for %d utterances", n)
	}
	next := 0
	for i, s := range segments {
		if s.Start != next || s.End <= s.Start || s.End > n {
			return fmt.Errorf("segment %d [%d,%d) does not continue partition of %d utterances", i, s.Start, s.End, n)
		}
		next = s.End
	}
	if next != n {
		return fmt.Errorf("segments cover %d of %d utterances", next, n)
	}
	return nil
}

func deriveTitle(text string, o LocalOptions) string {
	t := text
	if o.StripFillers {
		t = stripFillers(t, o.FillerWords)
	}
	clause := titleClause(t)
	if clause == "" {
		clause = titleClause(text)
	}
	if clause == "" {
		clause = strings.Join(strings.Fields(reBoilerplate.ReplaceAllString(text, "")), " ")
		clause = strings.TrimLeftFunc(clause, func(r rune) bool { return r == ' ' || isClauseBreak(r) })
	}
	if clause == "" {
		clause = "Untitled"
	}
	return truncateRunes(clause, o.TitleMaxRunes)
}

// titleClause returns the first clause of s that has a word rune and does
// not read as a placeholder, or "" when there is none.
func titleClause(s string) string {
	for rest := s; strings.TrimSpace(rest) != ""; {
		var clause string
		clause, rest = splitClause(rest)
		if hasWordRune(clause) && !HasBoilerplate(clause) {
			return clause
		}
	}
	return ""
}

func hasWordRune(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) >= 0
}

// splitClause returns text up to the first clause break and what follows
// it. An ASCII period only counts when followed by a space so decimals stay
// intact.
func splitClause(s string) (clause, rest string) {
	s = strings.TrimSpace(s)
	for i, r := range s {
		if r == '.' {
			next := i + 1
			if next < len(s) && s[next] != ' ' {
				continue
			}
		} else if !isClauseBreak(r) {
			continue
		}
		return strings.TrimSpace(s[:i]), s[i+utf8.RuneLen(r):]
	}
	return s, ""
}

func isClauseBreak(r rune) bool {
	switch r {
	case ',', ';', '!', '?', ':', '，', '。', '；', '！', '？', '：', '、':
		return true
	}
	return false
}

func stripFillers(s string, fillers []string) string {
	t := trimLeadingPunct(s)
	for changed := true; changed && t != ""; {
		changed = false
		lower := strings.ToLower(t)
		for _, f := range fillers {
			f = strings.ToLower(strings.TrimSpace(f))
			if f == "" || !strings.HasPrefix(lower, f) {
				continue
			}
			rest := t[len(f):]
			if isASCIIWord(f) && rest != "" {
				r, _ := utf8.DecodeRuneInString(rest)
				if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
					continue
				}
			}
			t = trimLeadingPunct(rest)
			changed = true
			break
		}
	}
	return t
}

func trimLeadingPunct(s string) string {
	return strings.TrimLeftFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
}

func isASCIIWord(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}

// withTerminal makes sure a quoted follow-up line reads as a sentence.
func withTerminal(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	last, _ := utf8.DecodeLastRuneInString(s)
	switch last {
	case '.', '!', '?', '。', '！', '？', '…', '"', '”', '」':
		return s
	}
	if last >= 0x2E80 {
		return s + "。"
	}
	return s + "."
}
