package summary

import (
	"regexp"
	"sort"
	"strings"
)

var (
	reNum   = regexp.MustCompile(`\d+(?:[\.,]\d+)?%?`)
	reKey   = regexp.MustCompile(`(?i)\b(important|key|problem|reason|because|result|mistake|never|always|remember|recommend|suggest|decide[ds]?)\b`)
	reHow   = regexp.MustCompile(`(?i)\b(how\s+to|step\s+\d+|first|second|third|finally|for\s+example)\b`)
	reKeyZh = regexp.MustCompile(`(重要|关键|问题|原因|因为|结果|建议|决定|首先|其次|最后|例如|比如|总结)`)
)

// salience returns a rough [0..10] informativeness score for an utterance.
// Numbers, names of decisions and procedural cues rank higher; filler ranks low.
func salience(text string) float64 {
	t := strings.TrimSpace(text)
	if t == "" {
		return 0
	}
	lower := strings.ToLower(t)

	s := float64(len(reNum.FindAllStringIndex(t, -1))) * 0.8
	s += float64(len(reKey.FindAllStringIndex(lower, -1))) * 0.9
	s += float64(len(reKeyZh.FindAllStringIndex(t, -1))) * 0.9
	if reHow.MatchString(lower) {
		s += 1.2
	}
	s += float64(strings.Count(t, "?")+strings.Count(t, "？")) * 0.5

	// Very short lines rarely carry content on their own.
	if n := len([]rune(t)); n < 6 {
		s -= 0.5
	}
	return clamp(s, 0, 10)
}

// mostSalient picks up to n indices from texts by descending salience and
// returns them in their original order. Ties go to the earlier line.
func mostSalient(texts []string, n int) []int {
	if n <= 0 {
		return nil
	}
	idx := make([]int, 0, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) != "" {
			idx = append(idx, i)
		}
	}
	if len(idx) <= n {
		return idx
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return salience(texts[idx[a]]) > salience(texts[idx[b]])
	})
	idx = idx[:n]
	sort.Ints(idx)
	return idx
}

func clamp(x, a, b float64) float64 {
	if x < a {
		return a
	}
	if x > b {
		return b
	}
	return x
}
