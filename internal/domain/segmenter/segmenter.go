// Package segmenter splits a transcript into a bounded number of contiguous
// utterance groups, one per summary record.
package segmenter

import (
	"fmt"
	"math"

	"github.com/forPelevin/vidbrief/internal/types"
)

const (
	DefaultMinSegments       = 5
	DefaultMaxSegments       = 25
	DefaultSecondsPerSegment = 30
)

// Policy bounds how many segments a transcript of a given duration gets.
type Policy struct {
	MinSegments       int
	MaxSegments       int
	SecondsPerSegment float64
}

// DefaultPolicy returns the package default segment bounds and pacing.
func DefaultPolicy() Policy {
	return Policy{
		MinSegments:       DefaultMinSegments,
		MaxSegments:       DefaultMaxSegments,
		SecondsPerSegment: DefaultSecondsPerSegment,
	}
}

func (p Policy) Validate() error {
	if p.MinSegments < 1 {
		return fmt.Errorf("min segments must be >= 1")
	}
	if p.MaxSegments < p.MinSegments {
		return fmt.Errorf("max segments must be >= min segments")
	}
	if p.SecondsPerSegment <= 0 || math.IsNaN(p.SecondsPerSegment) || math.IsInf(p.SecondsPerSegment, 0) {
		return fmt.Errorf("seconds per segment must be > 0")
	}
	return nil
}

// Count returns the policy segment count for a media duration: one segment
// per SecondsPerSegment, clamped to [MinSegments, MaxSegments].
// Negative or NaN durations count as zero.
func (p Policy) Count(durationSeconds float64) int {
	p = p.normalized()
	if durationSeconds <= 0 || math.IsNaN(durationSeconds) {
		return p.MinSegments
	}
	n := math.Floor(durationSeconds / p.SecondsPerSegment)
	if n >= float64(p.MaxSegments) {
		return p.MaxSegments
	}
	if n <= float64(p.MinSegments) {
		return p.MinSegments
	}
	return int(n)
}

// EffectiveCount caps Count by the number of utterances so that every
// segment holds at least one. An empty transcript still yields 1; Partition
// rejects it.
func (p Policy) EffectiveCount(durationSeconds float64, utteranceCount int) int {
	n := p.Count(durationSeconds)
	if utteranceCount < n {
		n = utteranceCount
	}
	if n < 1 {
		n = 1
	}
	return n
}

func (p Policy) normalized() Policy {
	if p.MinSegments < 1 {
		p.MinSegments = 1
	}
	if p.MaxSegments < 1 {
		p.MaxSegments = DefaultMaxSegments
	}
	if p.MaxSegments < p.MinSegments {
		p.MaxSegments = p.MinSegments
	}
	if !(p.SecondsPerSegment > 0) || math.IsInf(p.SecondsPerSegment, 0) {
		p.SecondsPerSegment = DefaultSecondsPerSegment
	}
	return p
}

// Partition divides utteranceCount items into segmentCount contiguous ranges
// whose sizes differ by at most one; earlier ranges take the remainder.
// segmentCount is capped at utteranceCount.
func Partition(utteranceCount, segmentCount int) ([]types.Segment, error) {
	if utteranceCount <= 0 {
		return nil, types.ErrEmptyTranscript
	}
	if segmentCount < 1 {
		return nil, fmt.Errorf("segment count must be >= 1, got %d", segmentCount)
	}
	if segmentCount > utteranceCount {
		segmentCount = utteranceCount
	}

	q, r := utteranceCount/segmentCount, utteranceCount%segmentCount
	out := make([]types.Segment, 0, segmentCount)
	start := 0
	for i := 0; i < segmentCount; i++ {
		size := q
		if i < r {
			size++
		}
		out = append(out, types.Segment{Start: start, End: start + size})
		start += size
	}
	return out, nil
}

// Split is the whole segmentation step for one transcript.
func (p Policy) Split(utterances []types.Utterance, durationSeconds float64) ([]types.Segment, error) {
	if len(utterances) == 0 {
		return nil, types.ErrEmptyTranscript
	}
	return Partition(len(utterances), p.EffectiveCount(durationSeconds, len(utterances)))
}
