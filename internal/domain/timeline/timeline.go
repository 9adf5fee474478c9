// Package timeline maps summary records and transcript lines to positions on
// the media time axis and drives a player to them.
package timeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/forPelevin/vidbrief/internal/domain/timecode"
	"github.com/forPelevin/vidbrief/internal/types"
)

// SeekTargetForRecord returns the position a summary record points at.
func SeekTargetForRecord(r types.SummaryRecord) (float64, error) {
	return timecode.DecodeSeconds(r.Timestamp)
}

func SeekTargetForUtterance(u types.Utterance) float64 {
	return float64(u.StartTimeMs) / 1000
}

// Index relates records, segments and utterances of one run so that a
// selection in one list can be mirrored in the other.
type Index struct {
	utterances []types.Utterance
	segments   []types.Segment
	records    []types.SummaryRecord
}

// NewIndex requires one record per segment when segments are given.
func NewIndex(utterances []types.Utterance, segments []types.Segment, records []types.SummaryRecord) (*Index, error) {
	if len(segments) > 0 && len(segments) != len(records) {
		return nil, fmt.Errorf("timeline: %d segments for %d records", len(segments), len(records))
	}
	for i, s := range segments {
		if s.Start < 0 || s.End > len(utterances) || s.Len() < 1 {
			return nil, fmt.Errorf("timeline: segment %d [%d,%d) out of range", i, s.Start, s.End)
		}
		if i > 0 && segments[i-1].End != s.Start {
			return nil, fmt.Errorf("timeline: segment %d is not contiguous", i)
		}
	}
	return &Index{utterances: utterances, segments: segments, records: records}, nil
}

func (x *Index) Records() []types.SummaryRecord { return x.records }
func (x *Index) Utterances() []types.Utterance  { return x.utterances }

// RecordTarget returns the seek position of record i.
func (x *Index) RecordTarget(i int) (float64, error) {
	if i < 0 || i >= len(x.records) {
		return 0, fmt.Errorf("timeline: record %d out of range [0,%d)", i, len(x.records))
	}
	return SeekTargetForRecord(x.records[i])
}

func (x *Index) UtteranceTarget(i int) (float64, error) {
	if i < 0 || i >= len(x.utterances) {
		return 0, fmt.Errorf("timeline: utterance %d out of range [0,%d)", i, len(x.utterances))
	}
	return SeekTargetForUtterance(x.utterances[i]), nil
}

// FirstUtteranceOf returns the first transcript line of record i's segment.
// Without segments it falls back to the last line starting at or before the
// record's timestamp.
func (x *Index) FirstUtteranceOf(record int) int {
	if record < 0 || record >= len(x.records) {
		return -1
	}
	if len(x.segments) > 0 {
		return x.segments[record].Start
	}
	sec, err := timecode.Decode(x.records[record].Timestamp)
	if err != nil {
		return -1
	}
	i := sort.Search(len(x.utterances), func(i int) bool {
		return x.utterances[i].StartTimeMs/1000 > sec
	})
	if i == 0 {
		return 0
	}
	return i - 1
}

// RecordOf returns the record whose segment holds utterance i.
func (x *Index) RecordOf(utterance int) int {
	if utterance < 0 || utterance >= len(x.utterances) || len(x.records) == 0 {
		return -1
	}
	if len(x.segments) > 0 {
		return sort.Search(len(x.segments), func(k int) bool {
			return x.segments[k].End > utterance
		})
	}
	sec := x.utterances[utterance].StartTimeMs / 1000
	k := sort.Search(len(x.records), func(k int) bool {
		s, err := timecode.Decode(x.records[k].Timestamp)
		return err != nil || s > sec
	})
	if k == 0 {
		return 0
	}
	return k - 1
}

// Player is the playback collaborator. The engine never owns its state.
type Player interface {
	SeekTo(ctx context.Context, seconds float64) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
}

// Navigator turns clicks on list entries into player commands.
type Navigator struct {
	Index  *Index
	Player Player
	Logf   func(format string, args ...any)
}

func (n Navigator) logf(format string, args ...any) {
	if n.Logf != nil {
		n.Logf(format, args...)
	}
}

// JumpToRecord seeks to record i and starts playback.
func (n Navigator) JumpToRecord(ctx context.Context, i int) (float64, error) {
	sec, err := n.Index.RecordTarget(i)
	if err != nil {
		return 0, err
	}
	return sec, n.jump(ctx, sec)
}

func (n Navigator) JumpToUtterance(ctx context.Context, i int) (float64, error) {
	sec, err := n.Index.UtteranceTarget(i)
	if err != nil {
		return 0, err
	}
	return sec, n.jump(ctx, sec)
}

func (n Navigator) jump(ctx context.Context, sec float64) error {
	n.logf("seek %s", timecode.Encode(int64(sec*1000)))
	if err := n.Player.SeekTo(ctx, sec); err != nil {
		return fmt.Errorf("seek to %.3fs: %w", sec, err)
	}
	if err := n.Player.Play(ctx); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	return nil
}
