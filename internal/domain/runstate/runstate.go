// Package runstate tracks the single asset being processed and rejects
// results that belong to a run the user has since reset or replaced.
package runstate

import (
	"fmt"
	"sync"
	"time"

	"github.com/forPelevin/vidbrief/internal/types"
)

type Stage string

const (
	StageIdle       Stage = "idle"
	StageExtracting Stage = "extracting"
	StageUploading  Stage = "uploading"
	StageAnalyzing  Stage = "analyzing"
	StageReady      Stage = "ready"
	StageError      Stage = "error"
)

func (s Stage) rank() int {
	switch s {
	case StageExtracting:
		return 1
	case StageUploading:
		return 2
	case StageAnalyzing:
		return 3
	case StageReady, StageError:
		return 4
	default:
		return 0
	}
}

// Terminal reports whether no further transition is possible without a
// new Begin or a Reset.
func (s Stage) Terminal() bool { return s == StageReady || s == StageError }

// RunID identifies one processing run. IDs only grow.
type RunID uint64

type State struct {
	RunID     RunID     `json:"run_id"`
	Asset     string    `json:"asset,omitempty"`
	Stage     Stage     `json:"stage"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message,omitempty"`
	Result    string    `json:"result,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tracker holds the current state. It is safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	state State
	next  RunID
	now   func() time.Time
	Logf  func(format string, args ...any)
}

func NewTracker() *Tracker {
	t := &Tracker{now: time.Now}
	t.state = State{Stage: StageIdle, UpdatedAt: t.now()}
	return t
}

func (t *Tracker) logf(format string, args ...any) {
	if t.Logf != nil {
		t.Logf(format, args...)
	}
}

// Begin starts a run for asset. Whatever was in flight becomes stale.
func (t *Tracker) Begin(asset string) RunID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	prev := t.state
	t.state = State{RunID: t.next, Asset: asset, Stage: StageExtracting, UpdatedAt: t.now()}
	if prev.RunID != 0 && !prev.Stage.Terminal() && prev.Stage != StageIdle {
		t.logf("run %d replaced by run %d while %s", prev.RunID, t.next, prev.Stage)
	}
	return t.next
}

// Advance moves run id forward to stage. Stages may be skipped but never
// revisited.
func (t *Tracker) Advance(id RunID, stage Stage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkLocked(id); err != nil {
		return err
	}
	if stage.Terminal() || stage.rank() == 0 {
		return fmt.Errorf("runstate: %s is not an in-progress stage", stage)
	}
	if stage.rank() <= t.state.Stage.rank() {
		return fmt.Errorf("runstate: cannot move from %s to %s", t.state.Stage, stage)
	}
	t.state.Stage = stage
	t.state.UpdatedAt = t.now()
	t.logf("run %d: %s", id, stage)
	return nil
}

// Progress records a percentage for the current stage. Values only grow
// within a run and are clamped to [0,100].
func (t *Tracker) Progress(id RunID, pct int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkLocked(id); err != nil {
		return err
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	if pct > t.state.Progress {
		t.state.Progress = pct
		t.state.UpdatedAt = t.now()
	}
	return nil
}

// Complete marks run id ready. result is an opaque reference such as a
// stored run ID.
func (t *Tracker) Complete(id RunID, result string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkLocked(id); err != nil {
		return err
	}
	t.state.Stage = StageReady
	t.state.Progress = 100
	t.state.Result = result
	t.state.Message = ""
	t.state.UpdatedAt = t.now()
	t.logf("run %d: ready", id)
	return nil
}

// Fail marks run id failed with a user-facing description of cause.
func (t *Tracker) Fail(id RunID, cause error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkLocked(id); err != nil {
		return err
	}
	t.state.Stage = StageError
	t.state.Message = types.Describe(cause)
	t.state.UpdatedAt = t.now()
	t.logf("run %d: error: %v", id, cause)
	return nil
}

// Reset returns to idle and invalidates the run in flight.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.state = State{Stage: StageIdle, UpdatedAt: t.now()}
}

func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Current reports whether id is still the run being tracked and not yet
// finished.
func (t *Tracker) Current(id RunID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.checkLocked(id) == nil
}

func (t *Tracker) checkLocked(id RunID) error {
	if id == 0 || id != t.state.RunID {
		return fmt.Errorf("%w: run %d, current %d", types.ErrStaleRun, id, t.state.RunID)
	}
	if t.state.Stage.Terminal() {
		return fmt.Errorf("runstate: run %d already %s", id, t.state.Stage)
	}
	return nil
}
