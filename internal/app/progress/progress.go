// Package progress implements the step progress simulator: a timer-driven
// sequence of labeled steps shown to the user while a remote generation call
// is in flight. It is purely cosmetic — the real completion signal comes
// from the invocation settling, never from this stepper. The two state
// machines are joined only at the UI boundary.
package progress

import (
	"sync"
	"time"

	"github.com/nutrigen/nutrigen/internal/domain"
)

// Config controls step pacing.
type Config struct {
	StepDuration    time.Duration // per-step duration when a step has no estimate
	ScaleFactor     float64       // multiplier applied to per-step estimates
	MinimumFloor    time.Duration // lower bound for any scaled step
	CompletionDelay time.Duration // pause after the last step before IsComplete
}

// DefaultConfig returns the pacing used by the app dialogs.
func DefaultConfig() Config {
	return Config{
		StepDuration:    2 * time.Second,
		ScaleFactor:     1.0,
		MinimumFloor:    500 * time.Millisecond,
		CompletionDelay: 800 * time.Millisecond,
	}
}

// Snapshot is the observable stepper state.
type Snapshot struct {
	CurrentStepIndex int     `json:"current_step_index"`
	StepID           string  `json:"step_id,omitempty"`
	Label            string  `json:"label,omitempty"`
	IsComplete       bool    `json:"is_complete"`
	Progress         float64 `json:"progress"` // 0–100
}

// Stepper walks an ordered list of StepDescriptors on a timer chain:
// idle → stepping(0..N-1) → complete. Start always resets to step zero;
// Stop cancels every pending timer so nothing leaks.
type Stepper struct {
	mu       sync.Mutex
	cfg      Config
	steps    []domain.StepDescriptor
	active   bool
	complete bool
	index    int
	gen      int // activation generation; stale timer fires are dropped
	timer    *time.Timer
	onChange func(Snapshot)
}

// NewStepper creates a stepper over the given steps. onChange, when
// non-nil, is called after every state transition (used to feed the live
// progress stream); it must not block.
func NewStepper(cfg Config, steps []domain.StepDescriptor, onChange func(Snapshot)) *Stepper {
	if cfg.ScaleFactor <= 0 {
		cfg.ScaleFactor = 1.0
	}
	return &Stepper{cfg: cfg, steps: steps, onChange: onChange}
}

// Start activates the stepper. Any previous run is discarded: the index
// resets to zero and IsComplete resets to false.
func (s *Stepper) Start() {
	s.mu.Lock()
	s.stopTimerLocked()
	s.gen++
	s.active = true
	s.complete = false
	s.index = 0
	gen := s.gen

	if len(s.steps) == 0 {
		// Nothing to step through; only the completion delay remains.
		s.timer = time.AfterFunc(s.cfg.CompletionDelay, func() { s.finish(gen) })
	} else {
		s.timer = time.AfterFunc(s.delayFor(0), func() { s.advance(gen) })
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(snap)
}

// Stop deactivates the stepper and cancels pending timers. The current
// index and completion flag are left as-is for a final snapshot read.
func (s *Stepper) Stop() {
	s.mu.Lock()
	s.stopTimerLocked()
	s.active = false
	s.gen++
	s.mu.Unlock()
}

// Snapshot returns the current observable state.
func (s *Stepper) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Active reports whether the stepper is running.
func (s *Stepper) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ─── Internals ──────────────────────────────────────────────────────────────

// advance moves to the next step, or schedules completion after the last.
func (s *Stepper) advance(gen int) {
	s.mu.Lock()
	if gen != s.gen || !s.active || s.complete {
		s.mu.Unlock()
		return
	}

	if s.index < len(s.steps)-1 {
		s.index++
		next := s.index
		s.timer = time.AfterFunc(s.delayFor(next), func() { s.advance(gen) })
	} else {
		s.timer = time.AfterFunc(s.cfg.CompletionDelay, func() { s.finish(gen) })
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(snap)
}

// finish flags completion after the completion delay elapsed on the last step.
func (s *Stepper) finish(gen int) {
	s.mu.Lock()
	if gen != s.gen || !s.active || s.complete {
		s.mu.Unlock()
		return
	}
	s.complete = true
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(snap)
}

// delayFor computes the dwell time for step i:
// max(estimate × scale, floor), or the fixed StepDuration without estimate.
func (s *Stepper) delayFor(i int) time.Duration {
	step := s.steps[i]
	if step.EstimatedDuration <= 0 {
		return s.cfg.StepDuration
	}
	d := time.Duration(float64(step.EstimatedDuration) * s.cfg.ScaleFactor)
	if d < s.cfg.MinimumFloor {
		return s.cfg.MinimumFloor
	}
	return d
}

func (s *Stepper) snapshotLocked() Snapshot {
	snap := Snapshot{
		CurrentStepIndex: s.index,
		IsComplete:       s.complete,
	}
	if s.index < len(s.steps) {
		snap.StepID = s.steps[s.index].ID
		snap.Label = s.steps[s.index].Label
	}
	switch {
	case s.complete:
		snap.Progress = 100
	case len(s.steps) > 0:
		snap.Progress = float64(s.index) / float64(len(s.steps)) * 100
	}
	return snap
}

func (s *Stepper) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Stepper) emit(snap Snapshot) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}
