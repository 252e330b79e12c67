package pipeline

import (
	"context"
	"fmt"
	"time"

	"map_shortcuts/pkg/cell"
	"map_shortcuts/pkg/shortcut"
)

// Phase is one of the two passes over the resolution ladder.
type Phase string

const (
	Forward  Phase = "forward"
	Backward Phase = "backward"
)

// Step is one (phase, resolution) visit.
type Step struct {
	Phase      Phase
	Resolution cell.Resolution
}

func (s Step) String() string { return fmt.Sprintf("%s/%d", s.Phase, s.Resolution) }

// StepRecord summarizes one executed step. Every step produces a record,
// including steps with no active rows.
type StepRecord struct {
	Phase      Phase               `json:"phase"`
	Resolution cell.Resolution     `json:"resolution"`
	Active     int                 `json:"active"`
	Generated  int                 `json:"generated"`
	Partitions int                 `json:"partitions"`
	Solver     string              `json:"solver,omitempty"`
	Merge      shortcut.MergeStats `json:"merge"`
	StoreSize  int                 `json:"store_size"`
	Duration   time.Duration       `json:"duration_ns"`
}

// Step returns the step this record belongs to.
func (r StepRecord) Step() Step { return Step{Phase: r.Phase, Resolution: r.Resolution} }

// StepError names the step a run aborted in.
type StepError struct {
	Phase      Phase
	Resolution cell.Resolution
	Err        error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s pass, resolution %d: %v", e.Phase, e.Resolution, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Hooks receives pipeline events. Implementations must be safe to call from
// the goroutine running the controller.
type Hooks interface {
	OnStepStart(ctx context.Context, step Step)
	OnStepComplete(ctx context.Context, rec StepRecord)
	OnFinalize(ctx context.Context, rows int, duration time.Duration)
}

// NoopHooks is a no-op implementation of Hooks.
type NoopHooks struct{}

func (NoopHooks) OnStepStart(context.Context, Step)              {}
func (NoopHooks) OnStepComplete(context.Context, StepRecord)     {}
func (NoopHooks) OnFinalize(context.Context, int, time.Duration) {}

// Checkpointer persists the store after every step so a run can resume.
type Checkpointer interface {
	Save(ctx context.Context, rows []shortcut.Shortcut, steps []StepRecord) error
	// Load returns ok == false when there is no checkpoint.
	Load(ctx context.Context) (rows []shortcut.Shortcut, steps []StepRecord, ok bool, err error)
}
