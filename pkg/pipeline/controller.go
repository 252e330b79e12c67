// Package pipeline runs the forward and backward passes over the resolution
// ladder and produces the final annotated shortcut table.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"map_shortcuts/pkg/cell"
	"map_shortcuts/pkg/expand"
	"map_shortcuts/pkg/partition"
	"map_shortcuts/pkg/shortcut"
)

// State is the controller lifecycle.
type State int

const (
	Idle State = iota
	RunningForward
	RunningBackward
	Finalized
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RunningForward:
		return "forward"
	case RunningBackward:
		return "backward"
	case Finalized:
		return "finalized"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrAlreadyRun is returned by Run on a controller that left Idle.
var ErrAlreadyRun = errors.New("controller already ran")

// Expander solves an active set. *expand.Engine implements it.
type Expander interface {
	Expand(ctx context.Context, set *partition.ActiveSet) (*expand.Derived, error)
}

// Config fixes the resolution ladder and anchor policy of a run.
type Config struct {
	MinResolution  cell.Resolution
	MaxResolution  cell.Resolution
	BackwardAnchor partition.Anchor
	Resume         bool // restore the latest checkpoint before running
}

// Validate checks the ladder bounds.
func (c Config) Validate() error {
	if c.MinResolution < 0 {
		return fmt.Errorf("min resolution %d must be >= 0", c.MinResolution)
	}
	if c.MaxResolution < c.MinResolution {
		return fmt.Errorf("max resolution %d < min resolution %d", c.MaxResolution, c.MinResolution)
	}
	return nil
}

// Plan returns every step in execution order: forward from MaxResolution
// down to MinResolution and then the Root level, then backward from
// MinResolution up to MaxResolution. Levels between Root and MinResolution
// are never visited.
func (c Config) Plan() []Step {
	var steps []Step
	for r := c.MaxResolution; r >= c.MinResolution; r-- {
		steps = append(steps, Step{Phase: Forward, Resolution: r})
	}
	steps = append(steps, Step{Phase: Forward, Resolution: cell.Root})
	for r := c.MinResolution; r <= c.MaxResolution; r++ {
		steps = append(steps, Step{Phase: Backward, Resolution: r})
	}
	return steps
}

// Result is the output of a run.
type Result struct {
	Steps   []StepRecord
	Final   *shortcut.Table
	Resumed int // steps restored from a checkpoint
}

// Controller drives one run. It is single use.
type Controller struct {
	cfg    Config
	oracle partition.Oracle
	engine Expander
	hooks  Hooks
	ckpt   Checkpointer
	logger *log.Logger

	mu    sync.Mutex
	state State
}

// Option configures a Controller.
type Option func(*Controller)

// WithHooks sets the event hooks.
func WithHooks(h Hooks) Option { return func(c *Controller) { c.hooks = h } }

// WithCheckpointer enables per-step checkpoints.
func WithCheckpointer(cp Checkpointer) Option { return func(c *Controller) { c.ckpt = cp } }

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(c *Controller) { c.logger = l } }

// New creates a controller.
func New(cfg Config, oracle partition.Oracle, engine Expander, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		cfg:    cfg,
		oracle: oracle,
		engine: engine,
		hooks:  NoopHooks{},
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run executes both passes on store and finalizes it. The store is modified
// in place; on error it holds the state after the last completed step.
func (c *Controller) Run(ctx context.Context, store *shortcut.Store) (*Result, error) {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return nil, ErrAlreadyRun
	}
	c.state = RunningForward
	c.mu.Unlock()

	res := &Result{}
	plan := c.cfg.Plan()

	if c.ckpt != nil && c.cfg.Resume {
		rows, steps, ok, err := c.ckpt.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load checkpoint: %w", err)
		}
		if ok {
			if err := checkPrefix(plan, steps); err != nil {
				return nil, fmt.Errorf("checkpoint does not match run: %w", err)
			}
			st := store.Reset(rows)
			res.Steps = append(res.Steps, steps...)
			res.Resumed = len(steps)
			c.logger.Info("resumed from checkpoint",
				"steps", len(steps), "shortcuts", humanize.Comma(int64(store.Len())), "rejected", st.Rejected)
		}
	}

	for _, step := range plan[res.Resumed:] {
		if step.Phase == Backward {
			c.setState(RunningBackward)
		}
		if err := ctx.Err(); err != nil {
			return nil, &StepError{Phase: step.Phase, Resolution: step.Resolution, Err: err}
		}

		rec, err := c.runStep(ctx, store, step)
		if err != nil {
			return nil, &StepError{Phase: step.Phase, Resolution: step.Resolution, Err: err}
		}
		res.Steps = append(res.Steps, rec)

		if c.ckpt != nil {
			if err := c.ckpt.Save(ctx, store.Rows(), res.Steps); err != nil {
				return nil, &StepError{Phase: step.Phase, Resolution: step.Resolution, Err: fmt.Errorf("save checkpoint: %w", err)}
			}
		}
		c.hooks.OnStepComplete(ctx, rec)
	}

	start := time.Now()
	res.Final = partition.Finalize(store, c.oracle, c.cfg.MaxResolution)
	c.setState(Finalized)
	c.hooks.OnFinalize(ctx, res.Final.Len(), time.Since(start))
	c.logger.Info("finalized", "shortcuts", humanize.Comma(int64(res.Final.Len())), "took", time.Since(start))
	return res, nil
}

// runStep performs Assign, Expand and Merge for one resolution.
func (c *Controller) runStep(ctx context.Context, store *shortcut.Store, step Step) (StepRecord, error) {
	c.hooks.OnStepStart(ctx, step)
	start := time.Now()

	anchor := partition.Inner
	if step.Phase == Backward {
		anchor = c.cfg.BackwardAnchor
	}

	set := partition.Assign(store, c.oracle, step.Resolution, anchor)
	rec := StepRecord{
		Phase:      step.Phase,
		Resolution: step.Resolution,
		Active:     set.Active,
		Partitions: len(set.Partitions),
	}

	if set.Empty() {
		c.logger.Info("no active shortcuts, skipping", "phase", step.Phase, "res", step.Resolution)
	} else {
		derived, err := c.engine.Expand(ctx, set)
		if err != nil {
			return StepRecord{}, err
		}
		rec.Generated = len(derived.Rows)
		rec.Solver = derived.Solver
		rec.Merge = store.Merge(derived.Rows)
	}
	rec.StoreSize = store.Len()
	rec.Duration = time.Since(start)

	c.logger.Info("step complete",
		"phase", step.Phase,
		"res", step.Resolution,
		"active", humanize.Comma(int64(rec.Active)),
		"partitions", rec.Partitions,
		"solver", rec.Solver,
		"generated", humanize.Comma(int64(rec.Generated)),
		"new", rec.Merge.Inserted,
		"improved", rec.Merge.Improved,
		"took", rec.Duration.Round(time.Millisecond))
	return rec, nil
}

// checkPrefix verifies that the saved steps are the head of the plan.
func checkPrefix(plan []Step, done []StepRecord) error {
	if len(done) > len(plan) {
		return fmt.Errorf("%d saved steps, plan has %d", len(done), len(plan))
	}
	for i, rec := range done {
		if rec.Step() != plan[i] {
			return fmt.Errorf("step %d is %s, expected %s", i, rec.Step(), plan[i])
		}
	}
	return nil
}
