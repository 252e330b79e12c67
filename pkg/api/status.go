package api

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"map_shortcuts/pkg/pipeline"
)

// Run states reported by /api/v1/status.
const (
	StateIdle      = "idle"
	StateFinalized = "finalized"
	StateFailed    = "failed"
)

type metrics struct {
	steps      *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	active     *prometheus.CounterVec
	generated  *prometheus.CounterVec
	merge      *prometheus.CounterVec
	storeRows  prometheus.Gauge
	resolution prometheus.Gauge
	finalRows  prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		steps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shortcuts_steps_total",
			Help: "Completed pipeline steps by phase",
		}, []string{"phase"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shortcuts_step_duration_seconds",
			Help:    "Wall time per pipeline step",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"phase"}),
		active: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shortcuts_active_rows_total",
			Help: "Rows handed to expansion by phase",
		}, []string{"phase"}),
		generated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shortcuts_generated_rows_total",
			Help: "Rows produced by expansion by phase",
		}, []string{"phase"}),
		merge: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shortcuts_merge_rows_total",
			Help: "Merge outcomes of derived rows",
		}, []string{"outcome"}),
		storeRows: f.NewGauge(prometheus.GaugeOpts{
			Name: "shortcuts_store_rows",
			Help: "Rows in the shortcut store after the last step",
		}),
		resolution: f.NewGauge(prometheus.GaugeOpts{
			Name: "shortcuts_current_resolution",
			Help: "Resolution of the step in progress",
		}),
		finalRows: f.NewGauge(prometheus.GaugeOpts{
			Name: "shortcuts_final_rows",
			Help: "Rows in the finalized table",
		}),
	}
}

// Status tracks a run for the status server. It implements pipeline.Hooks.
type Status struct {
	runID   string
	started time.Time
	m       *metrics

	mu        sync.RWMutex
	state     string
	current   *StepJSON
	steps     []pipeline.StepRecord
	finalRows int
	err       string
}

var _ pipeline.Hooks = (*Status)(nil)

// NewStatus registers the run metrics on reg.
func NewStatus(runID string, reg prometheus.Registerer) *Status {
	return &Status{
		runID:   runID,
		started: time.Now(),
		m:       newMetrics(reg),
		state:   StateIdle,
	}
}

func (s *Status) OnStepStart(_ context.Context, step pipeline.Step) {
	s.mu.Lock()
	s.state = string(step.Phase)
	s.current = &StepJSON{Phase: step.Phase, Resolution: int(step.Resolution)}
	s.mu.Unlock()
	s.m.resolution.Set(float64(step.Resolution))
}

func (s *Status) OnStepComplete(_ context.Context, rec pipeline.StepRecord) {
	s.mu.Lock()
	s.steps = append(s.steps, rec)
	s.mu.Unlock()

	phase := string(rec.Phase)
	s.m.steps.WithLabelValues(phase).Inc()
	s.m.duration.WithLabelValues(phase).Observe(rec.Duration.Seconds())
	s.m.active.WithLabelValues(phase).Add(float64(rec.Active))
	s.m.generated.WithLabelValues(phase).Add(float64(rec.Generated))
	s.m.merge.WithLabelValues("inserted").Add(float64(rec.Merge.Inserted))
	s.m.merge.WithLabelValues("improved").Add(float64(rec.Merge.Improved))
	s.m.merge.WithLabelValues("unchanged").Add(float64(rec.Merge.Unchanged))
	s.m.merge.WithLabelValues("rejected").Add(float64(rec.Merge.Rejected))
	s.m.storeRows.Set(float64(rec.StoreSize))
}

func (s *Status) OnFinalize(_ context.Context, rows int, _ time.Duration) {
	s.mu.Lock()
	s.state = StateFinalized
	s.current = nil
	s.finalRows = rows
	s.mu.Unlock()
	s.m.finalRows.Set(float64(rows))
}

// Fail marks the run as aborted.
func (s *Status) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateFailed
	s.err = err.Error()
}

// Snapshot returns the current status.
func (s *Status) Snapshot() StatusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp := StatusResponse{
		RunID:     s.runID,
		State:     s.state,
		StartedAt: s.started.UTC(),
		ElapsedS:  time.Since(s.started).Seconds(),
		Steps:     append([]pipeline.StepRecord{}, s.steps...),
		FinalRows: s.finalRows,
		Error:     s.err,
	}
	if s.current != nil {
		c := *s.current
		resp.Current = &c
	}
	return resp
}
