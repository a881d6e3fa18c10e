package models

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// RunProgress tracks one ingestion run. It is safe for concurrent use so a
// caller can observe counters while the run is in flight.
type RunProgress struct {
	ID string

	summaries atomic.Int64
	details   atomic.Int64
	upserts   atomic.Int64
	running   atomic.Bool

	mu        sync.Mutex
	startedAt time.Time
	endedAt   time.Time
	lastError string
	sources   map[string]*SourceStats
}

// SourceStats are per-provider counters inside a run.
type SourceStats struct {
	Summaries   int    `json:"summaries"`
	DetailCalls int    `json:"detail_calls"`
	Upserts     int    `json:"upserts"`
	Error       string `json:"error,omitempty"`
}

// RunStats is a point-in-time copy of a RunProgress.
type RunStats struct {
	ID           string                 `json:"id"`
	StartedAt    time.Time              `json:"started_at"`
	EndedAt      time.Time              `json:"ended_at"`
	SummaryCount int64                  `json:"summary_count"`
	DetailCalls  int64                  `json:"detail_calls"`
	UpsertCount  int64                  `json:"upsert_count"`
	LastError    string                 `json:"last_error,omitempty"`
	Running      bool                   `json:"is_running"`
	Sources      map[string]SourceStats `json:"sources"`
}

// NewRunProgress starts a run clock with a fresh run id.
func NewRunProgress(now time.Time) *RunProgress {
	p := &RunProgress{
		ID:        uuid.NewString(),
		startedAt: now,
		sources:   make(map[string]*SourceStats),
	}
	p.running.Store(true)
	return p
}

func (p *RunProgress) AddSummaries(source string, n int) {
	p.summaries.Add(int64(n))
	p.withSource(source, func(s *SourceStats) { s.Summaries += n })
}

func (p *RunProgress) AddDetailCall(source string) {
	p.details.Add(1)
	p.withSource(source, func(s *SourceStats) { s.DetailCalls++ })
}

func (p *RunProgress) AddUpserts(source string, n int) {
	p.upserts.Add(int64(n))
	p.withSource(source, func(s *SourceStats) { s.Upserts += n })
}

// RecordError sets the run's last error and the source's error.
func (p *RunProgress) RecordError(source, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastError = msg
	if source != "" {
		p.sourceLocked(source).Error = msg
	}
}

// Finish stops the run clock.
func (p *RunProgress) Finish(now time.Time) {
	p.mu.Lock()
	p.endedAt = now
	p.mu.Unlock()
	p.running.Store(false)
}

func (p *RunProgress) DetailCalls() int64 { return p.details.Load() }
func (p *RunProgress) SummaryCount() int64 { return p.summaries.Load() }
func (p *RunProgress) UpsertCount() int64 { return p.upserts.Load() }
func (p *RunProgress) Running() bool { return p.running.Load() }

// StartedAt returns when the run began.
func (p *RunProgress) StartedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startedAt
}

// LastError returns the most recent recorded error message.
func (p *RunProgress) LastError() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastError
}

// Stats copies the current counters.
func (p *RunProgress) Stats() RunStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	sources := make(map[string]SourceStats, len(p.sources))
	for k, v := range p.sources {
		sources[k] = *v
	}
	return RunStats{
		ID:           p.ID,
		StartedAt:    p.startedAt,
		EndedAt:      p.endedAt,
		SummaryCount: p.summaries.Load(),
		DetailCalls:  p.details.Load(),
		UpsertCount:  p.upserts.Load(),
		LastError:    p.lastError,
		Running:      p.running.Load(),
		Sources:      sources,
	}
}

func (p *RunProgress) withSource(source string, fn func(s *SourceStats)) {
	if source == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.sourceLocked(source))
}

func (p *RunProgress) sourceLocked(source string) *SourceStats {
	s, ok := p.sources[source]
	if !ok {
		s = &SourceStats{}
		p.sources[source] = s
	}
	return s
}
