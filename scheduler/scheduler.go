// Package scheduler runs the ingestion cycle on a cron interval.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"homescout/utils"
)

// Cycle is the unit of work fired on each tick.
type Cycle interface {
	RunCycle(ctx context.Context) (CycleResult, error)
}

// Scheduler wraps robfig/cron and manages the ingestion loop.
type Scheduler struct {
	cron   *cron.Cron
	cycle  Cycle
	logger *utils.Logger
	spec   string

	// running guards against overlapping cycles.
	running sync.Mutex
	wg      sync.WaitGroup
}

// New creates a Scheduler that fires every interval.
func New(cycle Cycle, interval time.Duration, logger *utils.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cron.PrintfLogger(logger))),
		cycle:  cycle,
		logger: logger,
		spec:   Spec(interval),
	}
}

// Spec renders an interval as a cron descriptor, hours when whole.
func Spec(interval time.Duration) string {
	if interval >= time.Hour && interval%time.Hour == 0 {
		return fmt.Sprintf("@every %dh", int(interval/time.Hour))
	}
	return "@every " + interval.String()
}

// Start registers the job and starts the scheduler. One cycle also runs
// immediately so the store is populated without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.run(ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduler: cron.AddFunc(%q): %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("[scheduler] Cron started, spec: %s", s.spec)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
	return nil
}

// Stop halts the cron and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("[scheduler] Cron stopped")
}

// RunNow runs one cycle synchronously. It reports false when a cycle was
// already running and this one was skipped.
func (s *Scheduler) RunNow(ctx context.Context) (CycleResult, bool, error) {
	if !s.running.TryLock() {
		return CycleResult{}, false, nil
	}
	defer s.running.Unlock()
	res, err := s.cycle.RunCycle(ctx)
	return res, true, err
}

func (s *Scheduler) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.logger.Info("[scheduler] Cycle started")
	start := time.Now()
	res, ran, err := s.RunNow(ctx)
	switch {
	case !ran:
		s.logger.Warn("[scheduler] Previous cycle still running, skipping tick")
		return
	case err != nil:
		s.logger.Error("[scheduler] Cycle finished with errors: %v", err)
	}
	s.logger.Info("[scheduler] Cycle complete in %s: %d scored, %d matches, %d immediate, %d digest alerts",
		time.Since(start).Round(time.Millisecond), res.Scored, res.Matches, res.Alerts.Immediate, res.Alerts.Digest)
}
