package utils

import (
	"context"
	"sync"
	"time"
)

// WorkerPool runs jobs on a fixed set of goroutines fed through a bounded
// queue, with an optional minimum interval between job starts.
type WorkerPool struct {
	ctx         context.Context
	jobs        chan func(ctx context.Context)
	rateLimitMs int
	wg          sync.WaitGroup
	mu          sync.Mutex
	lastRequest time.Time
	closeOnce   sync.Once
}

// NewWorkerPool starts maxWorkers goroutines. Jobs observe ctx; once it is
// cancelled queued jobs are discarded without running.
func NewWorkerPool(ctx context.Context, maxWorkers, rateLimitMs int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	wp := &WorkerPool{
		ctx:         ctx,
		jobs:        make(chan func(ctx context.Context), maxWorkers),
		rateLimitMs: rateLimitMs,
	}
	for i := 0; i < maxWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
	return wp
}

// Submit enqueues a job, blocking while the queue is full. It returns false
// when the pool's context is done and the job was not accepted.
func (wp *WorkerPool) Submit(job func(ctx context.Context)) bool {
	if wp.ctx.Err() != nil {
		return false
	}
	select {
	case wp.jobs <- job:
		return true
	case <-wp.ctx.Done():
		return false
	}
}

// Wait closes the queue and blocks until every accepted job has finished.
func (wp *WorkerPool) Wait() {
	wp.closeOnce.Do(func() { close(wp.jobs) })
	wp.wg.Wait()
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for job := range wp.jobs {
		if wp.ctx.Err() != nil {
			continue
		}
		if !wp.enforceRateLimit() {
			continue
		}
		job(wp.ctx)
	}
}

func (wp *WorkerPool) enforceRateLimit() bool {
	if wp.rateLimitMs <= 0 {
		return true
	}
	wp.mu.Lock()
	defer wp.mu.Unlock()

	minInterval := time.Duration(wp.rateLimitMs) * time.Millisecond
	if !wp.lastRequest.IsZero() {
		if wait := minInterval - time.Since(wp.lastRequest); wait > 0 {
			select {
			case <-time.After(wait):
			case <-wp.ctx.Done():
				return false
			}
		}
	}
	wp.lastRequest = time.Now()
	return true
}

// KeySet is a thread-safe set for tracking seen identity keys.
type KeySet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewKeySet creates an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{seen: make(map[string]struct{})}
}

// Add returns true if the key was newly added, false if already present.
func (s *KeySet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[key]; exists {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Contains returns true if the key has already been seen.
func (s *KeySet) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[key]
	return exists
}

// Size returns the number of unique keys tracked.
func (s *KeySet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
