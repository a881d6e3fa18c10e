package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"homescout/utils"
)

// CriteriaStore holds the current Criteria and swaps in a new value when the
// file on disk changes. Readers take one value per run via Current.
type CriteriaStore struct {
	path   string
	logger *utils.Logger

	current atomic.Pointer[Criteria]

	mu      sync.Mutex
	modTime time.Time
}

const defaultReloadDebounce = 250 * time.Millisecond

// NewCriteriaStore loads path once. A load failure is returned so the
// process can refuse to start.
func NewCriteriaStore(path string, logger *utils.Logger) (*CriteriaStore, error) {
	s := &CriteriaStore{path: path, logger: logger}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config: %w: %s", ErrCriteriaMissing, path)
		}
		return nil, fmt.Errorf("config: stat criteria %q: %w", path, err)
	}
	c, err := LoadCriteria(path)
	if err != nil {
		return nil, err
	}
	s.current.Store(c)
	s.modTime = info.ModTime()
	return s, nil
}

// NewStaticCriteriaStore wraps an already-parsed Criteria. Reload is a no-op.
func NewStaticCriteriaStore(c *Criteria) *CriteriaStore {
	s := &CriteriaStore{}
	s.current.Store(c)
	return s
}

// Current returns the active criteria.
func (s *CriteriaStore) Current() *Criteria {
	return s.current.Load()
}

// Reload re-reads the file when its modification time moved. It reports
// whether a new config was swapped in. On a parse error the previous value
// stays active.
func (s *CriteriaStore) Reload() (bool, error) {
	return s.reload(false)
}

func (s *CriteriaStore) reload(force bool) (bool, error) {
	if s.path == "" {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		return false, fmt.Errorf("config: stat criteria %q: %w", s.path, err)
	}
	if !force && !info.ModTime().After(s.modTime) {
		return false, nil
	}
	c, err := LoadCriteria(s.path)
	if err != nil {
		return false, err
	}
	s.current.Store(c)
	s.modTime = info.ModTime()
	return true, nil
}

// Watch registers an fsnotify watcher on the criteria file's directory and
// reloads after writes settle for debounce. It returns once the watcher is
// live; the returned channel closes when ctx is done and the watcher stops.
func (s *CriteriaStore) Watch(ctx context.Context, debounce time.Duration) (<-chan struct{}, error) {
	done := make(chan struct{})
	if s.path == "" {
		close(done)
		return done, nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: criteria watcher: %w", err)
	}
	// Editors save by renaming a temp file over the original, which drops a
	// watch on the file itself.
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("config: watch %q: %w", dir, err)
	}
	if debounce <= 0 {
		debounce = defaultReloadDebounce
	}

	go func() {
		defer close(done)
		defer w.Close()

		name := filepath.Base(s.path)
		timer := time.NewTimer(debounce)
		timer.Stop()
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != name {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
					timer.Reset(debounce)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn("[config] Criteria watcher error: %v", err)
			case <-timer.C:
				if _, err := s.reload(true); err != nil {
					s.logger.Error("[config] Criteria reload failed, keeping previous config: %v", err)
					continue
				}
				s.logger.Info("[config] Criteria reloaded from %s", s.path)
			}
		}
	}()
	return done, nil
}
