package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"homescout/utils"
)

const testCriteria = `
hard_filters:
  price_max: 3500000
  bedrooms_min: 3
  bathrooms_min: 2
  sqft_min: 1600
  neighborhoods:
    - Noe Valley
soft_caps:
  price_soft: 3000000
weights:
  natural_light: 10
  outdoor_space: 9
nlp_signals:
  positive:
    light:
      keywords: [Natural Light, sunny]
      weight: 1.0
  negative:
    dark:
      keywords: [dark]
      weight: 0.6
alerts:
  new_listing:
    score_threshold: 80
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoadCriteriaParsesAndDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "criteria.yaml", testCriteria)

	c, err := LoadCriteria(path)
	if err != nil {
		t.Fatalf("LoadCriteria: %v", err)
	}
	if c.HardFilters.PriceMax == nil || *c.HardFilters.PriceMax != 3500000 {
		t.Errorf("price_max: got %v, want 3500000", c.HardFilters.PriceMax)
	}
	if got := c.TotalWeight(); got != 19 {
		t.Errorf("TotalWeight: got %v, want 19", got)
	}
	if c.Alerts.NewListing.ScoreThreshold != 80 {
		t.Errorf("new listing threshold: got %v, want 80", c.Alerts.NewListing.ScoreThreshold)
	}
	if c.Alerts.PriceDrop.PercentThreshold != 5 || c.Alerts.PriceDrop.DigestThreshold != 3 {
		t.Errorf("price drop defaults: got %+v", c.Alerts.PriceDrop)
	}
	if c.Alerts.DOMStale.Days != 45 {
		t.Errorf("dom stale default: got %d, want 45", c.Alerts.DOMStale.Days)
	}
	if kws := c.NLPSignals.Positive["light"].Keywords; len(kws) != 2 || kws[0] != "natural light" {
		t.Errorf("keywords should be lower-cased, got %v", kws)
	}
	if len(c.FlagKeywords["natural_light"]) == 0 {
		t.Error("default flag keywords should be filled in")
	}
}

func TestLoadCriteriaMissingFile(t *testing.T) {
	_, err := LoadCriteria(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, ErrCriteriaMissing) {
		t.Errorf("expected ErrCriteriaMissing, got %v", err)
	}
}

func TestParseCriteriaRejectsBadDocuments(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"list document", "- a\n- b\n"},
		{"scalar document", "just a string\n"},
		{"empty document", ""},
		{"broken yaml", "weights: [unterminated\n"},
		{"negative weight", "weights:\n  natural_light: -1\n"},
		{"soft above hard", "hard_filters:\n  price_max: 100\nsoft_caps:\n  price_soft: 200\n"},
	}
	for _, tt := range tests {
		if _, err := ParseCriteria([]byte(tt.body)); !errors.Is(err, ErrCriteriaInvalid) {
			t.Errorf("%s: expected ErrCriteriaInvalid, got %v", tt.name, err)
		}
	}
}

func TestParseCriteriaDefaultWeights(t *testing.T) {
	c, err := ParseCriteria([]byte("hard_filters:\n  price_max: 1000000\n"))
	if err != nil {
		t.Fatalf("ParseCriteria: %v", err)
	}
	if len(c.Weights) != len(DefaultWeights) {
		t.Errorf("weights: got %d entries, want %d", len(c.Weights), len(DefaultWeights))
	}
}

func TestCriteriaStoreReload(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "criteria.yaml", testCriteria)

	store, err := NewCriteriaStore(path, utils.NewNopLogger())
	if err != nil {
		t.Fatalf("NewCriteriaStore: %v", err)
	}
	if store.Current().Weights["natural_light"] != 10 {
		t.Fatalf("initial weight: got %v", store.Current().Weights["natural_light"])
	}

	changed, err := store.Reload()
	if err != nil || changed {
		t.Errorf("unchanged file: changed=%v err=%v", changed, err)
	}

	writeFile(t, dir, "criteria.yaml", "weights:\n  natural_light: 4\n")
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	changed, err = store.Reload()
	if err != nil || !changed {
		t.Fatalf("modified file: changed=%v err=%v", changed, err)
	}
	if store.Current().Weights["natural_light"] != 4 {
		t.Errorf("reloaded weight: got %v, want 4", store.Current().Weights["natural_light"])
	}

	writeFile(t, dir, "criteria.yaml", "- not a mapping\n")
	later := future.Add(2 * time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if _, err := store.Reload(); err == nil {
		t.Error("expected reload error for invalid document")
	}
	if store.Current().Weights["natural_light"] != 4 {
		t.Error("previous config should stay active after a failed reload")
	}
}

func TestCriteriaStoreWatchReloadsOnSave(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "criteria.yaml", testCriteria)
	store, err := NewCriteriaStore(path, utils.NewNopLogger())
	if err != nil {
		t.Fatalf("NewCriteriaStore: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done, err := store.Watch(ctx, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer func() {
		cancel()
		<-done
	}()

	weight := func() float64 { return store.Current().Weights["natural_light"] }
	waitFor := func(want float64) {
		t.Helper()
		deadline := time.Now().Add(3 * time.Second)
		for time.Now().Before(deadline) {
			if weight() == want {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		t.Fatalf("natural_light weight: got %v, want %v", weight(), want)
	}

	// Editors write a temp file and rename it over the original.
	tmp := writeFile(t, dir, "criteria.yaml.swp", "weights:\n  natural_light: 4\n")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename: %v", err)
	}
	waitFor(4)

	writeFile(t, dir, "criteria.yaml", "weights:\n  natural_light: 6\n")
	waitFor(6)

	writeFile(t, dir, "criteria.yaml", "- not a mapping\n")
	time.Sleep(100 * time.Millisecond)
	if weight() != 6 {
		t.Errorf("previous config should stay active after a failed reload, got %v", weight())
	}
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("STORE", "sqlite")
	if _, err := Load(); err == nil {
		t.Error("expected an error for an unknown STORE")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("INGESTION_PROVIDER_TIMEOUT_SECONDS", "5")
	t.Setenv("INGESTION_SOURCES", "Mock, curated ,")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ProviderTimeout != 30*time.Second {
		t.Errorf("provider timeout floor: got %v, want 30s", cfg.ProviderTimeout)
	}
	if len(cfg.Sources) != 2 || cfg.Sources[0] != "mock" || cfg.Sources[1] != "curated" {
		t.Errorf("sources: got %v", cfg.Sources)
	}
	if cfg.MaxPages != 25 || cfg.MaxDetailCalls != 200 {
		t.Errorf("paging defaults: got pages=%d details=%d", cfg.MaxPages, cfg.MaxDetailCalls)
	}
}
