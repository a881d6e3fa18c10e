// Package ingest drives listing providers through paging, detail
// enrichment and persistence.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"homescout/config"
	"homescout/models"
	"homescout/providers"
	"homescout/services"
	"homescout/services/geo"
	"homescout/services/neighborhoods"
	"homescout/services/signals"
	"homescout/storage"
	"homescout/utils"
)

// Upserter persists one source's enriched batch.
type Upserter interface {
	Upsert(ctx context.Context, records []*models.RawListing) storage.UpsertStats
}

// ProviderFactory builds a fresh provider for a source key.
type ProviderFactory func(key string) (providers.Provider, error)

// Options bound one ingestion run.
type Options struct {
	Sources           []string
	MaxPages          int
	MaxDetailCalls    int
	DetailConcurrency int
	DetailTimeout     time.Duration
	ProviderTimeout   time.Duration
	PageDelay         time.Duration
	DetailDelayMs     int
	SourceConcurrency int

	// PriceMax ranks in-budget candidates first for detail calls; 0 disables.
	PriceMax float64
}

// OptionsFromConfig maps env config. A zero SEARCH_PRICE_MAX falls back to
// the criteria hard price cap.
func OptionsFromConfig(cfg *config.Config, crit *config.Criteria) Options {
	priceMax := cfg.SearchPriceMax
	if priceMax <= 0 && crit != nil && crit.HardFilters.PriceMax != nil {
		priceMax = *crit.HardFilters.PriceMax
	}
	return Options{
		Sources:           cfg.Sources,
		MaxPages:          cfg.MaxPages,
		MaxDetailCalls:    cfg.MaxDetailCalls,
		DetailConcurrency: cfg.DetailConcurrency,
		DetailTimeout:     cfg.DetailRequestTimeout,
		ProviderTimeout:   cfg.ProviderTimeout,
		PageDelay:         time.Duration(cfg.PageDelayMs) * time.Millisecond,
		DetailDelayMs:     cfg.DetailDelayMs,
		SourceConcurrency: cfg.SourceConcurrency,
		PriceMax:          priceMax,
	}
}

// Orchestrator runs every configured source once per Run.
type Orchestrator struct {
	opts     Options
	factory  ProviderFactory
	store    Upserter
	criteria *config.CriteriaStore
	geo      *geo.Model
	cleaner  *services.Cleaner
	logger   *utils.Logger
	now      func() time.Time

	mu   sync.Mutex
	last *models.RunProgress
}

func New(opts Options, factory ProviderFactory, store Upserter, criteria *config.CriteriaStore, logger *utils.Logger) *Orchestrator {
	if opts.MaxPages < 1 {
		opts.MaxPages = 1
	}
	if opts.DetailConcurrency < 1 {
		opts.DetailConcurrency = 1
	}
	if opts.SourceConcurrency < 1 {
		opts.SourceConcurrency = 1
	}
	return &Orchestrator{
		opts:     opts,
		factory:  factory,
		store:    store,
		criteria: criteria,
		geo:      geo.NewModel(),
		cleaner:  services.NewCleaner(logger),
		logger:   logger,
		now:      time.Now,
	}
}

// Last returns the progress of the current or most recent run, or nil.
func (o *Orchestrator) Last() *models.RunProgress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// Run ingests every source and returns the finished progress. Source
// failures are recorded on the progress, never returned.
func (o *Orchestrator) Run(ctx context.Context) *models.RunProgress {
	progress := models.NewRunProgress(o.now().UTC())
	o.mu.Lock()
	o.last = progress
	o.mu.Unlock()

	crit := o.criteria.Current()
	o.logger.Info("[ingest] Run %s started: sources=%v max_pages=%d max_detail_calls=%d",
		progress.ID, o.opts.Sources, o.opts.MaxPages, o.opts.MaxDetailCalls)

	var g errgroup.Group
	g.SetLimit(o.opts.SourceConcurrency)
	for _, key := range o.opts.Sources {
		key := key
		g.Go(func() error {
			o.runSource(ctx, key, crit, progress)
			return nil
		})
	}
	_ = g.Wait()

	progress.Finish(o.now().UTC())
	stats := progress.Stats()
	o.logger.Info("[ingest] Run %s finished in %s: %d summaries, %d detail calls, %d upserts",
		stats.ID, stats.EndedAt.Sub(stats.StartedAt).Round(time.Millisecond),
		stats.SummaryCount, stats.DetailCalls, stats.UpsertCount)
	if stats.LastError != "" {
		o.logger.Warn("[ingest] Last error: %s", stats.LastError)
	}
	return progress
}

func (o *Orchestrator) runSource(ctx context.Context, key string, crit *config.Criteria, progress *models.RunProgress) {
	p, err := o.factory(key)
	if err != nil {
		o.logger.Warn("[ingest] Skipping source %s: %v", key, err)
		progress.RecordError(key, err.Error())
		return
	}
	defer func() {
		if err := p.Close(); err != nil {
			o.logger.Error("[ingest] Error closing %s provider: %v", key, err)
		}
	}()

	sctx := ctx
	if o.opts.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, o.opts.ProviderTimeout)
		defer cancel()
	}

	summaries := o.fetchSummaries(sctx, key, p, progress)
	candidates := Dedupe(summaries, key, o.opts.PriceMax)
	if dropped := len(summaries) - len(candidates); dropped > 0 {
		o.logger.Info("[ingest] Deduplicated %d/%d summaries for %s (%d unique)",
			dropped, len(summaries), key, len(candidates))
	}

	details := o.fetchDetails(sctx, key, p, candidates, progress)
	if errors.Is(sctx.Err(), context.DeadlineExceeded) {
		msg := fmt.Sprintf("timeout for %s after %s", key, o.opts.ProviderTimeout)
		o.logger.Error("[ingest] %s", msg)
		progress.RecordError(key, msg)
	}

	records := make([]*models.RawListing, 0, len(candidates))
	for i, c := range candidates {
		records = append(records, o.enrich(c, details[i], key, crit))
	}
	if len(records) == 0 {
		o.logger.Warn("[ingest] No listings to upsert for %s", key)
		return
	}

	// Completed work is persisted even when the source timed out.
	stats := o.store.Upsert(ctx, records)
	progress.AddUpserts(key, stats.Upserted())
	o.logger.Info("[ingest] Upserted %d listings for %s", stats.Upserted(), key)
}

// fetchSummaries pages sequentially until the provider reports no more
// pages, the page cap is reached, or a page fails.
func (o *Orchestrator) fetchSummaries(ctx context.Context, key string, p providers.Provider, progress *models.RunProgress) []*models.RawListing {
	var out []*models.RawListing
	for page := 1; page <= o.opts.MaxPages; page++ {
		if ctx.Err() != nil {
			break
		}
		batch, more, err := search(ctx, p, page)
		if err != nil {
			o.logger.Error("[ingest] Error fetching %s page %d: %v", key, page, err)
			progress.RecordError(key, fmt.Sprintf("summary fetch (%s) page %d: %v", key, page, err))
			break
		}
		for _, r := range batch {
			applySourceFields(r, key)
		}
		cleaned := o.cleaner.Clean(batch)
		out = append(out, cleaned...)
		progress.AddSummaries(key, len(cleaned))

		if !more {
			break
		}
		if o.opts.PageDelay > 0 && page < o.opts.MaxPages {
			select {
			case <-time.After(o.opts.PageDelay):
			case <-ctx.Done():
			}
		}
	}
	return out
}

// ErrProviderPanic wraps a panic raised inside a provider call.
var ErrProviderPanic = errors.New("provider panic")

// search turns a panicking Search into an error so one provider cannot take
// the run down.
func search(ctx context.Context, p providers.Provider, page int) (batch []*models.RawListing, more bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			batch, more, err = nil, false, fmt.Errorf("%w: %v", ErrProviderPanic, r)
		}
	}()
	return p.Search(ctx, page)
}

type detailResult struct {
	rec *models.RawListing
	err error
}

// fetchDetails spends the detail budget on candidates in order. Each call
// has its own timeout; failures leave the candidate summary-only.
func (o *Orchestrator) fetchDetails(ctx context.Context, key string, p providers.Provider, candidates []*models.RawListing, progress *models.RunProgress) map[int]*models.RawListing {
	results := make(map[int]*models.RawListing)
	if o.opts.MaxDetailCalls <= 0 || len(candidates) == 0 {
		return results
	}

	var mu sync.Mutex
	pool := utils.NewWorkerPool(ctx, o.opts.DetailConcurrency, o.opts.DetailDelayMs)
	budget := o.opts.MaxDetailCalls
	for i, c := range candidates {
		if budget == 0 {
			o.logger.Info("[ingest] Reached detail call limit (%d) for %s, skipping remaining details",
				o.opts.MaxDetailCalls, key)
			break
		}
		id := c.Identifier()
		if id == "" {
			continue
		}
		budget--

		i := i
		accepted := pool.Submit(func(ctx context.Context) {
			rec, err := o.detail(ctx, p, id)
			progress.AddDetailCall(key)
			if errors.Is(err, ErrProviderPanic) {
				o.logger.Error("[ingest] Detail fetch for %s %s: %v", key, id, err)
				progress.RecordError(key, fmt.Sprintf("detail fetch (%s) %s: %v", key, id, err))
				return
			}
			if err != nil {
				o.logger.Warn("[ingest] Detail fetch for %s %s failed: %v", key, id, err)
				return
			}
			if rec != nil {
				mu.Lock()
				results[i] = rec
				mu.Unlock()
			}
		})
		if !accepted {
			break
		}
	}
	pool.Wait()
	return results
}

// detail bounds one GetDetails call by the per-call timeout even when the
// provider ignores ctx.
func (o *Orchestrator) detail(ctx context.Context, p providers.Provider, id string) (*models.RawListing, error) {
	if o.opts.DetailTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.DetailTimeout)
		defer cancel()
	}
	ch := make(chan detailResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- detailResult{err: fmt.Errorf("%w: %v", ErrProviderPanic, r)}
			}
		}()
		rec, err := p.GetDetails(ctx, id)
		ch <- detailResult{rec: rec, err: err}
	}()
	select {
	case r := <-ch:
		return r.rec, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// enrich merges the detail record and attaches derived intelligence.
func (o *Orchestrator) enrich(summary, detail *models.RawListing, key string, crit *config.Criteria) *models.RawListing {
	rec := summary.Merge(detail)
	applySourceFields(rec, key)

	desc := models.Str(rec.Description)
	if strings.TrimSpace(desc) != "" {
		flags := signals.ExtractFlags(desc, crit.FlagKeywords)
		rec.Flags = &flags
	}

	if rec.Lat != nil && rec.Lon != nil {
		t := o.geo.Score(*rec.Lat, *rec.Lon)
		rec.Tranquility = &t
	}

	if hood := neighborhoods.Resolve(models.Str(rec.Neighborhood), rec.Lat, rec.Lon); hood != "" {
		rec.Neighborhood = &hood
	}

	flags := rec.ExplicitFlags
	if rec.Flags != nil {
		flags = flags.Or(*rec.Flags)
	}
	light := signals.EstimateLightPotential(desc, crit.Light, flags, len(rec.Photos))
	rec.LightPotential = &light
	return rec
}

// applySourceFields defaults source to the provider key and
// source_listing_id to the legacy listing_id.
func applySourceFields(r *models.RawListing, key string) {
	if r == nil {
		return
	}
	if strings.TrimSpace(models.Str(r.Source)) == "" {
		k := key
		r.Source = &k
	}
	if r.SourceListingID == nil && r.ListingID != nil {
		id := *r.ListingID
		r.SourceListingID = &id
	}
}

// Dedupe keeps one candidate per (source, identifier), preferring an
// in-budget candidate and then the one with more photos, and orders the
// result in-budget first, then by photo count descending.
func Dedupe(summaries []*models.RawListing, defaultSource string, priceMax float64) []*models.RawListing {
	index := make(map[string]int, len(summaries))
	out := make([]*models.RawListing, 0, len(summaries))
	for _, s := range summaries {
		id := s.Identifier()
		if id == "" {
			out = append(out, s)
			continue
		}
		source := models.Str(s.Source)
		if source == "" {
			source = defaultSource
		}
		k := source + "\x00" + id
		if i, dup := index[k]; dup {
			if preferred(s, out[i], priceMax) {
				out[i] = s
			}
			continue
		}
		index[k] = len(out)
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		bi, bj := inBudget(out[i], priceMax), inBudget(out[j], priceMax)
		if bi != bj {
			return bi
		}
		return len(out[i].Photos) > len(out[j].Photos)
	})
	return out
}

func preferred(candidate, current *models.RawListing, priceMax float64) bool {
	cb, ob := inBudget(candidate, priceMax), inBudget(current, priceMax)
	if cb != ob {
		return cb
	}
	return len(candidate.Photos) > len(current.Photos)
}

func inBudget(r *models.RawListing, priceMax float64) bool {
	return priceMax > 0 && r.Price != nil && *r.Price <= priceMax
}
