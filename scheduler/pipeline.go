package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"homescout/config"
	"homescout/models"
	"homescout/services"
	"homescout/services/alerts"
	"homescout/services/learning"
	"homescout/services/scoring"
	"homescout/storage"
	"homescout/utils"
)

// Ingester runs one ingestion pass over every source.
type Ingester interface {
	Run(ctx context.Context) *models.RunProgress
}

// Evaluator sends alerts for events since a watermark.
type Evaluator interface {
	Evaluate(ctx context.Context, since time.Time) (alerts.Result, error)
}

// Learner recalculates one user's learned weights when new feedback arrived.
type Learner interface {
	RecalculateIfNew(ctx context.Context, userID int64) (learning.Result, error)
}

// Exporter writes the scored inventory somewhere outside the store.
type Exporter interface {
	Write(rows []storage.ExportRow) error
}

// Store is the listing persistence a cycle reads and writes scores to.
type Store interface {
	storage.ListingReader
	storage.ScoreWriter
}

// UserLister enumerates users that left feedback.
type UserLister interface {
	UserIDs(ctx context.Context) ([]int64, error)
}

// Pipeline is one ingestion cycle: ingest, rescore, alert, learn, report.
// Optional stages are skipped when nil.
type Pipeline struct {
	Ingester  Ingester
	Store     Store
	Criteria  *config.CriteriaStore
	Evaluator Evaluator
	Learner   Learner
	Users     UserLister
	Exporter  Exporter
	Insights  *services.InsightService
	Weights   alerts.MultiplierSource
	UserID    int64
	Mode      string
	Logger    *utils.Logger
}

// CycleResult summarises one cycle.
type CycleResult struct {
	Run     *models.RunStats
	Scored  int
	Matches int
	Alerts  alerts.Result
	Learned int
	Report  *models.InsightReport
}

// RunCycle executes the stages in order. A stage failure is logged and the
// remaining stages still run; the joined errors are returned.
func (p *Pipeline) RunCycle(ctx context.Context) (CycleResult, error) {
	var result CycleResult
	var errs []error
	start := time.Now().UTC()

	if p.Ingester != nil {
		progress := p.Ingester.Run(ctx)
		stats := progress.Stats()
		result.Run = &stats
		// Alerts only consider events from this cycle.
		start = progress.StartedAt()
	}
	if ctx.Err() != nil {
		return result, ctx.Err()
	}

	listings, results, matches, err := p.rescore(ctx)
	if err != nil {
		p.Logger.Error("[scheduler] Rescore failed: %v", err)
		errs = append(errs, err)
	}
	result.Scored = len(listings)
	result.Matches = len(matches.Matches)

	if p.Evaluator != nil {
		res, err := p.Evaluator.Evaluate(ctx, start)
		if err != nil {
			p.Logger.Error("[scheduler] Alert evaluation failed: %v", err)
			errs = append(errs, err)
		}
		result.Alerts = res
	}

	if p.Learner != nil && p.Users != nil {
		n, err := p.learn(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		result.Learned = n
	}

	if p.Exporter != nil && len(listings) > 0 {
		if err := p.export(listings, results); err != nil {
			p.Logger.Error("[scheduler] CSV export failed: %v", err)
			errs = append(errs, err)
		}
	}

	if p.Insights != nil {
		result.Report = p.Insights.Generate(result.Run, listings, matches)
		p.Insights.Print(result.Report)
	}
	return result, errors.Join(errs...)
}

func (p *Pipeline) engine(ctx context.Context) *scoring.Engine {
	var opts []scoring.Option
	if p.Mode != "" {
		opts = append(opts, scoring.WithMode(p.Mode))
	}
	if p.Weights != nil && p.UserID != 0 {
		m, err := p.Weights.Multipliers(ctx, p.UserID)
		if err != nil {
			p.Logger.Warn("[scheduler] Scoring with base weights: %v", err)
		} else {
			opts = append(opts, scoring.WithMultipliers(m))
		}
	}
	return scoring.NewEngine(p.Criteria.Current(), opts...)
}

// rescore caches a fresh score on every listing and returns the updated
// listings, their results by id and the ranked matches.
func (p *Pipeline) rescore(ctx context.Context) ([]*models.Listing, map[int64]models.ScoreResult, scoring.MatchReport, error) {
	listings, err := p.Store.Listings(ctx)
	if err != nil {
		return nil, nil, scoring.MatchReport{}, fmt.Errorf("scheduler: load listings: %w", err)
	}
	engine := p.engine(ctx)

	results := make(map[int64]models.ScoreResult, len(listings))
	failed := 0
	for _, l := range listings {
		res := engine.Score(l)
		results[l.ID] = res
		percent := res.Percent
		if err := p.Store.SaveScore(ctx, l.ID, percent, res.Breakdown); err != nil {
			failed++
			p.Logger.Warn("[scheduler] Failed to save score for listing %d: %v", l.ID, err)
			continue
		}
		l.MatchScore = &percent
		l.FeatureScores = res.Breakdown
	}

	matches := engine.FindMatches(listings, 0, 0)
	p.Logger.Info("[scheduler] Rescored %d listings: %s", len(listings), matches.Summary)
	if failed > 0 {
		return listings, results, matches, fmt.Errorf("scheduler: %d of %d scores not saved", failed, len(listings))
	}
	return listings, results, matches, nil
}

func (p *Pipeline) learn(ctx context.Context) (int, error) {
	users, err := p.Users.UserIDs(ctx)
	if err != nil {
		p.Logger.Error("[learning] Failed to list users: %v", err)
		return 0, fmt.Errorf("scheduler: list users: %w", err)
	}
	updated := 0
	var errs []error
	for _, id := range users {
		res, err := p.Learner.RecalculateIfNew(ctx, id)
		if err != nil {
			p.Logger.Error("[learning] Recalculation for user %d failed: %v", id, err)
			errs = append(errs, err)
			continue
		}
		if res.Updated {
			updated++
		}
	}
	return updated, errors.Join(errs...)
}

func (p *Pipeline) export(listings []*models.Listing, results map[int64]models.ScoreResult) error {
	rows := make([]storage.ExportRow, 0, len(listings))
	for _, l := range listings {
		rows = append(rows, storage.NewExportRow(l, results[l.ID]))
	}
	if err := p.Exporter.Write(rows); err != nil {
		return fmt.Errorf("scheduler: export: %w", err)
	}
	p.Logger.Info("[scheduler] Exported %d listings", len(rows))
	return nil
}
