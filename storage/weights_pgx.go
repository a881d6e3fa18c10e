package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"homescout/models"
)

// WeightStore keeps user feedback and learned criterion multipliers on a
// pgx connection pool. It shares the database with PostgresStore and reads
// listings.feature_scores for feedback signals.
type WeightStore struct {
	pool *pgxpool.Pool
}

// NewWeightStore creates and verifies a pool, then ensures the feedback and
// learned_weights tables exist. The listings table must already exist.
func NewWeightStore(ctx context.Context, databaseURL string) (*WeightStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	ws := &WeightStore{pool: pool}
	if err := ws.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("weights: migrate: %w", err)
	}
	return ws, nil
}

func (ws *WeightStore) migrate(ctx context.Context) error {
	_, err := ws.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS feedback (
			user_id       BIGINT      NOT NULL,
			listing_id    BIGINT      NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
			feedback_type VARCHAR(16) NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, listing_id)
		);

		CREATE TABLE IF NOT EXISTS learned_weights (
			user_id      BIGINT           NOT NULL,
			criterion    VARCHAR(64)      NOT NULL,
			multiplier   DOUBLE PRECISION NOT NULL,
			signal_count INTEGER          NOT NULL DEFAULT 0,
			last_updated TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, criterion)
		);
	`)
	return err
}

func (ws *WeightStore) Close() {
	ws.pool.Close()
}

// RecordFeedback stores the latest reaction of a user to a listing.
func (ws *WeightStore) RecordFeedback(ctx context.Context, fb models.Feedback) error {
	createdAt := fb.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := ws.pool.Exec(ctx, `
		INSERT INTO feedback (user_id, listing_id, feedback_type, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, listing_id)
		DO UPDATE SET feedback_type = EXCLUDED.feedback_type, created_at = EXCLUDED.created_at`,
		fb.UserID, fb.ListingID, string(fb.Type), createdAt)
	if err != nil {
		return fmt.Errorf("weights: record feedback: %w", err)
	}
	return nil
}

func (ws *WeightStore) UserIDs(ctx context.Context) ([]int64, error) {
	rows, err := ws.pool.Query(ctx, `SELECT DISTINCT user_id FROM feedback ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("weights: user ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("weights: scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FeedbackSignals joins a user's feedback to each listing's last breakdown.
func (ws *WeightStore) FeedbackSignals(ctx context.Context, userID int64) ([]models.FeedbackSignal, error) {
	rows, err := ws.pool.Query(ctx, `
		SELECT f.listing_id, f.feedback_type, l.feature_scores, f.created_at
		FROM feedback f
		JOIN listings l ON l.id = f.listing_id
		WHERE f.user_id = $1
		ORDER BY f.listing_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("weights: feedback signals: %w", err)
	}
	defer rows.Close()

	var out []models.FeedbackSignal
	for rows.Next() {
		var sig models.FeedbackSignal
		var typ string
		var features []byte
		if err := rows.Scan(&sig.ListingID, &typ, &features, &sig.CreatedAt); err != nil {
			return nil, fmt.Errorf("weights: scan feedback: %w", err)
		}
		sig.Type = models.FeedbackType(typ)
		if len(features) > 0 {
			if err := json.Unmarshal(features, &sig.FeatureScores); err != nil {
				return nil, fmt.Errorf("weights: decode feature scores: %w", err)
			}
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

func (ws *WeightStore) LearnedWeights(ctx context.Context, userID int64) (map[string]models.LearnedWeight, error) {
	rows, err := ws.pool.Query(ctx, `
		SELECT criterion, multiplier, signal_count, last_updated
		FROM learned_weights
		WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("weights: learned weights: %w", err)
	}
	defer rows.Close()

	out := map[string]models.LearnedWeight{}
	for rows.Next() {
		var name string
		var w models.LearnedWeight
		if err := rows.Scan(&name, &w.Multiplier, &w.SignalCount, &w.LastUpdated); err != nil {
			return nil, fmt.Errorf("weights: scan learned weight: %w", err)
		}
		out[name] = w
	}
	return out, rows.Err()
}

// SaveLearnedWeights replaces the user's full weight set in one transaction.
func (ws *WeightStore) SaveLearnedWeights(ctx context.Context, userID int64, weights map[string]models.LearnedWeight) error {
	tx, err := ws.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("weights: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM learned_weights WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("weights: clear: %w", err)
	}

	if len(weights) > 0 {
		batch := &pgx.Batch{}
		for name, w := range weights {
			batch.Queue(`
				INSERT INTO learned_weights (user_id, criterion, multiplier, signal_count, last_updated)
				VALUES ($1, $2, $3, $4, $5)`,
				userID, name, w.Multiplier, w.SignalCount, w.LastUpdated)
		}
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("weights: insert: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("weights: batch close: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("weights: commit: %w", err)
	}
	return nil
}

func (ws *WeightStore) ResetLearnedWeights(ctx context.Context, userID int64) error {
	if _, err := ws.pool.Exec(ctx, `DELETE FROM learned_weights WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("weights: reset: %w", err)
	}
	return nil
}
