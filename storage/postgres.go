package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"homescout/models"
	"homescout/utils"
)

var _ Store = (*PostgresStore)(nil)

// PostgresStore persists listings, snapshots and events in PostgreSQL via
// database/sql and lib/pq.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection, retries the ping with backoff and
// runs schema migrations.
func NewPostgresStore(ctx context.Context, dsn string, retry utils.RetryConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if err := retry.Do(ctx, "postgres ping", db.PingContext); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	ps := &PostgresStore{db: db}
	if err := ps.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return ps, nil
}

func (ps *PostgresStore) migrate(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
			id                      BIGSERIAL PRIMARY KEY,
			listing_id              TEXT             NOT NULL DEFAULT '',
			source                  TEXT             NOT NULL DEFAULT '',
			source_listing_id       TEXT             NOT NULL DEFAULT '',
			sources_seen            TEXT[]           NOT NULL DEFAULT '{}',
			last_seen_at            TIMESTAMPTZ,
			address                 TEXT             NOT NULL,
			price                   DOUBLE PRECISION,
			beds                    DOUBLE PRECISION,
			baths                   DOUBLE PRECISION,
			sqft                    DOUBLE PRECISION,
			property_type           TEXT             NOT NULL DEFAULT '',
			url                     TEXT             NOT NULL DEFAULT '',
			lat                     DOUBLE PRECISION,
			lon                     DOUBLE PRECISION,
			year_built              INTEGER,
			listing_status          TEXT             NOT NULL DEFAULT '',
			status                  TEXT             NOT NULL DEFAULT 'active',
			description             TEXT             NOT NULL DEFAULT '',
			days_on_market          INTEGER,
			neighborhood            TEXT             NOT NULL DEFAULT '',
			hoa_fee                 DOUBLE PRECISION,
			parking_spaces          INTEGER,
			photos                  TEXT[]           NOT NULL DEFAULT '{}',
			flags                   JSONB            NOT NULL DEFAULT '{}',
			price_reduction_amount  DOUBLE PRECISION,
			price_reduction_date    TIMESTAMPTZ,
			tranquility_score       INTEGER,
			tranquility_factors     JSONB,
			light_potential_score   INTEGER,
			light_potential_signals TEXT[]           NOT NULL DEFAULT '{}',
			visual_quality_score    DOUBLE PRECISION,
			visual_assessment       JSONB,
			photos_hash             TEXT             NOT NULL DEFAULT '',
			match_score             DOUBLE PRECISION,
			feature_scores          JSONB,
			created_at              TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
			last_updated            TIMESTAMPTZ      NOT NULL DEFAULT NOW()
		);

		CREATE UNIQUE INDEX IF NOT EXISTS uq_listings_source_id
			ON listings(source, source_listing_id) WHERE source_listing_id <> '';
		CREATE INDEX IF NOT EXISTS idx_listings_listing_id ON listings(listing_id);
		CREATE INDEX IF NOT EXISTS idx_listings_url        ON listings(url);
		CREATE INDEX IF NOT EXISTS idx_listings_dom        ON listings(days_on_market);

		CREATE TABLE IF NOT EXISTS listing_snapshots (
			id            BIGSERIAL PRIMARY KEY,
			listing_id    BIGINT      NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
			snapshot_hash VARCHAR(64) NOT NULL,
			snapshot_data JSONB       NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_snapshots_listing ON listing_snapshots(listing_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS listing_events (
			id         BIGSERIAL PRIMARY KEY,
			listing_id BIGINT      NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
			event_type VARCHAR(50) NOT NULL,
			old_value  TEXT        NOT NULL DEFAULT '',
			new_value  TEXT        NOT NULL DEFAULT '',
			details    JSONB       NOT NULL DEFAULT '{}',
			alerts     JSONB       NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_events_created ON listing_events(created_at);
		CREATE INDEX IF NOT EXISTS idx_events_listing ON listing_events(listing_id, event_type);
	`)
	return err
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}

// WithTx runs fn in a database transaction.
func (ps *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	sqlTx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	if err := fn(ctx, &pgTx{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

const listingColumns = `
	id, listing_id, source, source_listing_id, sources_seen, last_seen_at,
	address, price, beds, baths, sqft, property_type, url, lat, lon, year_built,
	listing_status, status, description, days_on_market, neighborhood, hoa_fee,
	parking_spaces, photos, flags, price_reduction_amount, price_reduction_date,
	tranquility_score, tranquility_factors, light_potential_score, light_potential_signals,
	visual_quality_score, visual_assessment, photos_hash, match_score, feature_scores,
	created_at, last_updated`

type scanner interface {
	Scan(dest ...any) error
}

func scanListing(row scanner) (*models.Listing, error) {
	l := &models.Listing{}
	var lastSeen sql.NullTime
	var flags, factors, visual, features []byte
	err := row.Scan(
		&l.ID, &l.ListingID, &l.Source, &l.SourceListingID, pq.Array(&l.SourcesSeen), &lastSeen,
		&l.Address, &l.Price, &l.Beds, &l.Baths, &l.Sqft, &l.PropertyType, &l.URL, &l.Lat, &l.Lon, &l.YearBuilt,
		&l.ListingStatus, &l.Status, &l.Description, &l.DaysOnMarket, &l.Neighborhood, &l.HOAFee,
		&l.ParkingSpaces, pq.Array(&l.Photos), &flags, &l.PriceReductionAmount, &l.PriceReductionDate,
		&l.TranquilityScore, &factors, &l.LightScore, pq.Array(&l.LightSignals),
		&l.VisualQuality, &visual, &l.PhotosHash, &l.MatchScore, &features,
		&l.CreatedAt, &l.LastUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan listing: %w", err)
	}
	if lastSeen.Valid {
		l.LastSeenAt = lastSeen.Time
	}
	if err := unmarshalOptional(flags, &l.Flags); err != nil {
		return nil, err
	}
	if err := unmarshalOptional(factors, &l.TranquilityFactors); err != nil {
		return nil, err
	}
	if len(visual) > 0 && string(visual) != "null" {
		l.VisualAssessment = &models.VisualAssessment{}
		if err := json.Unmarshal(visual, l.VisualAssessment); err != nil {
			return nil, fmt.Errorf("postgres: decode visual assessment: %w", err)
		}
	}
	if err := unmarshalOptional(features, &l.FeatureScores); err != nil {
		return nil, err
	}
	return l, nil
}

func unmarshalOptional(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("postgres: decode json column: %w", err)
	}
	return nil
}

// jsonArg encodes v for a JSONB parameter; nil maps and pointers become NULL.
func jsonArg(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return nil, nil
	}
	return string(raw), nil
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) LockListingKey(ctx context.Context, key string) error {
	_, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key)
	return err
}

func (t *pgTx) findOne(ctx context.Context, where string, args ...any) (*models.Listing, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE `+where+` ORDER BY id LIMIT 1 FOR UPDATE`, args...)
	return scanListing(row)
}

func (t *pgTx) FindBySourceID(ctx context.Context, source, sourceListingID string) (*models.Listing, error) {
	return t.findOne(ctx, `source = $1 AND source_listing_id = $2`, source, sourceListingID)
}

func (t *pgTx) FindByListingID(ctx context.Context, listingID string) (*models.Listing, error) {
	return t.findOne(ctx, `listing_id = $1`, listingID)
}

func (t *pgTx) FindByURL(ctx context.Context, url string) (*models.Listing, error) {
	return t.findOne(ctx, `url = $1`, url)
}

func listingArgs(l *models.Listing) ([]any, error) {
	flags, err := jsonArg(l.Flags)
	if err != nil {
		return nil, err
	}
	factors, err := jsonArg(l.TranquilityFactors)
	if err != nil {
		return nil, err
	}
	visual, err := jsonArg(l.VisualAssessment)
	if err != nil {
		return nil, err
	}
	features, err := jsonArg(l.FeatureScores)
	if err != nil {
		return nil, err
	}
	var lastSeen any
	if !l.LastSeenAt.IsZero() {
		lastSeen = l.LastSeenAt
	}
	return []any{
		l.ListingID, l.Source, l.SourceListingID, pq.Array(nonNil(l.SourcesSeen)), lastSeen,
		l.Address, l.Price, l.Beds, l.Baths, l.Sqft, l.PropertyType, l.URL, l.Lat, l.Lon, l.YearBuilt,
		l.ListingStatus, l.Status, l.Description, l.DaysOnMarket, l.Neighborhood, l.HOAFee,
		l.ParkingSpaces, pq.Array(nonNil(l.Photos)), flags, l.PriceReductionAmount, l.PriceReductionDate,
		l.TranquilityScore, factors, l.LightScore, pq.Array(nonNil(l.LightSignals)),
		l.VisualQuality, visual, l.PhotosHash, l.MatchScore, features,
	}, nil
}

func (t *pgTx) InsertListing(ctx context.Context, l *models.Listing) (int64, error) {
	args, err := listingArgs(l)
	if err != nil {
		return 0, fmt.Errorf("postgres: encode listing: %w", err)
	}
	var id int64
	err = t.tx.QueryRowContext(ctx, `
		INSERT INTO listings (
			listing_id, source, source_listing_id, sources_seen, last_seen_at,
			address, price, beds, baths, sqft, property_type, url, lat, lon, year_built,
			listing_status, status, description, days_on_market, neighborhood, hoa_fee,
			parking_spaces, photos, flags, price_reduction_amount, price_reduction_date,
			tranquility_score, tranquility_factors, light_potential_score, light_potential_signals,
			visual_quality_score, visual_assessment, photos_hash, match_score, feature_scores
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,
			$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34,$35
		) RETURNING id`, args...).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert listing: %w", err)
	}
	return id, nil
}

func (t *pgTx) UpdateListing(ctx context.Context, l *models.Listing) error {
	args, err := listingArgs(l)
	if err != nil {
		return fmt.Errorf("postgres: encode listing: %w", err)
	}
	args = append(args, l.ID)
	res, err := t.tx.ExecContext(ctx, `
		UPDATE listings SET
			listing_id = $1, source = $2, source_listing_id = $3, sources_seen = $4, last_seen_at = $5,
			address = $6, price = $7, beds = $8, baths = $9, sqft = $10, property_type = $11, url = $12,
			lat = $13, lon = $14, year_built = $15, listing_status = $16, status = $17, description = $18,
			days_on_market = $19, neighborhood = $20, hoa_fee = $21, parking_spaces = $22, photos = $23,
			flags = $24, price_reduction_amount = $25, price_reduction_date = $26, tranquility_score = $27,
			tranquility_factors = $28, light_potential_score = $29, light_potential_signals = $30,
			visual_quality_score = $31, visual_assessment = $32, photos_hash = $33, match_score = $34,
			feature_scores = $35, last_updated = NOW()
		WHERE id = $36`, args...)
	if err != nil {
		return fmt.Errorf("postgres: update listing: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) LatestSnapshot(ctx context.Context, listingID int64) (*models.Snapshot, error) {
	s := &models.Snapshot{}
	var data []byte
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, listing_id, snapshot_hash, snapshot_data, created_at
		FROM listing_snapshots
		WHERE listing_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, listingID).Scan(&s.ID, &s.ListingID, &s.Hash, &data, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: latest snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &s.Data); err != nil {
		return nil, fmt.Errorf("postgres: decode snapshot: %w", err)
	}
	return s, nil
}

func (t *pgTx) InsertSnapshot(ctx context.Context, s models.Snapshot) error {
	data, err := json.Marshal(s.Data)
	if err != nil {
		return fmt.Errorf("postgres: encode snapshot: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO listing_snapshots (listing_id, snapshot_hash, snapshot_data, created_at)
		VALUES ($1, $2, $3, $4)`, s.ListingID, s.Hash, string(data), s.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert snapshot: %w", err)
	}
	return nil
}

func (t *pgTx) InsertEvents(ctx context.Context, events []models.Event) error {
	for _, e := range events {
		if _, err := insertEvent(ctx, t.tx, e); err != nil {
			return err
		}
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertEvent(ctx context.Context, q queryer, e models.Event) (int64, error) {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return 0, fmt.Errorf("postgres: encode event details: %w", err)
	}
	alerts, err := json.Marshal(e.Alerts)
	if err != nil {
		return 0, fmt.Errorf("postgres: encode alert flags: %w", err)
	}
	var id int64
	err = q.QueryRowContext(ctx, `
		INSERT INTO listing_events (listing_id, event_type, old_value, new_value, details, alerts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		e.ListingID, string(e.Type), e.OldValue, e.NewValue, string(details), string(alerts), e.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert event: %w", err)
	}
	return id, nil
}

func (ps *PostgresStore) ListingByID(ctx context.Context, id int64) (*models.Listing, error) {
	row := ps.db.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	return scanListing(row)
}

func (ps *PostgresStore) queryListings(ctx context.Context, query string, args ...any) ([]*models.Listing, error) {
	rows, err := ps.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query listings: %w", err)
	}
	defer rows.Close()

	var out []*models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Listings returns every stored listing ordered by id.
func (ps *PostgresStore) Listings(ctx context.Context) ([]*models.Listing, error) {
	return ps.queryListings(ctx, `SELECT `+listingColumns+` FROM listings ORDER BY id`)
}

func (ps *PostgresStore) StaleListings(ctx context.Context, minDays int) ([]*models.Listing, error) {
	return ps.queryListings(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE days_on_market >= $1 ORDER BY id`, minDays)
}

func (ps *PostgresStore) SaveScore(ctx context.Context, listingID int64, percent float64, breakdown map[string]models.CriterionScore) error {
	features, err := json.Marshal(breakdown)
	if err != nil {
		return fmt.Errorf("postgres: encode feature scores: %w", err)
	}
	res, err := ps.db.ExecContext(ctx,
		`UPDATE listings SET match_score = $1, feature_scores = $2 WHERE id = $3`, percent, string(features), listingID)
	if err != nil {
		return fmt.Errorf("postgres: save score: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (ps *PostgresStore) EventsSince(ctx context.Context, since time.Time) ([]models.Event, error) {
	rows, err := ps.db.QueryContext(ctx, `
		SELECT id, listing_id, event_type, old_value, new_value, details, alerts, created_at
		FROM listing_events
		WHERE created_at >= $1
		ORDER BY created_at, id`, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: events since: %w", err)
	}
	defer rows.Close()

	var out []models.Event
	for rows.Next() {
		var e models.Event
		var typ string
		var details, alerts []byte
		if err := rows.Scan(&e.ID, &e.ListingID, &typ, &e.OldValue, &e.NewValue, &details, &alerts, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		e.Type = models.EventType(typ)
		if err := unmarshalOptional(details, &e.Details); err != nil {
			return nil, err
		}
		if err := unmarshalOptional(alerts, &e.Alerts); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (ps *PostgresStore) HasEvent(ctx context.Context, listingID int64, t models.EventType) (bool, error) {
	var exists bool
	err := ps.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM listing_events WHERE listing_id = $1 AND event_type = $2)`,
		listingID, string(t)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: has event: %w", err)
	}
	return exists, nil
}

func (ps *PostgresStore) InsertEvent(ctx context.Context, e models.Event) (models.Event, error) {
	id, err := insertEvent(ctx, ps.db, e)
	if err != nil {
		return models.Event{}, err
	}
	e.ID = id
	return e, nil
}

// MarkAlerted ORs flags into the event's stored alert flags.
func (ps *PostgresStore) MarkAlerted(ctx context.Context, eventID int64, flags models.AlertFlags) error {
	res, err := ps.db.ExecContext(ctx, `
		UPDATE listing_events SET alerts = jsonb_build_object(
			'alerted_immediate', COALESCE((alerts->>'alerted_immediate')::boolean, false) OR $1,
			'alerted_digest',    COALESCE((alerts->>'alerted_digest')::boolean, false) OR $2
		) WHERE id = $3`, flags.AlertedImmediate, flags.AlertedDigest, eventID)
	if err != nil {
		return fmt.Errorf("postgres: mark alerted: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
