package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/slidesense/pkg/command"
)

var _ Store = (*PostgresStore)(nil)

const ddlDetections = `
CREATE TABLE IF NOT EXISTS detections (
    id          BIGSERIAL         PRIMARY KEY,
    time        TIMESTAMPTZ       NOT NULL DEFAULT now(),
    utterance   TEXT              NOT NULL,
    kind        TEXT              NOT NULL,
    command     TEXT              NOT NULL DEFAULT '',
    score       DOUBLE PRECISION  NOT NULL DEFAULT 0,
    confidence  INTEGER           NOT NULL DEFAULT 0,
    threshold   DOUBLE PRECISION  NOT NULL DEFAULT 0,
    reason      TEXT              NOT NULL DEFAULT '',
    phrase      TEXT              NOT NULL DEFAULT '',
    strategy    TEXT              NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_detections_time
    ON detections (time);

CREATE INDEX IF NOT EXISTS idx_detections_kind_command
    ON detections (kind, command);
`

// Migrate creates the detections table and its indexes. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlDetections); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// PostgresStore persists records in a PostgreSQL detections table. All
// methods are safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn, pings the server and runs [Migrate].
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("history: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("history: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

// Append inserts rec.
func (s *PostgresStore) Append(ctx context.Context, rec Record) error {
	const q = `
		INSERT INTO detections
		    (time, utterance, kind, command, score, confidence, threshold, reason, phrase, strategy)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, q,
		rec.Time,
		rec.Utterance,
		rec.Kind,
		string(rec.Command),
		rec.Score,
		rec.Confidence,
		rec.Threshold,
		rec.Reason,
		rec.Phrase,
		rec.Strategy,
	)
	if err != nil {
		return fmt.Errorf("history: insert detection: %w", err)
	}
	return nil
}

// Load returns all records ordered by time.
func (s *PostgresStore) Load(ctx context.Context) ([]Record, error) {
	const q = `
		SELECT time, utterance, kind, command, score, confidence, threshold, reason, phrase, strategy
		FROM   detections
		ORDER  BY time, id`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("history: load: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var (
			rec Record
			cmd string
		)
		err := row.Scan(
			&rec.Time,
			&rec.Utterance,
			&rec.Kind,
			&cmd,
			&rec.Score,
			&rec.Confidence,
			&rec.Threshold,
			&rec.Reason,
			&rec.Phrase,
			&rec.Strategy,
		)
		rec.Command = command.ID(cmd)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("history: scan rows: %w", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Check pings the database.
func (s *PostgresStore) Check(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("history: ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
