package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	apperrors "github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/resilience"
)

const recordsSchema = `
CREATE TABLE IF NOT EXISTS records (
	owner      TEXT        NOT NULL DEFAULT '',
	id         TEXT        NOT NULL,
	text       TEXT        NOT NULL,
	created_at TIMESTAMPTZ,
	author     TEXT        NOT NULL DEFAULT '',
	likes      INTEGER     NOT NULL DEFAULT 0,
	reposts    INTEGER     NOT NULL DEFAULT 0,
	replies    INTEGER     NOT NULL DEFAULT 0,
	url        TEXT
);
CREATE INDEX IF NOT EXISTS records_owner_created_idx ON records (owner, created_at DESC);`

const selectRecords = `
SELECT id, text, created_at, author, likes, reposts, replies, COALESCE(url, '')
FROM records
WHERE $1 = '' OR owner = $1
ORDER BY created_at DESC NULLS LAST`

const insertRecord = `
INSERT INTO records (owner, id, text, created_at, author, likes, reposts, replies, url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))`

// PostgresSource loads records from the records table. Calls pass through a
// circuit breaker so a down database fails fast during repeated reloads.
type PostgresSource struct {
	db      *sql.DB
	owner   string
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
}

// NewPostgresSource creates a source over client. An empty owner loads every
// row.
func NewPostgresSource(client *postgres.Client, owner string, breaker *resilience.CircuitBreaker) *PostgresSource {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("postgres-source", resilience.CircuitBreakerConfig{})
	}
	return &PostgresSource{
		db:      client.DB,
		owner:   owner,
		breaker: breaker,
		logger:  slog.Default().With("component", "postgres-source"),
	}
}

func (s *PostgresSource) Name() string { return "postgres" }

// Load reads all rows for the owner. Failures wrap ErrSourceUnavailable.
func (s *PostgresSource) Load(ctx context.Context) ([]Record, error) {
	var records []Record
	err := s.breaker.Execute(func() error {
		var err error
		records, err = s.query(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSourceUnavailable, err)
	}
	s.logger.Info("records loaded", "owner", s.owner, "records", len(records))
	return records, nil
}

func (s *PostgresSource) query(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, selectRecords, s.owner)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r         Record
			createdAt sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.Text, &createdAt, &r.Author, &r.Likes, &r.Reposts, &r.Replies, &r.URL); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		if createdAt.Valid {
			r.CreatedAt = createdAt.Time.UTC()
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

// Migrate creates the records table when missing.
func Migrate(ctx context.Context, client *postgres.Client) error {
	if _, err := client.DB.ExecContext(ctx, recordsSchema); err != nil {
		return fmt.Errorf("creating records schema: %w", err)
	}
	return nil
}

// Import replaces every row of owner with records in one transaction.
func Import(ctx context.Context, client *postgres.Client, owner string, records []Record) error {
	return client.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE owner = $1`, owner); err != nil {
			return fmt.Errorf("clearing records for %q: %w", owner, err)
		}
		stmt, err := tx.PrepareContext(ctx, insertRecord)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range records {
			var createdAt sql.NullTime
			if !r.CreatedAt.IsZero() {
				createdAt = sql.NullTime{Time: r.CreatedAt, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, owner, r.ID, r.Text, createdAt, r.Author, r.Likes, r.Reposts, r.Replies, r.URL); err != nil {
				return fmt.Errorf("inserting record %s: %w", r.ID, err)
			}
		}
		return nil
	})
}
