package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strconv"
	"strings"
)

const correlationSchema = `CREATE TABLE IF NOT EXISTS correlation_index (
	correlation_id TEXT PRIMARY KEY,
	rel_path       TEXT NOT NULL,
	updated_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// CorrelationRepository maps correlation identifiers to pending record paths.
type CorrelationRepository interface {
	Put(ctx context.Context, correlationID, relPath string) error
	Get(ctx context.Context, correlationID string) (string, bool, error)
	Delete(ctx context.Context, correlationID string) error
	Reset(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

type correlationRepo struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// NewCorrelationRepository creates the correlation table if needed.
func NewCorrelationRepository(ctx context.Context, db *DB, logger *slog.Logger) (CorrelationRepository, error) {
	if _, err := db.SQL.ExecContext(ctx, correlationSchema); err != nil {
		logger.Error("failed to migrate correlation index", "error", err)
		return nil, err
	}
	return &correlationRepo{db: db.SQL, driver: db.Driver, logger: logger}, nil
}

func (r *correlationRepo) Put(ctx context.Context, correlationID, relPath string) error {
	_, err := r.db.ExecContext(ctx, r.rebind(
		`INSERT INTO correlation_index (correlation_id, rel_path) VALUES (?, ?)
		 ON CONFLICT (correlation_id) DO UPDATE SET rel_path = excluded.rel_path, updated_at = CURRENT_TIMESTAMP`),
		correlationID, relPath)
	if err != nil {
		r.logger.Error("failed to upsert correlation", "request_id", correlationID, "error", err)
		return err
	}
	return nil
}

func (r *correlationRepo) Get(ctx context.Context, correlationID string) (string, bool, error) {
	var relPath string
	err := r.db.QueryRowContext(ctx,
		r.rebind(`SELECT rel_path FROM correlation_index WHERE correlation_id = ?`),
		correlationID).Scan(&relPath)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		r.logger.Error("failed to get correlation", "request_id", correlationID, "error", err)
		return "", false, err
	}
	return relPath, true, nil
}

func (r *correlationRepo) Delete(ctx context.Context, correlationID string) error {
	_, err := r.db.ExecContext(ctx,
		r.rebind(`DELETE FROM correlation_index WHERE correlation_id = ?`), correlationID)
	return err
}

func (r *correlationRepo) Reset(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM correlation_index`)
	return err
}

func (r *correlationRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM correlation_index`).Scan(&n)
	return n, err
}

// rebind rewrites ? placeholders as $n for postgres.
func (r *correlationRepo) rebind(query string) string {
	if r.driver != DriverPgx {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
