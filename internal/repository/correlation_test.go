package repository

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRepo(t *testing.T) (CorrelationRepository, *DB) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := Open(ctx, Config{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "nested", "index.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(logger) })

	repo, err := NewCorrelationRepository(ctx, db, logger)
	require.NoError(t, err)
	return repo, db
}

func TestCorrelationRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, db := openTestRepo(t)
	require.NoError(t, db.HealthCheck(ctx, 0, slog.Default()))

	_, ok, err := repo.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Put(ctx, "abc123", "invoice/invoice_abc123.json"))
	require.NoError(t, repo.Put(ctx, "abc123", "moved/invoice_abc123.json"))
	require.NoError(t, repo.Put(ctx, "def456", "b/b_def456.json"))

	rel, ok, err := repo.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "moved/invoice_abc123.json", rel)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, repo.Delete(ctx, "abc123"))
	_, ok, err = repo.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Reset(ctx))
	n, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql"}, slog.Default())
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &correlationRepo{driver: DriverPgx}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := &correlationRepo{driver: DriverSQLite}
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}
