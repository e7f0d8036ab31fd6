// Package app wires configuration into the store and index shared by the daemon and the CLI.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/ocr-relay/internal/common"
	"github.com/joseph-ayodele/ocr-relay/internal/payload"
	"github.com/joseph-ayodele/ocr-relay/internal/pending"
	"github.com/joseph-ayodele/ocr-relay/internal/repository"
)

// StoreResult holds the opened pending store and its cleanup function.
type StoreResult struct {
	Store   *pending.Store
	Index   repository.CorrelationRepository
	Cleanup func()
}

// OpenStore opens the correlation index selected by cfg.Index (unless it is "none") and
// the pending store on top of it, creating the store root.
func OpenStore(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*StoreResult, error) {
	res := &StoreResult{Cleanup: func() {}}
	opts := []pending.Option{pending.WithLogger(logger)}

	if cfg.Index.Driver != repository.DriverNone {
		db, err := repository.Open(ctx, repository.Config{
			Driver:          cfg.Index.Driver,
			DSN:             cfg.Index.DSN,
			MaxConns:        4,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     5 * time.Second,
		}, logger)
		if err != nil {
			return nil, common.NewAppError("INDEX_ERROR", "open correlation index", err)
		}
		if err := db.HealthCheck(ctx, 3*time.Second, logger); err != nil {
			db.Close(logger)
			return nil, common.NewAppError("INDEX_ERROR", "correlation index health check", err)
		}
		idx, err := repository.NewCorrelationRepository(ctx, db, logger)
		if err != nil {
			db.Close(logger)
			return nil, common.NewAppError("INDEX_ERROR", "prepare correlation index", err)
		}
		res.Index = idx
		res.Cleanup = func() { db.Close(logger) }
		opts = append(opts, pending.WithIndex(idx))
	}

	res.Store = pending.NewStore(cfg.Store.Root(), opts...)
	if err := res.Store.EnsureRoot(); err != nil {
		res.Cleanup()
		return nil, err
	}
	logger.Info("pending store ready", "root", res.Store.Root(), "index", cfg.Index.Driver)
	return res, nil
}

// Extraction converts the configured data-extraction pass.
func Extraction(cfg common.ExtractionConfig) payload.ExtractionConfig {
	return payload.ExtractionConfig{
		Enabled:    cfg.Enabled,
		Path:       cfg.Path,
		WrapInData: cfg.WrapInData,
	}
}
