package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joseph-ayodele/ocr-relay/internal/app"
	"github.com/joseph-ayodele/ocr-relay/internal/common"
	"github.com/joseph-ayodele/ocr-relay/internal/server"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	logger, closeLog := common.SetupLogger(cfg.Log)
	defer func() { _ = closeLog() }()

	// Context with signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open pending store", "error", err)
		os.Exit(1)
	}
	defer res.Cleanup()

	// Finish finalize operations cut short by the previous run.
	stats, err := res.Store.Recover(ctx)
	if err != nil {
		logger.Error("pending store recovery incomplete", "error", err, "failed", stats.Failed)
	}

	webhook := server.NewWebhookHandler(res.Store, app.Extraction(cfg.Extraction), cfg.Server.MaxBodyBytes, logger)
	srv := server.New(cfg.Server, server.NewRouter(webhook, logger), logger)

	logger.Info("starting ocr-relayd", "http_addr", cfg.Server.HTTPAddr, "grpc_addr", cfg.Server.GRPCAddr)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}
