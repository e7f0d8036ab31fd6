// Package cli provides the operator command-line interface for ocr-relay.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/ocr-relay/internal/app"
	"github.com/joseph-ayodele/ocr-relay/internal/common"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	logLevel string

	cfg           *common.Config
	logger        *slog.Logger
	closeLogger   func() error
	storeResult   *app.StoreResult
	commandOutput io.Writer = os.Stdout
)

var rootCmd = &cobra.Command{
	Use:   "ocr-relay",
	Short: "Dispatch PDFs to the OCR service and manage the pending store",
	Long: `ocr-relay sends PDF documents, whole or page by page, to the asynchronous OCR
service and records a pending marker for every acknowledged job. The webhook daemon
(ocr-relayd) later turns each marker into a finalized JSON artifact.

Configuration is read from the environment and an optional .env file.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = common.LoadConfig()
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger, closeLogger = common.SetupLogger(cfg.Log)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	rootCmd.AddCommand(dispatchCmd)
	rootCmd.AddCommand(pagesCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(reportCmd)
}

// Execute runs the root command.
func Execute() error {
	defer cleanup()
	return rootCmd.Execute()
}

func cleanup() {
	if storeResult != nil {
		storeResult.Cleanup()
		storeResult = nil
	}
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
		closeLogger = nil
	}
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func openStore(ctx context.Context) (*app.StoreResult, error) {
	if storeResult != nil {
		return storeResult, nil
	}
	res, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	storeResult = res
	return res, nil
}

func printf(format string, args ...any) {
	_, _ = fmt.Fprintf(commandOutput, format, args...)
}
