package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/ocr-relay/internal/dispatch"
	"github.com/joseph-ayodele/ocr-relay/internal/export"
	"github.com/joseph-ayodele/ocr-relay/internal/pdf"
)

var (
	reportOut   string
	reportStale time.Duration
)

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "List the source PDFs with their page counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		sources, err := dispatch.ListSources(cfg.Dispatch.SourceDir, pdf.NewExtractor(logger), logger)
		if err != nil {
			return err
		}
		for _, s := range sources {
			printf("%s\t%d\n", s.Name, s.PageCount)
		}
		printf("%d PDF file(s)\n", len(sources))
		return nil
	},
}

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Finish finalize operations interrupted by a crash",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()

		res, err := openStore(ctx)
		if err != nil {
			return err
		}
		stats, err := res.Store.Recover(ctx)
		printf("replayed=%d cleared=%d orphaned=%d failed=%d pending=%d\n",
			stats.Replayed, stats.Cleared, stats.Orphaned, stats.Failed, stats.Pending)
		return err
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the correlation index from the pending tree",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()

		res, err := openStore(ctx)
		if err != nil {
			return err
		}
		n, err := res.Store.Reindex(ctx)
		if err != nil {
			return err
		}
		printf("indexed %d pending record(s)\n", n)
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write an XLSX report of the pending store",
	Long: `Write an XLSX report listing every pending, finalized and journal file of the
pending store. Pending records older than --stale are flagged.

Examples:
  ocr-relay report
  ocr-relay report --out /tmp/pending.xlsx --stale 24h`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()

		res, err := openStore(ctx)
		if err != nil {
			return err
		}
		out := reportOut
		if out == "" {
			out = filepath.Join(cfg.Store.DownloadDir, "pending-report.xlsx")
		}

		data, err := export.NewService(res.Store, logger).ExportStoreXLSX(ctx, time.Now(), reportStale)
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		printf("report written to %s\n", out)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "output XLSX path (default <DOWNLOAD_DIR>/pending-report.xlsx)")
	reportCmd.Flags().DurationVar(&reportStale, "stale", 0, "flag pending records older than this")
}
