package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/ocr-relay/internal/app"
	"github.com/joseph-ayodele/ocr-relay/internal/common"
	"github.com/joseph-ayodele/ocr-relay/internal/dispatch"
	"github.com/joseph-ayodele/ocr-relay/internal/pdf"
)

var (
	dispatchSplit       bool
	dispatchSplitPages  string
	dispatchSelected    string
	dispatchConcurrency int
	dispatchDelay       time.Duration
	dispatchDryRun      bool
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Send the PDFs of the source directory to the OCR service",
	Long: `Send every PDF in SOURCE_DIR to the OCR service.

Page selection (flags override the environment):
  --split --split-pages 1,2   one job per document and listed page
  --split                     one job per page of every document
  --pages 2,4                 one job per document carrying only pages 2 and 4
  (none)                      one job per whole document

Examples:
  ocr-relay dispatch --dry-run
  ocr-relay dispatch --split --split-pages 1 --concurrency 2`,
	Args: cobra.NoArgs,
	RunE: runDispatch,
}

func init() {
	dispatchCmd.Flags().BoolVar(&dispatchSplit, "split", false, "send pages as separate jobs (SPLIT_ENABLED)")
	dispatchCmd.Flags().StringVar(&dispatchSplitPages, "split-pages", "", "pages to split out, comma separated (SPLIT_PAGES)")
	dispatchCmd.Flags().StringVar(&dispatchSelected, "pages", "", "pages to send when not splitting (SELECTED_PAGES)")
	dispatchCmd.Flags().IntVar(&dispatchConcurrency, "concurrency", 0, "jobs per batch (MAX_CONCURRENT_REQUESTS)")
	dispatchCmd.Flags().DurationVar(&dispatchDelay, "delay", -1, "delay between batches (BATCH_DELAY)")
	dispatchCmd.Flags().BoolVar(&dispatchDryRun, "dry-run", false, "print the jobs without sending them")
}

func runDispatch(cmd *cobra.Command, _ []string) error {
	dc := cfg.Dispatch
	if cmd.Flags().Changed("split") {
		dc.SplitEnabled = dispatchSplit
	}
	if cmd.Flags().Changed("split-pages") {
		pages, err := common.ParsePageList(dispatchSplitPages)
		if err != nil {
			return err
		}
		dc.SplitPages = pages
	}
	if cmd.Flags().Changed("pages") {
		pages, err := common.ParsePageList(dispatchSelected)
		if err != nil {
			return err
		}
		dc.SelectedPages = pages
	}
	if dispatchConcurrency > 0 {
		dc.MaxConcurrent = dispatchConcurrency
	}
	if dispatchDelay >= 0 {
		dc.BatchDelay = dispatchDelay
	}

	ctx, stop := signalContext()
	defer stop()

	extractor := pdf.NewExtractor(logger)
	sources, err := dispatch.ListSources(dc.SourceDir, extractor, logger)
	if err != nil {
		return err
	}
	jobs := dispatch.BuildPlan(sources, dispatch.PlanConfig{
		SplitEnabled:  dc.SplitEnabled,
		SplitPages:    dc.SplitPages,
		SelectedPages: dc.SelectedPages,
	})

	if dispatchDryRun {
		for _, j := range jobs {
			printf("%s\t%s\n", j.Label(), j.SourceDocument)
		}
		printf("%d job(s) from %d document(s)\n", len(jobs), len(sources))
		return nil
	}

	if err := cfg.ValidateDispatch(); err != nil {
		return err
	}
	res, err := openStore(ctx)
	if err != nil {
		return err
	}
	artifacts := dispatch.NewArtifacts(dc.ResultDir)
	if err := artifacts.EnsureDirs(); err != nil {
		return err
	}

	client := dispatch.NewClient(cfg.Service, &http.Client{}, logger)
	pipeline := dispatch.NewPipeline(client, extractor, res.Store, artifacts,
		dispatch.WithMaxConcurrent(dc.MaxConcurrent),
		dispatch.WithBatchDelay(dc.BatchDelay),
		dispatch.WithExtraction(app.Extraction(cfg.Extraction)),
		dispatch.WithLogger(logger),
	)

	summary, runErr := pipeline.Run(ctx, jobs)
	for _, r := range summary.Results {
		switch r.Status {
		case dispatch.JobFailed:
			printf("FAILED\t%s\t%v\n", r.Job.Label(), r.Err)
		case dispatch.JobUncorrelated:
			printf("NO-ID\t%s\n", r.Job.Label())
		default:
			printf("SENT\t%s\t%s\n", r.Job.Label(), r.CorrelationID)
		}
	}
	printf("total=%d sent=%d uncorrelated=%d failed=%d elapsed=%s\n",
		summary.Total, summary.Sent, summary.Uncorrelated, summary.Failed, summary.Duration.Truncate(time.Millisecond))

	if runErr != nil {
		return fmt.Errorf("dispatch interrupted: %w", runErr)
	}
	return nil
}
