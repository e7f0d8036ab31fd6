package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/ocr-relay/internal/common"
	"github.com/joseph-ayodele/ocr-relay/internal/payload"
	"github.com/joseph-ayodele/ocr-relay/internal/pdf"
	"github.com/joseph-ayodele/ocr-relay/internal/pending"
)

type Sender interface {
	Send(ctx context.Context, job JobRequest, body io.Reader, size int64) ([]byte, int, error)
}

type PageExtractor interface {
	ExtractPages(ctx context.Context, path string, pages []int) (pdf.ExtractionResult, error)
}

type PendingCreator interface {
	Create(ctx context.Context, p pending.CreateParams) (pending.Location, error)
}

type JobStatus string

const (
	JobSent JobStatus = "sent"
	// JobUncorrelated was acknowledged without a correlation id, so no pending record exists.
	JobUncorrelated JobStatus = "uncorrelated"
	JobFailed       JobStatus = "failed"
)

type JobResult struct {
	Job           JobRequest
	Status        JobStatus
	CorrelationID string
	PendingPath   string
	SnapshotPath  string
	ErrorLogPath  string
	// SentPages are the pages actually sent after out-of-range pages were dropped.
	SentPages []int
	Err       error
}

type Summary struct {
	Total        int
	Sent         int
	Uncorrelated int
	Failed       int
	Duration     time.Duration
	Results      []JobResult
}

// Pipeline runs jobs in fixed-size batches with a cooldown between batches.
type Pipeline struct {
	sender     Sender
	extractor  PageExtractor
	store      PendingCreator
	artifacts  *Artifacts
	extraction payload.ExtractionConfig
	logger     *slog.Logger

	maxConcurrent int
	batchDelay    time.Duration
}

type Option func(*Pipeline)

func WithMaxConcurrent(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxConcurrent = n
		}
	}
}

func WithBatchDelay(d time.Duration) Option {
	return func(p *Pipeline) {
		if d >= 0 {
			p.batchDelay = d
		}
	}
}

// WithExtraction sets the data-extraction pass applied to acknowledgment snapshots.
func WithExtraction(cfg payload.ExtractionConfig) Option {
	return func(p *Pipeline) {
		p.extraction = cfg
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewPipeline(sender Sender, extractor PageExtractor, store PendingCreator, artifacts *Artifacts, opts ...Option) *Pipeline {
	p := &Pipeline{
		sender:        sender,
		extractor:     extractor,
		store:         store,
		artifacts:     artifacts,
		logger:        slog.Default(),
		maxConcurrent: 1,
		batchDelay:    time.Second,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run executes jobs in batches of at most maxConcurrent, waiting for each batch to finish
// and then for the batch delay before starting the next. A failed job never stops the
// run; cancellation stops it before the next batch starts.
func (p *Pipeline) Run(ctx context.Context, jobs []JobRequest) (Summary, error) {
	start := time.Now()
	summary := Summary{Total: len(jobs), Results: make([]JobResult, 0, len(jobs))}

	p.logger.Info("dispatch started", "jobs", len(jobs), "max_concurrent", p.maxConcurrent, "batch_delay", p.batchDelay)

	var runErr error
	for i := 0; i < len(jobs); i += p.maxConcurrent {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		end := min(i+p.maxConcurrent, len(jobs))
		batch := jobs[i:end]
		results := make([]JobResult, len(batch))

		var g errgroup.Group
		for k, job := range batch {
			g.Go(func() error {
				results[k] = p.Execute(ctx, job)
				return nil
			})
		}
		_ = g.Wait()

		for _, r := range results {
			switch r.Status {
			case JobSent:
				summary.Sent++
			case JobUncorrelated:
				summary.Uncorrelated++
			default:
				summary.Failed++
			}
		}
		summary.Results = append(summary.Results, results...)

		if end < len(jobs) && p.batchDelay > 0 {
			if err := sleep(ctx, p.batchDelay); err != nil {
				runErr = err
				break
			}
		}
	}

	summary.Duration = time.Since(start)
	p.logger.Info("dispatch finished",
		"total", summary.Total,
		"sent", summary.Sent,
		"uncorrelated", summary.Uncorrelated,
		"failed", summary.Failed,
		"elapsed_ms", summary.Duration.Milliseconds(),
	)
	return summary, runErr
}

// Execute sends one job. Failures are written to the job's error log and returned in
// the result, never as an error.
func (p *Pipeline) Execute(ctx context.Context, job JobRequest) JobResult {
	ctx = common.WithDispatchID(ctx, job.DispatchID)
	res := JobResult{Job: job}
	logger := p.logger.With("dispatch_id", job.DispatchID, "file", job.FileName())

	if err := p.execute(ctx, job, &res, logger); err != nil {
		res.Status = JobFailed
		res.Err = err
		logger.Error("job failed", "job", job.describe(), "error", err)
		path, werr := p.artifacts.WriteError(job, err)
		if werr != nil {
			logger.Error("failed to write error log", "error", werr)
		}
		res.ErrorLogPath = path
	}
	return res
}

func (p *Pipeline) execute(ctx context.Context, job JobRequest, res *JobResult, logger *slog.Logger) error {
	body, size, closeBody, err := p.open(ctx, job, res)
	if err != nil {
		return err
	}
	defer closeBody()

	ack, _, err := p.sender.Send(ctx, job, body, size)
	if err != nil {
		return err
	}
	logger.Info("job sent", "job", job.describe())

	// Acknowledgments are expected to be JSON objects; anything else is kept as text.
	ackDoc, decodeErr := payload.DecodeBytes(ack)
	var snapshot any = string(ack)
	if decodeErr == nil {
		snapshot, _ = payload.Apply(ackDoc, p.extraction)
	} else {
		logger.Warn("acknowledgment is not a JSON object", "error", decodeErr)
	}

	if id, ok := payload.CorrelationID(ackDoc); ok {
		loc, err := p.store.Create(ctx, pending.CreateParams{
			SourceDocument: job.SourceDocument,
			Pages:          job.Pages,
			CorrelationID:  id,
			DispatchID:     job.DispatchID,
			Ack:            ack,
		})
		if err != nil {
			return fmt.Errorf("create pending record: %w", err)
		}
		res.Status = JobSent
		res.CorrelationID = id
		res.PendingPath = loc.Path
	} else {
		res.Status = JobUncorrelated
		logger.Warn("no request_id in acknowledgment; pending record not created")
	}

	path, err := p.artifacts.WriteSnapshot(job, snapshot)
	if err != nil {
		return err
	}
	res.SnapshotPath = path
	return nil
}

// open returns the bytes to send: the extracted pages when the job names pages, else
// the source file streamed from disk.
func (p *Pipeline) open(ctx context.Context, job JobRequest, res *JobResult) (io.Reader, int64, func(), error) {
	if len(job.Pages) > 0 {
		ext, err := p.extractor.ExtractPages(ctx, job.SourceDocument, job.Pages)
		if err != nil {
			return nil, 0, nil, fmt.Errorf("extract pages: %w", err)
		}
		res.SentPages = ext.Pages
		if _, err := p.artifacts.WriteTemp(job, ext.Data); err != nil {
			return nil, 0, nil, err
		}
		return bytes.NewReader(ext.Data), int64(len(ext.Data)), func() {}, nil
	}

	f, err := os.Open(job.SourceDocument)
	if err != nil {
		return nil, 0, nil, common.IOError("open", job.SourceDocument, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, nil, common.IOError("stat", job.SourceDocument, err)
	}
	return f, info.Size(), func() { _ = f.Close() }, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
