// Package pdf counts and extracts pages of PDF documents with pdfcpu.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNoValidPages is returned when none of the requested pages exist in the document.
var ErrNoValidPages = errors.New("no valid pages to extract")

// ExtractionResult is a new PDF holding the requested pages.
type ExtractionResult struct {
	Data []byte
	// Pages are the pages that were kept, in request order.
	Pages []int
	// Skipped are requested pages outside 1..PageCount.
	Skipped   []int
	PageCount int
	Duration  time.Duration
	Warnings  []string
}

type Extractor struct {
	conf   *model.Configuration
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Extractor{conf: conf, logger: logger}
}

// PageCount returns the number of pages in the PDF at path.
func (e *Extractor) PageCount(path string) (int, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return 0, fmt.Errorf("read pdf %s: %w", path, err)
	}
	return pdfCtx.PageCount, nil
}

// ExtractPages builds a new PDF from the 1-indexed pages of the document at path, in the
// order given. Pages outside the document are skipped with a warning.
func (e *Extractor) ExtractPages(ctx context.Context, path string, pages []int) (ExtractionResult, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return ExtractionResult{}, err
	}

	total, err := e.PageCount(path)
	if err != nil {
		return ExtractionResult{}, err
	}
	res := ExtractionResult{PageCount: total}

	selection := make([]string, 0, len(pages))
	for _, p := range pages {
		if p < 1 || p > total {
			res.Skipped = append(res.Skipped, p)
			msg := fmt.Sprintf("page %d is out of range (document has %d pages)", p, total)
			res.Warnings = append(res.Warnings, msg)
			e.logger.Warn("pdf.extract.page_out_of_range", "path", path, "page", p, "page_count", total)
			continue
		}
		res.Pages = append(res.Pages, p)
		selection = append(selection, strconv.Itoa(p))
	}
	if len(selection) == 0 {
		return res, fmt.Errorf("%s: %w", path, ErrNoValidPages)
	}

	f, err := os.Open(path)
	if err != nil {
		return res, fmt.Errorf("open pdf: %w", err)
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			e.logger.Warn("pdf.close_error", "path", path, "error", err)
		}
	}(f)

	var buf bytes.Buffer
	if err := api.Collect(f, &buf, selection, e.conf); err != nil {
		return res, fmt.Errorf("collect pages %v: %w", res.Pages, err)
	}
	res.Data = buf.Bytes()
	res.Duration = time.Since(start)

	e.logger.Debug("pdf.extract.done",
		"path", path,
		"pages", res.Pages,
		"skipped", res.Skipped,
		"bytes", len(res.Data),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
