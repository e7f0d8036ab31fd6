package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/ocr-relay/constants"
	"github.com/joseph-ayodele/ocr-relay/internal/pending"
)

const (
	entriesSheet = "Records"
	summarySheet = "Summary"
)

// EntryLister lists the files of the pending tree.
type EntryLister interface {
	List(ctx context.Context) ([]pending.Entry, error)
}

// Service produces XLSX reports of the pending store.
type Service struct {
	store  EntryLister
	logger *slog.Logger
}

func NewService(store EntryLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// ExportStoreXLSX returns a workbook with one row per record file and a per-kind summary.
// Pending records older than staleAfter are flagged; staleAfter <= 0 disables the flag.
func (s *Service) ExportStoreXLSX(ctx context.Context, now time.Time, staleAfter time.Duration) ([]byte, error) {
	start := time.Now()

	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending store: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", entriesSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}

	headers := []string{
		"Status",
		"Folder",
		"File",
		"Request ID",
		"Sent File",
		"Pages",
		"Created At",
		"Age",
		"Document Type",
		"Notes",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(entriesSheet, cell, h)
	}

	counts := map[constants.EntryKind]int{}
	stale := 0
	row := 2
	for _, e := range entries {
		counts[e.Kind]++

		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(entriesSheet, cell, v)
		}

		created := e.ModTime
		notes := e.Problem
		write(1, string(e.Kind))
		write(2, e.Dir)
		write(3, e.Filename)
		if r := e.Record; r != nil {
			write(4, r.RequestID)
			write(5, r.SentFile)
			write(6, pending.PageLabel(r.PageNumbers))
			if !r.CreatedAt.IsZero() {
				created = r.CreatedAt
			}
			if staleAfter > 0 && now.Sub(created) > staleAfter {
				stale++
				if notes == "" {
					notes = "stale"
				}
			}
		}
		write(7, created.UTC().Format(time.RFC3339))
		write(8, now.Sub(created).Truncate(time.Second).String())
		write(9, e.Classification)
		write(10, truncate(notes, 140))

		row++
	}

	summary := [][]any{
		{"Kind", "Count"},
		{string(constants.EntryPending), counts[constants.EntryPending]},
		{string(constants.EntryFinalized), counts[constants.EntryFinalized]},
		{string(constants.EntryJournal), counts[constants.EntryJournal]},
		{"STALE", stale},
		{"TOTAL", len(entries)},
	}
	for i, values := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &values); err != nil {
			return nil, err
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(entriesSheet, "A", "A", 12) // status
	_ = f.SetColWidth(entriesSheet, "B", "C", 36) // folder, file
	_ = f.SetColWidth(entriesSheet, "D", "E", 28) // ids
	_ = f.SetColWidth(entriesSheet, "G", "G", 22) // created
	_ = f.SetColWidth(entriesSheet, "J", "J", 48) // notes

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(entries),
		"pending", counts[constants.EntryPending],
		"stale", stale,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
