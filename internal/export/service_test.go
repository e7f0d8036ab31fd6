package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/ocr-relay/internal/payload"
	"github.com/joseph-ayodele/ocr-relay/internal/pending"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestExportStoreXLSX(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	store := pending.NewStore(filepath.Join(t.TempDir(), "pending"),
		pending.WithLogger(quiet),
		pending.WithClock(func() time.Time { return created }),
	)

	_, err := store.Create(ctx, pending.CreateParams{SourceDocument: "a.pdf", Pages: []int{2, 4}, CorrelationID: "p1"})
	require.NoError(t, err)
	loc, err := store.Create(ctx, pending.CreateParams{SourceDocument: "b.pdf", CorrelationID: "p2"})
	require.NoError(t, err)
	_, err = store.Finalize(ctx, loc, "p2", payload.Document{"document_type": "invoice"})
	require.NoError(t, err)

	now := created.Add(72 * time.Hour)
	data, err := NewService(store, quiet).ExportStoreXLSX(ctx, now, 24*time.Hour)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(entriesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Status", rows[0][0])

	byFile := map[string][]string{}
	for _, r := range rows[1:] {
		byFile[r[2]] = r
	}
	p := byFile["a_2-4_p1.json"]
	require.NotNil(t, p)
	assert.Equal(t, "PENDING", p[0])
	assert.Equal(t, "a", p[1])
	assert.Equal(t, "p1", p[3])
	assert.Equal(t, "a.pdf", p[4])
	assert.Equal(t, "2-4", p[5])
	assert.Equal(t, "2026-10-01T12:00:00Z", p[6])
	assert.Equal(t, "72h0m0s", p[7])
	assert.Equal(t, "stale", p[9])

	fin := byFile["b__schema_invoice.json"]
	require.NotNil(t, fin)
	assert.Equal(t, "FINALIZED", fin[0])
	assert.Equal(t, "invoice", fin[8])

	summary, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"PENDING", "1"}, summary[1])
	assert.Equal(t, []string{"FINALIZED", "1"}, summary[2])
	assert.Equal(t, []string{"JOURNAL", "0"}, summary[3])
	assert.Equal(t, []string{"STALE", "1"}, summary[4])
	assert.Equal(t, []string{"TOTAL", "2"}, summary[5])
}

type failingLister struct{}

func (failingLister) List(context.Context) ([]pending.Entry, error) {
	return nil, errors.New("disk gone")
}

func TestExportStoreXLSXListError(t *testing.T) {
	_, err := NewService(failingLister{}, quiet).ExportStoreXLSX(context.Background(), time.Now(), 0)
	assert.ErrorContains(t, err, "disk gone")
}
