package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestPDF writes an n-page PDF with "Page i" on each page.
func writeTestPDF(t *testing.T, dir, name string, n int) string {
	t.Helper()
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetFont("Arial", "", 14)
	for i := 1; i <= n; i++ {
		doc.AddPage()
		doc.Cell(40, 10, fmt.Sprintf("Page %d", i))
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, doc.Output(f))
	require.NoError(t, f.Close())
	return path
}

func TestPageCount(t *testing.T) {
	path := writeTestPDF(t, t.TempDir(), "five.pdf", 5)
	n, err := NewExtractor(nil).PageCount(path)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestPageCountNotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o644))
	_, err := NewExtractor(nil).PageCount(path)
	assert.Error(t, err)
}

func TestExtractPages(t *testing.T) {
	dir := t.TempDir()
	src := writeTestPDF(t, dir, "doc.pdf", 5)
	e := NewExtractor(nil)

	tests := []struct {
		name        string
		pages       []int
		wantPages   []int
		wantSkipped []int
	}{
		{name: "two pages", pages: []int{2, 4}, wantPages: []int{2, 4}},
		{name: "listed order kept", pages: []int{4, 1}, wantPages: []int{4, 1}},
		{name: "out of range skipped", pages: []int{0, 3, 9}, wantPages: []int{3}, wantSkipped: []int{0, 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.ExtractPages(context.Background(), src, tt.pages)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPages, res.Pages)
			assert.Equal(t, tt.wantSkipped, res.Skipped)
			assert.Len(t, res.Warnings, len(tt.wantSkipped))
			assert.Equal(t, 5, res.PageCount)

			out := filepath.Join(t.TempDir(), "out.pdf")
			require.NoError(t, os.WriteFile(out, res.Data, 0o644))
			n, err := e.PageCount(out)
			require.NoError(t, err)
			assert.Equal(t, len(tt.wantPages), n)
		})
	}
}

func TestExtractPagesNoValidPages(t *testing.T) {
	src := writeTestPDF(t, t.TempDir(), "doc.pdf", 2)
	res, err := NewExtractor(nil).ExtractPages(context.Background(), src, []int{0, 3})
	require.ErrorIs(t, err, ErrNoValidPages)
	assert.Equal(t, []int{0, 3}, res.Skipped)
	assert.Nil(t, res.Data)
}

func TestExtractPagesCanceled(t *testing.T) {
	src := writeTestPDF(t, t.TempDir(), "doc.pdf", 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewExtractor(nil).ExtractPages(ctx, src, []int{1})
	assert.ErrorIs(t, err, context.Canceled)
}
