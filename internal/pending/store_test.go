package pending

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/ocr-relay/constants"
	"github.com/joseph-ayodele/ocr-relay/internal/common"
	"github.com/joseph-ayodele/ocr-relay/internal/payload"
)

var fixedNow = time.Date(2026, 10, 19, 8, 30, 15, 123_000_000, time.UTC)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	root := filepath.Join(t.TempDir(), "pending")
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	s := NewStore(root, opts...)
	require.NoError(t, s.EnsureRoot())
	return s
}

func readJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var v map[string]any
	require.NoError(t, json.Unmarshal(b, &v))
	return v
}

func decode(t *testing.T, s string) payload.Document {
	t.Helper()
	doc, err := payload.DecodeBytes([]byte(s))
	require.NoError(t, err)
	return doc
}

// memIndex is an in-memory Index for tests.
type memIndex struct {
	mu   sync.Mutex
	rows map[string]string
	gets int
}

func newMemIndex() *memIndex { return &memIndex{rows: map[string]string{}} }

func (m *memIndex) Put(_ context.Context, id, rel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[id] = rel
	return nil
}

func (m *memIndex) Get(_ context.Context, id string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	rel, ok := m.rows[id]
	return rel, ok, nil
}

func (m *memIndex) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func (m *memIndex) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = map[string]string{}
	return nil
}

func TestCreateLayout(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	loc, err := s.Create(ctx, CreateParams{
		SourceDocument: "/data/in/invoice.pdf",
		CorrelationID:  "abc123",
		DispatchID:     "d-1",
		Ack:            []byte(`{"request_id":"abc123","status":"accepted"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, "invoice", loc.Dir)
	assert.Equal(t, "invoice_abc123.json", loc.Filename)
	assert.Equal(t, filepath.Join(s.Root(), "invoice", "invoice_abc123.json"), loc.Path)

	rec := readJSON(t, loc.Path)
	assert.Equal(t, "pending", rec["status"])
	assert.Equal(t, "abc123", rec["request_id"])
	assert.Equal(t, "invoice.pdf", rec["sent_file"])
	assert.Equal(t, []any{}, rec["page_numbers"])
	assert.Equal(t, "2026-10-19T08:30:15.123Z", rec["created_at"])
	assert.Equal(t, map[string]any{"request_id": "abc123", "status": "accepted"}, rec["response_preview"])

	raw, err := os.ReadFile(loc.Path)
	require.NoError(t, err)
	assert.NoError(t, ValidateRecordJSON(raw))
}

func TestCreateWithPagesAndUnsafeNames(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	loc, err := s.Create(ctx, CreateParams{
		SourceDocument: "scan:2024|a.pdf",
		Pages:          []int{2, 4},
		CorrelationID:  "r/9",
		Ack:            []byte("accepted"),
	})
	require.NoError(t, err)
	assert.Equal(t, "scan_2024_a", loc.Dir)
	assert.Equal(t, "scan_2024_a_2-4_r_9.json", loc.Filename)

	rec := readJSON(t, loc.Path)
	assert.Equal(t, []any{float64(2), float64(4)}, rec["page_numbers"])
	assert.Equal(t, "accepted", rec["response_preview"])

	found, err := s.Find(ctx, "r/9")
	require.NoError(t, err)
	assert.Equal(t, loc, found)
}

func TestCreateRequiresCorrelationID(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create(context.Background(), CreateParams{SourceDocument: "a.pdf"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestFindScansFoldersThenFlatRoot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Create(ctx, CreateParams{SourceDocument: "a.pdf", CorrelationID: "id-1"})
	require.NoError(t, err)

	legacy := filepath.Join(s.Root(), "old.pdf_id-2.json")
	require.NoError(t, os.WriteFile(legacy, []byte(`{}`), 0o644))

	loc, err := s.Find(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "a", loc.Dir)

	loc, err = s.Find(ctx, "id-2")
	require.NoError(t, err)
	assert.Equal(t, "", loc.Dir)
	assert.Equal(t, legacy, loc.Path)

	_, err = s.Find(ctx, "id-3")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFindMissingRoot(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "does-not-exist"))
	_, err := s.Find(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindIgnoresJournals(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	dir := filepath.Join(s.Root(), "doc")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc_q1.commit"), []byte(`{}`), 0o644))

	_, err := s.Find(ctx, "q1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindUsesIndexAndDropsStaleRows(t *testing.T) {
	ctx := context.Background()
	idx := newMemIndex()
	s := newTestStore(t, WithIndex(idx))

	loc, err := s.Create(ctx, CreateParams{SourceDocument: "a.pdf", CorrelationID: "k1"})
	require.NoError(t, err)
	assert.Equal(t, "a/a_k1.json", idx.rows["k1"])

	found, err := s.Find(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, loc, found)

	// Moved behind the store's back: the scan still finds it and the row is dropped.
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), "b"), 0o755))
	moved := filepath.Join(s.Root(), "b", "a_k1.json")
	require.NoError(t, os.Rename(loc.Path, moved))

	found, err = s.Find(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, moved, found.Path)
	_, ok := idx.rows["k1"]
	assert.False(t, ok)
}

func TestFinalizeScenario(t *testing.T) {
	ctx := context.Background()
	idx := newMemIndex()
	s := newTestStore(t, WithIndex(idx))

	_, err := s.Create(ctx, CreateParams{SourceDocument: "invoice.pdf", CorrelationID: "abc123"})
	require.NoError(t, err)

	body := decode(t, `{"request_id":"abc123","data":[{"data":{"document_type":"invoice","amount":100}}]}`)
	finalData, ok := payload.FinalData(body)
	require.True(t, ok)

	loc, err := s.Find(ctx, "abc123")
	require.NoError(t, err)
	final, err := s.Finalize(ctx, loc, "abc123", finalData)
	require.NoError(t, err)

	want := filepath.Join(s.Root(), "invoice", "invoice__schema_invoice.json")
	assert.Equal(t, want, final.Path)
	assert.Equal(t, "invoice__schema_invoice.json", final.Filename)
	assert.Equal(t, map[string]any{"amount": float64(100)}, readJSON(t, want))

	assert.NoFileExists(t, loc.Path)
	assert.NoFileExists(t, filepath.Join(s.Root(), "invoice", "invoice_abc123.commit"))
	assert.Empty(t, idx.rows)
	assert.Contains(t, finalData, "document_type", "caller's data must not be mutated")

	// A second delivery of the same callback no longer matches and goes standalone.
	_, err = s.Find(ctx, "abc123")
	require.ErrorIs(t, err, ErrNotFound)
	standalone, err := s.Standalone(ctx, body, finalData)
	require.NoError(t, err)
	assert.FileExists(t, standalone.Path)
	assert.FileExists(t, want)
}

func TestFinalizeWithoutClassificationAndPages(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	loc, err := s.Create(ctx, CreateParams{SourceDocument: "555322.pdf", Pages: []int{1}, CorrelationID: "r1"})
	require.NoError(t, err)

	final, err := s.Finalize(ctx, loc, "r1", payload.Document{"total": "5"})
	require.NoError(t, err)
	assert.Equal(t, "555322_1.json", final.Filename)
	assert.Equal(t, "555322", final.Dir)
}

func TestFinalizeLegacyFlatRecord(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	legacy := filepath.Join(s.Root(), "old.pdf_1_z9.json")
	require.NoError(t, os.WriteFile(legacy, []byte(`{"status":"pending"}`), 0o644))

	loc, err := s.Find(ctx, "z9")
	require.NoError(t, err)
	final, err := s.Finalize(ctx, loc, "z9", payload.Document{"document_type": "receipt", "n": 1})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(s.Root(), "old.pdf_1__schema_receipt.json"), final.Path)
	assert.Equal(t, map[string]any{"n": float64(1)}, readJSON(t, final.Path))
}

func TestTerminalFilename(t *testing.T) {
	tests := []struct {
		pending, id, class, want string
	}{
		{"invoice_abc123.json", "abc123", "invoice", "invoice__schema_invoice.json"},
		{"invoice_abc123.json", "abc123", "", "invoice.json"},
		{"555322.pdf_1_r1.json", "r1", "bmw/form", "555322.pdf_1__schema_bmw_form.json"},
		{"doc_2-4_id.json", "id", "", "doc_2-4.json"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TerminalFilename(tt.pending, tt.id, tt.class))
	}
}

func TestStandaloneNaming(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		body       string
		wantDir    string
		wantFile   string
		wantStored map[string]any
	}{
		{
			name:       "filename field",
			body:       `{"filename":"report.json","data":[{"data":{"a":"1"}}]}`,
			wantDir:    "report",
			wantFile:   "report.json",
			wantStored: map[string]any{"a": "1"},
		},
		{
			name:       "filename without json extension",
			body:       `{"filename":"scan.pdf"}`,
			wantDir:    "scan.pdf",
			wantFile:   "scan.pdf.json",
			wantStored: map[string]any{"filename": "scan.pdf"},
		},
		{
			name:       "id field with classification",
			body:       `{"id":42,"data":[{"data":{"document_type":"invoice","x":true}}]}`,
			wantDir:    "42_invoice",
			wantFile:   "42_invoice.json",
			wantStored: map[string]any{"x": true},
		},
		{
			name:       "timestamp fallback",
			body:       `{"request_id":"zzz"}`,
			wantDir:    "2026-10-19_08-30-15.123",
			wantFile:   "2026-10-19_08-30-15.123.json",
			wantStored: map[string]any{"request_id": "zzz"},
		},
		{
			name:       "unsafe filename",
			body:       `{"filename":"a/b:c.json"}`,
			wantDir:    "a_b_c",
			wantFile:   "a_b_c.json",
			wantStored: map[string]any{"filename": "a/b:c.json"},
		},
		{
			name:       "parent directory filename",
			body:       `{"filename":".."}`,
			wantDir:    "_",
			wantFile:   "...json",
			wantStored: map[string]any{"filename": ".."},
		},
		{
			name:       "current directory filename",
			body:       `{"filename":"."}`,
			wantDir:    "_",
			wantFile:   "..json",
			wantStored: map[string]any{"filename": "."},
		},
		{
			name:       "extension only filename",
			body:       `{"filename":".json"}`,
			wantDir:    "_",
			wantFile:   ".json",
			wantStored: map[string]any{"filename": ".json"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			body := decode(t, tt.body)
			finalData, _ := payload.FinalData(body)

			loc, err := s.Standalone(ctx, body, finalData)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDir, loc.Dir)
			assert.Equal(t, tt.wantFile, loc.Filename)
			assert.Equal(t, filepath.Join(s.Root(), tt.wantDir, tt.wantFile), loc.Path)
			assert.Equal(t, tt.wantStored, readJSON(t, loc.Path))

			rel, err := filepath.Rel(s.Root(), loc.Path)
			require.NoError(t, err)
			assert.True(t, filepath.IsLocal(rel), "artifact escaped the store root: %s", rel)
		})
	}
}

func TestRecoverReplaysInterruptedFinalize(t *testing.T) {
	ctx := context.Background()
	idx := newMemIndex()
	s := newTestStore(t, WithIndex(idx))

	loc, err := s.Create(ctx, CreateParams{SourceDocument: "invoice.pdf", CorrelationID: "abc123"})
	require.NoError(t, err)
	_, err = s.Create(ctx, CreateParams{SourceDocument: "other.pdf", CorrelationID: "still-waiting"})
	require.NoError(t, err)

	// Crash after the journal was written, before the pending file was touched.
	j := journal{
		RequestID:   "abc123",
		PendingName: loc.Filename,
		FinalName:   "invoice__schema_invoice.json",
		Data:        payload.Document{"amount": 100},
	}
	require.NoError(t, writeJSONFile(filepath.Join(s.Root(), "invoice", "invoice_abc123.commit"), j))

	// A journal whose rename already happened.
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "invoice", "done.json"), []byte(`{}`), 0o644))
	require.NoError(t, writeJSONFile(filepath.Join(s.Root(), "invoice", "done_x.commit"), journal{
		RequestID: "x", PendingName: "done_x.json", FinalName: "done.json",
	}))

	// A journal with nothing left on disk.
	require.NoError(t, writeJSONFile(filepath.Join(s.Root(), "ghost_g.commit"), journal{
		RequestID: "g", PendingName: "ghost_g.json", FinalName: "ghost.json",
	}))

	stats, err := s.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, RecoveryStats{Replayed: 1, Cleared: 1, Orphaned: 1, Pending: 2}, stats)

	final := filepath.Join(s.Root(), "invoice", "invoice__schema_invoice.json")
	assert.Equal(t, map[string]any{"amount": float64(100)}, readJSON(t, final))
	assert.NoFileExists(t, loc.Path)
	assert.NoFileExists(t, filepath.Join(s.Root(), "invoice", "invoice_abc123.commit"))
	assert.NoFileExists(t, filepath.Join(s.Root(), "invoice", "done_x.commit"))
	assert.NoFileExists(t, filepath.Join(s.Root(), "ghost_g.commit"))

	// Idempotent: a second pass finds nothing to do.
	stats, err = s.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, RecoveryStats{Pending: 1}, stats)
}

func TestRecoverKeepsLargeIntegers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	loc, err := s.Create(ctx, CreateParams{SourceDocument: "big.pdf", CorrelationID: "n1"})
	require.NoError(t, err)
	require.NoError(t, writeJSONFile(filepath.Join(s.Root(), "big", "big_n1.commit"), journal{
		RequestID:   "n1",
		PendingName: loc.Filename,
		FinalName:   "big.json",
		Data:        decode(t, `{"account":9007199254740993,"ratio":0.1}`),
	}))

	stats, err := s.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Replayed)

	raw, err := os.ReadFile(filepath.Join(s.Root(), "big", "big.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "9007199254740993")
	assert.Contains(t, string(raw), "0.1")
}

func TestListAndReindex(t *testing.T) {
	ctx := context.Background()
	idx := newMemIndex()
	s := newTestStore(t, WithIndex(idx))

	_, err := s.Create(ctx, CreateParams{SourceDocument: "a.pdf", CorrelationID: "p1"})
	require.NoError(t, err)
	loc, err := s.Create(ctx, CreateParams{SourceDocument: "b.pdf", Pages: []int{3}, CorrelationID: "p2"})
	require.NoError(t, err)
	_, err = s.Finalize(ctx, loc, "p2", payload.Document{"document_type": "memo"})
	require.NoError(t, err)

	broken := filepath.Join(s.Root(), "c")
	require.NoError(t, os.MkdirAll(broken, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(broken, "c_p3.json"),
		[]byte(`{"status":"pending","request_id":"p3","sent_file":"c.pdf","page_numbers":[0],"created_at":"2026-01-01T00:00:00Z"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(broken, "notes.txt"), []byte("x"), 0o644))

	entries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	byFile := map[string]Entry{}
	for _, e := range entries {
		byFile[e.Filename] = e
	}
	assert.Equal(t, constants.EntryPending, byFile["a_p1.json"].Kind)
	assert.Empty(t, byFile["a_p1.json"].Problem)
	assert.Equal(t, constants.EntryFinalized, byFile["b_3__schema_memo.json"].Kind)
	assert.Equal(t, "memo", byFile["b_3__schema_memo.json"].Classification)
	assert.Equal(t, constants.EntryPending, byFile["c_p3.json"].Kind)
	assert.NotEmpty(t, byFile["c_p3.json"].Problem)

	idx.rows = map[string]string{"stale": "x/y.json"}
	n, err := s.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, map[string]string{"p1": "a/a_p1.json", "p3": "c/c_p3.json"}, idx.rows)
}

func TestReindexWithoutIndex(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Reindex(context.Background())
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestFinalizeWriteFailureLeavesPendingIntact(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	loc, err := s.Create(ctx, CreateParams{SourceDocument: "a.pdf", CorrelationID: "w1"})
	require.NoError(t, err)

	// Unencodable data fails before anything is written.
	_, err = s.Finalize(ctx, loc, "w1", payload.Document{"bad": func() {}})
	require.Error(t, err)

	found, err := s.Find(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, loc.Path, found.Path)
	assert.NoFileExists(t, filepath.Join(s.Root(), "a", "a_w1.commit"))
}
