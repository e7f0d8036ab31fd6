// Package pending implements the filesystem-backed store of dispatched jobs waiting
// for their OCR webhook, and their transition into finalized artifacts.
package pending

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/ocr-relay/constants"
	"github.com/joseph-ayodele/ocr-relay/internal/common"
)

// ErrNotFound is returned by Find when no record matches a correlation identifier.
var ErrNotFound = fmt.Errorf("pending record %w", common.ErrNotFound)

// Index maps correlation identifiers to record paths relative to the store root.
// It is a cache in front of the directory scan and can be rebuilt with Reindex.
type Index interface {
	Put(ctx context.Context, correlationID, relPath string) error
	Get(ctx context.Context, correlationID string) (string, bool, error)
	Delete(ctx context.Context, correlationID string) error
	Reset(ctx context.Context) error
}

// Store is the pending-record tree rooted at a single directory.
type Store struct {
	root   string
	index  Index
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Store)

// WithIndex puts a correlation index in front of the directory scan.
func WithIndex(idx Index) Option {
	return func(s *Store) {
		s.index = idx
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for created_at and standalone names.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(root string, opts ...Option) *Store {
	s := &Store{
		root:   root,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// EnsureRoot creates the root directory if it does not exist.
func (s *Store) EnsureRoot() error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return common.IOError("mkdir", s.root, err)
	}
	return nil
}

// Create writes a pending record for a dispatched job inside the folder named after the
// source document's stem.
func (s *Store) Create(ctx context.Context, p CreateParams) (Location, error) {
	if strings.TrimSpace(p.CorrelationID) == "" {
		return Location{}, common.NewAppError("INVALID_INPUT", "correlation id is required", common.ErrInvalidInput)
	}
	folder := SanitizeFileName(DocumentStem(p.SourceDocument))
	dir := filepath.Join(s.root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Location{}, common.IOError("mkdir", dir, err)
	}

	pages := p.Pages
	if pages == nil {
		pages = []int{}
	}
	rec := Record{
		Status:          constants.RecordStatusPending,
		RequestID:       p.CorrelationID,
		DispatchID:      p.DispatchID,
		SentFile:        filepath.Base(p.SourceDocument),
		PageNumbers:     pages,
		CreatedAt:       s.now().UTC(),
		ResponsePreview: previewJSON(p.Ack),
	}

	loc := Location{Dir: folder, Filename: PendingFilename(p.SourceDocument, p.Pages, p.CorrelationID)}
	loc.Path = filepath.Join(dir, loc.Filename)
	if err := writeJSONFile(loc.Path, rec); err != nil {
		return Location{}, err
	}

	if s.index != nil {
		if err := s.index.Put(ctx, p.CorrelationID, s.rel(loc)); err != nil {
			s.logger.Warn("pending.index.put_failed", "request_id", p.CorrelationID, "error", err)
		}
	}

	s.logger.Info("created pending record",
		"request_id", p.CorrelationID,
		"dispatch_id", p.DispatchID,
		"folder", folder,
		"file", loc.Filename,
	)
	return loc, nil
}

// Find locates the pending record for correlationID. The index is consulted first; on a
// miss every immediate subdirectory is scanned, then the root itself for records written
// before the per-document layout existed.
func (s *Store) Find(ctx context.Context, correlationID string) (Location, error) {
	needle := lookupNeedle(correlationID)

	if loc, ok := s.findIndexed(ctx, correlationID, needle); ok {
		return loc, nil
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Location{}, ErrNotFound
		}
		return Location{}, common.IOError("scan", s.root, err)
	}

	for _, folder := range entries {
		if !folder.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Location{}, err
		}
		dir := filepath.Join(s.root, folder.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			return Location{}, common.IOError("scan", dir, err)
		}
		if name, ok := firstMatch(files, needle); ok {
			return Location{Dir: folder.Name(), Filename: name, Path: filepath.Join(dir, name)}, nil
		}
	}

	if name, ok := firstMatch(entries, needle); ok {
		return Location{Filename: name, Path: filepath.Join(s.root, name)}, nil
	}
	return Location{}, ErrNotFound
}

func (s *Store) findIndexed(ctx context.Context, correlationID, needle string) (Location, bool) {
	if s.index == nil {
		return Location{}, false
	}
	rel, ok, err := s.index.Get(ctx, correlationID)
	if err != nil {
		s.logger.Warn("pending.index.get_failed", "request_id", correlationID, "error", err)
		return Location{}, false
	}
	if !ok {
		return Location{}, false
	}
	loc := s.locate(rel)
	if strings.Contains(loc.Filename, needle) && fileExists(loc.Path) {
		return loc, true
	}
	// Stale row: the tree is the source of truth.
	if err := s.index.Delete(ctx, correlationID); err != nil {
		s.logger.Warn("pending.index.delete_failed", "request_id", correlationID, "error", err)
	}
	return Location{}, false
}

func (s *Store) rel(loc Location) string {
	if loc.Dir == "" {
		return loc.Filename
	}
	return filepath.ToSlash(filepath.Join(loc.Dir, loc.Filename))
}

func (s *Store) locate(rel string) Location {
	rel = filepath.FromSlash(rel)
	dir, name := filepath.Split(rel)
	dir = strings.TrimSuffix(dir, string(filepath.Separator))
	return Location{Dir: dir, Filename: name, Path: filepath.Join(s.root, rel)}
}

func (s *Store) dirPath(loc Location) string {
	if loc.Dir == "" {
		return s.root
	}
	return filepath.Join(s.root, loc.Dir)
}

func firstMatch(entries []os.DirEntry, needle string) (string, bool) {
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.Contains(e.Name(), needle) {
			return e.Name(), true
		}
	}
	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func writeJSONFile(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return common.WrapError(err, "encode "+filepath.Base(path))
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return common.IOError("write", path, err)
	}
	return nil
}

func readJSONFile(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return common.IOError("read", path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
