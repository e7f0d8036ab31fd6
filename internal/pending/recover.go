package pending

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/ocr-relay/constants"
	"github.com/joseph-ayodele/ocr-relay/internal/common"
)

// Entry is one file of the pending tree.
type Entry struct {
	Location
	Kind constants.EntryKind
	// Record is set for pending entries.
	Record *Record
	// Classification is parsed from a finalized filename's __schema_ suffix.
	Classification string
	ModTime        time.Time
	// Problem describes a record that failed decoding or schema validation.
	Problem string
}

// RecoveryStats summarizes a Recover pass.
type RecoveryStats struct {
	Replayed int // journal applied: pending file rewritten and renamed
	Cleared  int // rename had happened, stale journal removed
	Orphaned int // neither file present, journal dropped
	Failed   int
	Pending  int // records still waiting for a webhook
}

// List returns every record file in the tree, per-document folders first, then the flat root.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	var out []Entry
	err := s.walk(ctx, func(folder, dir string, info os.FileInfo) error {
		entry, ok := s.classify(folder, dir, info)
		if ok {
			out = append(out, entry)
		}
		return nil
	})
	return out, err
}

// Recover finishes finalize operations interrupted between writing the journal and
// removing it. Records without a journal are left pending.
func (s *Store) Recover(ctx context.Context) (RecoveryStats, error) {
	var stats RecoveryStats
	entries, err := s.List(ctx)
	if err != nil {
		return stats, err
	}

	var errs []error
	for _, e := range entries {
		switch e.Kind {
		case constants.EntryPending:
			stats.Pending++
		case constants.EntryJournal:
			if err := s.replay(ctx, e, &stats); err != nil {
				stats.Failed++
				errs = append(errs, err)
				s.logger.Error("pending.recover.failed", "path", e.Path, "error", err)
			}
		}
	}

	s.logger.Info("pending store recovery complete",
		"replayed", stats.Replayed,
		"cleared", stats.Cleared,
		"orphaned", stats.Orphaned,
		"failed", stats.Failed,
		"pending", stats.Pending,
	)
	return stats, errors.Join(errs...)
}

func (s *Store) replay(ctx context.Context, e Entry, stats *RecoveryStats) error {
	var j journal
	if err := readJSONFile(e.Path, &j); err != nil {
		return err
	}
	dir := s.dirPath(e.Location)
	switch {
	case fileExists(filepath.Join(dir, j.PendingName)):
		loc, err := s.commit(ctx, dir, e.Dir, j)
		if err != nil {
			return err
		}
		stats.Replayed++
		s.logger.Info("replayed interrupted finalize", "request_id", j.RequestID, "file", loc.Filename)
	case fileExists(filepath.Join(dir, j.FinalName)):
		if err := os.Remove(e.Path); err != nil {
			return common.IOError("remove", e.Path, err)
		}
		stats.Cleared++
	default:
		if err := os.Remove(e.Path); err != nil {
			return common.IOError("remove", e.Path, err)
		}
		stats.Orphaned++
		s.logger.Warn("dropped orphaned finalize journal", "request_id", j.RequestID, "path", e.Path)
	}
	return nil
}

// Reindex rebuilds the correlation index from the pending records on disk.
func (s *Store) Reindex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, common.NewAppError("INDEX_DISABLED", "no correlation index configured", common.ErrInvalidInput)
	}
	entries, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.index.Reset(ctx); err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.Kind != constants.EntryPending || e.Record == nil {
			continue
		}
		if err := s.index.Put(ctx, e.Record.RequestID, s.rel(e.Location)); err != nil {
			return n, err
		}
		n++
	}
	s.logger.Info("rebuilt correlation index", "records", n)
	return n, nil
}

// walk visits the files of every immediate subdirectory, then the root's own files.
func (s *Store) walk(ctx context.Context, fn func(folder, dir string, info os.FileInfo) error) error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return common.IOError("scan", s.root, err)
	}

	visit := func(folder, dir string, files []os.DirEntry) error {
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			info, err := f.Info()
			if err != nil {
				continue
			}
			if err := fn(folder, dir, info); err != nil {
				return err
			}
		}
		return nil
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		dir := filepath.Join(s.root, e.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			return common.IOError("scan", dir, err)
		}
		if err := visit(e.Name(), dir, files); err != nil {
			return err
		}
	}
	return visit("", s.root, entries)
}

func (s *Store) classify(folder, dir string, info os.FileInfo) (Entry, bool) {
	name := info.Name()
	entry := Entry{
		Location: Location{Dir: folder, Filename: name, Path: filepath.Join(dir, name)},
		ModTime:  info.ModTime(),
	}

	switch {
	case strings.HasSuffix(name, constants.JournalExt):
		entry.Kind = constants.EntryJournal
		return entry, true
	case !strings.HasSuffix(name, constants.JSONExt):
		return entry, false
	}

	raw, err := os.ReadFile(entry.Path)
	if err != nil {
		entry.Kind = constants.EntryFinalized
		entry.Problem = err.Error()
		return entry, true
	}

	var rec Record
	if json.Unmarshal(raw, &rec) == nil &&
		rec.Status == constants.RecordStatusPending &&
		rec.RequestID != "" &&
		strings.Contains(name, lookupNeedle(rec.RequestID)) {
		entry.Kind = constants.EntryPending
		entry.Record = &rec
		if err := ValidateRecordJSON(raw); err != nil {
			entry.Problem = err.Error()
		}
		return entry, true
	}

	entry.Kind = constants.EntryFinalized
	if i := strings.LastIndex(name, constants.SchemaInfix); i >= 0 {
		entry.Classification = strings.TrimSuffix(name[i+len(constants.SchemaInfix):], constants.JSONExt)
	}
	return entry, true
}
