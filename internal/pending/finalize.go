package pending

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/ocr-relay/constants"
	"github.com/joseph-ayodele/ocr-relay/internal/common"
	"github.com/joseph-ayodele/ocr-relay/internal/payload"
)

// standaloneTimeLayout mirrors an ISO timestamp with ':' and 'T' made filename-safe.
const standaloneTimeLayout = "2006-01-02_15-04-05.000"

// journal records a finalize in flight. It is written before the pending file is touched
// and removed once the rename is done, so Recover can finish an interrupted commit.
type journal struct {
	RequestID   string           `json:"request_id"`
	PendingName string           `json:"pending_name"`
	FinalName   string           `json:"final_name"`
	Data        payload.Document `json:"data"`
}

// Finalize turns the pending record at loc into its terminal artifact: the final data
// without the classification field is written over the record, which is then renamed to
// TerminalFilename in the same directory.
func (s *Store) Finalize(ctx context.Context, loc Location, correlationID string, finalData payload.Document) (Location, error) {
	classification, _ := payload.Classification(finalData)
	j := journal{
		RequestID:   correlationID,
		PendingName: loc.Filename,
		FinalName:   TerminalFilename(loc.Filename, correlationID, classification),
		Data:        payload.StripClassification(finalData),
	}

	dir := s.dirPath(loc)
	journalPath := filepath.Join(dir, journalName(loc.Filename))
	if err := writeJSONFile(journalPath, j); err != nil {
		return Location{}, err
	}

	final, err := s.commit(ctx, dir, loc.Dir, j)
	if err != nil {
		return Location{}, err
	}

	s.logger.Info("finalized pending record",
		"request_id", correlationID,
		"folder", loc.Dir,
		"file", final.Filename,
		"document_type", classification,
	)
	return final, nil
}

// commit applies a journal: overwrite, rename, drop the journal and the index row.
func (s *Store) commit(ctx context.Context, dir, folder string, j journal) (Location, error) {
	pendingPath := filepath.Join(dir, j.PendingName)
	finalPath := filepath.Join(dir, j.FinalName)

	if err := writeJSONFile(pendingPath, j.Data); err != nil {
		return Location{}, err
	}
	if err := os.Rename(pendingPath, finalPath); err != nil {
		return Location{}, common.IOError("rename", pendingPath, err)
	}

	journalPath := filepath.Join(dir, journalName(j.PendingName))
	if err := os.Remove(journalPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		// The artifact is already final; a leftover journal is cleared by Recover.
		s.logger.Warn("pending.journal.remove_failed", "path", journalPath, "error", err)
	}

	if s.index != nil {
		if err := s.index.Delete(ctx, j.RequestID); err != nil {
			s.logger.Warn("pending.index.delete_failed", "request_id", j.RequestID, "error", err)
		}
	}
	return Location{Dir: folder, Filename: j.FinalName, Path: finalPath}, nil
}

// Standalone writes a finalized artifact for a callback that matched no pending record.
// The name comes from payload.filename, then "<payload.id>.json", then the current time.
func (s *Store) Standalone(ctx context.Context, p payload.Document, finalData payload.Document) (Location, error) {
	base, ok := payload.Field(p, "filename")
	if !ok {
		if id, ok := payload.Field(p, "id"); ok {
			base = id + constants.JSONExt
		} else {
			base = s.now().UTC().Format(standaloneTimeLayout) + constants.JSONExt
		}
	}
	if !strings.HasSuffix(base, constants.JSONExt) {
		base += constants.JSONExt
	}
	if classification, ok := payload.Classification(finalData); ok {
		ext := filepath.Ext(base)
		base = strings.TrimSuffix(base, ext) + "_" + classification + ext
	}

	filename := SanitizeFileName(base)
	folder := safeSegment(SanitizeFileName(strings.TrimSuffix(filename, filepath.Ext(filename))))
	dir := filepath.Join(s.root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Location{}, common.IOError("mkdir", dir, err)
	}

	loc := Location{Dir: folder, Filename: filename, Path: filepath.Join(dir, filename)}
	if err := writeJSONFile(loc.Path, payload.StripClassification(finalData)); err != nil {
		return Location{}, err
	}
	s.logger.Info("saved standalone artifact", append(common.LogAttrs(ctx), "folder", folder, "file", filename)...)
	return loc, nil
}
