package pending

import (
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/ocr-relay/constants"
)

// Record is the write-ahead marker created after the OCR service acknowledged a job.
type Record struct {
	Status          constants.RecordStatus `json:"status"`
	RequestID       string                 `json:"request_id"`
	DispatchID      string                 `json:"dispatch_id,omitempty"`
	SentFile        string                 `json:"sent_file"`
	PageNumbers     []int                  `json:"page_numbers"`
	CreatedAt       time.Time              `json:"created_at"`
	ResponsePreview json.RawMessage        `json:"response_preview,omitempty"`
}

// CreateParams describes a successful dispatch.
type CreateParams struct {
	SourceDocument string
	Pages          []int
	CorrelationID  string
	DispatchID     string
	// Ack is the raw acknowledgment body returned by the OCR service.
	Ack []byte
}

// Location identifies a record file. Dir is the per-document folder name, empty for
// records in the legacy flat layout.
type Location struct {
	Dir      string
	Filename string
	Path     string
}

// PageLabel joins page numbers with "-" ("2-4").
func PageLabel(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, "-")
}

// DocumentStem is the source file's base name without its extension.
func DocumentStem(sourceDocument string) string {
	base := filepath.Base(sourceDocument)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// PendingFilename is "<stem>[_<pages>]_<correlationId>.json", sanitized.
func PendingFilename(sourceDocument string, pages []int, correlationID string) string {
	name := DocumentStem(sourceDocument)
	if len(pages) > 0 {
		name += "_" + PageLabel(pages)
	}
	return SanitizeFileName(name) + idSegment(correlationID) + constants.JSONExt
}

// TerminalFilename removes the first "_<correlationId>" segment and, when a
// classification is known, inserts "__schema_<classification>" before the extension.
func TerminalFilename(pendingFilename, correlationID, classification string) string {
	name := strings.Replace(pendingFilename, idSegment(correlationID), "", 1)
	if classification == "" {
		return name
	}
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + constants.SchemaInfix + SanitizeFileName(classification) + ext
}

func idSegment(correlationID string) string {
	return "_" + SanitizeFileName(correlationID)
}

// lookupNeedle is the substring a pending filename must contain to match correlationID.
// Matching is by substring, so an identifier that ends another identifier can collide.
func lookupNeedle(correlationID string) string {
	return idSegment(correlationID) + constants.JSONExt
}

func journalName(pendingFilename string) string {
	return strings.TrimSuffix(pendingFilename, constants.JSONExt) + constants.JournalExt
}

func previewJSON(ack []byte) json.RawMessage {
	if len(ack) == 0 {
		return nil
	}
	if json.Valid(ack) {
		return json.RawMessage(ack)
	}
	b, err := json.Marshal(string(ack))
	if err != nil {
		return nil
	}
	return b
}
