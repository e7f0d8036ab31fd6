// Package dispatch sends PDF documents, whole or page by page, to the OCR service and
// records a pending marker for every acknowledged job.
package dispatch

import (
	"encoding/base64"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/ocr-relay/constants"
	"github.com/joseph-ayodele/ocr-relay/internal/pending"
)

// JobRequest is one outbound unit of work.
type JobRequest struct {
	SourceDocument string
	// Pages are 1-indexed, in send order. Empty sends the whole document.
	Pages      []int
	DispatchID string
}

func NewJobRequest(sourceDocument string, pages []int) JobRequest {
	return JobRequest{
		SourceDocument: sourceDocument,
		Pages:          pages,
		DispatchID:     uuid.New().String(),
	}
}

// FileName is the source document's base name, extension included.
func (j JobRequest) FileName() string {
	return filepath.Base(j.SourceDocument)
}

// Label is the name announced to the OCR service: the file name, suffixed with
// "_<pages>" when only some pages are sent.
func (j JobRequest) Label() string {
	if len(j.Pages) == 0 {
		return j.FileName()
	}
	return j.FileName() + "_" + pending.PageLabel(j.Pages)
}

// EncodedLabel is Label in standard base64.
func (j JobRequest) EncodedLabel() string {
	return base64.StdEncoding.EncodeToString([]byte(j.Label()))
}

func (j JobRequest) pagesSuffix() string {
	if len(j.Pages) == 0 {
		return ""
	}
	return constants.PagesInfix + pending.PageLabel(j.Pages)
}

// artifactStem names the snapshot and temp PDF: "<stem>[_pages_<list>]".
func (j JobRequest) artifactStem() string {
	return pending.DocumentStem(j.SourceDocument) + j.pagesSuffix()
}

// errorLogName names the diagnostic: "<file>[_pages_<list>].error.log".
func (j JobRequest) errorLogName() string {
	return j.FileName() + j.pagesSuffix() + constants.ErrorLogExt
}

func (j JobRequest) describe() string {
	if len(j.Pages) == 0 {
		return j.FileName()
	}
	return j.FileName() + " (pages " + strings.ReplaceAll(pending.PageLabel(j.Pages), "-", ", ") + ")"
}
