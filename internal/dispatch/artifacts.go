package dispatch

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/ocr-relay/constants"
	"github.com/joseph-ayodele/ocr-relay/internal/common"
)

const (
	snapshotDir = "json"
	errorDir    = "error"
	tempDir     = "temp"
)

// Artifacts writes the dispatcher's diagnostic files under a result directory:
// acknowledgment snapshots in json/, failures in error/, extracted PDFs in temp/.
type Artifacts struct {
	root string
	now  func() time.Time
}

func NewArtifacts(root string) *Artifacts {
	return &Artifacts{root: root, now: time.Now}
}

// EnsureDirs creates the result subdirectories.
func (a *Artifacts) EnsureDirs() error {
	for _, d := range []string{snapshotDir, errorDir, tempDir} {
		dir := filepath.Join(a.root, d)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return common.IOError("mkdir", dir, err)
		}
	}
	return nil
}

func (a *Artifacts) SnapshotPath(job JobRequest) string {
	return filepath.Join(a.root, snapshotDir, job.artifactStem()+constants.JSONExt)
}

func (a *Artifacts) ErrorLogPath(job JobRequest) string {
	return filepath.Join(a.root, errorDir, job.errorLogName())
}

func (a *Artifacts) TempPath(job JobRequest) string {
	return filepath.Join(a.root, tempDir, job.artifactStem()+".pdf")
}

// WriteSnapshot stores the acknowledgment as indented JSON.
func (a *Artifacts) WriteSnapshot(job JobRequest, v any) (string, error) {
	path := a.SnapshotPath(job)
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", common.WrapError(err, "encode snapshot")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", common.IOError("write", path, err)
	}
	return path, nil
}

// WriteTemp keeps a copy of an extracted PDF.
func (a *Artifacts) WriteTemp(job JobRequest, data []byte) (string, error) {
	path := a.TempPath(job)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", common.IOError("write", path, err)
	}
	return path, nil
}

// errorLog is the JSON body of a .error.log file.
type errorLog struct {
	File       string    `json:"file"`
	Pages      []int     `json:"pages,omitempty"`
	DispatchID string    `json:"dispatch_id"`
	Label      string    `json:"label"`
	Error      string    `json:"error"`
	Code       string    `json:"code,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Response   string    `json:"response,omitempty"`
	Time       time.Time `json:"time"`
}

// WriteError records a failed job.
func (a *Artifacts) WriteError(job JobRequest, jobErr error) (string, error) {
	entry := errorLog{
		File:       job.FileName(),
		Pages:      job.Pages,
		DispatchID: job.DispatchID,
		Label:      job.Label(),
		Error:      jobErr.Error(),
		Code:       common.ErrorCode(jobErr),
		Time:       a.now().UTC(),
	}
	var te *TransportError
	if errors.As(jobErr, &te) {
		entry.StatusCode = te.StatusCode
		entry.Response = string(te.Body)
	}

	path := a.ErrorLogPath(job)
	b, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return "", common.WrapError(err, "encode error log")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", common.IOError("write", path, err)
	}
	return path, nil
}
