package dispatch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joseph-ayodele/ocr-relay/constants"
	"github.com/joseph-ayodele/ocr-relay/internal/common"
)

// Source is a PDF found in the source directory.
type Source struct {
	Path      string
	Name      string
	PageCount int
}

type PageCounter interface {
	PageCount(path string) (int, error)
}

// PlanConfig is the page-selection policy.
type PlanConfig struct {
	SplitEnabled  bool
	SplitPages    []int
	SelectedPages []int
}

// ListSources returns the PDFs directly inside dir, sorted by name, with their page
// counts. A document whose pages cannot be counted is listed with PageCount 0.
func ListSources(dir string, counter PageCounter, logger *slog.Logger) ([]Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(dir) == "" {
		return nil, common.NewAppError("INVALID_INPUT", "source directory is required", common.ErrInvalidInput)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.NewAppError("NOT_FOUND", fmt.Sprintf("source directory %s", dir), common.ErrNotFound)
		}
		return nil, common.IOError("scan", dir, err)
	}

	var out []Source
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || isSkipped(name) {
			continue
		}
		if _, ok := constants.AllowedExtensions[constants.NormalizeExt(filepath.Ext(name))]; !ok {
			continue
		}
		src := Source{Path: filepath.Join(dir, name), Name: name}
		if counter != nil {
			n, err := counter.PageCount(src.Path)
			if err != nil {
				logger.Error("failed to count pages", "file", name, "error", err)
			} else {
				src.PageCount = n
			}
		}
		out = append(out, src)
	}
	slices.SortFunc(out, func(a, b Source) int { return strings.Compare(a.Name, b.Name) })

	logger.Info("listed source documents", "dir", dir, "count", len(out))
	return out, nil
}

func isSkipped(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, ignored := constants.IgnoredFiles[strings.ToLower(name)]
	return ignored
}

// BuildPlan expands the sources into jobs according to the page-selection policy:
//   - split with fixed pages: one job per document and page
//   - split without pages: one job per page 1..PageCount of each document
//   - no split: one job per document, whole or restricted to SelectedPages
func BuildPlan(sources []Source, cfg PlanConfig) []JobRequest {
	var jobs []JobRequest
	for _, src := range sources {
		switch {
		case cfg.SplitEnabled && len(cfg.SplitPages) > 0:
			for _, p := range cfg.SplitPages {
				jobs = append(jobs, NewJobRequest(src.Path, []int{p}))
			}
		case cfg.SplitEnabled:
			for p := 1; p <= src.PageCount; p++ {
				jobs = append(jobs, NewJobRequest(src.Path, []int{p}))
			}
		case len(cfg.SelectedPages) > 0:
			jobs = append(jobs, NewJobRequest(src.Path, slices.Clone(cfg.SelectedPages)))
		default:
			jobs = append(jobs, NewJobRequest(src.Path, nil))
		}
	}
	return jobs
}
