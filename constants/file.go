package constants

import "strings"

const (
	// JSONExt is the extension of every record the pending store writes.
	JSONExt = ".json"
	// JournalExt marks a finalize that has not been committed yet.
	JournalExt = ".commit"
	// ErrorLogExt is appended to per-job diagnostic artifacts.
	ErrorLogExt = ".error.log"
	// SchemaInfix precedes the classification in a finalized filename.
	SchemaInfix = "__schema_"
	// PagesInfix precedes the page list in dispatcher artifact names.
	PagesInfix = "_pages_"
)

// AllowedExtensions holds the source document extensions the dispatcher sends.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// IgnoredFiles are skipped when listing a source directory.
var IgnoredFiles = map[string]struct{}{
	"desktop.ini": {},
	"thumbs.db":   {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
