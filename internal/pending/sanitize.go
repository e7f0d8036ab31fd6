package pending

import "strings"

var fileNameReplacer = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_", "/", "_",
	`\`, "_", "|", "_", "?", "_", "*", "_", "\x00", "_",
)

// safeSegment keeps a path segment inside its parent: "", "." and ".." become "_".
func safeSegment(name string) string {
	if strings.Trim(name, ".") == "" {
		return "_"
	}
	return name
}

// SanitizeFileName replaces characters that are illegal in filenames with "_".
func SanitizeFileName(name string) string {
	return fileNameReplacer.Replace(name)
}
