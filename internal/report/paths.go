package report

import (
	"fmt"
	"path/filepath"
	"strings"
)

// maxNameLen caps the parameter-derived part of an output filename.
const maxNameLen = 64

// sanitizeName maps a parameter name onto [A-Za-z0-9._-], collapsing runs of
// other characters into one underscore.
func sanitizeName(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxNameLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "param"
	}
	return out
}

// outputPath joins dir with prefix_name.ext and rejects results that would
// land outside dir.
func outputPath(dir, prefix, name, ext string) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("%s_%s%s", prefix, sanitizeName(name), ext))
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("output path %s escapes %s", path, dir)
	}
	return path, nil
}
