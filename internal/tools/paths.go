package tools

import (
	"path/filepath"
	"strings"
)

// resolvePath makes path absolute against cwd if it is not already.
func resolvePath(cwd, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(cwd, path))
}

// DisplayPath renders an absolute path relative to cwd with a "./" prefix
// when the file lives directly in cwd, or the absolute path otherwise
// (spec §4.1 Read, §4.9 title normalization, P10).
func DisplayPath(cwd, path string) string {
	rel, err := filepath.Rel(cwd, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	if !strings.Contains(rel, string(filepath.Separator)) {
		return "./" + rel
	}
	return rel
}
