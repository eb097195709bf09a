package common

import (
	"path/filepath"
	"strings"
)

// HiddenPrefix marks hidden files and directories
const HiddenPrefix = "."

// PathUtils provides path manipulation utilities used across filesystem packages
type PathUtils struct{}

// NewPathUtils creates a new PathUtils instance
func NewPathUtils() *PathUtils {
	return &PathUtils{}
}

// NormalizePath normalizes a file path for cross-platform compatibility
func (pu *PathUtils) NormalizePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(abs)
}

// RelativeSlash returns target relative to base using forward slashes, the form
// gitignore patterns are written against. ok is false when target is outside base.
func (pu *PathUtils) RelativeSlash(base, target string) (rel string, ok bool) {
	r, err := filepath.Rel(base, target)
	if err != nil || r == "." || strings.HasPrefix(r, "..") {
		return "", false
	}
	return filepath.ToSlash(r), true
}

// IsHidden reports whether a directory entry name is hidden
func (pu *PathUtils) IsHidden(name string) bool {
	return strings.HasPrefix(name, HiddenPrefix)
}
