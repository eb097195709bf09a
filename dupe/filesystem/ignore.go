package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"
)

// ignoreMatcher matches root-relative, slash-separated paths
type ignoreMatcher interface {
	matches(rel string, isDir bool) bool
}

type gitIgnoreMatcher struct {
	gi *ignore.GitIgnore
}

func (m *gitIgnoreMatcher) matches(rel string, isDir bool) bool {
	if m.gi.MatchesPath(rel) {
		return true
	}
	// directory-only patterns ("cache/") need the trailing slash to match
	return isDir && m.gi.MatchesPath(rel+"/")
}

// loadIgnoreFile compiles root/name. A missing file, or an empty name, is not an
// error and yields a nil matcher.
func loadIgnoreFile(root, name string) (ignoreMatcher, error) {
	if name == "" {
		return nil, nil
	}
	path := filepath.Join(root, name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat ignore file %s: %w", path, err)
	}

	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to compile ignore file %s: %w", path, err)
	}
	return &gitIgnoreMatcher{gi: gi}, nil
}
