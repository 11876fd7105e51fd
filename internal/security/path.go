package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathDenied indicates a path resolved outside the allowed roots.
var ErrPathDenied = errors.New("path outside allowed directories")

// Path validates file paths against a set of allowed directory roots.
// It guards against traversal (CWE-22) and symlinks escaping the roots.
type Path struct {
	roots []string
}

// NewPath creates a path validator. The current working directory is always
// an allowed root; extraRoots adds more (e.g. the projects directory).
func NewPath(extraRoots ...string) (*Path, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}

	roots := make([]string, 0, len(extraRoots)+1)
	roots = append(roots, filepath.Clean(workDir))
	for _, dir := range extraRoots {
		if dir == "" {
			continue
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("resolving root %s: %w", dir, err)
		}
		roots = append(roots, filepath.Clean(abs))
	}

	return &Path{roots: roots}, nil
}

// Validate cleans and resolves path, returning the absolute path if it lies
// within an allowed root. Symlink targets are resolved and re-checked; a
// path whose final component does not exist yet is accepted as long as it
// stays inside a root.
func (p *Path) Validate(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	if !p.within(abs) {
		return "", fmt.Errorf("%w: %s", ErrPathDenied, abs)
	}

	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return abs, nil
		}
		return "", fmt.Errorf("resolving symlinks: %w", err)
	}
	if real != abs && !p.within(real) {
		return "", fmt.Errorf("%w: symlink target %s", ErrPathDenied, real)
	}
	return real, nil
}

func (p *Path) within(abs string) bool {
	withSep := abs + string(filepath.Separator)
	for _, root := range p.roots {
		if abs == root || strings.HasPrefix(withSep, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
