package catalog

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned when an item file resolves outside the root.
var ErrOutsideRoot = errors.New("item file is outside the catalog root")

// Root confines item files named by remote callers to one directory tree.
type Root struct {
	dir string
}

// NewRoot resolves dir, following symlinks. An empty dir means the working
// directory.
func NewRoot(dir string) (*Root, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve catalog root: %w", err)
	}
	eval, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve catalog root: %w", err)
	}
	return &Root{dir: eval}, nil
}

// Dir returns the resolved root directory.
func (r *Root) Dir() string {
	return r.dir
}

// Resolve maps path, relative to the root or absolute, to a file inside the
// root. Symlinks are followed before the containment check.
func (r *Root) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("path cannot be empty")
	}
	p := filepath.Clean(path)
	if !filepath.IsAbs(p) {
		p = filepath.Join(r.dir, p)
	}
	if eval, err := filepath.EvalSymlinks(p); err == nil {
		p = eval
	} else if evalDir, derr := filepath.EvalSymlinks(filepath.Dir(p)); derr == nil {
		p = filepath.Join(evalDir, filepath.Base(p))
	}

	if !r.contains(p) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return p, nil
}

func (r *Root) contains(p string) bool {
	sep := string(filepath.Separator)
	return p == r.dir || strings.HasPrefix(p, r.dir+sep)
}
