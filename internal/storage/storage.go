// Package storage maps page paths onto files under a storage root.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrInvalidPath is returned for page paths that do not begin with "/" or
// that climb out of the storage root.
var ErrInvalidPath = errors.New("invalid page path")

// Dir is a Storage backed by a directory. The file for a page path p is
// root + p.
type Dir struct {
	root string
}

// NewDir returns a Storage rooted at root. The root must be an existing
// directory.
func NewDir(root string) (*Dir, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("storage root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage root %s is not a directory", root)
	}
	return &Dir{root: strings.TrimSuffix(root, "/")}, nil
}

// Root returns the storage root.
func (d *Dir) Root() string { return d.root }

func (d *Dir) file(p string) (string, error) {
	if !strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	if strings.Contains(p+"/", "/../") || strings.ContainsRune(p, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return d.root + filepath.FromSlash(p), nil
}

// ReadFile returns the bytes stored at p. A missing file is reported with
// an error matching fs.ErrNotExist.
func (d *Dir) ReadFile(p string) ([]byte, error) {
	f, err := d.file(p)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(f)
}

// WriteFile replaces the contents stored at p.
func (d *Dir) WriteFile(p string, data []byte) error {
	f, err := d.file(p)
	if err != nil {
		return err
	}
	return os.WriteFile(f, data, 0o644)
}

// Exists reports whether a file is stored at p.
func (d *Dir) Exists(p string) (bool, error) {
	f, err := d.file(p)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(f)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// MkdirAll creates the directory that will hold p.
func (d *Dir) MkdirAll(p string) error {
	f, err := d.file(path.Dir(p))
	if err != nil {
		return err
	}
	return os.MkdirAll(f, 0o755)
}
