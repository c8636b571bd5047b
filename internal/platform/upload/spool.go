// Package upload spools multipart uploads to uniquely named temporary files.
package upload

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Spooler writes uploads into a single directory.
type Spooler struct {
	dir string
}

// File is a spooled upload.
type File struct {
	Path string // location on disk
	Name string // name sent by the client
	Size int64
}

// NewSpooler creates dir if needed. An empty dir uses the OS temp directory.
func NewSpooler(dir string) (*Spooler, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}
	return &Spooler{dir: dir}, nil
}

// Dir returns the spool directory.
func (s *Spooler) Dir() string { return s.dir }

// Save copies r into a new file. The file name never derives from the client name
// other than its extension, so concurrent uploads with the same name never collide.
func (s *Spooler) Save(r io.Reader, originalName string) (*File, error) {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	path := filepath.Join(s.dir, "upload-"+uuid.NewString()+ext)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create spool file: %w", err)
	}
	n, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to write spool file: %w", err)
	}
	return &File{Path: path, Name: originalName, Size: n}, nil
}

// Remove deletes the spooled file. Removing an already missing file is not an error.
func (f *File) Remove() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// RemoveQuietly deletes the file and logs a failure instead of returning it.
func (f *File) RemoveQuietly() {
	if err := f.Remove(); err != nil {
		slog.Warn("failed to remove spooled upload", "path", f.Path, "error", err)
	}
}
