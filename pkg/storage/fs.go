package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var (
	// ErrOpen is returned when a session file cannot be created.
	ErrOpen = errors.New("storage open failed")
	// ErrWrite is returned when rows cannot be written or flushed.
	ErrWrite = errors.New("storage write failed")
)

// File is an open session file.
type File interface {
	io.Writer
	Sync() error
	Close() error
}

// FS creates session files. Create must fail with an error wrapping
// os.ErrExist when name is already taken.
type FS interface {
	Create(name string) (File, error)
}

// OSFS stores session files in a directory of the local filesystem.
type OSFS struct {
	Dir string
}

var _ FS = OSFS{}

// Create creates name inside Dir, refusing to overwrite an existing file.
func (f OSFS) Create(name string) (File, error) {
	if err := os.MkdirAll(f.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	file, err := os.OpenFile(filepath.Join(f.Dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, err
	}
	return file, nil
}
