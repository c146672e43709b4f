package saver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps one JSON file per slot in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create save dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the file backing a slot.
func (f *FileStore) Path(slot int) string {
	return filepath.Join(f.dir, fmt.Sprintf("save_slot_%d.json", slot))
}

func (f *FileStore) Put(_ context.Context, slot int, payload []byte) error {
	tmp, err := os.CreateTemp(f.dir, ".save_slot_*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.Path(slot))
}

func (f *FileStore) Get(_ context.Context, slot int) ([]byte, error) {
	b, err := os.ReadFile(f.Path(slot))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSave
	}
	return b, err
}

func (f *FileStore) Delete(_ context.Context, slot int) error {
	err := os.Remove(f.Path(slot))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNoSave
	}
	return err
}
