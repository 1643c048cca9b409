package store

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// FileBackend stores the snapshot as a JSON document. Writes go to a temp file
// in the same directory and are renamed into place, so a concurrent reader sees
// either the old or the new document, never a truncated one. Each
// read-modify-write holds an advisory lock on <path>.lock.
type FileBackend struct {
	path string
}

// NewFileBackend creates the parent directory and returns a backend for path.
// The file itself is created on first write.
func NewFileBackend(path string) (*FileBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating stats directory: %w", err)
	}
	return &FileBackend{path: path}, nil
}

func (b *FileBackend) Location() string { return b.path }

func (b *FileBackend) Close() error { return nil }

func (b *FileBackend) Load() (*Snapshot, error) {
	return b.read(false)
}

func (b *FileBackend) Update(fn func(*Snapshot) bool) error {
	unlock, err := lockFile(b.path + ".lock")
	if err != nil {
		return fmt.Errorf("locking stats file: %w", err)
	}
	defer unlock()

	snap, err := b.read(true)
	if err != nil {
		return err
	}
	if !fn(snap) {
		return nil
	}
	return b.write(snap)
}

// read loads the document. Unparseable content is logged and treated as empty;
// when locked, the bad file is also moved aside so the next write replaces it
// without destroying the evidence.
func (b *FileBackend) read(locked bool) (*Snapshot, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return newSnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading stats file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return newSnapshot(), nil
	}

	snap, err := decodeSnapshot(data)
	if err != nil {
		slog.Warn("stats file unparseable, starting empty", "path", b.path, "error", err)
		if locked {
			if rerr := os.Rename(b.path, b.path+".corrupt"); rerr != nil {
				slog.Warn("failed to move corrupt stats file aside", "path", b.path, "error", rerr)
			}
		}
		return newSnapshot(), nil
	}
	return snap, nil
}

func (b *FileBackend) write(snap *Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(b.path), "."+filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp stats file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("writing stats file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("syncing stats file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing stats file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o640); err != nil {
		cleanup()
		return fmt.Errorf("chmod stats file: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		cleanup()
		return fmt.Errorf("replacing stats file: %w", err)
	}
	return nil
}
