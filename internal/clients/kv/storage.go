// Package kv holds the key-value notes backend: the whole collection lives
// in one serialised blob under a fixed key of a Storage.
package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// DefaultKey is the key the notes blob is stored under.
const DefaultKey = "viterbi_notes"

// Storage is a string key-value store in the manner of the browser's
// localStorage.
type Storage interface {
	// GetItem reports ok == false when key has never been set.
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, key, value string) error
}

var validKey = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ErrInvalidKey is returned for keys that cannot be mapped to a file name.
var ErrInvalidKey = errors.New("invalid storage key")

var errNullBlob = errors.New("stored blob is null")

// FileStorage keeps one file per key inside a directory
type FileStorage struct {
	dir string
}

// NewFileStorage creates dir if needed and returns a storage rooted there
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

func (s *FileStorage) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

// GetItem reads the value stored under key
func (s *FileStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	p, err := s.path(key)
	if err != nil {
		return "", false, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

// SetItem replaces the value stored under key. The write goes to a
// temporary file renamed over the old one, so readers never see half a blob.
func (s *FileStorage) SetItem(_ context.Context, key, value string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}
