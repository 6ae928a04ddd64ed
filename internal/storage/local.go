package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"medstore/m/domain"
)

// LocalStore writes files under a directory.
type LocalStore struct {
	dir string
	log *zap.Logger
}

func NewLocalStore(dir string, log *zap.Logger) (*LocalStore, error) {
	if dir == "" {
		return nil, errors.New("storage directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LocalStore{dir: dir, log: log.Named("storage")}, nil
}

func (s *LocalStore) Save(_ context.Context, filename, _ string, r io.Reader) (string, error) {
	key := NewKey(filename)
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, key)); err != nil {
		return "", fmt.Errorf("store %s: %w", key, err)
	}
	s.log.Info("file stored", zap.String("key", key), zap.Int64("bytes", n))
	return key, nil
}

func (s *LocalStore) Open(_ context.Context, key string) (io.ReadCloser, string, error) {
	if err := checkKey(key); err != nil {
		return nil, "", err
	}
	f, err := os.Open(filepath.Join(s.dir, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("storage key %q: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, "", err
	}
	return f, contentTypeOf(key, ""), nil
}

func (s *LocalStore) Exists(_ context.Context, key string) (bool, error) {
	if !ValidKey(key) {
		return false, nil
	}
	_, err := os.Stat(filepath.Join(s.dir, key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}
