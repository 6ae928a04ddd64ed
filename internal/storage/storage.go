// Package storage keeps uploaded prescription files.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"medstore/m/domain"
)

// Store saves and serves files by opaque key.
type Store interface {
	Save(ctx context.Context, filename, contentType string, r io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

var keyPattern = regexp.MustCompile(`^[0-9a-f-]{36}(\.[a-z0-9]{1,5})?$`)

// NewKey derives a fresh key that keeps the upload's extension.
func NewKey(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 6 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return uuid.NewString() + ext
}

// ValidKey reports whether key has the shape NewKey produces.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

func checkKey(key string) error {
	if !ValidKey(key) {
		return fmt.Errorf("storage key %q: %w", key, domain.ErrNotFound)
	}
	return nil
}

func contentTypeOf(key, given string) string {
	if given != "" {
		return given
	}
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
