package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medstore/m/domain"
)

func TestNewKey(t *testing.T) {
	key := NewKey("Rx Scan.JPG")
	assert.True(t, strings.HasSuffix(key, ".jpg"))
	assert.True(t, ValidKey(key))
	assert.True(t, ValidKey(NewKey("noext")))
	assert.False(t, ValidKey("../../etc/passwd"))
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir(), nil)
	require.NoError(t, err)

	key, err := s.Save(ctx, "rx.pdf", "application/pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)

	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, ct, err := s.Open(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(body))
	assert.Equal(t, "application/pdf", ct)

	_, _, err = s.Open(ctx, NewKey("x.png"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, _, err = s.Open(ctx, "../secret")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	ok, err = s.Exists(ctx, "../secret")
	require.NoError(t, err)
	assert.False(t, ok)
}

// fakeS3 serves path-style object requests from memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		f.objects[r.URL.Path] = "stored"
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		if _, ok := f.objects[r.URL.Path]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = io.WriteString(w, body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3Store(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	ctx := context.Background()
	s, err := NewS3Store(ctx, S3Config{
		Bucket:       "rx",
		Endpoint:     srv.URL,
		Region:       "ap-south-1",
		AccessKey:    "test",
		SecretKey:    "test",
		UsePathStyle: true,
		Prefix:       "prescriptions/",
	})
	require.NoError(t, err)

	require.NoError(t, s.EnsureBucket(ctx))
	assert.Contains(t, fake.objects, "/rx")
	require.NoError(t, s.EnsureBucket(ctx))

	key, err := s.Save(ctx, "scan.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Contains(t, fake.objects, "/rx/prescriptions/"+key)

	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, ct, err := s.Open(ctx, key)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "stored", string(body))
	assert.Equal(t, "image/png", ct)

	missing := NewKey("x.png")
	ok, err = s.Exists(ctx, missing)
	require.NoError(t, err)
	assert.False(t, ok)
	_, _, err = s.Open(ctx, missing)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = NewS3Store(ctx, S3Config{})
	assert.Error(t, err)
}
