package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
)

// ObjectStorage keeps generated files under a base URL. Any afs scheme works
// (file://, mem://, gs://, s3://).
type ObjectStorage struct {
	baseURL string
	fs      afs.Service
	now     func() time.Time
}

// NewObjectStorage ensures the base location exists and returns a handle.
func NewObjectStorage(ctx context.Context, baseURL string) (*ObjectStorage, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("storage url cannot be empty")
	}
	baseURL = url.Normalize(baseURL, file.Scheme)
	fs := afs.New()

	exists, _ := fs.Exists(ctx, baseURL)
	if !exists {
		if err := fs.Create(ctx, baseURL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("create storage root %s: %w", baseURL, err)
		}
	}
	return &ObjectStorage{baseURL: baseURL, fs: fs, now: time.Now}, nil
}

// Save writes data to the relative path and returns that path.
func (s *ObjectStorage) Save(ctx context.Context, relPath string, data []byte) (string, error) {
	relPath, err := clean(relPath)
	if err != nil {
		return "", err
	}
	if err := s.fs.Upload(ctx, s.URL(relPath), file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("upload %s: %w", relPath, err)
	}
	return relPath, nil
}

// Open reads a stored object.
func (s *ObjectStorage) Open(ctx context.Context, relPath string) ([]byte, error) {
	relPath, err := clean(relPath)
	if err != nil {
		return nil, err
	}
	exists, err := s.fs.Exists(ctx, s.URL(relPath))
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", relPath, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", relPath, ErrObjectNotFound)
	}
	data, err := s.fs.DownloadWithURL(ctx, s.URL(relPath))
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", relPath, err)
	}
	return data, nil
}

// Exists reports whether the relative path is stored.
func (s *ObjectStorage) Exists(ctx context.Context, relPath string) (bool, error) {
	relPath, err := clean(relPath)
	if err != nil {
		return false, err
	}
	return s.fs.Exists(ctx, s.URL(relPath))
}

// Ping reports whether the storage root is reachable.
func (s *ObjectStorage) Ping(ctx context.Context) error {
	ok, err := s.fs.Exists(ctx, s.baseURL)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("storage root %s missing", s.baseURL)
	}
	return nil
}

// Delete removes a stored object if present.
func (s *ObjectStorage) Delete(ctx context.Context, relPath string) error {
	relPath, err := clean(relPath)
	if err != nil {
		return err
	}
	exists, err := s.fs.Exists(ctx, s.URL(relPath))
	if err != nil || !exists {
		return err
	}
	if err := s.fs.Delete(ctx, s.URL(relPath)); err != nil {
		return fmt.Errorf("delete %s: %w", relPath, err)
	}
	return nil
}

// CleanupOlderThan removes objects last modified before now-ttl and returns their relative paths.
func (s *ObjectStorage) CleanupOlderThan(ctx context.Context, ttl time.Duration) ([]string, error) {
	objects, err := s.fs.List(ctx, s.baseURL, option.NewRecursive(true))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.baseURL, err)
	}
	cutoff := s.now().Add(-ttl)
	deleted := make([]string, 0)
	for _, object := range objects {
		if object.IsDir() || object.ModTime().After(cutoff) {
			continue
		}
		if err := s.fs.Delete(ctx, object.URL()); err != nil {
			return deleted, fmt.Errorf("delete %s: %w", object.URL(), err)
		}
		deleted = append(deleted, s.relative(object.URL()))
	}
	return deleted, nil
}

// URL resolves a relative path against the base URL.
func (s *ObjectStorage) URL(relPath string) string {
	return url.Join(s.baseURL, relPath)
}

func (s *ObjectStorage) relative(objectURL string) string {
	base := strings.TrimSuffix(url.Path(s.baseURL), "/")
	return strings.TrimPrefix(strings.TrimPrefix(url.Path(objectURL), base), "/")
}

func clean(relPath string) (string, error) {
	cleaned := strings.TrimPrefix(path.Clean("/"+relPath), "/")
	if cleaned == "" || cleaned == "." || strings.Contains(relPath, "..") {
		return "", fmt.Errorf("invalid object path %q", relPath)
	}
	return cleaned, nil
}
