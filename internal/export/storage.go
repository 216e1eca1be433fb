package export

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/stco/stationrecon/internal/support/logger"
)

// Storage abstracts the object store exported files land in.
type Storage interface {
	// Upload writes data to bucket/objectName, creating parents as needed.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download opens an object for reading; the caller closes it.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for each object under the prefix.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	// DeleteObject removes one object.
	DeleteObject(ctx context.Context, bucket, objectName string) error
}

// LocalStorage implements Storage on the local filesystem: a bucket is a
// directory under the base dir.
type LocalStorage struct {
	baseDir string
}

func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("local storage: base dir must be specified")
	}
	info, err := os.Stat(baseDir)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(baseDir, 0o755); err != nil {
			return nil, fmt.Errorf("local storage: create base dir %s: %w", baseDir, err)
		}
	case err != nil:
		return nil, fmt.Errorf("local storage: stat base dir %s: %w", baseDir, err)
	case !info.IsDir():
		return nil, fmt.Errorf("local storage: base dir %s is not a directory", baseDir)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

func (s *LocalStorage) path(bucket, objectName string) string {
	return filepath.Join(s.baseDir, bucket, filepath.FromSlash(objectName))
}

func (s *LocalStorage) Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.path(bucket, objectName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(f, data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	logger.Debugf("stored object %s/%s", bucket, objectName)
	return nil
}

func (s *LocalStorage) Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(bucket, objectName))
	if err != nil {
		return nil, fmt.Errorf("open %s/%s: %w", bucket, objectName, err)
	}
	return f, nil
}

func (s *LocalStorage) ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error {
	root := filepath.Join(s.baseDir, bucket)
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		objectName := filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(objectName, prefix) {
			return nil
		}
		return fn(objectName)
	})
}

func (s *LocalStorage) DeleteObject(ctx context.Context, bucket, objectName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path(bucket, objectName)); err != nil {
		return fmt.Errorf("delete %s/%s: %w", bucket, objectName, err)
	}
	return nil
}

var _ Storage = (*LocalStorage)(nil)
