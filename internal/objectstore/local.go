package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// LocalStore is a filesystem-backed Store rooted at a directory, the same
// shape as friggdb/backend/local's readerWriter: plain os/io calls, no
// buffering or caching layer.
type LocalStore struct {
	root string
}

// NewLocal creates a LocalStore rooted at dir, creating dir if needed.
func NewLocal(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "objectstore: create root directory")
	}
	return &LocalStore{root: dir}, nil
}

func (l *LocalStore) path(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(key))
}

func (l *LocalStore) Head(_ context.Context, key string) (Info, error) {
	fi, err := os.Stat(l.path(key))
	if os.IsNotExist(err) {
		return Info{}, ErrNotFound
	}
	if err != nil {
		return Info{}, errors.Wrapf(err, "objectstore: stat %q", key)
	}
	return Info{
		ETag:         localETag(fi.Size(), fi.ModTime().UnixNano()),
		Size:         uint64(fi.Size()),
		LastModified: fi.ModTime(),
	}, nil
}

func (l *LocalStore) Get(_ context.Context, key string) ([]byte, error) {
	b, err := os.ReadFile(l.path(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "objectstore: read %q", key)
	}
	return b, nil
}

func (l *LocalStore) GetRange(_ context.Context, key string, offset, length uint64) ([]byte, error) {
	if length == 0 {
		return nil, errors.Errorf("objectstore: zero-length range read of %q", key)
	}
	f, err := os.Open(l.path(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "objectstore: open %q", key)
	}
	defer f.Close()

	buf := make([]byte, length)
	n, err := f.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "objectstore: read range %q", key)
	}
	return buf[:n], nil
}

func (l *LocalStore) Put(_ context.Context, key string, data []byte) error {
	dst := l.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrapf(err, "objectstore: create parent of %q", key)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return errors.Wrapf(err, "objectstore: write %q", key)
	}
	return nil
}

// localETag synthesizes a stable etag-shaped string for a local file, since
// the filesystem has no native one; size+mtime is sufficient to detect the
// source file changing between a build and a later query.
func localETag(size, modNanos int64) string {
	return fmt.Sprintf("%x-%x", size, modNanos)
}
