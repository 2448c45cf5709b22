package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/okian/earnsignal/pkg/logger"
	"github.com/okian/earnsignal/pkg/metrics"
)

// FileStore keeps one file per key under <root>/<namespace>.
type FileStore struct {
	dir    string
	opts   options
	closed atomic.Bool
}

// NewFileStore creates the namespace directory under root and returns a store on it.
func NewFileStore(root string, opts ...Option) (*FileStore, error) {
	o := buildOptions(opts)
	dir := filepath.Join(root, o.namespace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir, opts: o}, nil
}

// Dir returns the directory holding the store's entries.
func (s *FileStore) Dir() string { return s.dir }

// Get reads the entry for key.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s.closed.Load() {
		return nil, false, ErrCacheClosed
	}
	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if errors.Is(err, fs.ErrNotExist) {
		metrics.RecordCacheLookup(s.opts.namespace, false)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	metrics.RecordCacheLookup(s.opts.namespace, true)
	return data, true, nil
}

// Put writes the entry through a temporary file renamed into place, so
// readers never observe a partial blob.
func (s *FileStore) Put(ctx context.Context, key string, value []byte) error {
	if s.closed.Load() {
		return ErrCacheClosed
	}
	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create cache temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close cache entry: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("commit cache entry: %w", err)
	}
	metrics.RecordCacheWrite(s.opts.namespace)
	s.opts.logger.Debug(ctx, "cache entry written",
		logger.String("namespace", s.opts.namespace), logger.Int("bytes", len(value)))
	return nil
}

// Close marks the store closed.
func (s *FileStore) Close() error {
	s.closed.Store(true)
	return nil
}
