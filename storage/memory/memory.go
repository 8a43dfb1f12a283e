// Package memory implements storage.FileSystem over an in-process map.
//
// memory:// URIs resolve to a process-wide store returned by Default.
// Tests usually create an isolated store with New and inject it through
// storage.Options.Client.
package memory

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"

	apperrors "github.com/kbukum/filestream/errors"
	"github.com/kbukum/filestream/logger"
	"github.com/kbukum/filestream/storage"
)

// Protocol is the scheme served by this package.
const Protocol = "memory"

var defaultFS = New()

func init() {
	storage.RegisterFactory(Protocol, func(_ storage.Options, _ *logger.Logger) (storage.FileSystem, error) {
		return defaultFS, nil
	})
}

// Default returns the process-wide store behind memory:// URIs.
func Default() *FileSystem { return defaultFS }

// FileSystem stores files as byte slices keyed by clean slash paths.
// Directories exist implicitly as prefixes of stored paths.
type FileSystem struct {
	mu    sync.RWMutex
	files map[string][]byte
	open  atomic.Int64
}

// New returns an empty store.
func New() *FileSystem {
	return &FileSystem{files: make(map[string][]byte)}
}

// Protocol returns "memory".
func (f *FileSystem) Protocol() string { return Protocol }

// Put stores a copy of data at p, replacing any previous content.
func (f *FileSystem) Put(p string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[clean(p)] = append([]byte(nil), data...)
}

// Remove deletes p. Removing a missing path is a no-op.
func (f *FileSystem) Remove(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, clean(p))
}

// OpenHandles returns the number of streams opened and not yet closed.
func (f *FileSystem) OpenHandles() int { return int(f.open.Load()) }

// Glob matches pattern against stored files and their implied directories.
func (f *FileSystem) Glob(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pattern = clean(pattern)
	if !doublestar.ValidatePattern(pattern) {
		return nil, apperrors.ListFailed(pattern, doublestar.ErrBadPattern)
	}

	f.mu.RLock()
	candidates := make(map[string]struct{}, len(f.files))
	for p := range f.files {
		candidates[p] = struct{}{}
		for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
			candidates[dir] = struct{}{}
		}
	}
	f.mu.RUnlock()

	var out []string
	for c := range candidates {
		if ok, _ := doublestar.Match(pattern, c); ok {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out, nil
}

// IsFile reports whether p is a stored file.
func (f *FileSystem) IsFile(_ context.Context, p string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.files[clean(p)]
	return ok, nil
}

// Open returns a reader over a snapshot of the file content.
func (f *FileSystem) Open(_ context.Context, p string) (io.ReadCloser, error) {
	f.mu.RLock()
	data, ok := f.files[clean(p)]
	f.mu.RUnlock()
	if !ok {
		return nil, apperrors.NotFound(Protocol + "://" + clean(p))
	}
	f.open.Add(1)
	return &reader{Reader: bytes.NewReader(data), fs: f}, nil
}

type reader struct {
	*bytes.Reader
	fs     *FileSystem
	closed bool
}

func (r *reader) Close() error {
	if !r.closed {
		r.closed = true
		r.fs.open.Add(-1)
	}
	return nil
}

func clean(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	return p
}
