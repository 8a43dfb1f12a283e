// Package local implements storage.FileSystem over the local filesystem.
// Unqualified paths and file:// URIs resolve here.
package local

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	apperrors "github.com/kbukum/filestream/errors"
	"github.com/kbukum/filestream/logger"
	"github.com/kbukum/filestream/storage"
)

func init() {
	storage.RegisterFactory(storage.ProtocolFile, func(_ storage.Options, _ *logger.Logger) (storage.FileSystem, error) {
		return New(), nil
	})
}

// FileSystem is the local filesystem.
type FileSystem struct{}

// New returns the local filesystem.
func New() *FileSystem { return &FileSystem{} }

// Protocol returns "file".
func (f *FileSystem) Protocol() string { return storage.ProtocolFile }

// Glob matches pattern (relative patterns resolve against the working
// directory) and returns absolute slash-separated paths. "**" matches any
// number of directories. A base directory that does not exist matches nothing.
func (f *FileSystem) Glob(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(filepath.FromSlash(pattern))
	if err != nil {
		return nil, apperrors.ListFailed(pattern, err)
	}
	base, rel := doublestar.SplitPattern(filepath.ToSlash(abs))

	matches, err := doublestar.Glob(os.DirFS(filepath.FromSlash(base)), rel)
	if err != nil {
		return nil, apperrors.ListFailed(pattern, err)
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, path.Join(base, m))
	}
	return out, nil
}

// IsFile reports whether path is an existing non-directory.
func (f *FileSystem) IsFile(_ context.Context, p string) (bool, error) {
	info, err := os.Stat(filepath.FromSlash(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

// Open opens path for reading.
func (f *FileSystem) Open(_ context.Context, p string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.FromSlash(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NotFound(p).WithCause(err)
		}
		return nil, err
	}
	info, err := file.Stat()
	if err == nil && info.IsDir() {
		_ = file.Close()
		return nil, apperrors.OpenFailed(p, errors.New("is a directory"))
	}
	return file, nil
}
