package fileio_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/kbukum/filestream/fileio"
	"github.com/kbukum/filestream/item"
	"github.com/kbukum/filestream/pipeline"
	"github.com/kbukum/filestream/storage"
	_ "github.com/kbukum/filestream/storage/local"
	"github.com/kbukum/filestream/storage/memory"
)

const base = "memory://data"

func newStore(files map[string]string) *memory.FileSystem {
	fs := memory.New()
	for p, content := range files {
		fs.Put(p, []byte(content))
	}
	return fs
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func slashJoin(dir, name string) string {
	return filepath.ToSlash(filepath.Join(dir, name))
}

func openOpts(fs storage.FileSystem) storage.OpenOptions {
	return storage.OpenOptions{Storage: storage.Options{Client: fs}}
}

func listerOpts(fs storage.FileSystem, patterns ...string) fileio.ListerOptions {
	return fileio.ListerOptions{Patterns: patterns, Storage: storage.Options{Client: fs}}
}

// line is the comparable projection of a LineStreamer item.
type line struct {
	text string
	file string
	idx  int
}

func toLine(it item.Item[string]) line {
	idx, _ := it.Metadata[item.KeyItemIdx].(int)
	return line{text: it.Payload, file: it.FilePath(), idx: idx}
}

func collectLines(t *testing.T, n pipeline.Node[item.Item[string]]) []line {
	t.Helper()
	items, err := pipeline.Collect[item.Item[string]](context.Background(), n)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make([]line, 0, len(items))
	for _, it := range items {
		out = append(out, toLine(it))
	}
	return out
}

// checkpoint round-trips a node's state through JSON, as a persisted
// checkpoint would be.
func checkpoint(t *testing.T, st pipeline.State) pipeline.State {
	t.Helper()
	c, err := st.Clone()
	if err != nil {
		t.Fatalf("clone state: %v", err)
	}
	return c
}

// faultyFS wraps a memory store. Globs for patterns in failGlob fail, and
// files in failRead return an error after their content.
type faultyFS struct {
	*memory.FileSystem
	failGlob map[string]bool
	failRead map[string]bool
}

var errInjected = errors.New("injected failure")

func (f *faultyFS) Glob(ctx context.Context, pattern string) ([]string, error) {
	if f.failGlob[pattern] {
		return nil, errInjected
	}
	return f.FileSystem.Glob(ctx, pattern)
}

func (f *faultyFS) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	rc, err := f.FileSystem.Open(ctx, p)
	if err != nil || !f.failRead[p] {
		return rc, err
	}
	return &failingReader{ReadCloser: rc}, nil
}

type failingReader struct {
	io.ReadCloser
}

func (r *failingReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if errors.Is(err, io.EOF) {
		return n, errInjected
	}
	return n, err
}

