// Package codec selects and applies stream decompression by file extension
// or explicit override.
//
// Built-in codecs: .gz/.gzip, .zst/.zstd, .bz2, .lz4, .sz/.s2.
package codec

import (
	"bytes"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	apperrors "github.com/kbukum/filestream/errors"
)

// Disable as an override turns decompression off regardless of extension.
const Disable = "disable"

// Decompressor wraps a compressed stream. Closing the returned reader
// releases decoder resources only; it does not close r.
type Decompressor func(r io.Reader) (io.ReadCloser, error)

var (
	mu       sync.RWMutex
	registry = map[string]Decompressor{}
)

func init() {
	Register(".gz", gunzip)
	Register(".gzip", gunzip)
	Register(".zst", unzstd)
	Register(".zstd", unzstd)
	Register(".bz2", func(r io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(bzip2.NewReader(r)), nil
	})
	Register(".lz4", func(r io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(lz4.NewReader(r)), nil
	})
	Register(".sz", unsnappy)
	Register(".s2", unsnappy)
}

// Register adds or replaces the decompressor for an extension.
// The extension is matched case-insensitively, with or without a leading dot.
func Register(ext string, d Decompressor) {
	mu.Lock()
	defer mu.Unlock()
	registry[normalize(ext)] = d
}

// Lookup returns the decompressor registered for ext.
func Lookup(ext string) (Decompressor, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := registry[normalize(ext)]
	return d, ok
}

// Extensions lists the registered extensions in sorted order.
func Extensions() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for ext := range registry {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extension returns the lower-cased extension of the last path segment of
// uri, ignoring any query string or fragment.
func Extension(uri string) string {
	if i := strings.IndexAny(uri, "?#"); i >= 0 {
		uri = uri[:i]
	}
	return strings.ToLower(path.Ext(uri))
}

// Select picks the decompressor for uri. An empty override infers from the
// extension; Disable or an unregistered inferred extension yields nil
// (passthrough). An override naming an unknown codec is INVALID_INPUT.
func Select(uri, override string) (Decompressor, error) {
	switch override {
	case "":
		d, _ := Lookup(Extension(uri))
		return d, nil
	case Disable:
		return nil, nil
	}
	d, ok := Lookup(override)
	if !ok {
		return nil, apperrors.InvalidInput("compression",
			fmt.Sprintf("unknown codec %q (known: %s)", override, strings.Join(Extensions(), ", ")))
	}
	return d, nil
}

// Wrap applies the codec chosen by Select to r. The returned closer releases
// the decoder but leaves r open. With no codec, r is returned as is behind a
// no-op closer.
func Wrap(r io.Reader, uri, override string) (io.ReadCloser, error) {
	d, err := Select(uri, override)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return io.NopCloser(r), nil
	}
	rc, err := d(r)
	if err != nil {
		return nil, apperrors.DecodeFailed(uri, err)
	}
	return rc, nil
}

func normalize(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// gunzip reads a zero-byte stream as empty content rather than a missing
// gzip header.
func gunzip(r io.Reader) (io.ReadCloser, error) {
	zr, err := gzip.NewReader(r)
	if errors.Is(err, io.EOF) {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	if err != nil {
		return nil, err
	}
	return zr, nil
}

func unzstd(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}

func unsnappy(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(s2.NewReader(r)), nil
}
