package storage

import (
	"context"
	"io"
	"strings"
)

// Protocol names shared by several packages.
const (
	ProtocolFile  = "file"
	ProtocolHTTP  = "http"
	ProtocolHTTPS = "https"
)

// FileSystem is the backend contract consumed by the stages. Paths are
// protocol-stripped: an absolute path for local files, "bucket/key" for
// object stores, and the full URL for HTTP.
type FileSystem interface {
	// Protocol returns the scheme this filesystem serves.
	Protocol() string

	// Glob returns every path matching pattern. Directories may be included;
	// callers that want files only filter with IsFile.
	Glob(ctx context.Context, pattern string) ([]string, error)

	// IsFile reports whether path names an existing regular file/object.
	IsFile(ctx context.Context, path string) (bool, error)

	// Open returns the raw byte stream of path. The caller closes it.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// ResolveProtocol returns the lower-cased scheme of uri, or "file" when the
// URI is unqualified.
func ResolveProtocol(uri string) string {
	if i := strings.Index(uri, "://"); i > 0 {
		return strings.ToLower(uri[:i])
	}
	return ProtocolFile
}

// SplitProtocol splits uri into its protocol and the path its FileSystem
// expects. HTTP URLs keep their scheme since the URL is the path.
func SplitProtocol(uri string) (protocol, path string) {
	protocol = ResolveProtocol(uri)
	i := strings.Index(uri, "://")
	switch {
	case i <= 0:
		return protocol, uri
	case protocol == ProtocolHTTP || protocol == ProtocolHTTPS:
		return protocol, uri
	default:
		return protocol, uri[i+3:]
	}
}

// Qualify turns a FileSystem path back into a URI. Local paths stay bare
// and already-qualified paths are returned unchanged.
func Qualify(protocol, path string) string {
	if protocol == ProtocolFile || protocol == "" || strings.Contains(path, "://") {
		return path
	}
	return protocol + "://" + path
}

// JoinPattern appends a glob pattern to a base URI with a single separator.
func JoinPattern(base, pattern string) string {
	if pattern == "" {
		return base
	}
	if base == "" {
		return pattern
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(pattern, "/")
}
