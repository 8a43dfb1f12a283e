// Package httpfs implements storage.FileSystem for plain HTTP(S) resources.
//
// HTTP has no listing, so Glob only confirms that a literal URL exists.
// Paths are full URLs.
package httpfs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/kbukum/filestream/errors"
	"github.com/kbukum/filestream/logger"
	"github.com/kbukum/filestream/resilience"
	"github.com/kbukum/filestream/storage"
)

func init() {
	for _, protocol := range []string{storage.ProtocolHTTP, storage.ProtocolHTTPS} {
		storage.RegisterFactory(protocol, func(opts storage.Options, log *logger.Logger) (storage.FileSystem, error) {
			fs := New(opts, log)
			fs.protocol = protocol
			return fs, nil
		})
	}
}

// FileSystem issues HEAD and GET requests.
type FileSystem struct {
	client   *http.Client
	headers  map[string]string
	retry    resilience.RetryConfig
	protocol string
	log      *logger.Logger
}

// New returns an HTTP filesystem using opts.Timeout, opts.Headers and opts.Retry.
// The timeout bounds the wait for response headers, not the body download.
func New(opts storage.Options, log *logger.Logger) *FileSystem {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = opts.Timeout
	return NewWithClient(&http.Client{Transport: transport}, opts, log)
}

// NewWithClient uses an existing client, e.g. one with a custom transport.
func NewWithClient(client *http.Client, opts storage.Options, log *logger.Logger) *FileSystem {
	l := logger.OrNop(log).WithComponent("http")
	retry := opts.Retry
	retry.ApplyDefaults()
	if retry.OnRetry == nil {
		retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
			l.Warn("retrying request", logger.Fields(
				"attempt", attempt,
				logger.FieldError, err.Error(),
				logger.FieldDuration, backoff.Milliseconds(),
			))
		}
	}
	return &FileSystem{
		client:   client,
		headers:  opts.Headers,
		retry:    retry,
		protocol: storage.ProtocolHTTPS,
		log:      l,
	}
}

// Protocol returns the scheme this filesystem was registered for.
func (f *FileSystem) Protocol() string { return f.protocol }

// Glob returns pattern itself when it is a literal URL that answers HEAD
// successfully. Patterns with metacharacters cannot be expanded over HTTP
// and match nothing.
func (f *FileSystem) Glob(ctx context.Context, pattern string) ([]string, error) {
	if storage.HasMeta(pattern) {
		f.log.Warn("http cannot expand glob patterns", logger.Fields(logger.FieldPattern, pattern))
		return nil, nil
	}
	ok, err := f.IsFile(ctx, pattern)
	if err != nil {
		return nil, apperrors.ListFailed(pattern, err)
	}
	if !ok {
		return nil, nil
	}
	return []string{pattern}, nil
}

// IsFile sends HEAD. 2xx is a file and 404/410 is not. Servers that reject
// HEAD with 405 are assumed to serve the resource.
func (f *FileSystem) IsFile(ctx context.Context, url string) (bool, error) {
	status, err := resilience.Retry(ctx, f.retry, func() (int, error) {
		resp, err := f.do(ctx, http.MethodHead, url)
		if err != nil {
			return 0, err
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= 500 {
			return 0, unavailable(url, resp.StatusCode)
		}
		return resp.StatusCode, nil
	})
	if err != nil {
		return false, err
	}
	switch {
	case status >= 200 && status < 300, status == http.StatusMethodNotAllowed:
		return true, nil
	case status == http.StatusNotFound, status == http.StatusGone:
		return false, nil
	default:
		return false, fmt.Errorf("HEAD %s: unexpected status %d", url, status)
	}
}

// Open sends GET, retrying transport errors and 5xx responses.
func (f *FileSystem) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	return resilience.Retry(ctx, f.retry, func() (io.ReadCloser, error) {
		resp, err := f.do(ctx, http.MethodGet, url)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp.Body, nil
		}
		_ = resp.Body.Close()
		switch {
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
			return nil, apperrors.NotFound(url).WithDetail("status", resp.StatusCode)
		case resp.StatusCode >= 500:
			return nil, unavailable(url, resp.StatusCode)
		default:
			return nil, apperrors.OpenFailed(url, fmt.Errorf("unexpected status %d", resp.StatusCode)).
				WithDetail("status", resp.StatusCode)
		}
	})
}

func (f *FileSystem) do(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, http.NoBody)
	if err != nil {
		return nil, apperrors.InvalidInput("uri", err.Error())
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.BackendUnavailable(f.protocol, err).WithDetail("file_path", url)
	}
	return resp, nil
}

func unavailable(url string, status int) error {
	return apperrors.BackendUnavailable("http", fmt.Errorf("status %d", status)).
		WithDetails(map[string]any{"file_path": url, "status": status})
}

// compile-time check
var _ storage.FileSystem = (*FileSystem)(nil)
