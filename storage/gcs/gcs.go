// Package gcs implements storage.FileSystem for Google Cloud Storage through
// its S3-interoperable XML API, using the MinIO client. Authenticate with
// HMAC keys (storage.Options AccessKey/SecretKey) or read public buckets
// with Anonymous. Paths have the form "bucket/key".
package gcs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	apperrors "github.com/kbukum/filestream/errors"
	"github.com/kbukum/filestream/logger"
	"github.com/kbukum/filestream/storage"
)

// Protocol is the primary scheme served by this package.
const Protocol = "gs"

// DefaultEndpoint is the GCS XML API host.
const DefaultEndpoint = "storage.googleapis.com"

// ErrNotFound is matched (with errors.Is) against API errors for missing objects.
var ErrNotFound = errors.New("object not found")

func init() {
	for _, protocol := range []string{Protocol, "gcs"} {
		storage.RegisterFactory(protocol, func(opts storage.Options, log *logger.Logger) (storage.FileSystem, error) {
			fs, err := New(opts, log)
			if err != nil {
				return nil, err
			}
			fs.protocol = protocol
			return fs, nil
		})
	}
}

// API is the object access FileSystem needs. Stat and Get wrap ErrNotFound
// for missing objects.
type API interface {
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Stat(ctx context.Context, bucket, key string) error
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// FileSystem reads GCS objects.
type FileSystem struct {
	api      API
	protocol string
	log      *logger.Logger
}

// New builds a MinIO client against the GCS endpoint (or opts.Endpoint).
func New(opts storage.Options, log *logger.Logger) (*FileSystem, error) {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")

	// Empty keys make the client sign nothing, which is anonymous access.
	creds := credentials.NewStaticV4("", "", "")
	if !opts.Anonymous && opts.AccessKey != "" {
		creds = credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, opts.SessionToken)
	}

	lookup := minio.BucketLookupAuto
	if opts.ForcePathStyle {
		lookup = minio.BucketLookupPath
	}
	transport, err := minio.DefaultTransport(!opts.Insecure)
	if err != nil {
		return nil, apperrors.BackendUnavailable(Protocol, err)
	}
	if opts.Timeout > 0 {
		transport.ResponseHeaderTimeout = opts.Timeout
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:        creds,
		Secure:       !opts.Insecure,
		BucketLookup: lookup,
		Transport:    transport,
		MaxRetries:   opts.Retry.MaxAttempts,
	})
	if err != nil {
		return nil, apperrors.BackendUnavailable(Protocol, err)
	}
	return NewWithAPI(&minioAPI{client: client}, log), nil
}

// NewWithAPI wraps an existing API implementation.
func NewWithAPI(api API, log *logger.Logger) *FileSystem {
	return &FileSystem{
		api:      api,
		protocol: Protocol,
		log:      logger.OrNop(log).WithComponent("gcs"),
	}
}

// Protocol returns the scheme this filesystem was registered for.
func (f *FileSystem) Protocol() string { return f.protocol }

// Glob lists recursively under the literal prefix of pattern and matches
// "bucket/key" against it.
func (f *FileSystem) Glob(ctx context.Context, pattern string) ([]string, error) {
	bucket, keyPattern := storage.SplitBucket(pattern)
	if bucket == "" || storage.HasMeta(bucket) {
		return nil, apperrors.ListFailed(pattern, errors.New("bucket must be literal"))
	}
	if !storage.HasMeta(keyPattern) {
		ok, err := f.IsFile(ctx, pattern)
		if err != nil {
			return nil, apperrors.ListFailed(pattern, err)
		}
		if !ok {
			return nil, nil
		}
		return []string{bucket + "/" + keyPattern}, nil
	}

	keys, err := f.api.List(ctx, bucket, storage.LiteralPrefix(keyPattern))
	if err != nil {
		return nil, apperrors.ListFailed(pattern, err)
	}
	var out []string
	for _, key := range keys {
		if ok, _ := doublestar.Match(keyPattern, strings.TrimSuffix(key, "/")); ok {
			out = append(out, bucket+"/"+key)
		}
	}
	return out, nil
}

// IsFile reports whether path names an existing object.
func (f *FileSystem) IsFile(ctx context.Context, path string) (bool, error) {
	bucket, key := storage.SplitBucket(path)
	if key == "" || strings.HasSuffix(key, "/") {
		return false, nil
	}
	if err := f.api.Stat(ctx, bucket, key); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Open returns the object content.
func (f *FileSystem) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, key := storage.SplitBucket(path)
	rc, err := f.api.Get(ctx, bucket, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.NotFound(storage.Qualify(f.protocol, path)).WithCause(err)
		}
		return nil, err
	}
	return rc, nil
}

// minioAPI adapts *minio.Client to API.
type minioAPI struct {
	client *minio.Client
}

func (m *minioAPI) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	for obj := range m.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

func (m *minioAPI) Stat(ctx context.Context, bucket, key string) error {
	_, err := m.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	return translate(err)
}

// Get stats the object before returning it: GetObject is lazy and would
// otherwise report a missing key only on the first Read.
func (m *minioAPI) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translate(err)
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, translate(err)
	}
	return obj, nil
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return errors.Join(ErrNotFound, err)
	}
	return err
}

// compile-time check
var _ storage.FileSystem = (*FileSystem)(nil)
