// Package s3 implements storage.FileSystem for Amazon S3 and S3-compatible
// stores. Paths have the form "bucket/key".
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/bmatcuk/doublestar/v4"

	apperrors "github.com/kbukum/filestream/errors"
	"github.com/kbukum/filestream/logger"
	"github.com/kbukum/filestream/storage"
)

// Protocol is the primary scheme served by this package.
const Protocol = "s3"

func init() {
	for _, protocol := range []string{Protocol, "s3a"} {
		storage.RegisterFactory(protocol, func(opts storage.Options, log *logger.Logger) (storage.FileSystem, error) {
			fs, err := New(context.Background(), opts, log)
			if err != nil {
				return nil, err
			}
			fs.protocol = protocol
			return fs, nil
		})
	}
}

// API is the subset of the S3 client used by FileSystem.
type API interface {
	ListObjectsV2(ctx context.Context, in *awss3.ListObjectsV2Input, optFns ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, in *awss3.HeadObjectInput, optFns ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
}

// FileSystem reads objects through an S3 API client.
type FileSystem struct {
	client   API
	protocol string
	log      *logger.Logger
}

// New builds an S3 client from the default AWS configuration chain,
// overridden by opts.
func New(ctx context.Context, opts storage.Options, log *logger.Logger) (*FileSystem, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	switch {
	case opts.Anonymous:
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}))
	case opts.AccessKey != "" && opts.SecretKey != "":
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, opts.SessionToken),
		))
	}
	if opts.Timeout > 0 {
		loadOpts = append(loadOpts, awsconfig.WithHTTPClient(
			awshttp.NewBuildableClient().WithTimeout(opts.Timeout),
		))
	}
	if opts.Retry.MaxAttempts > 0 {
		loadOpts = append(loadOpts, awsconfig.WithRetryMaxAttempts(opts.Retry.MaxAttempts))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, apperrors.BackendUnavailable(Protocol, fmt.Errorf("load aws config: %w", err))
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
		if opts.ForcePathStyle {
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, log), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client API, log *logger.Logger) *FileSystem {
	return &FileSystem{
		client:   client,
		protocol: Protocol,
		log:      logger.OrNop(log).WithComponent("s3"),
	}
}

// Protocol returns the scheme this filesystem was registered for.
func (f *FileSystem) Protocol() string { return f.protocol }

// Glob lists the objects under the literal prefix of pattern and matches
// "bucket/key" against it. A pattern without metacharacters is a single
// HeadObject.
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

	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(storage.LiteralPrefix(keyPattern)),
	}
	var out []string
	for {
		page, err := f.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, apperrors.ListFailed(pattern, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if ok, _ := doublestar.Match(keyPattern, strings.TrimSuffix(key, "/")); ok {
				out = append(out, bucket+"/"+key)
			}
		}
		if !aws.ToBool(page.IsTruncated) {
			break
		}
		input.ContinuationToken = page.NextContinuationToken
	}
	f.log.Debug("listed objects", logger.Fields(logger.FieldPattern, pattern, logger.FieldCount, len(out)))
	return out, nil
}

// IsFile reports whether path names an existing object. Keys ending in "/"
// are directory markers, not files.
func (f *FileSystem) IsFile(ctx context.Context, path string) (bool, error) {
	bucket, key := storage.SplitBucket(path)
	if key == "" || strings.HasSuffix(key, "/") {
		return false, nil
	}
	_, err := f.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Open returns the object body.
func (f *FileSystem) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, key := storage.SplitBucket(path)
	out, err := f.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.NotFound(storage.Qualify(f.protocol, path)).WithCause(err)
		}
		return nil, err
	}
	return out.Body, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

// compile-time check
var _ storage.FileSystem = (*FileSystem)(nil)
