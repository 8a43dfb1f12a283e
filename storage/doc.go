// Package storage is the filesystem and universal-open layer under the
// filestream stages.
//
// A FileSystem globs, stats and opens protocol-stripped paths for one URI
// scheme. Backends register a Factory for their protocol in init, so
// importing a backend package is enough to make its scheme resolvable:
//
//	import (
//	    _ "github.com/kbukum/filestream/storage/local"
//	    _ "github.com/kbukum/filestream/storage/s3"
//	)
//
//	fs, err := storage.New("s3", storage.Options{Region: "eu-west-1"}, log)
//
// # Backends
//
//   - storage/local: local filesystem ("file", also unqualified paths)
//   - storage/memory: in-process map ("memory"), handy for tests
//   - storage/s3: Amazon S3 and S3-compatible stores ("s3", "s3a")
//   - storage/gcs: Google Cloud Storage over its S3-interoperable API ("gs", "gcs")
//   - storage/httpfs: plain HTTP(S) resources ("http", "https")
//
// # Opening
//
// Opener resolves the scheme of a URI, caches one FileSystem per protocol,
// and returns a Handle that decompresses (see package codec) and, in text
// mode, decodes the configured character encoding to UTF-8.
package storage
