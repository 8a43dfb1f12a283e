// Package fileio provides the file stages of a filestream pipeline:
//
//   - Lister enumerates URIs matching glob patterns under a base URI.
//   - BulkReader reads each upstream URI to completion.
//   - LineStreamer emits one item per line across a sequence of files.
//
// Every stage is a pipeline.Node, so chains checkpoint and resume as one:
//
//	import (
//		_ "github.com/kbukum/filestream/storage/local" // file paths
//		_ "github.com/kbukum/filestream/storage/s3"    // s3:// URIs
//	)
//
//	lister := fileio.NewLister("s3://bucket/logs", fileio.ListerOptions{Patterns: []string{"**/*.jsonl.gz"}}, log)
//	lines, err := fileio.NewLineStreamer(lister, storage.OpenOptions{}, log)
//	...
//	saved := lines.State() // {"source": {"current_idx": 3}, "current_file": ..., "current_line": 120, ...}
//
// Backends register themselves when their package is imported, and fileio
// imports none of them. Import every backend the URIs need (storage/local
// for plain paths, storage/s3, storage/gcs, storage/httpfs,
// storage/memory). Without it the Lister logs UNSUPPORTED_PROTOCOL and
// lists nothing, or fails Reset with ListerOptions.Strict.
//
// BulkReader fails the pull on a file it cannot read, wrapping the backend
// error in an OPEN_FAILED or READ_FAILED AppError. LineStreamer logs such
// files and moves on to the next one.
package fileio
