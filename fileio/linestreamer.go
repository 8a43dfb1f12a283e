package fileio

import (
	"context"
	stderrors "errors"
	"io"

	apperrors "github.com/kbukum/filestream/errors"
	"github.com/kbukum/filestream/item"
	"github.com/kbukum/filestream/logger"
	"github.com/kbukum/filestream/observability"
	"github.com/kbukum/filestream/pipeline"
	"github.com/kbukum/filestream/storage"
)

// Checkpoint keys of a LineStreamer.
const (
	KeyCurrentFile = "current_file"
	KeyCurrentLine = "current_line"
	KeyMetadata    = "metadata"
)

// LineStreamer opens upstream URIs one at a time and emits one item per
// line, with file_path and a per-file 0-based item_idx merged over the
// upstream metadata.
//
// A file that fails to open, or fails mid-read, is logged and skipped; the
// stage moves on to the next upstream item. Only upstream errors and
// end-of-sequence reach the caller.
//
// The checkpoint is {"source", "current_file", "current_line", "metadata"}.
// Resuming reopens current_file and discards current_line lines, so the
// file must be unchanged since the checkpoint.
type LineStreamer struct {
	source  pipeline.Node[item.Item[string]]
	opener  *storage.Opener
	log     *logger.Logger
	metrics *observability.Metrics

	handle      *storage.Handle
	currentFile string
	currentLine int
	metadata    item.Metadata
	started     bool
}

// NewLineStreamer creates a streamer over src. Files are always opened in
// text mode using opts.Encoding and opts.Compression.
func NewLineStreamer(src pipeline.Node[item.Item[string]], opts storage.OpenOptions, log *logger.Logger) (*LineStreamer, error) {
	opts.Mode = storage.ModeText
	l := logger.OrNop(log).WithComponent(stageLineStreamer)
	opener, err := storage.NewOpener(opts, l)
	if err != nil {
		return nil, err
	}
	return &LineStreamer{source: src, opener: opener, log: l}, nil
}

// NewLineStreamerFromURIs creates a streamer over a source of bare URIs.
func NewLineStreamerFromURIs(src pipeline.Node[string], opts storage.OpenOptions, log *logger.Logger) (*LineStreamer, error) {
	return NewLineStreamer(item.URI(src), opts, log)
}

// WithMetrics records opened and skipped files and emitted lines to m and
// returns s.
func (s *LineStreamer) WithMetrics(m *observability.Metrics) *LineStreamer {
	s.metrics = m
	return s
}

// Reset closes any open file, resets the upstream source and, when the
// checkpoint names a current file, reopens it past the consumed lines.
func (s *LineStreamer) Reset(ctx context.Context, state pipeline.State) error {
	s.started = true
	s.closeFile()

	if err := pipeline.ResetSource(ctx, s.source, state); err != nil {
		return err
	}
	if state == nil {
		return nil
	}

	file, err := state.String(KeyCurrentFile)
	if err != nil {
		return err
	}
	line, err := state.Int(KeyCurrentLine)
	if err != nil {
		return err
	}
	if line < 0 {
		return apperrors.InvalidState("current_line is negative")
	}
	md, err := state.Map(KeyMetadata)
	if err != nil {
		return err
	}
	if file == "" {
		return nil
	}

	s.resume(ctx, file, line, item.Metadata(md).Clone())
	return nil
}

// resume reopens file and skips lines. Failures leave no file open, so the
// next pull continues with the following upstream item.
func (s *LineStreamer) resume(ctx context.Context, file string, line int, md item.Metadata) {
	h, err := s.opener.Open(ctx, file)
	if err != nil {
		s.log.WithError(err).Error("cannot reopen checkpointed file, skipping it", logger.Fields(logger.FieldURI, file))
		s.metrics.RecordSkipped(ctx, stageLineStreamer, observability.ReasonResumeFailed)
		return
	}
	for i := 0; i < line; i++ {
		if _, err := h.ReadLine(); err != nil {
			if stderrors.Is(err, io.EOF) {
				err = stderrors.New("file is shorter than the checkpoint")
			}
			s.log.WithError(err).Error("cannot seek to checkpointed line, skipping file", logger.Fields(
				logger.FieldURI, file,
				logger.FieldLine, line,
			))
			_ = h.Close()
			s.metrics.RecordSkipped(ctx, stageLineStreamer, observability.ReasonResumeFailed)
			return
		}
	}
	s.handle = h
	s.currentFile = file
	s.currentLine = line
	s.metadata = md
	s.log.Debug("resumed file", logger.Fields(logger.FieldURI, file, logger.FieldLine, line))
}

// Next returns the next line, moving across files as they are exhausted.
func (s *LineStreamer) Next(ctx context.Context) (item.Item[string], bool, error) {
	var zero item.Item[string]
	if !s.started {
		if err := s.Reset(ctx, nil); err != nil {
			return zero, false, err
		}
	}
	for {
		if err := ctx.Err(); err != nil {
			return zero, false, err
		}
		if s.handle == nil {
			up, ok, err := s.source.Next(ctx)
			if err != nil || !ok {
				return zero, false, err
			}
			s.open(ctx, up)
			continue
		}

		line, err := s.handle.ReadLine()
		if err != nil {
			if !stderrors.Is(err, io.EOF) {
				s.log.WithError(err).Error("read failed, skipping rest of file", logger.Fields(
					logger.FieldURI, s.currentFile,
					logger.FieldLine, s.currentLine,
				))
				s.metrics.RecordSkipped(ctx, stageLineStreamer, observability.ReasonReadFailed)
			}
			s.closeFile()
			continue
		}

		md := item.Merge(s.metadata, item.Metadata{
			item.KeyFilePath: s.currentFile,
			item.KeyItemIdx:  s.currentLine,
		})
		s.currentLine++
		s.metrics.RecordEmitted(ctx, stageLineStreamer)
		return item.Item[string]{Payload: line, Metadata: md}, true, nil
	}
}

// open makes up the current file. On failure the file is logged and no
// handle is set, so the caller pulls the next upstream item.
func (s *LineStreamer) open(ctx context.Context, up item.Item[string]) {
	h, err := s.opener.Open(ctx, up.Payload)
	if err != nil {
		s.log.WithError(err).Error("cannot open file, skipping it", logger.Fields(logger.FieldURI, up.Payload))
		s.metrics.RecordSkipped(ctx, stageLineStreamer, observability.ReasonOpenFailed)
		return
	}
	s.metrics.RecordOpened(ctx, stageLineStreamer)
	s.handle = h
	s.currentFile = up.Payload
	s.currentLine = 0
	s.metadata = up.Metadata.Clone()
	s.log.Debug("opened file", logger.Fields(logger.FieldURI, up.Payload))
}

// closeFile releases the open handle and forgets the current file.
func (s *LineStreamer) closeFile() {
	if s.handle != nil {
		if err := s.handle.Close(); err != nil {
			s.log.WithError(err).Warn("closing file failed", logger.Fields(logger.FieldURI, s.currentFile))
		}
	}
	s.handle = nil
	s.currentFile = ""
	s.currentLine = 0
	s.metadata = nil
}

// State returns the upstream state plus the position within the current file.
func (s *LineStreamer) State() pipeline.State {
	st := pipeline.State{
		pipeline.KeySource: s.source.State(),
		KeyCurrentFile:     nil,
		KeyCurrentLine:     s.currentLine,
		KeyMetadata:        nil,
	}
	if s.currentFile != "" {
		st[KeyCurrentFile] = s.currentFile
		st[KeyMetadata] = map[string]any(s.metadata.Clone())
	}
	return st
}

// Close releases the open file, if any, and closes the upstream source.
func (s *LineStreamer) Close() error {
	var errs []error
	if s.handle != nil {
		if err := s.handle.Close(); err != nil {
			errs = append(errs, err)
		}
		s.handle = nil
	}
	s.currentFile = ""
	s.currentLine = 0
	s.metadata = nil
	if err := s.source.Close(); err != nil {
		errs = append(errs, err)
	}
	return stderrors.Join(errs...)
}
