package fileio

import (
	"context"

	apperrors "github.com/kbukum/filestream/errors"
	"github.com/kbukum/filestream/item"
	"github.com/kbukum/filestream/logger"
	"github.com/kbukum/filestream/observability"
	"github.com/kbukum/filestream/pipeline"
	"github.com/kbukum/filestream/storage"
)

// Payload is the content type of a BulkReader: string reads in text mode,
// []byte in binary mode.
type Payload interface {
	string | []byte
}

// BulkReader reads every upstream URI to completion and emits its content.
// A file that cannot be opened or read fails the pull. The backend error is
// not returned as is: it is wrapped in an OPEN_FAILED or READ_FAILED
// AppError carrying the file_path detail, and errors.Is / errors.As still
// reach it through Unwrap.
//
// Its checkpoint is {"source": upstream state}.
type BulkReader[P Payload] struct {
	source  pipeline.Node[item.Item[string]]
	opener  *storage.Opener
	log     *logger.Logger
	metrics *observability.Metrics
	started bool
}

// NewBulkReader creates a reader over src. The open mode follows P; opts.Mode
// is ignored.
func NewBulkReader[P Payload](src pipeline.Node[item.Item[string]], opts storage.OpenOptions, log *logger.Logger) (*BulkReader[P], error) {
	var zero P
	if _, binary := any(zero).([]byte); binary {
		opts.Mode = storage.ModeBinary
	} else {
		opts.Mode = storage.ModeText
	}
	l := logger.OrNop(log).WithComponent(stageBulkReader)
	opener, err := storage.NewOpener(opts, l)
	if err != nil {
		return nil, err
	}
	return &BulkReader[P]{source: src, opener: opener, log: l}, nil
}

// WithMetrics records opens, bytes read and failures to m and returns r.
func (r *BulkReader[P]) WithMetrics(m *observability.Metrics) *BulkReader[P] {
	r.metrics = m
	return r
}

// Reset resets the upstream source from the nested checkpoint.
func (r *BulkReader[P]) Reset(ctx context.Context, state pipeline.State) error {
	r.started = true
	return pipeline.ResetSource(ctx, r.source, state)
}

// Next pulls one URI and returns its full content with file_path set.
func (r *BulkReader[P]) Next(ctx context.Context) (item.Item[P], bool, error) {
	var zero item.Item[P]
	if !r.started {
		if err := r.Reset(ctx, nil); err != nil {
			return zero, false, err
		}
	}
	up, ok, err := r.source.Next(ctx)
	if err != nil || !ok {
		return zero, false, err
	}
	uri := up.Payload

	data, err := r.read(ctx, uri)
	if err != nil {
		r.log.WithError(err).Error("cannot read file", logger.Fields(logger.FieldURI, uri))
		r.metrics.RecordReadFailure(ctx, stageBulkReader, string(apperrors.CodeOf(err)))
		return zero, false, err
	}
	r.metrics.RecordOpened(ctx, stageBulkReader)
	r.metrics.RecordBytes(ctx, stageBulkReader, len(data))
	r.metrics.RecordEmitted(ctx, stageBulkReader)
	return item.Item[P]{
		Payload:  P(data),
		Metadata: item.Merge(up.Metadata, item.Metadata{item.KeyFilePath: uri}),
	}, true, nil
}

func (r *BulkReader[P]) read(ctx context.Context, uri string) ([]byte, error) {
	h, err := r.opener.Open(ctx, uri)
	if err != nil {
		return nil, apperrors.OpenFailed(uri, err)
	}
	defer h.Close() //nolint:errcheck // content is fully read; close errors do not affect it

	data, err := h.ReadAll()
	if err != nil {
		return nil, apperrors.ReadFailed(uri, err)
	}
	return data, nil
}

// State returns {"source": upstream state}.
func (r *BulkReader[P]) State() pipeline.State {
	return pipeline.State{pipeline.KeySource: r.source.State()}
}

// Close closes the upstream source.
func (r *BulkReader[P]) Close() error { return r.source.Close() }
