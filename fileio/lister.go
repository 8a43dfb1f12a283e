package fileio

import (
	"context"
	"sort"

	apperrors "github.com/kbukum/filestream/errors"
	"github.com/kbukum/filestream/item"
	"github.com/kbukum/filestream/logger"
	"github.com/kbukum/filestream/observability"
	"github.com/kbukum/filestream/pipeline"
	"github.com/kbukum/filestream/storage"
)

// Stage names used as log components and metric attributes.
const (
	stageLister       = "lister"
	stageBulkReader   = "bulk_reader"
	stageLineStreamer = "line_streamer"
)

// DefaultPattern matches every entry directly under the base URI.
const DefaultPattern = "*"

// ListerOptions configures a Lister.
type ListerOptions struct {
	// Patterns are globs relative to the base URI. Empty means DefaultPattern.
	Patterns []string `yaml:"patterns" mapstructure:"patterns"`
	// Storage holds backend transport options.
	Storage storage.Options `yaml:"storage" mapstructure:"storage"`
	// Strict makes Reset fail when the backend cannot be resolved or every
	// pattern fails, instead of degrading to an empty listing.
	Strict bool `yaml:"strict" mapstructure:"strict"`
}

// Lister is a source of URI items. Reset globs every pattern, unions and
// sorts the matches; Next walks the sorted list.
//
// The checkpoint is {"current_idx": n}. The list itself is recomputed on
// Reset, so a resume is only exact if the backend returns the same matches.
type Lister struct {
	baseURI  string
	protocol string
	opts     ListerOptions
	log      *logger.Logger
	metrics  *observability.Metrics

	files   []string
	idx     int
	started bool
}

// NewLister creates a Lister for baseURI. Nothing is listed until the first
// Reset or Next.
func NewLister(baseURI string, opts ListerOptions, log *logger.Logger) *Lister {
	if len(opts.Patterns) == 0 {
		opts.Patterns = []string{DefaultPattern}
	}
	return &Lister{
		baseURI:  baseURI,
		protocol: storage.ResolveProtocol(baseURI),
		opts:     opts,
		log:      logger.OrNop(log).WithComponent(stageLister),
	}
}

// WithMetrics records listing sizes to m and returns l.
func (l *Lister) WithMetrics(m *observability.Metrics) *Lister {
	l.metrics = m
	return l
}

// Reset re-lists the backend and positions the lister at the checkpointed index.
func (l *Lister) Reset(ctx context.Context, state pipeline.State) error {
	l.started = true
	l.idx = 0

	files, err := l.list(ctx)
	if err != nil {
		l.log.WithError(err).Error("listing failed, continuing with no files", logger.Fields(
			logger.FieldURI, l.baseURI,
			logger.FieldProtocol, l.protocol,
		))
		if l.opts.Strict {
			l.files = nil
			return err
		}
		files = nil
	}
	l.files = files
	l.metrics.RecordListed(ctx, l.protocol, len(files))

	if state != nil {
		idx, err := state.Int(pipeline.KeyCurrentIdx)
		if err != nil {
			return err
		}
		if idx < 0 {
			return apperrors.InvalidState("current_idx is negative")
		}
		if idx > len(l.files) {
			l.log.Warn("checkpoint index is past the end of the listing", logger.Fields(
				pipeline.KeyCurrentIdx, idx,
				logger.FieldCount, len(l.files),
			))
			idx = len(l.files)
		}
		l.idx = idx
	}
	return nil
}

// list returns the sorted, qualified union of all pattern matches. It fails
// only when the backend is unusable or no pattern could be listed.
func (l *Lister) list(ctx context.Context) ([]string, error) {
	protocol, _ := storage.SplitProtocol(l.baseURI)
	fs, err := storage.New(protocol, l.opts.Storage, l.log)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var lastErr error
	failed := 0
	for _, pattern := range l.opts.Patterns {
		_, globPath := storage.SplitProtocol(storage.JoinPattern(l.baseURI, pattern))
		matches, err := fs.Glob(ctx, globPath)
		if err != nil {
			failed++
			lastErr = err
			l.log.WithError(err).Warn("pattern listing failed", logger.Fields(logger.FieldPattern, globPath))
			continue
		}
		filesOnly := pattern == "*" || pattern == "**/*"
		for _, m := range matches {
			if filesOnly {
				ok, err := fs.IsFile(ctx, m)
				if err != nil {
					l.log.WithError(err).Warn("cannot stat match, skipping", logger.Fields(logger.FieldURI, m))
					continue
				}
				if !ok {
					continue
				}
			}
			seen[storage.Qualify(protocol, m)] = struct{}{}
		}
	}
	if failed == len(l.opts.Patterns) {
		return nil, apperrors.ListFailed(l.baseURI, lastErr)
	}

	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)
	l.log.Debug("listed files", logger.Fields(logger.FieldURI, l.baseURI, logger.FieldCount, len(files)))
	return files, nil
}

// Next returns the next URI item, with "protocol" and "source" metadata.
func (l *Lister) Next(ctx context.Context) (item.Item[string], bool, error) {
	if !l.started {
		if err := l.Reset(ctx, nil); err != nil {
			return item.Item[string]{}, false, err
		}
	}
	if l.idx >= len(l.files) {
		return item.Item[string]{}, false, nil
	}
	uri := l.files[l.idx]
	l.idx++
	return item.Item[string]{
		Payload: uri,
		Metadata: item.Metadata{
			item.KeyProtocol: l.protocol,
			item.KeySource:   l.protocol,
		},
	}, true, nil
}

// State returns {"current_idx": n}.
func (l *Lister) State() pipeline.State {
	return pipeline.State{pipeline.KeyCurrentIdx: l.idx}
}

// Files returns a copy of the current listing.
func (l *Lister) Files() []string {
	return append([]string(nil), l.files...)
}

// Close is a no-op; the lister holds no open resources.
func (l *Lister) Close() error { return nil }
