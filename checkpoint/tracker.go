package checkpoint

import (
	"context"
	"time"

	"github.com/kbukum/filestream/logger"
	"github.com/kbukum/filestream/observability"
	"github.com/kbukum/filestream/pipeline"
	"github.com/kbukum/filestream/resilience"
)

// DefaultInterval is the number of items between saves.
const DefaultInterval = 100

// TrackerOptions configures a Tracker.
type TrackerOptions struct {
	// Interval is the number of items between saves. Zero means DefaultInterval.
	Interval int `yaml:"interval" mapstructure:"interval"`
	// Retry is the policy for failed saves.
	Retry resilience.RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// Tracker is a pipeline.Node that saves the state of the node it wraps
// to a Store as items flow through it.
type Tracker[T any] struct {
	node    pipeline.Node[T]
	store   Store
	key     string
	opts    TrackerOptions
	log     *logger.Logger
	metrics *observability.Metrics

	pending int
	dirty   bool
	saves   int

	// lastGood is the state before a failed pull. The node may already
	// have moved past the item that failed, so saves use this instead
	// until a pull succeeds again.
	lastGood pipeline.State
}

// NewTracker wraps node, saving its state under key.
func NewTracker[T any](node pipeline.Node[T], store Store, key string, opts TrackerOptions, log *logger.Logger) *Tracker[T] {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	l := logger.OrNop(log).WithComponent("checkpoint").WithFields(map[string]interface{}{
		logger.FieldCheckpointKey: key,
	})
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
			l.WithError(err).Warn("checkpoint save failed, retrying", logger.Fields(
				"attempt", attempt,
				"backoff", backoff.String(),
			))
		}
	}
	return &Tracker[T]{node: node, store: store, key: key, opts: opts, log: l}
}

// WithMetrics records checkpoint saves to m and returns t.
func (t *Tracker[T]) WithMetrics(m *observability.Metrics) *Tracker[T] {
	t.metrics = m
	return t
}

// Resume resets the wrapped node from the stored checkpoint, or from the
// beginning when there is none. It reports whether a checkpoint was found.
func (t *Tracker[T]) Resume(ctx context.Context) (bool, error) {
	state, err := t.store.Load(ctx, t.key)
	if err != nil {
		return false, err
	}
	if err := t.Reset(ctx, state); err != nil {
		return false, err
	}
	if state != nil {
		t.log.Info("resuming from checkpoint")
	}
	return state != nil, nil
}

// Reset resets the wrapped node from state without touching the store.
func (t *Tracker[T]) Reset(ctx context.Context, state pipeline.State) error {
	t.pending = 0
	t.dirty = false
	t.lastGood = nil
	return t.node.Reset(ctx, state)
}

// Next saves the progress made so far when the interval is reached, then
// pulls the next item. At end of sequence unsaved progress is saved.
//
// When the pull fails, later saves record the state from before it, so a
// resumed run retries the item that failed instead of skipping it.
func (t *Tracker[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if t.pending >= t.opts.Interval {
		if err := t.Flush(ctx); err != nil {
			return zero, false, err
		}
	}
	before := t.node.State()
	v, ok, err := t.node.Next(ctx)
	if err != nil {
		if t.lastGood == nil {
			t.lastGood = before
		}
		return zero, false, err
	}
	t.lastGood = nil
	if !ok {
		if t.dirty {
			if err := t.Flush(ctx); err != nil {
				return zero, false, err
			}
		}
		return zero, false, nil
	}
	t.pending++
	t.dirty = true
	return v, true, nil
}

// Flush saves the current state of the wrapped node, or the state before
// the last failed pull if no pull has succeeded since.
func (t *Tracker[T]) Flush(ctx context.Context) error {
	state := t.node.State()
	if t.lastGood != nil {
		state = t.lastGood
	}
	start := time.Now()
	err := resilience.RetryFunc(ctx, t.opts.Retry, func() error {
		return t.store.Save(ctx, t.key, state)
	})
	t.metrics.RecordCheckpointSave(ctx, err, time.Since(start))
	if err != nil {
		t.log.WithError(err).Error("checkpoint save failed")
		return err
	}
	t.pending = 0
	t.dirty = false
	t.saves++
	t.log.Debug("checkpoint saved", logger.DurationFields("save", time.Since(start)))
	return nil
}

// Saves returns the number of successful saves.
func (t *Tracker[T]) Saves() int { return t.saves }

// State returns the state of the wrapped node.
func (t *Tracker[T]) State() pipeline.State { return t.node.State() }

// Close saves any unsaved progress and closes the wrapped node. Call it
// only once the last item returned by Next has been handled.
func (t *Tracker[T]) Close() error {
	var flushErr error
	if t.dirty {
		flushErr = t.Flush(context.Background())
	}
	closeErr := t.node.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
