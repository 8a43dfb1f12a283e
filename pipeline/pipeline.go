package pipeline

import (
	"context"

	apperrors "github.com/kbukum/filestream/errors"
)

// Iterator provides pull-based sequential access to a stream of values.
type Iterator[T any] interface {
	// Next returns the next value. Returns (zero, false, nil) when exhausted.
	Next(ctx context.Context) (T, bool, error)
	// Close releases any resources held by the iterator and its upstream.
	Close() error
}

// Node is a checkpointable Iterator.
//
// Reset (re)initializes the node from a checkpoint previously returned by
// State; a nil State starts from the beginning. Calling Next on a node that
// was never reset resets it with a nil State first.
type Node[T any] interface {
	Iterator[T]
	Reset(ctx context.Context, state State) error
	State() State
}

// Runnable is a fully-configured pipeline ready to execute.
type Runnable struct {
	run func(ctx context.Context) error
}

// Run executes the pipeline until completion or context cancellation.
func (r *Runnable) Run(ctx context.Context) error {
	return r.run(ctx)
}

// --- Terminals ---

// Drain creates a Runnable that pulls all values and sends each to sink.
// The iterator is closed when the run ends.
func Drain[T any](it Iterator[T], sink func(context.Context, T) error) *Runnable {
	return &Runnable{
		run: func(ctx context.Context) error {
			defer it.Close() //nolint:errcheck // close error is secondary to the run result
			for {
				val, ok, err := it.Next(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
				if err := sink(ctx, val); err != nil {
					return err
				}
			}
		},
	}
}

// Collect pulls every value into a slice and closes the iterator.
func Collect[T any](ctx context.Context, it Iterator[T]) ([]T, error) {
	defer it.Close() //nolint:errcheck // close error is secondary to the collected result
	return pull(ctx, it, -1)
}

// ForEach pulls all values and calls fn for each. Convenience wrapper around Drain.
func ForEach[T any](ctx context.Context, it Iterator[T], fn func(context.Context, T) error) error {
	return Drain(it, fn).Run(ctx)
}

// Take pulls at most n values. Unlike Collect it leaves the iterator open,
// so the caller can checkpoint or keep pulling afterwards.
func Take[T any](ctx context.Context, it Iterator[T], n int) ([]T, error) {
	if n <= 0 {
		return nil, nil
	}
	return pull(ctx, it, n)
}

func pull[T any](ctx context.Context, it Iterator[T], limit int) ([]T, error) {
	var out []T
	for limit < 0 || len(out) < limit {
		val, ok, err := it.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			break
		}
		out = append(out, val)
	}
	return out, nil
}

// --- Sources ---

// SliceSource is a checkpointable in-memory source.
// Its state is {"current_idx": n}, the index of the next value to emit.
type SliceSource[T any] struct {
	items   []T
	index   int
	started bool
}

// FromSlice creates a source over items. The slice is not copied.
func FromSlice[T any](items []T) *SliceSource[T] {
	return &SliceSource[T]{items: items}
}

// Reset positions the source at the checkpointed index.
func (s *SliceSource[T]) Reset(_ context.Context, state State) error {
	s.started = true
	s.index = 0
	if state == nil {
		return nil
	}
	idx, err := state.Int(KeyCurrentIdx)
	if err != nil {
		return err
	}
	if idx < 0 || idx > len(s.items) {
		return apperrors.InvalidState("current_idx out of range")
	}
	s.index = idx
	return nil
}

// Next returns the value at the current index.
func (s *SliceSource[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if !s.started {
		if err := s.Reset(ctx, nil); err != nil {
			return zero, false, err
		}
	}
	if s.index >= len(s.items) {
		return zero, false, nil
	}
	val := s.items[s.index]
	s.index++
	return val, true, nil
}

// State returns {"current_idx": n}.
func (s *SliceSource[T]) State() State {
	return State{KeyCurrentIdx: s.index}
}

// Close is a no-op.
func (s *SliceSource[T]) Close() error { return nil }
