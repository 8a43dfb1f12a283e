package pipeline

import "context"

// Map transforms each value using fn. Its checkpoint is its source's.
func Map[I, O any](src Node[I], fn func(context.Context, I) (O, error)) Node[O] {
	return &mapNode[I, O]{source: src, fn: fn}
}

// Filter keeps only values that satisfy the predicate. Rejected values are
// skipped in a loop, so long rejected runs do not grow the stack.
func Filter[T any](src Node[T], fn func(T) bool) Node[T] {
	return &filterNode[T]{source: src, fn: fn}
}

// ResetSource resets src from the "source" entry of a parent checkpoint.
// A nil parent state resets src from the beginning.
func ResetSource[T any](ctx context.Context, src Node[T], state State) error {
	var sub State
	if state != nil {
		var err error
		if sub, err = state.Sub(KeySource); err != nil {
			return err
		}
	}
	return src.Reset(ctx, sub)
}

type mapNode[I, O any] struct {
	source  Node[I]
	fn      func(context.Context, I) (O, error)
	started bool
}

func (n *mapNode[I, O]) Reset(ctx context.Context, state State) error {
	n.started = true
	return ResetSource(ctx, n.source, state)
}

func (n *mapNode[I, O]) Next(ctx context.Context) (O, bool, error) {
	var zero O
	if !n.started {
		if err := n.Reset(ctx, nil); err != nil {
			return zero, false, err
		}
	}
	val, ok, err := n.source.Next(ctx)
	if err != nil || !ok {
		return zero, false, err
	}
	out, err := n.fn(ctx, val)
	if err != nil {
		return zero, false, err
	}
	return out, true, nil
}

func (n *mapNode[I, O]) State() State { return State{KeySource: n.source.State()} }

func (n *mapNode[I, O]) Close() error { return n.source.Close() }

type filterNode[T any] struct {
	source  Node[T]
	fn      func(T) bool
	started bool
}

func (n *filterNode[T]) Reset(ctx context.Context, state State) error {
	n.started = true
	return ResetSource(ctx, n.source, state)
}

func (n *filterNode[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if !n.started {
		if err := n.Reset(ctx, nil); err != nil {
			return zero, false, err
		}
	}
	for {
		val, ok, err := n.source.Next(ctx)
		if err != nil || !ok {
			return zero, false, err
		}
		if n.fn(val) {
			return val, true, nil
		}
	}
}

func (n *filterNode[T]) State() State { return State{KeySource: n.source.State()} }

func (n *filterNode[T]) Close() error { return n.source.Close() }
