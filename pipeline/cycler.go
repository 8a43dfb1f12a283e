package pipeline

import "context"

// Cycle replays src until it has been fully consumed maxCycles times.
// maxCycles <= 0 cycles forever. A source that yields nothing in a cycle
// ends the sequence instead of spinning.
//
// State: {"source": ..., "num_cycles": completed cycles, "has_started": bool}.
func Cycle[T any](src Node[T], maxCycles int) Node[T] {
	return &cycleNode[T]{source: src, maxCycles: maxCycles}
}

type cycleNode[T any] struct {
	source     Node[T]
	maxCycles  int
	numCycles  int
	hasStarted bool
	started    bool
}

func (n *cycleNode[T]) Reset(ctx context.Context, state State) error {
	n.started = true
	n.numCycles = 0
	n.hasStarted = false
	if state != nil {
		var err error
		if n.numCycles, err = state.Int("num_cycles"); err != nil {
			return err
		}
		if n.hasStarted, err = state.Bool("has_started"); err != nil {
			return err
		}
	}
	return ResetSource(ctx, n.source, state)
}

func (n *cycleNode[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if !n.started {
		if err := n.Reset(ctx, nil); err != nil {
			return zero, false, err
		}
	}
	for !n.finished() {
		val, ok, err := n.source.Next(ctx)
		if err != nil {
			return zero, false, err
		}
		if ok {
			n.hasStarted = true
			return val, true, nil
		}
		if !n.hasStarted {
			return zero, false, nil
		}
		n.numCycles++
		n.hasStarted = false
		if n.finished() {
			break
		}
		if err := n.source.Reset(ctx, nil); err != nil {
			return zero, false, err
		}
	}
	return zero, false, nil
}

func (n *cycleNode[T]) finished() bool {
	return n.maxCycles > 0 && n.numCycles >= n.maxCycles
}

func (n *cycleNode[T]) State() State {
	return State{
		KeySource:     n.source.State(),
		"num_cycles":  n.numCycles,
		"has_started": n.hasStarted,
	}
}

func (n *cycleNode[T]) Close() error { return n.source.Close() }
