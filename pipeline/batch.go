package pipeline

import "context"

// Batch groups up to size values into a slice. The final partial batch is
// emitted unless dropLast is set. size <= 0 defaults to 1.
//
// Batches are assembled within a single Next call, so the checkpoint is
// always taken at a batch boundary and is simply the source's.
func Batch[T any](src Node[T], size int, dropLast bool) Node[[]T] {
	if size <= 0 {
		size = 1
	}
	return &batchNode[T]{source: src, size: size, dropLast: dropLast}
}

type batchNode[T any] struct {
	source   Node[T]
	size     int
	dropLast bool
	started  bool
}

func (n *batchNode[T]) Reset(ctx context.Context, state State) error {
	n.started = true
	return ResetSource(ctx, n.source, state)
}

func (n *batchNode[T]) Next(ctx context.Context) ([]T, bool, error) {
	if !n.started {
		if err := n.Reset(ctx, nil); err != nil {
			return nil, false, err
		}
	}
	batch := make([]T, 0, n.size)
	for len(batch) < n.size {
		val, ok, err := n.source.Next(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			break
		}
		batch = append(batch, val)
	}
	if len(batch) == 0 || (n.dropLast && len(batch) < n.size) {
		return nil, false, nil
	}
	return batch, true, nil
}

func (n *batchNode[T]) State() State { return State{KeySource: n.source.State()} }

func (n *batchNode[T]) Close() error { return n.source.Close() }
