package pipeline

import (
	"context"
	"encoding/base64"
	"math/rand/v2"

	apperrors "github.com/kbukum/filestream/errors"
)

// Shuffle emits the values of src in a pseudo-random order drawn from a
// buffer of up to bufferSize values. The generator is a seeded PCG whose
// internal state is part of the checkpoint, so a resumed shuffle yields the
// same sequence as an uninterrupted one.
//
// State: {"source": ..., "rng_state": base64 PCG state,
// "buffer": buffered values, "num_shuffled": values emitted}.
func Shuffle[T any](src Node[T], bufferSize int, seed uint64) (Node[T], error) {
	if bufferSize < 1 {
		return nil, apperrors.InvalidInput("buffer_size", "must be at least 1")
	}
	return &shuffleNode[T]{source: src, size: bufferSize, seed: seed}, nil
}

type shuffleNode[T any] struct {
	source      Node[T]
	size        int
	seed        uint64
	pcg         *rand.PCG
	rng         *rand.Rand
	buffer      []T
	numShuffled int
	started     bool
}

func (n *shuffleNode[T]) Reset(ctx context.Context, state State) error {
	n.started = true
	n.pcg = rand.NewPCG(n.seed, n.seed^0x9e3779b97f4a7c15)
	n.rng = rand.New(n.pcg)
	n.buffer = nil
	n.numShuffled = 0

	if state != nil {
		if err := n.restore(state); err != nil {
			return err
		}
	}
	return ResetSource(ctx, n.source, state)
}

func (n *shuffleNode[T]) restore(state State) error {
	encoded, err := state.String("rng_state")
	if err != nil {
		return err
	}
	if encoded != "" {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return apperrors.InvalidState("rng_state is not base64").WithCause(err)
		}
		if err := n.pcg.UnmarshalBinary(raw); err != nil {
			return apperrors.InvalidState("rng_state is corrupt").WithCause(err)
		}
	}
	if n.buffer, err = decodeSlice[T](state["buffer"]); err != nil {
		return apperrors.InvalidState("buffer does not match the element type").WithCause(err)
	}
	n.numShuffled, err = state.Int("num_shuffled")
	return err
}

func (n *shuffleNode[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if !n.started {
		if err := n.Reset(ctx, nil); err != nil {
			return zero, false, err
		}
	}
	for len(n.buffer) < n.size {
		val, ok, err := n.source.Next(ctx)
		if err != nil {
			return zero, false, err
		}
		if !ok {
			break
		}
		n.buffer = append(n.buffer, val)
	}
	if len(n.buffer) == 0 {
		return zero, false, nil
	}

	idx := n.rng.IntN(len(n.buffer))
	last := len(n.buffer) - 1
	val := n.buffer[idx]
	n.buffer[idx] = n.buffer[last]
	n.buffer[last] = zero
	n.buffer = n.buffer[:last]
	n.numShuffled++
	return val, true, nil
}

func (n *shuffleNode[T]) State() State {
	st := State{
		KeySource:      n.source.State(),
		"buffer":       append([]T(nil), n.buffer...),
		"num_shuffled": n.numShuffled,
	}
	if n.pcg != nil {
		if raw, err := n.pcg.MarshalBinary(); err == nil {
			st["rng_state"] = base64.StdEncoding.EncodeToString(raw)
		}
	}
	return st
}

func (n *shuffleNode[T]) Close() error { return n.source.Close() }
