// Package pipeline defines the checkpointable pull-iterator contract shared
// by every stage in filestream, plus a handful of generic operators.
//
// A Node is pulled with Next until it reports end-of-sequence, can report
// its position with State at any point between calls, and can be rebuilt
// at that position with Reset. Parent nodes nest the checkpoint of their
// upstream node under the "source" key, so a whole chain checkpoints as one
// nested State:
//
//	src := pipeline.FromSlice([]int{1, 2, 3, 4, 5})
//	evens := pipeline.Filter(src, func(n int) bool { return n%2 == 0 })
//	first, _ := pipeline.Take(ctx, evens, 1)  // [2]
//	saved := evens.State()                    // {"source": {"current_idx": 2}}
//
//	resumed := pipeline.Filter(pipeline.FromSlice([]int{1, 2, 3, 4, 5}), isEven)
//	_ = resumed.Reset(ctx, saved)
//	rest, _ := pipeline.Collect(ctx, resumed) // [4]
//
// # Operators
//
//   - Map: transform each value
//   - Filter: keep values matching a predicate
//   - Batch: group values into fixed-size slices
//   - Cycle: replay the source a number of times
//   - Shuffle: seeded buffer shuffle with a resumable generator
//
// Nodes are not safe for concurrent use. Run one chain per goroutine.
package pipeline
