// Package checkpoint persists pipeline checkpoints so a chain can resume
// after a restart.
//
// A Store saves and loads pipeline.State values by key. FileStore keeps one
// JSON file per key, MemoryStore keeps them in process, and RedisStore keeps
// them in Redis with an optional TTL.
//
// A Tracker wraps a pipeline node and saves its state every few items:
//
//	tr := checkpoint.NewTracker(lines, store, "daily-logs", checkpoint.TrackerOptions{Interval: 1000}, log)
//	if err := tr.Resume(ctx); err != nil {
//	    return err
//	}
//	defer tr.Close()
//	for {
//	    it, ok, err := tr.Next(ctx)
//	    ...
//	}
//
// A save happens at the start of a pull, once the previous items have been
// handed to the caller and the caller has come back for more. A crash while
// an item is being handled therefore replays that item on resume instead of
// losing it.
package checkpoint
