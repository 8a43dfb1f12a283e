package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/kbukum/filestream/checkpoint"
	"github.com/kbukum/filestream/logger"
	"github.com/kbukum/filestream/pipeline"
	"github.com/kbukum/filestream/redis"
)

// run pulls items from node and writes each one to out as a JSON line.
// With checkpointing enabled the node is resumed from, and saves progress
// to, the configured store.
func run[T any](ctx context.Context, env *runEnv, node pipeline.Node[T], out io.Writer, op string) (err error) {
	log := env.log
	start := time.Now()

	src := node
	if env.cfg.Checkpoint.Enabled() {
		store, closeStore, err := openStore(ctx, env)
		if err != nil {
			_ = node.Close()
			return err
		}
		defer closeStore()

		cp := env.cfg.Checkpoint
		tr := checkpoint.NewTracker(node, store, cp.Key, checkpoint.TrackerOptions{Interval: cp.Interval}, log).
			WithMetrics(env.metrics)
		resumed, err := tr.Resume(ctx)
		if err != nil {
			_ = node.Close()
			return err
		}
		if !resumed {
			log.Info("no checkpoint found, starting from the beginning", logger.Fields(logger.FieldCheckpointKey, cp.Key))
		}
		src = tr
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	enc := json.NewEncoder(out)
	count := 0
	for env.limit <= 0 || count < env.limit {
		v, ok, nerr := src.Next(ctx)
		if nerr != nil {
			log.WithError(nerr).Error("pipeline failed", logger.Fields(logger.FieldCount, count))
			return nerr
		}
		if !ok {
			break
		}
		if err := enc.Encode(v); err != nil {
			return err
		}
		count++
	}

	fields := logger.DurationFields(op, time.Since(start))
	fields[logger.FieldCount] = count
	log.Info("run finished", fields)
	return nil
}

// openStore builds the checkpoint store selected by the configuration.
func openStore(ctx context.Context, env *runEnv) (checkpoint.Store, func(), error) {
	cp := env.cfg.Checkpoint
	if cp.Redis.Addr == "" {
		store, err := checkpoint.NewFileStore(cp.Dir)
		return store, func() {}, err
	}

	client, err := redis.New(cp.Redis, env.log)
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	store := checkpoint.NewRedisStore(client, checkpoint.RedisOptions{Prefix: cp.RedisPrefix, TTL: cp.TTL})
	return store, func() { _ = client.Close() }, nil
}
