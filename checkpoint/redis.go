package checkpoint

import (
	"context"
	"time"

	apperrors "github.com/kbukum/filestream/errors"
	"github.com/kbukum/filestream/pipeline"
	"github.com/kbukum/filestream/redis"
)

// DefaultRedisPrefix prefixes every key written by a RedisStore.
const DefaultRedisPrefix = "filestream:checkpoint"

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	// Prefix is joined to each key with a colon. Empty means DefaultRedisPrefix.
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
	// TTL expires checkpoints that are not saved again in time. Zero keeps them.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// RedisStore keeps checkpoints as JSON strings in Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a RedisStore on client.
func NewRedisStore(client *redis.Client, opts RedisOptions) *RedisStore {
	if opts.Prefix == "" {
		opts.Prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: opts.Prefix, ttl: opts.TTL}
}

func (s *RedisStore) fullKey(key string) string {
	return s.prefix + ":" + key
}

// Load reads the checkpoint at key.
func (s *RedisStore) Load(ctx context.Context, key string) (pipeline.State, error) {
	raw, ok, err := s.client.Get(ctx, s.fullKey(key))
	if err != nil {
		return nil, apperrors.CheckpointFailed("load", key, err)
	}
	if !ok {
		return nil, nil
	}
	return decode(key, []byte(raw))
}

// Save writes the checkpoint at key, refreshing its TTL.
func (s *RedisStore) Save(ctx context.Context, key string, state pipeline.State) error {
	data, err := encode(key, state)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.fullKey(key), string(data), s.ttl); err != nil {
		return apperrors.CheckpointFailed("save", key, err)
	}
	return nil
}

// Delete removes the checkpoint at key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.fullKey(key)); err != nil {
		return apperrors.CheckpointFailed("delete", key, err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
