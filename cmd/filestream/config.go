package main

import (
	"fmt"
	"time"

	"github.com/kbukum/filestream/checkpoint"
	"github.com/kbukum/filestream/config"
	"github.com/kbukum/filestream/observability"
	"github.com/kbukum/filestream/redis"
	"github.com/kbukum/filestream/storage"
)

const appName = "filestream"

// Config is the filestream CLI configuration.
type Config struct {
	config.AppConfig `yaml:",inline" mapstructure:",squash"`

	Source     SourceConfig     `yaml:"source" mapstructure:"source"`
	Reader     ReaderConfig     `yaml:"reader" mapstructure:"reader"`
	Checkpoint CheckpointConfig `yaml:"checkpoint" mapstructure:"checkpoint"`

	Metrics observability.MeterConfig `yaml:"metrics" mapstructure:"metrics"`
}

// SourceConfig selects the files to read.
type SourceConfig struct {
	BaseURI  string          `yaml:"base_uri" mapstructure:"base_uri"`
	Patterns []string        `yaml:"patterns" mapstructure:"patterns"`
	Strict   bool            `yaml:"strict" mapstructure:"strict"`
	Storage  storage.Options `yaml:"storage" mapstructure:"storage"`
}

// ReaderConfig controls how files are decoded.
type ReaderConfig struct {
	Encoding    string `yaml:"encoding" mapstructure:"encoding"`
	Compression string `yaml:"compression" mapstructure:"compression"`
}

// CheckpointConfig enables resumable runs. Progress is stored under Key in
// either Dir or Redis.
type CheckpointConfig struct {
	Key         string        `yaml:"key" mapstructure:"key"`
	Dir         string        `yaml:"dir" mapstructure:"dir"`
	Interval    int           `yaml:"interval" mapstructure:"interval"`
	Redis       redis.Config  `yaml:"redis" mapstructure:"redis"`
	RedisPrefix string        `yaml:"redis_prefix" mapstructure:"redis_prefix"`
	TTL         time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// Enabled reports whether progress is tracked.
func (c *CheckpointConfig) Enabled() bool { return c.Key != "" }

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = appName
	}
	if c.Environment == "" {
		c.Environment = "production"
	}
	c.AppConfig.ApplyDefaults()
	c.Source.Storage.ApplyDefaults()
	if c.Reader.Encoding == "" {
		c.Reader.Encoding = storage.DefaultEncoding
	}
	if c.Checkpoint.Interval <= 0 {
		c.Checkpoint.Interval = checkpoint.DefaultInterval
	}
	if c.Checkpoint.Redis.Addr != "" {
		c.Checkpoint.Redis.ApplyDefaults()
	}
	c.Metrics.ApplyDefaults()
}

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	if err := c.AppConfig.Validate(); err != nil {
		return err
	}
	if c.Source.BaseURI == "" {
		return fmt.Errorf("config.source.base_uri is required")
	}
	if err := c.Source.Storage.Validate(); err != nil {
		return fmt.Errorf("config.source.storage: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("config.%w", err)
	}
	cp := c.Checkpoint
	if !cp.Enabled() {
		return nil
	}
	switch {
	case cp.Dir == "" && cp.Redis.Addr == "":
		return fmt.Errorf("config.checkpoint: a key needs either dir or redis.addr")
	case cp.Dir != "" && cp.Redis.Addr != "":
		return fmt.Errorf("config.checkpoint: dir and redis.addr are mutually exclusive")
	case cp.Redis.Addr != "":
		if err := cp.Redis.Validate(); err != nil {
			return fmt.Errorf("config.checkpoint.redis: %w", err)
		}
	}
	return nil
}

func (c *Config) openOptions() storage.OpenOptions {
	return storage.OpenOptions{
		Encoding:    c.Reader.Encoding,
		Compression: c.Reader.Compression,
		Storage:     c.Source.Storage,
	}
}
