package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kbukum/filestream/config"
	"github.com/kbukum/filestream/logger"
	"github.com/kbukum/filestream/observability"
	"github.com/kbukum/filestream/version"
)

// metricsShutdownTimeout bounds the final metric export.
const metricsShutdownTimeout = 5 * time.Second

// flags holds command-line values that override the loaded configuration.
type flags struct {
	configFile    string
	logLevel      string
	patterns      []string
	strict        bool
	anonymous     bool
	encoding      string
	compression   string
	checkpointDir string
	redisAddr     string
	checkpointKey string
	interval      int
	metrics       string
	binary        bool
	limit         int
}

// runEnv is what every subcommand needs once configuration is resolved.
type runEnv struct {
	cfg     *Config
	log     *logger.Logger
	runID   string
	limit   int
	metrics *observability.Metrics

	shutdownMetrics func(context.Context) error
}

// close flushes exported metrics. Export failures are logged, not returned:
// they never change the outcome of a run.
func (e *runEnv) close() {
	if e.shutdownMetrics == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
	defer cancel()
	if err := e.shutdownMetrics(ctx); err != nil {
		e.log.WithError(err).Warn("final metric export failed")
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           appName,
		Short:         "Stream files from local disk, object stores and HTTP as JSON lines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.configFile, "config", "", "config file (default: ./config.yml or ./config/filestream.yml)")
	pf.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringArrayVarP(&f.patterns, "pattern", "p", nil, "glob pattern relative to the base URI (repeatable)")
	pf.BoolVar(&f.strict, "strict", false, "fail when the base URI cannot be listed")
	pf.BoolVar(&f.anonymous, "anonymous", false, "access object stores without credentials")
	pf.StringVar(&f.encoding, "encoding", "", "text encoding of the files (default utf-8)")
	pf.StringVar(&f.compression, "compression", "", `compression codec extension, or "disable" (default: from file extension)`)
	pf.StringVar(&f.checkpointDir, "checkpoint-dir", "", "directory for checkpoint files")
	pf.StringVar(&f.redisAddr, "redis-addr", "", "Redis address for checkpoints (host:port)")
	pf.StringVar(&f.checkpointKey, "checkpoint-key", "", "checkpoint name; enables resume")
	pf.IntVar(&f.interval, "interval", 0, "items between checkpoint saves")
	pf.StringVar(&f.metrics, "metrics-endpoint", "", "OTLP/HTTP collector (host:port) to export metrics to")

	root.AddCommand(
		newListCmd(f),
		newReadCmd(f),
		newLinesCmd(f),
		newVersionCmd(),
	)
	return root
}

// setup loads configuration, applies flag overrides and builds the logger.
func setup(cmd *cobra.Command, args []string, f *flags) (*runEnv, error) {
	cfg := &Config{}
	opts := []config.LoaderOption{}
	if f.configFile != "" {
		opts = append(opts, config.WithConfigFile(f.configFile))
	}
	if err := config.LoadConfig(appName, cfg, opts...); err != nil {
		return nil, err
	}
	f.apply(cmd, args, cfg)

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := logger.NewWithWriter(&cfg.Logging, cfg.Name, cmd.ErrOrStderr()).
		WithFields(map[string]interface{}{
			logger.FieldRunID: runID,
			"version":         version.Get().Short(),
		})
	env := &runEnv{cfg: cfg, log: log, runID: runID, limit: f.limit}

	if cfg.Metrics.Enabled() {
		cfg.Metrics.ServiceName = cfg.Name
		cfg.Metrics.ServiceVersion = version.Get().Short()
		cfg.Metrics.Environment = cfg.Environment
		mp, err := observability.InitMeter(cmd.Context(), &cfg.Metrics, log)
		if err != nil {
			return nil, err
		}
		env.shutdownMetrics = mp.Shutdown
		if env.metrics, err = observability.NewMetrics(mp.Meter(observability.MeterName)); err != nil {
			env.close()
			return nil, err
		}
	}
	return env, nil
}

// apply overrides cfg with the flags the user actually set.
func (f *flags) apply(cmd *cobra.Command, args []string, cfg *Config) {
	changed := cmd.Flags().Changed
	if len(args) > 0 {
		cfg.Source.BaseURI = args[0]
	}
	if changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if changed("pattern") {
		cfg.Source.Patterns = f.patterns
	}
	if changed("strict") {
		cfg.Source.Strict = f.strict
	}
	if changed("anonymous") {
		cfg.Source.Storage.Anonymous = f.anonymous
	}
	if changed("encoding") {
		cfg.Reader.Encoding = f.encoding
	}
	if changed("compression") {
		cfg.Reader.Compression = f.compression
	}
	if changed("checkpoint-dir") {
		cfg.Checkpoint.Dir = f.checkpointDir
	}
	if changed("redis-addr") {
		cfg.Checkpoint.Redis.Addr = f.redisAddr
	}
	if changed("checkpoint-key") {
		cfg.Checkpoint.Key = f.checkpointKey
	}
	if changed("interval") {
		cfg.Checkpoint.Interval = f.interval
	}
	if changed("metrics-endpoint") {
		cfg.Metrics.Endpoint = f.metrics
		cfg.Metrics.Insecure = true
	}
}
