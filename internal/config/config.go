package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// MatchingStrategy selects when the matcher runs.
type MatchingStrategy string

const (
	// StrategyEager runs the matcher synchronously inside AddOrder and serves
	// matching-size queries from the cached running total in O(1).
	StrategyEager MatchingStrategy = "eager"
	// StrategyLazy defers matching until GetMatchingSizeForSecurity is called.
	StrategyLazy MatchingStrategy = "lazy"
)

// MatchingConfig configures the matching engine.
type MatchingConfig struct {
	Strategy MatchingStrategy `mapstructure:"strategy" yaml:"strategy"`
	// Parallel dispatches lazy per-order scans to a bounded worker pool.
	Parallel bool `mapstructure:"parallel" yaml:"parallel"`
	// Workers bounds the pool; 0 means available hardware parallelism.
	Workers int `mapstructure:"workers" yaml:"workers"`
	// MatchLog enables the append-only OrderFill record log.
	MatchLog bool `mapstructure:"match_log" yaml:"match_log"`
}

// CancelConfig configures batch cancellation.
type CancelConfig struct {
	// Parallel splits large batch cancellations into per-worker chunks.
	Parallel bool `mapstructure:"parallel" yaml:"parallel"`
	// ChunkSize is the minimum per-worker chunk for the parallel path to be
	// worth the dispatch overhead; smaller batches run sequentially.
	ChunkSize int `mapstructure:"chunk_size" yaml:"chunk_size"`
}

// LoggingConfig configures the zap logger built by pkg/logger.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	// Verbose turns on per-decision debug logging inside the cache.
	Verbose bool `mapstructure:"verbose" yaml:"verbose"`
}

// Config is the full cache configuration. Every toggle is explicit
// constructor input; the cache keeps no process-wide mutable state.
type Config struct {
	Matching MatchingConfig `mapstructure:"matching" yaml:"matching"`
	Cancel   CancelConfig   `mapstructure:"cancel" yaml:"cancel"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	// SilentErrors makes absence conditions (duplicate id on add, unknown
	// order/user/security on cancel or query) no-ops returning zero values
	// instead of errors.
	SilentErrors bool `mapstructure:"silent_errors" yaml:"silent_errors"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		Matching: MatchingConfig{
			Strategy: StrategyEager,
			Parallel: false,
			Workers:  0,
			MatchLog: false,
		},
		Cancel: CancelConfig{
			Parallel:  false,
			ChunkSize: 64,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Verbose: false,
		},
		SilentErrors: true,
	}
}

// Validate checks the configuration for invalid combinations.
func (c *Config) Validate() error {
	switch c.Matching.Strategy {
	case StrategyEager, StrategyLazy:
	default:
		return fmt.Errorf("invalid matching strategy %q", c.Matching.Strategy)
	}
	if c.Matching.Workers < 0 {
		return fmt.Errorf("matching workers must be >= 0, got %d", c.Matching.Workers)
	}
	if c.Cancel.ChunkSize <= 0 {
		return fmt.Errorf("cancel chunk size must be positive, got %d", c.Cancel.ChunkSize)
	}
	return nil
}

// EffectiveWorkers resolves the worker bound, defaulting to the available
// hardware parallelism.
func (c *Config) EffectiveWorkers() int {
	if c.Matching.Workers > 0 {
		return c.Matching.Workers
	}
	return runtime.NumCPU()
}

// Load reads configuration from defaults, an optional YAML file, and
// AUCTIONCACHE_* environment variables, in increasing precedence.
func Load(path string) (Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("matching.strategy", string(def.Matching.Strategy))
	v.SetDefault("matching.parallel", def.Matching.Parallel)
	v.SetDefault("matching.workers", def.Matching.Workers)
	v.SetDefault("matching.match_log", def.Matching.MatchLog)
	v.SetDefault("cancel.parallel", def.Cancel.Parallel)
	v.SetDefault("cancel.chunk_size", def.Cancel.ChunkSize)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.verbose", def.Logging.Verbose)
	v.SetDefault("silent_errors", def.SilentErrors)

	v.SetEnvPrefix("AUCTIONCACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
