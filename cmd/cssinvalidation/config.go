package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	css "github.com/ericchiang/css-invalidation"
	"github.com/ericchiang/css-invalidation/invalidation"
)

// Config holds the tunables of the command line tool.
type Config struct {
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level"`
	// MaxNestingDepth bounds how deep the index follows nested selector
	// lists before falling back to a full recalc.
	MaxNestingDepth int `yaml:"max_nesting_depth"`
	// BloomThreshold is the number of self-invalidating class and id names
	// kept as sets before the rest go to the Bloom filter. -1 disables the
	// filter.
	BloomThreshold int `yaml:"bloom_threshold"`
	// Output is "text" or "yaml".
	Output string `yaml:"output"`
	// MetricsNamespace prefixes the metric names printed after indexing.
	MetricsNamespace string `yaml:"metrics_namespace"`
}

// DefaultConfig returns the configuration used without a config file.
func DefaultConfig() Config {
	opts := invalidation.DefaultOptions()
	return Config{
		LogLevel:         "warn",
		MaxNestingDepth:  opts.MaxDepth,
		BloomThreshold:   opts.BloomThreshold,
		Output:           "text",
		MetricsNamespace: "cssinvalidation",
	}
}

// LoadConfig reads a YAML config file. Fields missing from the file keep
// their default values. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read the config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the config values.
func (c Config) Validate() error {
	var errs []error
	if _, err := c.level(); err != nil {
		errs = append(errs, err)
	}
	if c.MaxNestingDepth <= 0 {
		errs = append(errs, fmt.Errorf("max_nesting_depth must be positive, got %d", c.MaxNestingDepth))
	} else if c.MaxNestingDepth > 4*css.MaxNestingDepth {
		errs = append(errs, fmt.Errorf("max_nesting_depth must be at most %d, got %d", 4*css.MaxNestingDepth, c.MaxNestingDepth))
	}
	if c.BloomThreshold < -1 {
		errs = append(errs, fmt.Errorf("bloom_threshold must be -1 or more, got %d", c.BloomThreshold))
	}
	switch c.Output {
	case "text", "yaml":
	default:
		errs = append(errs, fmt.Errorf("output must be text or yaml, got %q", c.Output))
	}
	if c.MetricsNamespace == "" {
		errs = append(errs, errors.New("metrics_namespace must not be empty"))
	}
	return errors.Join(errs...)
}

func (c Config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// Logger returns a text logger writing to w at the configured level.
func (c Config) Logger(w io.Writer) *slog.Logger {
	l, err := c.level()
	if err != nil {
		l = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

// Options returns the builder options for the config.
func (c Config) Options(logger *slog.Logger) invalidation.Options {
	threshold := c.BloomThreshold
	if threshold == 0 {
		// The builder reads zero as "use the default".
		threshold = 1
	}
	return invalidation.Options{
		BloomThreshold: threshold,
		MaxDepth:       c.MaxNestingDepth,
		Logger:         logger,
	}
}
