package main

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, "config.yaml", `
log_level: debug
bloom_threshold: -1
output: yaml
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	want := DefaultConfig()
	want.LogLevel = "debug"
	want.BloomThreshold = -1
	want.Output = "yaml"
	assert.Equal(t, want, cfg)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "output: [", "failed to parse the config file"},
		{"log level", "log_level: loud", "log_level"},
		{"depth", "max_nesting_depth: 0", "max_nesting_depth must be positive"},
		{"deep", "max_nesting_depth: 1000", "max_nesting_depth must be at most"},
		{"threshold", "bloom_threshold: -2", "bloom_threshold must be -1 or more"},
		{"output", "output: json", "output must be text or yaml"},
		{"namespace", `metrics_namespace: ""`, "metrics_namespace must not be empty"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, "config.yaml", test.content))
			assert.ErrorContains(t, err, test.want)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read the config file")
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output = "json"
	cfg.BloomThreshold = -5
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "output")
	assert.ErrorContains(t, err, "bloom_threshold")
}

func TestConfigLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "error"
	var buf bytes.Buffer
	l := cfg.Logger(&buf)
	l.Warn("hidden")
	l.Error("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.True(t, l.Enabled(context.Background(), slog.LevelError))
}

func TestConfigOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BloomThreshold = 0
	cfg.MaxNestingDepth = 8
	opts := cfg.Options(nil)
	assert.Equal(t, 1, opts.BloomThreshold)
	assert.Equal(t, 8, opts.MaxDepth)

	cfg.BloomThreshold = -1
	assert.Equal(t, -1, cfg.Options(nil).BloomThreshold)
}

func TestConfigFlagOverrides(t *testing.T) {
	path := writeFile(t, "config.yaml", "output: yaml\n")
	out, _, err := run(t, "", "--config", path, "selectors", "a")
	require.NoError(t, err)
	assert.Equal(t, "- a\n", out)

	out, _, err = run(t, "", "--config", path, "-o", "text", "selectors", "a")
	require.NoError(t, err)
	assert.Equal(t, "a\n", out)
}
