package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Match.PuzzleSize)
	assert.Equal(t, 60*time.Second, cfg.Match.ReportGrace)
	assert.Equal(t, 10*time.Minute, cfg.Match.SeekTTL)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, BroadcastNATS, cfg.Broadcast)
	assert.Equal(t, "http", cfg.Puzzle.Mode)
	assert.True(t, cfg.Ledger.Enabled)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
match:
  puzzle_size: 5
  report_grace: 30s
  seek_ttl: 2m
scheduler:
  batch_size: 20
  workers: 4
store: redis
broadcast: local
puzzle:
  mode: process
  command: ./generator
  args: ["--seed", "42"]
  timeout: 5s
ledger:
  enabled: false
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Match.PuzzleSize)
	assert.Equal(t, 30*time.Second, cfg.Match.ReportGrace)
	assert.Equal(t, 2*time.Minute, cfg.Match.SeekTTL)
	assert.Equal(t, time.Minute, cfg.Match.ReapInterval)
	assert.Equal(t, 20, cfg.Scheduler.BatchSize)
	assert.Equal(t, 4, cfg.Scheduler.Workers)
	assert.Equal(t, StoreRedis, cfg.Store)
	assert.Equal(t, BroadcastLocal, cfg.Broadcast)
	assert.Equal(t, "./generator", cfg.Puzzle.Command)
	assert.Equal(t, []string{"--seed", "42"}, cfg.Puzzle.Args)
	assert.Equal(t, 5*time.Second, cfg.Puzzle.Timeout)
	assert.False(t, cfg.Ledger.Enabled)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("DUEL_STORE", "redis")
	t.Setenv("REPORT_GRACE", "15s")
	t.Setenv("PUZZLE_SIZE", "9")
	t.Setenv("LEDGER_ENABLED", "false")

	cfg, err := loadConfig(writeConfig(t, "store: postgres\n"))
	require.NoError(t, err)

	assert.Equal(t, StoreRedis, cfg.Store)
	assert.Equal(t, 15*time.Second, cfg.Match.ReportGrace)
	assert.Equal(t, 9, cfg.Match.PuzzleSize)
	assert.False(t, cfg.Ledger.Enabled)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bad yaml", body: "match: [\n"},
		{name: "unknown store", body: "store: mongo\n"},
		{name: "unknown broadcast", body: "broadcast: carrier-pigeon\n"},
		{name: "unknown puzzle mode", body: "puzzle:\n  mode: magic\n"},
		{name: "process without command", body: "puzzle:\n  mode: process\n"},
		{name: "negative puzzle size", body: "match:\n  puzzle_size: -1\n"},
		{name: "negative grace", body: "match:\n  report_grace: -5s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
