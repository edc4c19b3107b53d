package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mcdev12/wordduel/go/clients"
	"github.com/mcdev12/wordduel/go/internal/duel/coordinator"
	"gopkg.in/yaml.v3"
)

const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"

	BroadcastNATS  = "nats"
	BroadcastLocal = "local"
)

type Config struct {
	Match struct {
		PuzzleSize   int           `yaml:"puzzle_size"`
		ReportGrace  time.Duration `yaml:"report_grace"`
		SeekTTL      time.Duration `yaml:"seek_ttl"`
		ReapInterval time.Duration `yaml:"reap_interval"`
	} `yaml:"match"`

	Scheduler struct {
		BatchSize int `yaml:"batch_size"`
		Workers   int `yaml:"workers"`
	} `yaml:"scheduler"`

	Store     string `yaml:"store"`
	Broadcast string `yaml:"broadcast"`

	Puzzle struct {
		Mode    string        `yaml:"mode"`
		URL     string        `yaml:"url"`
		Command string        `yaml:"command"`
		Args    []string      `yaml:"args"`
		Dir     string        `yaml:"dir"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"puzzle"`

	Ledger struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"ledger"`
}

func defaultConfig() *Config {
	var cfg Config
	cfg.Match.PuzzleSize = coordinator.DefaultPuzzleSize
	cfg.Match.ReportGrace = coordinator.DefaultReportGrace
	cfg.Match.SeekTTL = coordinator.DefaultSeekTTL
	cfg.Match.ReapInterval = time.Minute
	cfg.Scheduler.BatchSize = coordinator.DefaultBatchSize
	cfg.Scheduler.Workers = coordinator.DefaultWorkers
	cfg.Store = StorePostgres
	cfg.Broadcast = BroadcastNATS
	cfg.Puzzle.Mode = string(clients.PuzzleSourceHTTP)
	cfg.Puzzle.URL = "http://localhost:3001"
	cfg.Puzzle.Timeout = 30 * time.Second
	cfg.Ledger.Enabled = true
	return &cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// loadConfig reads the YAML file at path on top of the defaults, then applies
// environment overrides. A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.applyEnv()
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() {
	c.Match.PuzzleSize = getEnvAsInt("PUZZLE_SIZE", c.Match.PuzzleSize)
	c.Match.ReportGrace = getEnvAsDuration("REPORT_GRACE", c.Match.ReportGrace)
	c.Match.SeekTTL = getEnvAsDuration("SEEK_TTL", c.Match.SeekTTL)
	c.Store = getEnv("DUEL_STORE", c.Store)
	c.Broadcast = getEnv("DUEL_BROADCAST", c.Broadcast)
	c.Puzzle.Mode = getEnv("PUZZLE_MODE", c.Puzzle.Mode)
	c.Puzzle.URL = getEnv("PUZZLE_URL", c.Puzzle.URL)
	c.Puzzle.Command = getEnv("PUZZLE_COMMAND", c.Puzzle.Command)
	c.Ledger.Enabled = getEnvAsBool("LEDGER_ENABLED", c.Ledger.Enabled)
}

func (c *Config) validate() error {
	switch c.Store {
	case StorePostgres, StoreRedis:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	switch c.Broadcast {
	case BroadcastNATS, BroadcastLocal:
	default:
		return fmt.Errorf("unknown broadcast mode %q", c.Broadcast)
	}

	src, err := clients.ParsePuzzleSource(c.Puzzle.Mode)
	if err != nil {
		return err
	}
	if src == clients.PuzzleSourceHTTP && c.Puzzle.URL == "" {
		return errors.New("puzzle.url is required for the http puzzle source")
	}
	if src == clients.PuzzleSourceProcess && c.Puzzle.Command == "" {
		return errors.New("puzzle.command is required for the process puzzle source")
	}

	if c.Match.PuzzleSize <= 0 {
		return fmt.Errorf("puzzle_size must be positive, got %d", c.Match.PuzzleSize)
	}
	if c.Match.ReportGrace <= 0 || c.Match.SeekTTL <= 0 || c.Match.ReapInterval <= 0 {
		return errors.New("report_grace, seek_ttl and reap_interval must be positive")
	}
	return nil
}
