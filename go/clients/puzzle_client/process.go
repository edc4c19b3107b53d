package puzzle_client

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/mcdev12/wordduel/go/internal/models"
	"github.com/rs/zerolog/log"
)

type ProcessConfig struct {
	Command string
	Args    []string // placed before "generate-sized <size>"
	Dir     string
	Timeout time.Duration
}

// ProcessClient runs a generator binary once per puzzle and parses its stdout.
type ProcessClient struct {
	cfg ProcessConfig
}

func NewProcessClient(cfg ProcessConfig) *ProcessClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &ProcessClient{cfg: cfg}
}

func (c *ProcessClient) RequestPuzzle(ctx context.Context, size int) (*models.Puzzle, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	args := append(append([]string{}, c.cfg.Args...), "generate-sized", strconv.Itoa(size))
	cmd := exec.CommandContext(ctx, c.cfg.Command, args...)
	cmd.Dir = c.cfg.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		log.Error().
			Err(err).
			Str("command", c.cfg.Command).
			Str("stderr", tail(stderr.Bytes(), 512)).
			Msg("puzzle generator failed")
		return nil, fmt.Errorf("puzzle generator failed: %w", err)
	}

	log.Debug().
		Int("size", size).
		Dur("took", time.Since(start)).
		Msg("puzzle generated")

	return Parse(stdout.Bytes())
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
