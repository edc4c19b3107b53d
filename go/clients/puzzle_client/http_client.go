package puzzle_client

import (
	"context"
	"fmt"
	"time"

	"github.com/mcdev12/wordduel/go/clients"
	"github.com/mcdev12/wordduel/go/internal/models"
)

// HTTPClient fetches puzzles from a generator service.
type HTTPClient struct {
	*clients.BaseClient
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	client := &HTTPClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}
	client.SetHeader("Accept", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return client
}

func (c *HTTPClient) RequestPuzzle(ctx context.Context, size int) (*models.Puzzle, error) {
	body, err := c.Get(ctx, fmt.Sprintf("/puzzles?size=%d", size))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch puzzle: %w", err)
	}
	return Parse(body)
}
