package clients

import "fmt"

// PuzzleSource names where puzzles come from.
type PuzzleSource string

const (
	// PuzzleSourceHTTP fetches puzzles from a generator service
	PuzzleSourceHTTP PuzzleSource = "http"

	// PuzzleSourceProcess runs a local generator binary per puzzle
	PuzzleSourceProcess PuzzleSource = "process"
)

// ParsePuzzleSource validates a configured source name.
func ParsePuzzleSource(s string) (PuzzleSource, error) {
	switch src := PuzzleSource(s); src {
	case PuzzleSourceHTTP, PuzzleSourceProcess:
		return src, nil
	}
	return "", fmt.Errorf("unknown puzzle source %q", s)
}
