package gateway

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/wordduel/go/internal/duel/answers"
	"github.com/mcdev12/wordduel/go/internal/models"
)

type call struct {
	Op           string
	PlayerID     string
	MatchID      uuid.UUID
	ConnectionID string
	Score        int
	TimeTaken    int
	WordID       string
	Candidate    string
}

type fakeCoordinator struct {
	mu    sync.Mutex
	calls []call
	err   error
	match *models.Match
	stats *models.PlayerStats
	lost  chan string
}

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{lost: make(chan string, 8)}
}

func (f *fakeCoordinator) record(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.err
}

func (f *fakeCoordinator) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeCoordinator) SeekMatch(_ context.Context, playerID, connectionID string) (*models.Match, error) {
	return nil, f.record(call{Op: "seek", PlayerID: playerID, ConnectionID: connectionID})
}

func (f *fakeCoordinator) Rejoin(_ context.Context, playerID string, matchID uuid.UUID, connectionID string) (*models.Match, error) {
	return f.match, f.record(call{Op: "rejoin", PlayerID: playerID, MatchID: matchID, ConnectionID: connectionID})
}

func (f *fakeCoordinator) ReportFinish(_ context.Context, playerID string, matchID uuid.UUID, score, timeTaken int) error {
	return f.record(call{Op: "report", PlayerID: playerID, MatchID: matchID, Score: score, TimeTaken: timeTaken})
}

func (f *fakeCoordinator) Forfeit(_ context.Context, playerID string, matchID uuid.UUID) error {
	return f.record(call{Op: "forfeit", PlayerID: playerID, MatchID: matchID})
}

func (f *fakeCoordinator) CheckAnswer(_ context.Context, playerID string, matchID uuid.UUID, wordID, candidate string) (answers.Result, error) {
	if err := f.record(call{Op: "check", PlayerID: playerID, MatchID: matchID, WordID: wordID, Candidate: candidate}); err != nil {
		return answers.Result{}, err
	}
	return answers.Result{WordID: wordID, Correct: candidate == "cat", ScoreDelta: 10}, nil
}

func (f *fakeCoordinator) ConnectionLost(_ context.Context, connectionID string) error {
	f.lost <- connectionID
	return f.record(call{Op: "lost", ConnectionID: connectionID})
}

func (f *fakeCoordinator) GetMatch(_ context.Context, playerID string, matchID uuid.UUID) (*models.Match, error) {
	if err := f.record(call{Op: "get", PlayerID: playerID, MatchID: matchID}); err != nil {
		return nil, err
	}
	return f.match, nil
}

func (f *fakeCoordinator) GetStats(_ context.Context, playerID string) (*models.PlayerStats, error) {
	if err := f.record(call{Op: "stats", PlayerID: playerID}); err != nil {
		return nil, err
	}
	return f.stats, nil
}
