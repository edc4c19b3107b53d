package coordinator

//go:generate mockgen -package=mocks -destination=mocks/mock_puzzle_provider.go github.com/mcdev12/wordduel/go/internal/duel/coordinator PuzzleProvider
//go:generate mockgen -package=mocks -destination=mocks/mock_score_ledger.go github.com/mcdev12/wordduel/go/internal/duel/coordinator ScoreLedger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/wordduel/go/internal/duel/answers"
	"github.com/mcdev12/wordduel/go/internal/duel/events"
	"github.com/mcdev12/wordduel/go/internal/duel/repository"
	"github.com/mcdev12/wordduel/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPuzzleSize  = 7
	DefaultReportGrace = 60 * time.Second
	DefaultSeekTTL     = 10 * time.Minute
	DefaultBatchSize   = 50
	DefaultWorkers     = 10
)

// PuzzleProvider produces a puzzle of the requested size. Calls may be slow
// and may fail.
type PuzzleProvider interface {
	RequestPuzzle(ctx context.Context, size int) (*models.Puzzle, error)
}

// ScoreLedger records terminal matches for leaderboards and history.
type ScoreLedger interface {
	RecordMatch(ctx context.Context, match *models.Match) error
}

// Broadcaster delivers an event to a connection, wherever it is hosted.
type Broadcaster interface {
	Send(ctx context.Context, connectionID string, event *events.Event) error
}

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

type Config struct {
	Repository  repository.Repository
	Puzzles     PuzzleProvider
	Ledger      ScoreLedger // optional
	Broadcaster Broadcaster
	Clock       Clock

	PuzzleSize  int
	ReportGrace time.Duration
	SeekTTL     time.Duration

	// Scheduler
	BatchSize int
	Workers   int
}

// Coordinator is the only writer of match status. Every transition is a
// compare-and-swap against the repository, so any number of coordinators
// may serve the same store.
type Coordinator struct {
	repo        repository.Repository
	puzzles     PuzzleProvider
	ledger      ScoreLedger
	broadcaster Broadcaster
	clock       Clock

	puzzleSize  int
	reportGrace time.Duration
	seekTTL     time.Duration

	batchSize  int
	wakeCh     chan struct{}
	instanceID string // unique ID for this scheduler instance

	// Worker pool configuration
	numWorkers int
	workCh     chan uuid.UUID

	// Track in-flight work to prevent duplicate processing
	inFlight   map[uuid.UUID]bool
	inFlightMu sync.Mutex
}

func New(cfg *Config) (*Coordinator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Repository == nil {
		return nil, errors.New("repository is required")
	}
	if cfg.Puzzles == nil {
		return nil, errors.New("puzzle provider is required")
	}
	if cfg.Broadcaster == nil {
		return nil, errors.New("broadcaster is required")
	}

	c := &Coordinator{
		repo:        cfg.Repository,
		puzzles:     cfg.Puzzles,
		ledger:      cfg.Ledger,
		broadcaster: cfg.Broadcaster,
		clock:       cfg.Clock,
		puzzleSize:  cfg.PuzzleSize,
		reportGrace: cfg.ReportGrace,
		seekTTL:     cfg.SeekTTL,
		batchSize:   cfg.BatchSize,
		numWorkers:  cfg.Workers,
		wakeCh:      make(chan struct{}, 1),
		instanceID:  uuid.New().String()[:8], // short ID for logging
		inFlight:    make(map[uuid.UUID]bool),
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.puzzleSize <= 0 {
		c.puzzleSize = DefaultPuzzleSize
	}
	if c.reportGrace <= 0 {
		c.reportGrace = DefaultReportGrace
	}
	if c.seekTTL <= 0 {
		c.seekTTL = DefaultSeekTTL
	}
	if c.batchSize <= 0 {
		c.batchSize = DefaultBatchSize
	}
	if c.numWorkers <= 0 {
		c.numWorkers = DefaultWorkers
	}
	c.workCh = make(chan uuid.UUID, c.numWorkers*2)
	return c, nil
}

// SeekMatch pairs the caller with the oldest waiting player or queues it.
// A nil match with a nil error means the caller is waiting.
func (c *Coordinator) SeekMatch(ctx context.Context, playerID, connectionID string) (*models.Match, error) {
	if playerID == "" {
		return nil, ErrUnauthenticated
	}

	out, err := c.repo.SeekMatch(ctx, &repository.SeekMatchInput{
		PlayerID:     playerID,
		ConnectionID: connectionID,
		MatchID:      uuid.New(),
		Now:          c.clock.Now(),
	})
	if err != nil {
		return nil, translate(err)
	}

	if !out.Matched() {
		log.Info().Str("player_id", playerID).Msg("player waiting for opponent")
		c.sendTo(ctx, connectionID, uuid.NewString(), events.EventTypeWaiting, uuid.Nil,
			events.WaitingPayload{Message: "waiting for an opponent"})
		return nil, nil
	}

	match := out.Match
	log.Info().
		Str("match_id", match.ID.String()).
		Str("player_a", match.PlayerA).
		Str("player_b", match.PlayerB).
		Msg("players paired")

	puzzle, err := c.puzzles.RequestPuzzle(ctx, c.puzzleSize)
	if err != nil {
		log.Error().Err(err).Str("match_id", match.ID.String()).Msg("puzzle provider failed")
		c.abort(ctx, match, playerID)
		return nil, ErrPuzzleUnavailable
	}

	match, err = c.repo.UpdateMatch(ctx, match.ID, func(m *models.Match) error {
		if m.Status.IsTerminal() {
			return repository.ErrMatchNotActive
		}
		m.Puzzle = puzzle
		return nil
	})
	if errors.Is(err, repository.ErrMatchNotActive) {
		// A player left while the puzzle was generated; match-over is already out.
		log.Info().Str("match_id", out.Match.ID.String()).Msg("match ended before puzzle was attached")
		return nil, nil
	}
	if err != nil {
		log.Error().Err(err).Str("match_id", out.Match.ID.String()).Msg("failed to attach puzzle")
		c.abort(ctx, out.Match, playerID)
		return nil, translate(err)
	}

	for _, slot := range []models.Slot{models.SlotA, models.SlotB} {
		playerID := match.PlayerIn(slot)
		c.notify(ctx, playerID, eventID(match.ID, events.EventTypeMatched, playerID),
			events.EventTypeMatched, match.ID, events.MatchedPayload{
				MatchID:    match.ID.String(),
				OpponentID: match.PlayerIn(slot.Other()),
				Slot:       slot,
				Puzzle:     match.Puzzle.Public(),
			})
	}
	return match, nil
}

// abort removes a match that could not be started and tells the waiting
// opponent. The caller learns about it from the returned error.
func (c *Coordinator) abort(ctx context.Context, match *models.Match, callerID string) {
	if err := c.repo.AbortMatch(ctx, match.ID); err != nil {
		if errors.Is(err, repository.ErrMatchNotActive) || errors.Is(err, repository.ErrMatchNotFound) {
			return
		}
		log.Error().Err(err).Str("match_id", match.ID.String()).Msg("failed to abort match")
	}
	opponent := match.Opponent(callerID)
	c.notify(ctx, opponent, eventID(match.ID, events.EventTypeError, opponent),
		events.EventTypeError, match.ID, events.ErrorPayload{Message: ErrPuzzleUnavailable.Error()})
}

// ReportFinish records a player's result. The second report ends the match;
// the first arms the opponent grace deadline.
func (c *Coordinator) ReportFinish(ctx context.Context, playerID string, matchID uuid.UUID, score, timeTaken int) error {
	if playerID == "" {
		return ErrUnauthenticated
	}
	if score < 0 || timeTaken < 0 || score > math.MaxInt32 || timeTaken > math.MaxInt32 {
		return ErrInvalidResult
	}

	now := c.clock.Now()
	var recorded, ended bool
	match, err := c.repo.UpdateMatch(ctx, matchID, func(m *models.Match) error {
		recorded, ended = false, false

		slot, ok := m.SlotOf(playerID)
		if !ok {
			return repository.ErrNotInMatch
		}
		res := m.Result(slot)
		if res.Reported() {
			return repository.ErrNoChange
		}
		if m.Status.IsTerminal() {
			return repository.ErrMatchNotActive
		}

		s, t := score, timeTaken
		res.Score, res.TimeTaken = &s, &t
		recorded = true

		if m.Result(slot.Other()).Reported() {
			m.Finish(models.MatchStatusEnded, Winner(m.ResultA, m.ResultB), models.EndReasonFinished, now)
			ended = true
			return nil
		}
		deadline := now.Add(c.reportGrace)
		m.ReportDeadline = &deadline
		return nil
	})
	if err != nil {
		return translate(err)
	}

	switch {
	case ended:
		c.finish(ctx, match)
	case recorded:
		log.Info().
			Str("match_id", match.ID.String()).
			Str("player_id", playerID).
			Time("deadline", *match.ReportDeadline).
			Msg("first result recorded, waiting for opponent")

		opponent := match.Opponent(playerID)
		c.notify(ctx, opponent, eventID(match.ID, events.EventTypeOpponentFinished, opponent),
			events.EventTypeOpponentFinished, match.ID, events.OpponentFinishedPayload{
				Score:          score,
				TimeTaken:      timeTaken,
				ReportDeadline: *match.ReportDeadline,
			})
		c.Wake()
	default:
		log.Debug().Str("match_id", match.ID.String()).Str("player_id", playerID).Msg("duplicate result ignored")
	}
	return nil
}

// Forfeit ends the match in the opponent's favour.
func (c *Coordinator) Forfeit(ctx context.Context, playerID string, matchID uuid.UUID) error {
	if playerID == "" {
		return ErrUnauthenticated
	}

	now := c.clock.Now()
	match, err := c.repo.UpdateMatch(ctx, matchID, func(m *models.Match) error {
		slot, ok := m.SlotOf(playerID)
		if !ok {
			return repository.ErrNotInMatch
		}
		if m.Status.IsTerminal() {
			return repository.ErrMatchNotActive
		}
		m.Finish(models.MatchStatusForfeited, slot.Other(), models.EndReasonForfeit, now)
		return nil
	})
	if err != nil {
		return translate(err)
	}

	c.finish(ctx, match)
	return nil
}

// ConnectionLost handles a closed connection. A seeker is withdrawn from the
// queue; a player in an active match forfeits it. Closes of connections that
// were already replaced are ignored.
func (c *Coordinator) ConnectionLost(ctx context.Context, connectionID string) error {
	out, err := c.repo.ReleaseConnection(ctx, connectionID)
	if errors.Is(err, repository.ErrParticipantNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to release connection: %w", err)
	}

	playerID := out.Participant.PlayerID
	if out.WasSeeking {
		log.Info().Str("player_id", playerID).Msg("seeker withdrew")
	}
	if out.ActiveMatchID == nil {
		return nil
	}

	now := c.clock.Now()
	var ended bool
	match, err := c.repo.UpdateMatch(ctx, *out.ActiveMatchID, func(m *models.Match) error {
		ended = false
		if m.Status.IsTerminal() {
			return repository.ErrNoChange
		}
		slot, ok := m.SlotOf(playerID)
		if !ok {
			return repository.ErrNotInMatch
		}
		m.Finish(models.MatchStatusForfeited, slot.Other(), models.EndReasonDisconnect, now)
		ended = true
		return nil
	})
	if errors.Is(err, repository.ErrMatchNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to forfeit match on disconnect: %w", err)
	}
	if !ended {
		return nil
	}

	log.Info().
		Str("match_id", match.ID.String()).
		Str("player_id", playerID).
		Msg("player disconnected from active match")

	opponent := match.Opponent(playerID)
	c.notify(ctx, opponent, eventID(match.ID, events.EventTypeOpponentDisconnected, opponent),
		events.EventTypeOpponentDisconnected, match.ID, events.OpponentDisconnectedPayload{OpponentID: playerID})
	c.finish(ctx, match)
	return nil
}

// Rejoin moves the player's event stream to connectionID and sends it a
// snapshot of the match.
func (c *Coordinator) Rejoin(ctx context.Context, playerID string, matchID uuid.UUID, connectionID string) (*models.Match, error) {
	if playerID == "" {
		return nil, ErrUnauthenticated
	}

	match, err := c.repo.AttachConnection(ctx, &repository.AttachConnectionInput{
		MatchID:      matchID,
		PlayerID:     playerID,
		ConnectionID: connectionID,
		Now:          c.clock.Now(),
	})
	if err != nil {
		return nil, translate(err)
	}

	slot, _ := match.SlotOf(playerID)
	log.Info().
		Str("match_id", match.ID.String()).
		Str("player_id", playerID).
		Str("connection_id", connectionID).
		Msg("player rejoined match")

	c.sendTo(ctx, connectionID, uuid.NewString(), events.EventTypeRejoined, match.ID, events.RejoinedPayload{
		MatchID:        match.ID.String(),
		OpponentID:     match.PlayerIn(slot.Other()),
		Slot:           slot,
		Puzzle:         match.Puzzle.Public(),
		Players:        events.PlayerResults(match),
		ReportDeadline: match.ReportDeadline,
	})
	return match, nil
}

// ResolveTimeout ends a match whose opponent grace deadline has passed. It is
// a no-op for matches that are terminal or not yet due.
func (c *Coordinator) ResolveTimeout(ctx context.Context, matchID uuid.UUID) error {
	now := c.clock.Now()
	var ended bool
	match, err := c.repo.UpdateMatch(ctx, matchID, func(m *models.Match) error {
		ended = false
		if m.Status.IsTerminal() || m.ReportDeadline == nil || now.Before(*m.ReportDeadline) {
			return repository.ErrNoChange
		}

		reportedA, reportedB := m.ResultA.Reported(), m.ResultB.Reported()
		switch {
		case reportedA && reportedB:
			m.Finish(models.MatchStatusEnded, Winner(m.ResultA, m.ResultB), models.EndReasonFinished, now)
		case reportedA:
			m.Finish(models.MatchStatusEnded, models.SlotA, models.EndReasonTimeout, now)
		case reportedB:
			m.Finish(models.MatchStatusEnded, models.SlotB, models.EndReasonTimeout, now)
		default:
			m.ReportDeadline = nil
			return nil
		}
		ended = true
		return nil
	})
	if errors.Is(err, repository.ErrMatchNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve timeout: %w", err)
	}
	if ended {
		log.Info().Str("match_id", match.ID.String()).Msg("opponent report deadline passed")
		c.finish(ctx, match)
	}
	return nil
}

// CheckAnswer verifies a candidate word for a player in an active match.
func (c *Coordinator) CheckAnswer(ctx context.Context, playerID string, matchID uuid.UUID, wordID, candidate string) (answers.Result, error) {
	if playerID == "" {
		return answers.Result{}, ErrUnauthenticated
	}

	match, err := c.repo.GetMatch(ctx, matchID)
	if err != nil {
		return answers.Result{}, translate(err)
	}
	if _, ok := match.SlotOf(playerID); !ok {
		return answers.Result{}, ErrNotInMatch
	}
	if match.Status.IsTerminal() {
		return answers.Result{}, ErrMatchNotActive
	}

	res, err := answers.Check(match.Puzzle, wordID, candidate)
	if err != nil {
		return answers.Result{}, translate(err)
	}
	return res, nil
}

// GetMatch returns the match as seen by one of its players.
func (c *Coordinator) GetMatch(ctx context.Context, playerID string, matchID uuid.UUID) (*models.Match, error) {
	if playerID == "" {
		return nil, ErrUnauthenticated
	}

	match, err := c.repo.GetMatch(ctx, matchID)
	if err != nil {
		return nil, translate(err)
	}
	if _, ok := match.SlotOf(playerID); !ok {
		return nil, ErrNotInMatch
	}
	match.Puzzle = match.Puzzle.Public()
	return match, nil
}

// ExpireSeekers withdraws players that have been seeking for longer than the
// seek TTL and tells them matchmaking timed out.
func (c *Coordinator) ExpireSeekers(ctx context.Context) (int, error) {
	expired, err := c.repo.ExpireSeekers(ctx, c.clock.Now().Add(-c.seekTTL), c.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to expire seekers: %w", err)
	}
	for _, p := range expired {
		log.Info().Str("player_id", p.PlayerID).Msg("seeker expired")
		c.sendTo(ctx, p.ConnectionID, uuid.NewString(), events.EventTypeError, uuid.Nil,
			events.ErrorPayload{Message: "matchmaking timed out"})
	}
	return len(expired), nil
}

// Ping checks the backing store.
func (c *Coordinator) Ping(ctx context.Context) error {
	return c.repo.Ping(ctx)
}

// finish announces a terminal match to both players and records it.
// Callers only invoke it after winning the terminal compare-and-swap.
func (c *Coordinator) finish(ctx context.Context, match *models.Match) {
	log.Info().
		Str("match_id", match.ID.String()).
		Str("status", string(match.Status)).
		Str("winner_id", *match.WinnerID).
		Str("reason", string(*match.Reason)).
		Msg("match over")

	payload := events.NewMatchOverPayload(match)
	for _, playerID := range []string{match.PlayerA, match.PlayerB} {
		c.notify(ctx, playerID, eventID(match.ID, events.EventTypeMatchOver, playerID),
			events.EventTypeMatchOver, match.ID, payload)
	}

	if c.ledger == nil {
		return
	}
	if err := c.ledger.RecordMatch(ctx, match); err != nil {
		log.Error().Err(err).Str("match_id", match.ID.String()).Msg("failed to record match in ledger")
	}
}

// notify resolves the player's current connection and sends the event there.
func (c *Coordinator) notify(ctx context.Context, playerID, id string, eventType events.EventType, matchID uuid.UUID, payload any) {
	p, err := c.repo.GetParticipant(ctx, playerID)
	if err != nil {
		log.Warn().
			Err(err).
			Str("player_id", playerID).
			Str("event_type", string(eventType)).
			Msg("no connection for player, dropping event")
		return
	}
	c.sendTo(ctx, p.ConnectionID, id, eventType, matchID, payload)
}

func (c *Coordinator) sendTo(ctx context.Context, connectionID, id string, eventType events.EventType, matchID uuid.UUID, payload any) {
	var match string
	if matchID != uuid.Nil {
		match = matchID.String()
	}
	event, err := events.New(id, eventType, match, c.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to build event")
		return
	}
	if err := c.broadcaster.Send(ctx, connectionID, event); err != nil {
		log.Error().
			Err(err).
			Str("connection_id", connectionID).
			Str("event_type", string(eventType)).
			Msg("failed to send event")
	}
}

// eventID is stable per match, event type and recipient so redelivery of the
// same event can be deduplicated downstream.
func eventID(matchID uuid.UUID, eventType events.EventType, playerID string) string {
	return fmt.Sprintf("%s.%s.%s", matchID, eventType, playerID)
}
