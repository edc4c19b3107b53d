package gateway

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/mcdev12/wordduel/go/internal/auth"
	"github.com/mcdev12/wordduel/go/internal/duel/answers"
	"github.com/mcdev12/wordduel/go/internal/duel/coordinator"
	"github.com/mcdev12/wordduel/go/internal/duel/events"
	"github.com/mcdev12/wordduel/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Inbound frame types
const (
	FrameSeekMatch    = "seek-match"
	FrameRejoinMatch  = "rejoin-match"
	FrameReportFinish = "report-finish"
	FrameForfeit      = "forfeit"
	FrameCheckAnswer  = "check-answer"
)

const (
	ErrMalformedFrame coordinator.CoordinatorError = "malformed message"
	ErrUnknownFrame   coordinator.CoordinatorError = "unknown message type"
)

// Frame is a message sent by a player.
type Frame struct {
	Type      string `json:"type"`
	MatchID   string `json:"matchId,omitempty"`
	Score     *int   `json:"score,omitempty"`
	TimeTaken *int   `json:"timeTaken,omitempty"`
	WordID    string `json:"wordId,omitempty"`
	Candidate string `json:"candidate,omitempty"`
}

// Coordinator is the set of match operations the gateway drives.
type Coordinator interface {
	SeekMatch(ctx context.Context, playerID, connectionID string) (*models.Match, error)
	Rejoin(ctx context.Context, playerID string, matchID uuid.UUID, connectionID string) (*models.Match, error)
	ReportFinish(ctx context.Context, playerID string, matchID uuid.UUID, score, timeTaken int) error
	Forfeit(ctx context.Context, playerID string, matchID uuid.UUID) error
	CheckAnswer(ctx context.Context, playerID string, matchID uuid.UUID, wordID, candidate string) (answers.Result, error)
	ConnectionLost(ctx context.Context, connectionID string) error
}

// Dispatcher routes frames to coordinator operations. The caller identity is
// read from the context, never from the connection.
type Dispatcher struct {
	coordinator Coordinator
	clock       coordinator.Clock
}

func NewDispatcher(c Coordinator, clock coordinator.Clock) *Dispatcher {
	return &Dispatcher{coordinator: c, clock: clock}
}

// HandleFrame runs one frame and returns the reply for the sending
// connection, if any. Events for other parties go through the coordinator.
func (d *Dispatcher) HandleFrame(ctx context.Context, connectionID string, data []byte) *events.Event {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return d.errorEvent(connectionID, "", ErrMalformedFrame)
	}

	player, ok := auth.PlayerFromContext(ctx)
	if !ok {
		return d.errorEvent(connectionID, frame.MatchID, coordinator.ErrUnauthenticated)
	}

	reply, err := d.dispatch(ctx, player.ID, connectionID, frame)
	if err != nil {
		var cerr coordinator.CoordinatorError
		if !errors.As(err, &cerr) {
			log.Error().
				Err(err).
				Str("frame_type", frame.Type).
				Str("player_id", player.ID).
				Str("connection_id", connectionID).
				Msg("failed to handle frame")
		}
		return d.errorEvent(connectionID, frame.MatchID, err)
	}
	return reply
}

func (d *Dispatcher) dispatch(ctx context.Context, playerID, connectionID string, frame Frame) (*events.Event, error) {
	if frame.Type == FrameSeekMatch {
		_, err := d.coordinator.SeekMatch(ctx, playerID, connectionID)
		return nil, err
	}

	matchID, err := parseMatchID(frame.MatchID)
	if err != nil {
		return nil, err
	}

	switch frame.Type {
	case FrameRejoinMatch:
		_, err := d.coordinator.Rejoin(ctx, playerID, matchID, connectionID)
		return nil, err

	case FrameReportFinish:
		if frame.Score == nil || frame.TimeTaken == nil {
			return nil, ErrMalformedFrame
		}
		return nil, d.coordinator.ReportFinish(ctx, playerID, matchID, *frame.Score, *frame.TimeTaken)

	case FrameForfeit:
		return nil, d.coordinator.Forfeit(ctx, playerID, matchID)

	case FrameCheckAnswer:
		if frame.WordID == "" {
			return nil, ErrMalformedFrame
		}
		res, err := d.coordinator.CheckAnswer(ctx, playerID, matchID, frame.WordID, frame.Candidate)
		if err != nil {
			return nil, err
		}
		return events.New(uuid.NewString(), events.EventTypeAnswerResult, matchID.String(), d.clock.Now(),
			events.AnswerResultPayload{WordID: res.WordID, Correct: res.Correct, ScoreDelta: res.ScoreDelta})
	}
	return nil, ErrUnknownFrame
}

// ConnectionClosed forwards a dropped connection to the coordinator.
func (d *Dispatcher) ConnectionClosed(ctx context.Context, connectionID string) {
	if err := d.coordinator.ConnectionLost(ctx, connectionID); err != nil {
		log.Error().Err(err).Str("connection_id", connectionID).Msg("failed to handle connection loss")
	}
}

func (d *Dispatcher) errorEvent(connectionID, matchID string, err error) *events.Event {
	if _, perr := uuid.Parse(matchID); perr != nil {
		matchID = ""
	}
	ev, merr := events.New(uuid.NewString(), events.EventTypeError, matchID, d.clock.Now(),
		events.ErrorPayload{Message: coordinator.UserMessage(err)})
	if merr != nil {
		log.Error().Err(merr).Str("connection_id", connectionID).Msg("failed to build error event")
		return nil
	}
	return ev
}

func parseMatchID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, ErrMalformedFrame
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, coordinator.ErrMatchNotFound
	}
	return id, nil
}
