package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/wordduel/go/internal/models"
)

// Event is the envelope for everything sent to a player connection.
type Event struct {
	ID        string          `json:"id"`                 // Event ID, stable for retries of the same event
	MatchID   string          `json:"match_id,omitempty"` // Match UUID when the event belongs to a match
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventType represents the type of outbound event
type EventType string

const (
	EventTypeWaiting              EventType = "waiting"
	EventTypeMatched              EventType = "matched"
	EventTypeOpponentFinished     EventType = "opponent-finished"
	EventTypeMatchOver            EventType = "match-over"
	EventTypeOpponentDisconnected EventType = "opponent-disconnected"
	EventTypeRejoined             EventType = "rejoined"
	EventTypeAnswerResult         EventType = "answer-result"
	EventTypeError                EventType = "error"
)

// New builds an event with payload marshalled into Data.
func New(id string, eventType EventType, matchID string, at time.Time, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ID:        id,
		MatchID:   matchID,
		Type:      eventType,
		Timestamp: at,
		Data:      data,
	}, nil
}

// WaitingPayload is sent when the caller has been queued.
type WaitingPayload struct {
	Message string `json:"message"`
}

// MatchedPayload is sent to both players once the puzzle is ready.
type MatchedPayload struct {
	MatchID    string         `json:"match_id"`
	OpponentID string         `json:"opponent_id"`
	Slot       models.Slot    `json:"slot"`
	Puzzle     *models.Puzzle `json:"puzzle"`
}

// OpponentFinishedPayload tells a player the opponent has reported.
type OpponentFinishedPayload struct {
	Score          int       `json:"score"`
	TimeTaken      int       `json:"time_taken"`
	ReportDeadline time.Time `json:"report_deadline"`
}

// PlayerResultPayload is one side of a terminal result.
type PlayerResultPayload struct {
	PlayerID  string `json:"player_id"`
	Score     *int   `json:"score"`
	TimeTaken *int   `json:"time_taken"`
}

// MatchOverPayload is the terminal result.
type MatchOverPayload struct {
	MatchID  string                `json:"match_id"`
	Status   models.MatchStatus    `json:"status"`
	WinnerID string                `json:"winner_id"`
	Reason   models.EndReason      `json:"reason"`
	Players  []PlayerResultPayload `json:"players"`
	EndedAt  time.Time             `json:"ended_at"`
}

// OpponentDisconnectedPayload precedes the match-over caused by a disconnect.
type OpponentDisconnectedPayload struct {
	OpponentID string `json:"opponent_id"`
}

// RejoinedPayload is a snapshot sent to a reattached connection.
type RejoinedPayload struct {
	MatchID        string                `json:"match_id"`
	OpponentID     string                `json:"opponent_id"`
	Slot           models.Slot           `json:"slot"`
	Puzzle         *models.Puzzle        `json:"puzzle"`
	Players        []PlayerResultPayload `json:"players"`
	ReportDeadline *time.Time            `json:"report_deadline,omitempty"`
}

// AnswerResultPayload answers a single word check.
type AnswerResultPayload struct {
	WordID     string `json:"word_id"`
	Correct    bool   `json:"correct"`
	ScoreDelta int    `json:"score_delta"`
}

// ErrorPayload carries a user facing error message.
type ErrorPayload struct {
	Message string `json:"message"`
}

// PlayerResults lists both players of m in slot order.
func PlayerResults(m *models.Match) []PlayerResultPayload {
	return []PlayerResultPayload{
		{PlayerID: m.PlayerA, Score: m.ResultA.Score, TimeTaken: m.ResultA.TimeTaken},
		{PlayerID: m.PlayerB, Score: m.ResultB.Score, TimeTaken: m.ResultB.TimeTaken},
	}
}

// NewMatchOverPayload describes a terminal match.
func NewMatchOverPayload(m *models.Match) MatchOverPayload {
	p := MatchOverPayload{
		MatchID: m.ID.String(),
		Status:  m.Status,
		Players: PlayerResults(m),
	}
	if m.WinnerID != nil {
		p.WinnerID = *m.WinnerID
	}
	if m.Reason != nil {
		p.Reason = *m.Reason
	}
	if m.EndedAt != nil {
		p.EndedAt = *m.EndedAt
	}
	return p
}
