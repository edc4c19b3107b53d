package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchStatus defines the lifecycle status of a match.
type MatchStatus string

const (
	MatchStatusActive    MatchStatus = "active"
	MatchStatusEnded     MatchStatus = "ended"
	MatchStatusForfeited MatchStatus = "forfeited"
)

// IsTerminal reports whether no further transitions are allowed.
func (s MatchStatus) IsTerminal() bool {
	return s == MatchStatusEnded || s == MatchStatusForfeited
}

// EndReason records how a match reached its terminal status.
type EndReason string

const (
	EndReasonFinished   EndReason = "finished"
	EndReasonTimeout    EndReason = "timeout"
	EndReasonForfeit    EndReason = "forfeit"
	EndReasonDisconnect EndReason = "disconnect"
)

// Slot identifies one of the two player positions in a match.
type Slot string

const (
	SlotA Slot = "A"
	SlotB Slot = "B"
)

// Other returns the opposing slot.
func (s Slot) Other() Slot {
	if s == SlotA {
		return SlotB
	}
	return SlotA
}

// PlayerResult is a player's reported outcome. Both fields stay nil until the
// player reports.
type PlayerResult struct {
	Score     *int `json:"score,omitempty"`
	TimeTaken *int `json:"time_taken,omitempty"` // seconds
}

// Reported reports whether the player has submitted a result.
func (r PlayerResult) Reported() bool {
	return r.Score != nil && r.TimeTaken != nil
}

// Match represents one head-to-head contest over a shared puzzle.
type Match struct {
	ID             uuid.UUID    `json:"id"`
	PlayerA        string       `json:"player_a"`
	PlayerB        string       `json:"player_b"`
	ResultA        PlayerResult `json:"result_a"`
	ResultB        PlayerResult `json:"result_b"`
	Status         MatchStatus  `json:"status"`
	WinnerID       *string      `json:"winner_id,omitempty"`
	Reason         *EndReason   `json:"reason,omitempty"`
	Puzzle         *Puzzle      `json:"puzzle,omitempty"`
	ReportDeadline *time.Time   `json:"report_deadline,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	EndedAt        *time.Time   `json:"ended_at,omitempty"`
}

// SlotOf returns the slot held by playerID.
func (m *Match) SlotOf(playerID string) (Slot, bool) {
	switch playerID {
	case m.PlayerA:
		return SlotA, true
	case m.PlayerB:
		return SlotB, true
	}
	return "", false
}

// PlayerIn returns the player id holding slot.
func (m *Match) PlayerIn(slot Slot) string {
	if slot == SlotA {
		return m.PlayerA
	}
	return m.PlayerB
}

// Result returns a pointer to the result stored for slot.
func (m *Match) Result(slot Slot) *PlayerResult {
	if slot == SlotA {
		return &m.ResultA
	}
	return &m.ResultB
}

// Opponent returns the other player's id. It returns "" when playerID is not
// part of the match.
func (m *Match) Opponent(playerID string) string {
	slot, ok := m.SlotOf(playerID)
	if !ok {
		return ""
	}
	return m.PlayerIn(slot.Other())
}

// Finish moves the match into a terminal status. Callers must check the
// current status first.
func (m *Match) Finish(status MatchStatus, winner Slot, reason EndReason, at time.Time) {
	winnerID := m.PlayerIn(winner)
	m.Status = status
	m.WinnerID = &winnerID
	m.Reason = &reason
	m.EndedAt = &at
	m.ReportDeadline = nil
}
