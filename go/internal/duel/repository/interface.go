package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/wordduel/go/internal/models"
)

var (
	ErrMatchNotFound       = errors.New("match not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrAlreadyInMatch      = errors.New("player already in an active match")
	ErrMatchNotActive      = errors.New("match is not active")
	ErrNotInMatch          = errors.New("player is not part of this match")
	ErrContention          = errors.New("too much contention, transaction not applied")

	// ErrNoChange is returned by a MatchMutation that left the match as it
	// was. UpdateMatch then writes nothing and returns the stored match.
	ErrNoChange = errors.New("match unchanged")
)

// MatchMutation edits a match inside the store's transaction. Returning an
// error other than ErrNoChange aborts the transaction and the error is passed
// back unchanged.
type MatchMutation func(m *models.Match) error

// Repository is the durable home of participants and matches. Every method
// that mutates state runs as a single atomic unit.
type Repository interface {
	// SeekMatch records the caller's connection and either pairs it with the
	// oldest other seeker or marks it seeking.
	SeekMatch(ctx context.Context, input *SeekMatchInput) (*SeekMatchOutput, error)

	// AbortMatch removes a match that never got under way.
	AbortMatch(ctx context.Context, matchID uuid.UUID) error

	// AttachConnection points a match player at a new connection.
	AttachConnection(ctx context.Context, input *AttachConnectionInput) (*models.Match, error)

	// ReleaseConnection handles a closed connection on the registry side.
	ReleaseConnection(ctx context.Context, connectionID string) (*ReleaseConnectionOutput, error)

	// ExpireSeekers clears seekers waiting since before the cutoff.
	ExpireSeekers(ctx context.Context, before time.Time, limit int) ([]*models.Participant, error)

	GetParticipant(ctx context.Context, playerID string) (*models.Participant, error)
	GetMatch(ctx context.Context, matchID uuid.UUID) (*models.Match, error)

	// UpdateMatch applies fn to the stored match as a compare-and-swap.
	UpdateMatch(ctx context.Context, matchID uuid.UUID, fn MatchMutation) (*models.Match, error)

	// NextDeadline returns the earliest report deadline of any active match.
	NextDeadline(ctx context.Context) (*time.Time, error)

	// DueMatches returns active matches whose report deadline has passed.
	DueMatches(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)

	Ping(ctx context.Context) error
}

type SeekMatchInput struct {
	PlayerID     string
	ConnectionID string
	// MatchID is used only if a pairing happens.
	MatchID uuid.UUID
	Now     time.Time
}

func (i *SeekMatchInput) validate() error {
	if i == nil || i.PlayerID == "" || i.ConnectionID == "" {
		return errors.New("player id and connection id are required")
	}
	if i.MatchID == uuid.Nil {
		return errors.New("match id is required")
	}
	return nil
}

// SeekMatchOutput carries the new match when a pairing happened. A nil Match
// means the caller is now waiting.
type SeekMatchOutput struct {
	Match    *models.Match
	Opponent *models.Participant
}

func (o *SeekMatchOutput) Matched() bool {
	return o != nil && o.Match != nil
}

type AttachConnectionInput struct {
	MatchID      uuid.UUID
	PlayerID     string
	ConnectionID string
	Now          time.Time
}

func (i *AttachConnectionInput) validate() error {
	if i == nil || i.PlayerID == "" || i.ConnectionID == "" || i.MatchID == uuid.Nil {
		return errors.New("match id, player id and connection id are required")
	}
	return nil
}

type ReleaseConnectionOutput struct {
	Participant   *models.Participant
	WasSeeking    bool
	ActiveMatchID *uuid.UUID
}
