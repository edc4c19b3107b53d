package coordinator

import (
	"errors"

	"github.com/mcdev12/wordduel/go/internal/duel/answers"
	"github.com/mcdev12/wordduel/go/internal/duel/repository"
)

// CoordinatorError is an error whose text is safe to show to a player.
type CoordinatorError string

func (e CoordinatorError) Error() string {
	return string(e)
}

const (
	ErrUnauthenticated   CoordinatorError = "no authenticated player for this connection"
	ErrAlreadyInMatch    CoordinatorError = "already in an active match"
	ErrMatchNotFound     CoordinatorError = "match not found"
	ErrMatchNotActive    CoordinatorError = "match is not active"
	ErrNotInMatch        CoordinatorError = "not a player in this match"
	ErrInvalidResult     CoordinatorError = "score and time taken must not be negative"
	ErrPuzzleUnavailable CoordinatorError = "could not create a puzzle, please try again"
	ErrUnknownWord       CoordinatorError = "unknown word"
	ErrInternal          CoordinatorError = "internal error"
)

// translate maps store and collaborator errors onto coordinator errors.
// Anything unrecognised is returned unchanged and treated as a storage failure.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrMatchNotFound):
		return ErrMatchNotFound
	case errors.Is(err, repository.ErrMatchNotActive):
		return ErrMatchNotActive
	case errors.Is(err, repository.ErrNotInMatch):
		return ErrNotInMatch
	case errors.Is(err, repository.ErrAlreadyInMatch):
		return ErrAlreadyInMatch
	case errors.Is(err, answers.ErrUnknownWord):
		return ErrUnknownWord
	case errors.Is(err, answers.ErrNoPuzzle):
		return ErrPuzzleUnavailable
	}
	return err
}

// UserMessage returns the text sent to a player for err. Storage and other
// unexpected failures collapse into a generic message.
func UserMessage(err error) string {
	var cerr CoordinatorError
	if errors.As(err, &cerr) {
		return cerr.Error()
	}
	return ErrInternal.Error()
}
