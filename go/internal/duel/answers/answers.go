package answers

import (
	"errors"
	"strings"

	"github.com/mcdev12/wordduel/go/internal/models"
)

// CorrectScore is awarded for each correctly answered word.
const CorrectScore = 10

var (
	ErrNoPuzzle    = errors.New("match has no puzzle")
	ErrUnknownWord = errors.New("unknown word id")
)

// Result of checking one candidate word.
type Result struct {
	WordID     string `json:"word_id"`
	Correct    bool   `json:"correct"`
	ScoreDelta int    `json:"score_delta"`
}

// Check compares candidate against the canonical answer for wordID.
// Comparison ignores case and surrounding whitespace.
func Check(puzzle *models.Puzzle, wordID, candidate string) (Result, error) {
	if puzzle == nil {
		return Result{}, ErrNoPuzzle
	}
	clue, ok := puzzle.Clue(wordID)
	if !ok || clue.Answer == "" {
		return Result{}, ErrUnknownWord
	}

	res := Result{WordID: wordID}
	if strings.EqualFold(strings.TrimSpace(candidate), clue.Answer) {
		res.Correct = true
		res.ScoreDelta = CorrectScore
	}
	return res, nil
}
