package answers

import (
	"testing"

	"github.com/mcdev12/wordduel/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPuzzle() *models.Puzzle {
	return &models.Puzzle{
		Size: 3,
		Grid: [][]string{
			{"C", "A", "T"},
			{"#", "#", "O"},
			{"#", "#", "P"},
		},
		Clues: []models.Clue{
			{Number: 1, Direction: models.DirectionAcross, WordID: "w1", Text: "Feline", Length: 3, Answer: "CAT"},
			{Number: 2, Direction: models.DirectionDown, WordID: "w2", Text: "Summit", Length: 3, Col: 2, Answer: "TOP"},
		},
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name      string
		wordID    string
		candidate string
		want      Result
	}{
		{name: "exact", wordID: "w1", candidate: "CAT", want: Result{WordID: "w1", Correct: true, ScoreDelta: CorrectScore}},
		{name: "case insensitive", wordID: "w2", candidate: "top", want: Result{WordID: "w2", Correct: true, ScoreDelta: CorrectScore}},
		{name: "surrounding space", wordID: "w2", candidate: " Top ", want: Result{WordID: "w2", Correct: true, ScoreDelta: CorrectScore}},
		{name: "wrong", wordID: "w1", candidate: "DOG", want: Result{WordID: "w1"}},
		{name: "empty", wordID: "w1", candidate: "", want: Result{WordID: "w1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Check(testPuzzle(), tt.wordID, tt.candidate)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckErrors(t *testing.T) {
	_, err := Check(nil, "w1", "CAT")
	assert.ErrorIs(t, err, ErrNoPuzzle)

	_, err = Check(testPuzzle(), "missing", "CAT")
	assert.ErrorIs(t, err, ErrUnknownWord)

	_, err = Check(testPuzzle().Public(), "w1", "CAT")
	assert.ErrorIs(t, err, ErrUnknownWord)
}
