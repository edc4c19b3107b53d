package puzzle_client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mcdev12/wordduel/go/internal/models"
)

var ErrInvalidPuzzle = errors.New("invalid puzzle document")

// document is the generator's output format.
type document struct {
	Grid        [][]string     `json:"grid"`
	ClueNumbers [][]int        `json:"clueNumbers"`
	Clues       []documentClue `json:"clues"`
}

type documentClue struct {
	Number int    `json:"number"`
	Dir    string `json:"dir"`
	Text   string `json:"text"`
	WordID wordID `json:"word_id"`
	Length int    `json:"length"`
	Row    int    `json:"row"`
	Col    int    `json:"col"`
	Word   string `json:"word"`
}

// wordID accepts both numeric and string identifiers.
type wordID string

func (w *wordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*w = wordID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*w = wordID(n.String())
	return nil
}

// Parse converts a generator document into a puzzle. Blank cells become
// models.BlockCell and letters are upper-cased.
func Parse(data []byte) (*models.Puzzle, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPuzzle, err)
	}

	size := len(doc.Grid)
	if size == 0 {
		return nil, fmt.Errorf("%w: empty grid", ErrInvalidPuzzle)
	}
	if len(doc.Clues) == 0 {
		return nil, fmt.Errorf("%w: no clues", ErrInvalidPuzzle)
	}

	p := &models.Puzzle{
		Size:        size,
		Grid:        make([][]string, size),
		ClueNumbers: doc.ClueNumbers,
		Clues:       make([]models.Clue, 0, len(doc.Clues)),
	}
	for i, row := range doc.Grid {
		if len(row) != size {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrInvalidPuzzle, i, len(row), size)
		}
		p.Grid[i] = make([]string, size)
		for j, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell == "" || cell == "-" || cell == models.BlockCell {
				p.Grid[i][j] = models.BlockCell
				continue
			}
			p.Grid[i][j] = strings.ToUpper(cell)
		}
	}

	seen := make(map[string]bool, len(doc.Clues))
	for _, c := range doc.Clues {
		dir := models.Direction(strings.ToUpper(c.Dir))
		if dir != models.DirectionAcross && dir != models.DirectionDown {
			return nil, fmt.Errorf("%w: clue %d has direction %q", ErrInvalidPuzzle, c.Number, c.Dir)
		}
		if c.WordID == "" || c.Word == "" {
			return nil, fmt.Errorf("%w: clue %d is missing its word", ErrInvalidPuzzle, c.Number)
		}
		if seen[string(c.WordID)] {
			return nil, fmt.Errorf("%w: duplicate word id %s", ErrInvalidPuzzle, c.WordID)
		}
		seen[string(c.WordID)] = true

		length := c.Length
		if length == 0 {
			length = len(c.Word)
		}
		p.Clues = append(p.Clues, models.Clue{
			Number:    c.Number,
			Direction: dir,
			Text:      c.Text,
			WordID:    string(c.WordID),
			Length:    length,
			Row:       c.Row,
			Col:       c.Col,
			Answer:    strings.ToUpper(c.Word),
		})
	}
	return p, nil
}
