package models

// BlockCell marks an unusable grid cell.
const BlockCell = "#"

// Direction of a clue through the grid.
type Direction string

const (
	DirectionAcross Direction = "A"
	DirectionDown   Direction = "D"
)

// Clue is a single word slot in the puzzle. Answer is only present on the
// server side copy.
type Clue struct {
	Number    int       `json:"number"`
	Direction Direction `json:"direction"`
	Text      string    `json:"text"`
	WordID    string    `json:"word_id"`
	Length    int       `json:"length"`
	Row       int       `json:"row"`
	Col       int       `json:"col"`
	Answer    string    `json:"answer,omitempty"`
}

// Puzzle is a crossword grid with its clue layout.
type Puzzle struct {
	Size        int        `json:"size"`
	Grid        [][]string `json:"grid"`
	ClueNumbers [][]int    `json:"clue_numbers"`
	Clues       []Clue     `json:"clues"`
}

// Public returns a copy safe to send to players: letters are blanked and
// canonical answers removed.
func (p *Puzzle) Public() *Puzzle {
	if p == nil {
		return nil
	}
	out := &Puzzle{
		Size:        p.Size,
		Grid:        make([][]string, len(p.Grid)),
		ClueNumbers: p.ClueNumbers,
		Clues:       make([]Clue, len(p.Clues)),
	}
	for i, row := range p.Grid {
		out.Grid[i] = make([]string, len(row))
		for j, cell := range row {
			if cell == BlockCell {
				out.Grid[i][j] = BlockCell
			}
		}
	}
	for i, c := range p.Clues {
		c.Answer = ""
		out.Clues[i] = c
	}
	return out
}

// Clue looks up a clue by word id.
func (p *Puzzle) Clue(wordID string) (Clue, bool) {
	for _, c := range p.Clues {
		if c.WordID == wordID {
			return c, true
		}
	}
	return Clue{}, false
}
