package coordinator

import "github.com/mcdev12/wordduel/go/internal/models"

// Winner decides a match in which both players reported. The higher score
// wins, then the lower time taken. An exact tie goes to player B.
func Winner(a, b models.PlayerResult) models.Slot {
	switch {
	case *a.Score > *b.Score:
		return models.SlotA
	case *a.Score < *b.Score:
		return models.SlotB
	case *a.TimeTaken < *b.TimeTaken:
		return models.SlotA
	default:
		return models.SlotB
	}
}
