package coordinator

import (
	"testing"

	"github.com/mcdev12/wordduel/go/internal/models"
	"github.com/stretchr/testify/assert"
)

func result(score, timeTaken int) models.PlayerResult {
	return models.PlayerResult{Score: &score, TimeTaken: &timeTaken}
}

func TestWinner(t *testing.T) {
	tests := []struct {
		name string
		a, b models.PlayerResult
		want models.Slot
	}{
		{name: "equal score faster A", a: result(10, 45), b: result(10, 50), want: models.SlotA},
		{name: "equal score faster B", a: result(10, 50), b: result(10, 45), want: models.SlotB},
		{name: "higher score A slower", a: result(20, 90), b: result(10, 10), want: models.SlotA},
		{name: "higher score B slower", a: result(10, 10), b: result(20, 90), want: models.SlotB},
		{name: "exact tie", a: result(30, 60), b: result(30, 60), want: models.SlotB},
		{name: "zero scores", a: result(0, 5), b: result(0, 6), want: models.SlotA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Winner(tt.a, tt.b))
		})
	}
}
