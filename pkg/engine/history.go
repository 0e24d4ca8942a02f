package engine

import (
	"github.com/heraldchess/herald/internal/mathutil"
	"github.com/heraldchess/herald/pkg/board"
)

const historyMax = 1 << 14

// quiet move history, indexed by side to move and from/to squares
type historyTable [2 * 64 * 64]int16

func (h *historyTable) Read(white bool, m board.Move) int {
	return int(h[sideFromToIndex(white, m)])
}

// Update rewards bestMove and penalizes the quiets tried before it.
func (h *historyTable) Update(white bool, quietsSearched []board.Move, bestMove board.Move, depth int) {
	var bonus = mathutil.Min(depth*depth, 400)
	for _, m := range quietsSearched {
		var good = m == bestMove
		updateHistory(&h[sideFromToIndex(white, m)], bonus, good)
		if good {
			break
		}
	}
}

// Exponential moving average
func updateHistory(v *int16, bonus int, good bool) {
	var newVal int
	if good {
		newVal = historyMax
	} else {
		newVal = -historyMax
	}
	*v += int16((newVal - int(*v)) * bonus / 512)
}

func sideFromToIndex(white bool, move board.Move) int {
	var result = (move.From() << 6) | move.To()
	if white {
		result |= 1 << 12
	}
	return result
}
