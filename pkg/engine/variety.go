package engine

import (
	"cmp"
	"slices"

	"github.com/samber/lo"
	"lukechampine.com/frand"
)

// root moves scoring within varietyMargin of the best may be played instead of it
const varietyMargin = 10

// selectRootMove picks uniformly among the variety best root moves whose
// exact score lies within varietyMargin of best. moves[0] must be the best move.
func selectRootMove(moves []rootMove, best, variety int) rootMove {
	var candidates = varietyCandidates(moves, best, variety)
	if len(candidates) <= 1 {
		return moves[0]
	}
	return candidates[frand.Intn(len(candidates))]
}

func varietyCandidates(moves []rootMove, best, variety int) []rootMove {
	if variety <= 1 || IsMateScore(best) {
		return nil
	}
	var candidates = lo.Filter(moves, func(rm rootMove, _ int) bool {
		return rm.exact && rm.score >= best-varietyMargin
	})
	slices.SortStableFunc(candidates, func(a, b rootMove) int {
		return cmp.Compare(b.score, a.score)
	})
	if len(candidates) > variety {
		candidates = candidates[:variety]
	}
	return candidates
}
