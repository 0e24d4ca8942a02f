package eval

import (
	"github.com/heraldchess/herald/pkg/board"
)

const (
	minorPhase = 1
	rookPhase  = 2
	queenPhase = 4
	totalPhase = 4*minorPhase + 2*rookPhase + 2*queenPhase
)

const bishopPair = 30

// EvaluationService is a tapered material + piece-square evaluator.
// Scores are from white's point of view.
type EvaluationService struct {
	pst [2][board.King + 1][64]Score
}

// Score packs a middle game and an end game value.
type Score struct {
	Mg, Eg int
}

func (s Score) add(o Score) Score {
	return Score{s.Mg + o.Mg, s.Eg + o.Eg}
}

func (s Score) sub(o Score) Score {
	return Score{s.Mg - o.Mg, s.Eg - o.Eg}
}

func NewEvaluationService() *EvaluationService {
	var e = &EvaluationService{}
	for piece := board.Pawn; piece <= board.King; piece++ {
		for sq := 0; sq < 64; sq++ {
			// tables are written rank 8 first
			var whiteIndex = (7-board.Rank(sq))*8 + board.File(sq)
			var blackIndex = board.Rank(sq)*8 + board.File(sq)
			e.pst[0][piece][sq] = Score{
				material[piece].Mg + mgTables[piece][whiteIndex],
				material[piece].Eg + egTables[piece][whiteIndex],
			}
			e.pst[1][piece][sq] = Score{
				material[piece].Mg + mgTables[piece][blackIndex],
				material[piece].Eg + egTables[piece][blackIndex],
			}
		}
	}
	return e
}

func (e *EvaluationService) Evaluate(b *board.Board) int {
	var s Score
	var phase int
	var bishops [2]int
	for sq := 0; sq < 64; sq++ {
		var piece, white = b.PieceAt(sq)
		if piece == board.Empty {
			continue
		}
		if white {
			s = s.add(e.pst[0][piece][sq])
		} else {
			s = s.sub(e.pst[1][piece][sq])
		}
		switch piece {
		case board.Knight:
			phase += minorPhase
		case board.Bishop:
			phase += minorPhase
			if white {
				bishops[0]++
			} else {
				bishops[1]++
			}
		case board.Rook:
			phase += rookPhase
		case board.Queen:
			phase += queenPhase
		}
	}
	if bishops[0] >= 2 {
		s = s.add(Score{bishopPair, bishopPair})
	}
	if bishops[1] >= 2 {
		s = s.sub(Score{bishopPair, bishopPair})
	}
	if phase > totalPhase {
		phase = totalPhase
	}
	return (s.Mg*phase + s.Eg*(totalPhase-phase)) / totalPhase
}
