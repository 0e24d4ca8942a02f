package engine

import "github.com/heraldchess/herald/pkg/board"

const sortTableKeyImportant = 100000

type orderedMove struct {
	move board.Move
	key  int32
}

// moveIterator yields the legal moves of a node: transposition move, captures
// by MVV-LVA, killers, then quiets by history. Ties keep generator order.
type moveIterator struct {
	buffer    []orderedMove
	transMove board.Move
	killer1   board.Move
	killer2   board.Move
	index     int
}

func (mi *moveIterator) Init(b *board.Board, history *historyTable) {
	mi.buffer = mi.buffer[:0]
	mi.index = 0
	var white = b.WhiteToMove()
	for _, m := range b.LegalMoves() {
		var score int
		if m == mi.transMove {
			score = sortTableKeyImportant + 2000
		} else if m.IsCaptureOrPromotion() {
			score = sortTableKeyImportant + 1000 + mvvlva(m)
		} else if m == mi.killer1 {
			score = sortTableKeyImportant + 1
		} else if m == mi.killer2 {
			score = sortTableKeyImportant
		} else {
			score = history.Read(white, m)
		}
		mi.buffer = append(mi.buffer, orderedMove{move: m, key: int32(score)})
	}
	sortMoves(mi.buffer)
}

func (mi *moveIterator) Next() board.Move {
	if mi.index >= len(mi.buffer) {
		return board.MoveEmpty
	}
	var m = mi.buffer[mi.index].move
	mi.index++
	return m
}

// moveIteratorQS yields captures and promotions, or every move when in check.
type moveIteratorQS struct {
	buffer []orderedMove
	index  int
}

func (mi *moveIteratorQS) Init(b *board.Board) {
	mi.buffer = mi.buffer[:0]
	mi.index = 0
	var all = b.IsCheck()
	for _, m := range b.LegalMoves() {
		if m.IsCaptureOrPromotion() {
			mi.buffer = append(mi.buffer, orderedMove{move: m, key: int32(29000 + mvvlva(m))})
		} else if all {
			mi.buffer = append(mi.buffer, orderedMove{move: m})
		}
	}
	sortMoves(mi.buffer)
}

func (mi *moveIteratorQS) Next() board.Move {
	if mi.index >= len(mi.buffer) {
		return board.MoveEmpty
	}
	var m = mi.buffer[mi.index].move
	mi.index++
	return m
}

var sortPieceValues = [...]int{board.Empty: 0, board.Pawn: 1, board.Knight: 2,
	board.Bishop: 3, board.Rook: 4, board.Queen: 5, board.King: 6}

func mvvlva(move board.Move) int {
	return 8*(sortPieceValues[move.CapturedPiece()]+
		sortPieceValues[move.Promotion()]) -
		sortPieceValues[move.MovingPiece()]
}

// insertion sort, descending by key and stable
func sortMoves(moves []orderedMove) {
	for i := 1; i < len(moves); i++ {
		j, t := i, moves[i]
		for ; j > 0 && moves[j-1].key < t.key; j-- {
			moves[j] = moves[j-1]
		}
		moves[j] = t
	}
}

func isSorted(moves []orderedMove) bool {
	for i := 1; i < len(moves); i++ {
		if moves[i-1].key < moves[i].key {
			return false
		}
	}
	return true
}
