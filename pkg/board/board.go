package board

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/notnil/chess"
)

const InitialPositionFen = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var ErrIllegalMove = errors.New("illegal move")

type Outcome int

const (
	Ongoing Outcome = iota
	Checkmate
	Stalemate
	Draw
)

func (o Outcome) String() string {
	switch o {
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	case Draw:
		return "draw"
	}
	return "ongoing"
}

// Board is a position together with the history needed for repetition and
// move counters. A Board is never modified after construction, so it can be
// read from several goroutines.
type Board struct {
	pos      *chess.Position
	parent   *Board
	key      uint64
	rule50   int
	fullMove int
	check    bool
	lastMove Move
	moves    []Move
	raw      []*chess.Move
}

// NewBoard parses a FEN. Missing move counters default to 0 and 1.
func NewBoard(fen string) (*Board, error) {
	var fields = strings.Fields(fen)
	if len(fields) < 4 {
		return nil, fmt.Errorf("parse fen %q: expected at least 4 fields", fen)
	}
	var rule50, fullMove = 0, 1
	if len(fields) > 4 {
		var v, err = strconv.Atoi(fields[4])
		if err != nil {
			return nil, fmt.Errorf("parse fen %q: halfmove clock: %w", fen, err)
		}
		rule50 = v
	}
	if len(fields) > 5 {
		var v, err = strconv.Atoi(fields[5])
		if err != nil {
			return nil, fmt.Errorf("parse fen %q: fullmove number: %w", fen, err)
		}
		fullMove = v
	}
	if fullMove < 1 {
		fullMove = 1
	}
	fields = append(fields[:4], strconv.Itoa(rule50), strconv.Itoa(fullMove))
	var opt, err = chess.FEN(strings.Join(fields, " "))
	if err != nil {
		return nil, fmt.Errorf("parse fen %q: %w", fen, err)
	}
	var game = chess.NewGame(opt)
	var pos = game.Position()
	var cb = pos.Board()
	var check = isAttacked(cb, kingSquare(cb, pos.Turn()), pos.Turn().Other())
	return newBoard(pos, nil, rule50, fullMove, MoveEmpty, check), nil
}

// FromPosition builds the board reached from fen after playing moves given in
// long algebraic notation.
func FromPosition(fen string, moves []string) (*Board, error) {
	var b, err = NewBoard(fen)
	if err != nil {
		return nil, err
	}
	for _, smove := range moves {
		var move, err = b.ParseMove(smove)
		if err != nil {
			return nil, err
		}
		b, err = b.Apply(move)
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

func newBoard(pos *chess.Position, parent *Board, rule50, fullMove int, lastMove Move, check bool) *Board {
	var b = &Board{
		pos:      pos,
		parent:   parent,
		rule50:   rule50,
		fullMove: fullMove,
		check:    check,
		lastMove: lastMove,
	}
	// ValidMoves caches inside the position; fill it now so later reads are race free.
	b.raw = pos.ValidMoves()
	b.moves = make([]Move, len(b.raw))
	var cb = pos.Board()
	for i, m := range b.raw {
		b.moves[i] = encodeMove(cb, m)
	}
	b.key = computeKey(b)
	return b
}

// Apply returns the board after move. The receiver is not modified.
func (b *Board) Apply(move Move) (*Board, error) {
	for i, m := range b.moves {
		if m != move {
			continue
		}
		var rule50 = b.rule50 + 1
		if move.MovingPiece() == Pawn || move.CapturedPiece() != Empty {
			rule50 = 0
		}
		var fullMove = b.fullMove
		if b.pos.Turn() == chess.Black {
			fullMove++
		}
		// the generator tags moves that give check
		var check = b.raw[i].HasTag(chess.Check)
		return newBoard(b.pos.Update(b.raw[i]), b, rule50, fullMove, move, check), nil
	}
	return nil, fmt.Errorf("%w: %v", ErrIllegalMove, move)
}

// ParseMove decodes a move in long algebraic notation.
func (b *Board) ParseMove(s string) (Move, error) {
	var m, err = chess.UCINotation{}.Decode(b.pos, s)
	if err != nil {
		return MoveEmpty, fmt.Errorf("%w: %v: %v", ErrIllegalMove, s, err)
	}
	for i, raw := range b.raw {
		if raw.S1() == m.S1() && raw.S2() == m.S2() && raw.Promo() == m.Promo() {
			return b.moves[i], nil
		}
	}
	return MoveEmpty, fmt.Errorf("%w: %v", ErrIllegalMove, s)
}

// LegalMoves returns the legal moves in generator order. The slice is shared;
// callers copy it before reordering.
func (b *Board) LegalMoves() []Move {
	return b.moves
}

func (b *Board) Key() uint64 {
	return b.key
}

func (b *Board) WhiteToMove() bool {
	return b.pos.Turn() == chess.White
}

func (b *Board) FullMoveNumber() int {
	return b.fullMove
}

func (b *Board) Rule50() int {
	return b.rule50
}

func (b *Board) LastMove() Move {
	return b.lastMove
}

func (b *Board) IsCheck() bool {
	return b.check
}

// RepetitionCount is the number of earlier occurrences of this position since
// the last irreversible move.
func (b *Board) RepetitionCount() int {
	var count = 0
	var plies = b.rule50
	for p := b.parent; p != nil && plies > 0; p = p.parent {
		plies--
		if p.key == b.key {
			count++
		}
	}
	return count
}

// IsDraw reports fifty-move rule, threefold repetition and insufficient material.
func (b *Board) IsDraw() bool {
	if b.rule50 >= 100 && !(b.check && len(b.moves) == 0) {
		return true
	}
	if b.RepetitionCount() >= 2 {
		return true
	}
	return b.insufficientMaterial()
}

func (b *Board) Outcome() Outcome {
	if len(b.moves) == 0 {
		if b.check {
			return Checkmate
		}
		return Stalemate
	}
	if b.IsDraw() {
		return Draw
	}
	return Ongoing
}

// PieceAt returns the piece type on sq (Empty if none) and its colour.
func (b *Board) PieceAt(sq int) (piece int, white bool) {
	var p = b.pos.Board().Piece(chess.Square(sq))
	if p == chess.NoPiece {
		return Empty, false
	}
	return fromPieceType(p.Type()), p.Color() == chess.White
}

func (b *Board) FEN() string {
	return b.pos.String()
}

func (b *Board) String() string {
	return b.pos.Board().Draw() + b.FEN()
}

func (b *Board) insufficientMaterial() bool {
	var minors = 0
	for sq := 0; sq < 64; sq++ {
		switch piece, _ := b.PieceAt(sq); piece {
		case Pawn, Rook, Queen:
			return false
		case Knight, Bishop:
			minors++
			if minors > 1 {
				return false
			}
		}
	}
	return true
}
