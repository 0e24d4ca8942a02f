package board

import (
	"strings"

	"github.com/notnil/chess"
)

const (
	Empty int = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

// Move packs from/to squares, promotion, moving and captured piece types.
// The zero value is MoveEmpty.
type Move uint32

const MoveEmpty Move = 0

func makeMove(from, to, movingPiece, capturedPiece, promotion int) Move {
	return Move(from ^ (to << 6) ^ (promotion << 12) ^ (movingPiece << 15) ^ (capturedPiece << 18))
}

func (m Move) From() int {
	return int(m & 63)
}

func (m Move) To() int {
	return int((m >> 6) & 63)
}

func (m Move) Promotion() int {
	return int((m >> 12) & 7)
}

func (m Move) MovingPiece() int {
	return int((m >> 15) & 7)
}

func (m Move) CapturedPiece() int {
	return int((m >> 18) & 7)
}

func (m Move) IsCaptureOrPromotion() bool {
	return m.CapturedPiece() != Empty || m.Promotion() != Empty
}

// String returns the move in long algebraic (UCI) notation.
func (m Move) String() string {
	if m == MoveEmpty {
		return "0000"
	}
	var sb strings.Builder
	sb.WriteString(SquareName(m.From()))
	sb.WriteString(SquareName(m.To()))
	if m.Promotion() != Empty {
		sb.WriteByte(" pnbrqk"[m.Promotion()])
	}
	return sb.String()
}

func SquareName(sq int) string {
	return chess.Square(sq).String()
}

func File(sq int) int {
	return sq & 7
}

func Rank(sq int) int {
	return sq >> 3
}

func fromPieceType(pt chess.PieceType) int {
	switch pt {
	case chess.Pawn:
		return Pawn
	case chess.Knight:
		return Knight
	case chess.Bishop:
		return Bishop
	case chess.Rook:
		return Rook
	case chess.Queen:
		return Queen
	case chess.King:
		return King
	}
	return Empty
}

func encodeMove(b *chess.Board, m *chess.Move) Move {
	var moving = fromPieceType(b.Piece(m.S1()).Type())
	var captured = fromPieceType(b.Piece(m.S2()).Type())
	if m.HasTag(chess.EnPassant) {
		captured = Pawn
	}
	return makeMove(int(m.S1()), int(m.S2()), moving, captured, fromPieceType(m.Promo()))
}
