package board

import (
	"math/rand"

	"github.com/notnil/chess"
)

var (
	sideKey        uint64
	enpassantKey   [8]uint64
	castlingKey    [4]uint64
	pieceSquareKey [2 * 7 * 64]uint64
)

func PieceSquareKey(piece int, white bool, square int) uint64 {
	var index = piece * 64
	if white {
		index += 7 * 64
	}
	return pieceSquareKey[index+square]
}

// computeKey hashes pieces, side to move, castling rights and the en-passant
// file. The en-passant file only counts when a legal en-passant capture exists,
// so positions that differ only by an unusable ep square share a key.
func computeKey(b *Board) uint64 {
	var result uint64
	var pos = b.pos
	if pos.Turn() == chess.White {
		result ^= sideKey
	}
	var cr = pos.CastleRights()
	if cr.CanCastle(chess.White, chess.KingSide) {
		result ^= castlingKey[0]
	}
	if cr.CanCastle(chess.White, chess.QueenSide) {
		result ^= castlingKey[1]
	}
	if cr.CanCastle(chess.Black, chess.KingSide) {
		result ^= castlingKey[2]
	}
	if cr.CanCastle(chess.Black, chess.QueenSide) {
		result ^= castlingKey[3]
	}
	for _, m := range b.raw {
		if m.HasTag(chess.EnPassant) {
			result ^= enpassantKey[File(int(m.S2()))]
			break
		}
	}
	for sq := 0; sq < 64; sq++ {
		var piece, white = b.PieceAt(sq)
		if piece != Empty {
			result ^= PieceSquareKey(piece, white, sq)
		}
	}
	return result
}

func init() {
	var r = rand.New(rand.NewSource(0))
	sideKey = r.Uint64()
	for i := range enpassantKey {
		enpassantKey[i] = r.Uint64()
	}
	for i := range castlingKey {
		castlingKey[i] = r.Uint64()
	}
	for i := range pieceSquareKey {
		pieceSquareKey[i] = r.Uint64()
	}
}
