package board

import "github.com/notnil/chess"

var (
	knightDeltas = [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingDeltas   = [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	rookDirs     = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	bishopDirs   = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

func kingSquare(b *chess.Board, side chess.Color) chess.Square {
	for sq := chess.A1; sq <= chess.H8; sq++ {
		var p = b.Piece(sq)
		if p.Type() == chess.King && p.Color() == side {
			return sq
		}
	}
	return chess.NoSquare
}

func pieceOn(b *chess.Board, file, rank int) (chess.Piece, bool) {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return chess.NoPiece, false
	}
	return b.Piece(chess.Square(rank*8 + file)), true
}

// isAttacked reports whether side by attacks sq.
func isAttacked(b *chess.Board, sq chess.Square, by chess.Color) bool {
	if sq == chess.NoSquare {
		return false
	}
	var file, rank = int(sq) & 7, int(sq) >> 3

	var pawnRank = rank - 1
	if by == chess.Black {
		pawnRank = rank + 1
	}
	for _, df := range [2]int{-1, 1} {
		if p, ok := pieceOn(b, file+df, pawnRank); ok && p.Type() == chess.Pawn && p.Color() == by {
			return true
		}
	}
	for _, d := range knightDeltas {
		if p, ok := pieceOn(b, file+d[0], rank+d[1]); ok && p.Type() == chess.Knight && p.Color() == by {
			return true
		}
	}
	for _, d := range kingDeltas {
		if p, ok := pieceOn(b, file+d[0], rank+d[1]); ok && p.Type() == chess.King && p.Color() == by {
			return true
		}
	}
	if slides(b, file, rank, rookDirs[:], chess.Rook, by) {
		return true
	}
	return slides(b, file, rank, bishopDirs[:], chess.Bishop, by)
}

func slides(b *chess.Board, file, rank int, dirs [][2]int, slider chess.PieceType, by chess.Color) bool {
	for _, d := range dirs {
		for f, r := file+d[0], rank+d[1]; ; f, r = f+d[0], r+d[1] {
			var p, ok = pieceOn(b, f, r)
			if !ok {
				break
			}
			if p == chess.NoPiece {
				continue
			}
			if p.Color() == by && (p.Type() == slider || p.Type() == chess.Queen) {
				return true
			}
			break
		}
	}
	return false
}
