package eval

import (
	"testing"

	"github.com/matryer/is"

	"github.com/heraldchess/herald/pkg/board"
)

func TestEvalSymmetry(t *testing.T) {
	is := is.New(t)
	var e = NewEvaluationService()
	var start, err = board.NewBoard(board.InitialPositionFen)
	is.NoErr(err)
	is.Equal(e.Evaluate(start), 0)

	var tests = [][2]string{
		{"r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 2 3",
			"rnbqkb1r/pppp1ppp/5n2/4p3/4P3/2N5/PPPP1PPP/R1BQKBNR b KQkq - 2 3"},
		{"4k3/8/8/3p4/8/8/8/4K2R w - - 0 1",
			"4k2r/8/8/8/3P4/8/8/4K3 b - - 0 1"},
	}
	for _, test := range tests {
		var w, err1 = board.NewBoard(test[0])
		var b, err2 = board.NewBoard(test[1])
		is.NoErr(err1)
		is.NoErr(err2)
		is.Equal(e.Evaluate(w), -e.Evaluate(b))
	}
}

func TestEvalMaterial(t *testing.T) {
	is := is.New(t)
	var e = NewEvaluationService()
	var up, _ = board.NewBoard("4k3/8/8/8/8/8/8/3QK3 w - - 0 1")
	var down, _ = board.NewBoard("3qk3/8/8/8/8/8/8/4K3 w - - 0 1")
	is.True(e.Evaluate(up) > 500)
	is.True(e.Evaluate(down) < -500)
}
