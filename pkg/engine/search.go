package engine

import (
	"context"
	"errors"
	"time"

	"github.com/heraldchess/herald/internal/mathutil"
	"github.com/heraldchess/herald/pkg/board"
)

const aspirationMargin = 50

var errSearchAborted = errors.New("search aborted")

type rootMove struct {
	move  board.Move
	score int
	// score is exact, not a bound
	exact bool
}

type stackEntry struct {
	board          *board.Board
	killer1        board.Move
	killer2        board.Move
	pv             []board.Move
	mi             moveIterator
	miQS           moveIteratorQS
	quietsSearched []board.Move
}

// searcher holds the state of one request. It is used by a single goroutine.
type searcher struct {
	ctx       context.Context
	engine    *Engine
	tt        *TransTable
	tm        *timeManager
	request   Request
	nodes     int64
	rootMoves []rootMove
	history   historyTable
	stack     [stackSize]stackEntry
}

func newSearcher(ctx context.Context, e *Engine, tm *timeManager, request Request) *searcher {
	var t = &searcher{
		ctx:     ctx,
		engine:  e,
		tt:      e.transTable,
		tm:      tm,
		request: request,
	}
	t.stack[0].board = request.Board
	return t
}

func (t *searcher) iterativeDeepening(start time.Time, publish func(Result)) Result {
	var root = t.request.Board
	if len(root.LegalMoves()) == 0 {
		var result = Result{
			Score:    valueDraw,
			Elapsed:  time.Since(start),
			Terminal: true,
		}
		if root.IsCheck() {
			result.Score = lossIn(0)
		}
		publish(result)
		return result
	}

	t.rootMoves = t.genRootMoves()
	// depth 0: something legal to play even if the first iteration is cut short
	var last = Result{
		Move:     t.rootMoves[0].move,
		Elapsed:  time.Since(start),
		MainLine: []board.Move{t.rootMoves[0].move},
	}
	publish(last)

	var prevScore = t.request.EvalGuess
	if !root.WhiteToMove() {
		prevScore = -prevScore
	}
	for depth := 1; t.tm.CanStartIteration(depth); depth++ {
		if t.ctx.Err() != nil {
			break
		}
		var iterationStart = time.Now()
		var score, completed = t.searchIteration(depth, prevScore)
		if !completed {
			break
		}
		prevScore = score
		last = Result{
			Move:     t.rootMoves[0].move,
			Score:    score,
			Depth:    depth,
			Nodes:    t.nodes,
			Elapsed:  time.Since(start),
			MainLine: cloneMoves(t.stack[0].pv),
		}
		if t.request.MoveVariety > 1 {
			var chosen = selectRootMove(t.rootMoves, score, t.request.MoveVariety)
			if chosen.move != last.Move {
				// only the best move has a line beyond the root
				last.Move = chosen.move
				last.Score = chosen.score
				last.MainLine = []board.Move{chosen.move}
			}
		}
		publish(last)
		t.tm.OnIterationComplete(last, time.Since(iterationStart))
		if len(t.rootMoves) == 1 && t.tm.timed() {
			break
		}
	}
	return last
}

// searchIteration runs one depth. It reports false when the search was
// aborted, in which case nothing it computed may be used.
func (t *searcher) searchIteration(depth, prevScore int) (score int, completed bool) {
	defer func() {
		if r := recover(); r != nil {
			if r == errSearchAborted {
				completed = false
				return
			}
			panic(r)
		}
	}()
	return t.aspirationWindow(depth, prevScore), true
}

func (t *searcher) aspirationWindow(depth, guess int) int {
	if IsMateScore(guess) {
		return t.searchRoot(-valueInfinity, valueInfinity, depth)
	}
	var alpha = mathutil.Max(-valueInfinity, guess-aspirationMargin)
	var beta = mathutil.Min(valueInfinity, guess+aspirationMargin)
	var score = t.searchRoot(alpha, beta, depth)
	if score > alpha && score < beta {
		return score
	}
	if score >= beta {
		beta = valueInfinity
	}
	if score <= alpha {
		alpha = -valueInfinity
	}
	score = t.searchRoot(alpha, beta, depth)
	if score > alpha && score < beta {
		return score
	}
	return t.searchRoot(-valueInfinity, valueInfinity, depth)
}

func (t *searcher) searchRoot(alpha, beta, depth int) int {
	const height = 0
	t.clearPV(height)
	var oldAlpha = alpha
	var best = -valueInfinity
	var bestIndex = -1
	for i := range t.rootMoves {
		t.rootMoves[i].score = -valueInfinity
		t.rootMoves[i].exact = false
	}
	for i := range t.rootMoves {
		var rm = &t.rootMoves[i]
		// with variety the moves close below the best need exact scores too
		var lower = alpha
		if t.request.MoveVariety > 1 {
			lower = mathutil.Max(oldAlpha, alpha-varietyMargin)
		}
		t.makeMove(rm.move, height)
		var score = -t.alphaBeta(-beta, -lower, depth-1, height+1)
		rm.score = score
		rm.exact = score > lower && score < beta
		if score > best {
			best = score
			bestIndex = i
		}
		if score > alpha {
			alpha = score
			t.assignPV(height, rm.move)
			if alpha >= beta {
				break
			}
		}
	}
	moveToBegin(t.rootMoves, bestIndex)
	var bound = boundFor(best, oldAlpha, beta)
	if bound != BoundUpper {
		var root = t.stack[height].board
		t.tt.Store(root.Key(), depth, valueToTT(best, height), bound, t.rootMoves[0].move)
	}
	return best
}

func (t *searcher) alphaBeta(alpha, beta, depth, height int) int {
	if depth <= 0 {
		return t.quiescence(alpha, beta, height, 0)
	}
	t.clearPV(height)

	var position = t.stack[height].board
	if len(position.LegalMoves()) == 0 {
		if position.IsCheck() {
			return lossIn(height)
		}
		return valueDraw
	}
	if position.IsDraw() {
		return valueDraw
	}
	if height >= maxHeight {
		return t.evaluate(position)
	}
	// mate distance pruning
	if winIn(height+1) <= alpha {
		return alpha
	}
	if lossIn(height+2) >= beta && !position.IsCheck() {
		return beta
	}

	var ttMove = board.MoveEmpty
	if entry, ok := t.tt.Probe(position.Key()); ok {
		ttMove = entry.Move
		if entry.Depth < depth {
			t.tt.CountHit(false)
		} else {
			var ttValue = valueFromTT(entry.Score, height)
			if entry.Bound == BoundExact ||
				entry.Bound == BoundLower && ttValue >= beta ||
				entry.Bound == BoundUpper && ttValue <= alpha {
				t.tt.CountHit(true)
				return ttValue
			}
		}
	}

	if height+2 < stackSize {
		t.stack[height+2].killer1 = board.MoveEmpty
		t.stack[height+2].killer2 = board.MoveEmpty
	}

	var white = position.WhiteToMove()
	var mi = &t.stack[height].mi
	mi.transMove = ttMove
	mi.killer1 = t.stack[height].killer1
	mi.killer2 = t.stack[height].killer2
	mi.Init(position, &t.history)

	var quietsSearched = t.stack[height].quietsSearched[:0]
	var best = -valueInfinity
	var bestMove = board.MoveEmpty
	var oldAlpha = alpha

	for {
		var move = mi.Next()
		if move == board.MoveEmpty {
			break
		}
		if !move.IsCaptureOrPromotion() {
			quietsSearched = append(quietsSearched, move)
		}
		t.makeMove(move, height)
		var score = -t.alphaBeta(-beta, -alpha, depth-1, height+1)
		if score > best {
			best = score
			bestMove = move
		}
		if score > alpha {
			alpha = score
			t.assignPV(height, move)
			if alpha >= beta {
				break
			}
		}
	}
	t.stack[height].quietsSearched = quietsSearched

	if alpha > oldAlpha && !bestMove.IsCaptureOrPromotion() {
		t.history.Update(white, quietsSearched, bestMove, depth)
		t.updateKiller(bestMove, height)
	}

	t.tt.Store(position.Key(), depth, valueToTT(best, height),
		boundFor(best, oldAlpha, beta), bestMove)
	return best
}

func (t *searcher) quiescence(alpha, beta, height, qsDepth int) int {
	t.clearPV(height)
	var position = t.stack[height].board
	var isCheck = position.IsCheck()
	if len(position.LegalMoves()) == 0 {
		if isCheck {
			return lossIn(height)
		}
		return valueDraw
	}
	if position.IsDraw() {
		return valueDraw
	}
	if height >= maxHeight || qsDepth >= t.engine.Options.QuiescenceDepth {
		return t.evaluate(position)
	}

	var best = -valueInfinity
	if !isCheck {
		var eval = t.evaluate(position)
		best = eval
		if eval > alpha {
			alpha = eval
			if alpha >= beta {
				return alpha
			}
		}
	}

	var mi = &t.stack[height].miQS
	mi.Init(position)
	for {
		var move = mi.Next()
		if move == board.MoveEmpty {
			break
		}
		t.makeMove(move, height)
		var score = -t.quiescence(-beta, -alpha, height+1, qsDepth+1)
		best = mathutil.Max(best, score)
		if score > alpha {
			alpha = score
			t.assignPV(height, move)
			if alpha >= beta {
				break
			}
		}
	}
	return best
}

// evaluate scores position from the side to move's point of view.
func (t *searcher) evaluate(position *board.Board) int {
	var score = t.engine.evaluator.Evaluate(position)
	if !position.WhiteToMove() {
		score = -score
	}
	return mathutil.Clamp(score, valueLoss+1, valueWin-1)
}

func boundFor(best, alpha, beta int) Bound {
	var bound Bound
	if best > alpha {
		bound |= BoundLower
	}
	if best < beta {
		bound |= BoundUpper
	}
	return bound
}

func (t *searcher) makeMove(move board.Move, height int) {
	var child, err = t.stack[height].board.Apply(move)
	if err != nil {
		panic(err)
	}
	t.stack[height+1].board = child
	t.incNodes()
}

func (t *searcher) incNodes() {
	t.nodes++
	if t.nodes&255 == 0 && t.ctx.Err() != nil {
		panic(errSearchAborted)
	}
}

func (t *searcher) clearPV(height int) {
	t.stack[height].pv = t.stack[height].pv[:0]
}

func (t *searcher) assignPV(height int, move board.Move) {
	var pv = append(t.stack[height].pv[:0], move)
	if height+1 < stackSize {
		pv = append(pv, t.stack[height+1].pv...)
	}
	t.stack[height].pv = pv
}

func (t *searcher) updateKiller(move board.Move, height int) {
	if t.stack[height].killer1 != move {
		t.stack[height].killer2 = t.stack[height].killer1
		t.stack[height].killer1 = move
	}
}

func (t *searcher) genRootMoves() []rootMove {
	var root = t.stack[0].board
	var transMove = board.MoveEmpty
	if entry, ok := t.tt.Probe(root.Key()); ok {
		transMove = entry.Move
		t.tt.CountHit(false)
	}
	var mi = moveIterator{transMove: transMove}
	mi.Init(root, &t.history)
	var result = make([]rootMove, 0, len(mi.buffer))
	for {
		var move = mi.Next()
		if move == board.MoveEmpty {
			break
		}
		result = append(result, rootMove{move: move})
	}
	return result
}

func cloneMoves(ml []board.Move) []board.Move {
	var result = make([]board.Move, len(ml))
	copy(result, ml)
	return result
}
