package engine

import (
	"context"
	"time"

	"github.com/heraldchess/herald/internal/mathutil"
)

// iteration d+1 is assumed to cost this many times iteration d
const branchFactor = 2

type timeManager struct {
	start         time.Time
	request       Request
	softLimit     time.Duration
	hardLimit     time.Duration
	lastIteration time.Duration
	cancel        context.CancelFunc
}

func newTimeManager(ctx context.Context, start time.Time,
	request Request, moveOverhead time.Duration) (context.Context, *timeManager) {

	var tm = &timeManager{
		start:   start,
		request: request,
	}

	if request.Depth == 0 && !request.Infinite {
		if request.MoveTime > 0 {
			tm.hardLimit = mathutil.Max(request.MoveTime-moveOverhead, minTimeLimit)
			tm.softLimit = tm.hardLimit
		} else if request.TimeBudget > 0 {
			tm.softLimit, tm.hardLimit = calcLimits(request.TimeBudget,
				request.TimeIncrement, request.MovesToGo, moveOverhead)
		}
	}

	var cancel context.CancelFunc
	if tm.hardLimit != 0 {
		ctx, cancel = context.WithDeadline(ctx, start.Add(tm.hardLimit))
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	tm.cancel = cancel
	return ctx, tm
}

func (tm *timeManager) timed() bool {
	return tm.softLimit != 0
}

// CanStartIteration decides before each iteration whether it should run.
// Depth one always runs so that a real move is found.
func (tm *timeManager) CanStartIteration(depth int) bool {
	if depth > maxHeight {
		return false
	}
	if tm.request.Depth != 0 {
		return depth <= tm.request.Depth
	}
	if depth == 1 || !tm.timed() {
		return true
	}
	var predicted = time.Since(tm.start) + tm.lastIteration*branchFactor
	return predicted <= tm.softLimit
}

func (tm *timeManager) OnIterationComplete(result Result, elapsed time.Duration) {
	tm.lastIteration = elapsed
	if !tm.timed() {
		return
	}
	if result.Score >= winIn(result.Depth-5) ||
		result.Score <= lossIn(result.Depth-5) {
		tm.cancel()
		return
	}
	if time.Since(tm.start) >= tm.softLimit {
		tm.cancel()
	}
}

func (tm *timeManager) Close() {
	tm.cancel()
}

const minTimeLimit = 1 * time.Millisecond

func calcLimits(main, inc time.Duration, moves int, overhead time.Duration) (soft, hard time.Duration) {
	const DefaultMovesToGo = 40

	main -= overhead
	if main < minTimeLimit {
		main = minTimeLimit
	}

	if moves == 0 {
		var ideal = main/35 + inc/2
		soft = ideal * 7 / 10
		hard = ideal * 21 / 10
	} else {
		moves = mathutil.Min(moves, DefaultMovesToGo)
		soft = (main/time.Duration(moves+1) + inc) * 7 / 10
		hard = (main/time.Duration(moves+1) + inc) * 21 / 10
	}

	hard = mathutil.Clamp(hard, minTimeLimit, main)
	soft = mathutil.Clamp(soft, minTimeLimit, main)

	return
}
