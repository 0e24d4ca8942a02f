package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/heraldchess/herald/pkg/board"
)

var (
	ErrInvalidRequest = errors.New("invalid search request")
	ErrSearchStuck    = errors.New("search did not stop")
)

type Evaluator interface {
	// Evaluate scores b from white's point of view.
	Evaluate(b *board.Board) int
}

// Request describes one search. Exactly one of Depth, a clock (TimeBudget
// plus TimeIncrement), MoveTime or Infinite bounds it.
type Request struct {
	Board         *board.Board
	Depth         int
	TimeBudget    time.Duration
	TimeIncrement time.Duration
	MovesToGo     int
	MoveTime      time.Duration
	Infinite      bool
	// EvalGuess seeds the aspiration window, from white's point of view.
	EvalGuess int
	// MoveVariety is how many near-equal root moves may be picked at random.
	MoveVariety int
	// Progress is called from the search goroutine after every completed iteration.
	Progress func(Result)
}

func (r *Request) Validate() error {
	if r.Board == nil {
		return fmt.Errorf("%w: no position", ErrInvalidRequest)
	}
	if r.Depth < 0 {
		return fmt.Errorf("%w: depth %d", ErrInvalidRequest, r.Depth)
	}
	if r.TimeBudget < 0 || r.TimeIncrement < 0 || r.MoveTime < 0 || r.MovesToGo < 0 {
		return fmt.Errorf("%w: negative time control", ErrInvalidRequest)
	}
	var limits = 0
	if r.Depth > 0 {
		limits++
	}
	if r.TimeBudget > 0 {
		limits++
	}
	if r.MoveTime > 0 {
		limits++
	}
	if r.Infinite {
		limits++
	}
	if limits == 0 {
		return fmt.Errorf("%w: neither depth nor time given", ErrInvalidRequest)
	}
	if limits > 1 {
		return fmt.Errorf("%w: more than one limit given", ErrInvalidRequest)
	}
	if r.TimeIncrement > 0 && r.TimeBudget == 0 {
		return fmt.Errorf("%w: increment without time budget", ErrInvalidRequest)
	}
	if r.MoveVariety < 1 {
		return fmt.Errorf("%w: move variety %d", ErrInvalidRequest, r.MoveVariety)
	}
	return nil
}

// Result is the outcome of the last completed iteration.
type Result struct {
	Move     board.Move
	Score    int // side to move's point of view
	Depth    int
	Nodes    int64
	Elapsed  time.Duration
	MainLine []board.Move
	// Terminal is set when the root has no legal moves.
	Terminal bool
}

func (r Result) UciScore() UciScore {
	return newUciScore(r.Score)
}

// Engine searches positions against a transposition table that outlives
// single searches. It keeps no other state between searches.
type Engine struct {
	Options    Options
	evaluator  Evaluator
	transTable *TransTable
}

func NewEngine(evaluator Evaluator, options Options) *Engine {
	return &Engine{
		Options:   options,
		evaluator: evaluator,
	}
}

// Prepare (re)creates the transposition table when it is missing or its
// size option changed.
func (e *Engine) Prepare() {
	if e.transTable == nil || e.transTable.Size() != e.Options.Hash {
		e.transTable = NewTransTable(e.Options.Hash)
	}
}

// Clear replaces the transposition table with an empty one.
func (e *Engine) Clear() {
	e.transTable = NewTransTable(e.Options.Hash)
}

func (e *Engine) TransTable() *TransTable {
	e.Prepare()
	return e.transTable
}

// Evaluate scores b from white's point of view.
func (e *Engine) Evaluate(b *board.Board) int {
	return e.evaluator.Evaluate(b)
}

// Search runs iterative deepening until the request's limit is reached or
// ctx is done. publish is called with the result of every completed
// iteration and never with a partial one. The returned Result equals the
// last published one.
func (e *Engine) Search(ctx context.Context, request Request, publish func(Result)) Result {
	var start = time.Now()
	e.Prepare()
	ctx, tm := newTimeManager(ctx, start, request, e.Options.moveOverhead())
	defer tm.Close()

	var t = newSearcher(ctx, e, tm, request)
	return t.iterativeDeepening(start, publish)
}
