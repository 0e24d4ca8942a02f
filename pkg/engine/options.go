package engine

import "time"

type Options struct {
	Hash         int // megabytes, 0 for an unbounded table
	MoveOverhead int // milliseconds kept in reserve per move
	MoveVariety  int // upper bound on the root variety a request may ask for
	// how many plies of checks and captures quiescence may add
	QuiescenceDepth int
}

func NewOptions() Options {
	return Options{
		Hash:            64,
		MoveOverhead:    30,
		MoveVariety:     8,
		QuiescenceDepth: 8,
	}
}

func (o *Options) moveOverhead() time.Duration {
	return time.Duration(o.MoveOverhead) * time.Millisecond
}
