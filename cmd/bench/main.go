package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/heraldchess/herald/pkg/board"
	"github.com/heraldchess/herald/pkg/engine"
	"github.com/heraldchess/herald/pkg/eval"
)

var benchFens = []string{
	board.InitialPositionFen,
	"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
	"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
	"r3k2r/Pppp1ppp/1b3nbN/nP6/BBP1P3/q4N2/Pp1P2PP/R2Q1RK1 w kq - 0 1",
	"rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8",
	"r4rk1/1pp1qppp/p1np1n2/2b1p1B1/2B1P1b1/P1NP1N2/1PP1QPPP/R4RK1 w - - 0 10",
	"6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1",
	"8/8/4k3/8/2p5/8/B2K4/8 w - - 0 1",
}

type benchItem struct {
	fen    string
	result engine.Result
	stats  engine.TTStats
}

func main() {
	var (
		depth    = flag.Int("depth", 4, "search depth per position")
		fenPath  = flag.String("fens", "", "file with one FEN per line, built-in positions if empty")
		parallel = flag.Int("parallel", runtime.NumCPU(), "positions searched at once")
		hash     = flag.Int("hash", 16, "transposition table megabytes per position")
	)
	flag.Parse()

	var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	var err = run(logger, *fenPath, *depth, *parallel, *hash)
	if err != nil {
		logger.Error().Err(err).Msg("bench")
		os.Exit(1)
	}
}

func run(logger zerolog.Logger, fenPath string, depth, parallel, hash int) error {
	var fens = benchFens
	if fenPath != "" {
		var err error
		fens, err = loadFens(fenPath)
		if err != nil {
			return err
		}
	}

	logger.Info().Int("positions", len(fens)).Int("depth", depth).Int("parallel", parallel).Msg("benchmark started")
	var start = time.Now()
	var items, err = benchmark(context.Background(), fens, depth, parallel, hash)
	if err != nil {
		return err
	}
	var elapsed = time.Since(start)

	var nodes int64
	var stats engine.TTStats
	for _, item := range items {
		nodes += item.result.Nodes
		stats.Requests += item.stats.Requests
		stats.Hits += item.stats.Hits
		stats.ShallowHits += item.stats.ShallowHits
		stats.Len += item.stats.Len
		stats.Added += item.stats.Added
		stats.AddedBetter += item.stats.AddedBetter
		fmt.Printf("%v\tbestmove %v\tscore %v\tnodes %v\ttime %v\n",
			item.fen, item.result.Move, item.result.Score, item.result.Nodes, item.result.Elapsed)
	}
	fmt.Println("Time", elapsed)
	fmt.Println("Nodes", humanize.Comma(nodes))
	fmt.Println("kNPS", nodes/(elapsed.Milliseconds()+1))
	fmt.Println("TT", stats)
	logger.Info().Dur("elapsed", elapsed).Int64("nodes", nodes).Msg("benchmark finished")
	return nil
}

// benchmark searches every position to depth, each with its own table.
func benchmark(ctx context.Context, fens []string, depth, parallel, hash int) ([]benchItem, error) {
	var items = make([]benchItem, len(fens))
	var g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(max(1, parallel))
	for i, fen := range fens {
		i, fen := i, fen
		g.Go(func() error {
			var b, err = board.NewBoard(fen)
			if err != nil {
				return err
			}
			var options = engine.NewOptions()
			options.Hash = hash
			var eng = engine.NewEngine(eval.NewEvaluationService(), options)
			var result = eng.Search(gctx, engine.Request{
				Board:       b,
				Depth:       depth,
				MoveVariety: 1,
			}, func(engine.Result) {})
			items[i] = benchItem{
				fen:    fen,
				result: result,
				stats:  eng.TransTable().Stats(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

func loadFens(path string) ([]string, error) {
	var f, err = os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var result []string
	var scanner = bufio.NewScanner(f)
	for scanner.Scan() {
		var line = strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// EPD lines carry operations after the four position fields
		if fields := strings.Fields(line); len(fields) > 6 {
			line = strings.Join(fields[:4], " ")
		}
		result = append(result, line)
	}
	return result, scanner.Err()
}
