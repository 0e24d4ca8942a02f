package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/heraldchess/herald/pkg/engine"
	"github.com/heraldchess/herald/pkg/eval"
	"github.com/heraldchess/herald/pkg/uci"
)

const (
	name   = "Herald"
	author = "nrobinaubertin"
)

var (
	versionName = "dev"
	buildDate   = "(null)"
	gitRevision = "(null)"
)

var (
	flgHash     int
	flgTTLoad   string
	flgLogLevel string
	flgVariety  int
	flgVersion  bool
)

func main() {
	var defaults = engine.NewOptions()
	flag.IntVar(&flgHash, "hash", defaults.Hash, "transposition table size in megabytes, 0 for unbounded")
	flag.StringVar(&flgTTLoad, "tt-load", "", "warm the transposition table from a file written by 'tt save'")
	flag.StringVar(&flgLogLevel, "log-level", "info", "log level: debug, info, warn, error, disabled")
	flag.IntVar(&flgVariety, "variety", defaults.MoveVariety, "upper bound on randomized opening moves")
	flag.BoolVar(&flgVersion, "version", false, "print version and exit")
	flag.Parse()

	if flgVersion {
		fmt.Println(name, versionName)
		return
	}

	var level, err = zerolog.ParseLevel(flgLogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	// stdout belongs to the protocol
	var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()

	logger.Info().
		Str("versionName", versionName).
		Str("buildDate", buildDate).
		Str("gitRevision", gitRevision).
		Str("runtimeVersion", runtime.Version()).
		Str("goarch", runtime.GOARCH).
		Str("goos", runtime.GOOS).
		Int("numCPU", runtime.NumCPU()).
		Msg(name)

	var options = engine.NewOptions()
	options.Hash = flgHash
	options.MoveVariety = flgVariety
	var eng = engine.NewEngine(eval.NewEvaluationService(), options)

	if flgTTLoad != "" {
		var n, err = eng.TransTable().LoadFile(flgTTLoad)
		if err != nil {
			logger.Error().Err(err).Str("path", flgTTLoad).Msg("tt-load")
		} else {
			logger.Info().Str("path", flgTTLoad).Str("entries", humanize.Comma(int64(n))).Msg("tt-loaded")
		}
	}

	var threads = 1
	var tasks = engine.NewTaskManager(eng, logger)
	var protocol = uci.New(name, author, versionName, tasks,
		[]uci.Option{
			&uci.IntOption{Name: "Hash", Min: 0, Max: 1 << 16, Value: &eng.Options.Hash},
			&uci.IntOption{Name: "Move Overhead", Min: 0, Max: 5000, Value: &eng.Options.MoveOverhead},
			&uci.IntOption{Name: "Threads", Min: 1, Max: 1, Value: &threads},
			&uci.IntOption{Name: "MoveVariety", Min: 1, Max: 64, Value: &eng.Options.MoveVariety},
		},
		os.Stdout, logger,
	)
	protocol.Run(os.Stdin)
}
