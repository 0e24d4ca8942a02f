package uci

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/heraldchess/herald/internal/mathutil"
	"github.com/heraldchess/herald/pkg/board"
	"github.com/heraldchess/herald/pkg/engine"
)

var (
	errUnknownCommand = errors.New("command not found")
	errSearchRunning  = errors.New("search still run")
	errBadArguments   = errors.New("invalid arguments")
	errUnknownOption  = errors.New("unhandled option")
)

type progressInfo struct {
	generation int
	result     engine.Result
}

// Protocol is one UCI session. All fields are owned by the goroutine that
// calls Run; searches report back through channels.
type Protocol struct {
	name     string
	author   string
	version  string
	options  []Option
	engine   *engine.Engine
	tasks    *engine.TaskManager
	out      io.Writer
	logger   zerolog.Logger
	board    *board.Board
	progress chan progressInfo
	// generation of the current search, to drop reports of superseded ones
	generation    int
	task          *engine.Task
	held          *engine.Task
	stopRequested bool
}

func New(name, author, version string, tasks *engine.TaskManager, options []Option,
	out io.Writer, logger zerolog.Logger) *Protocol {
	var initPosition, err = board.NewBoard(board.InitialPositionFen)
	if err != nil {
		panic(err)
	}
	return &Protocol{
		name:     name,
		author:   author,
		version:  version,
		options:  options,
		engine:   tasks.Engine,
		tasks:    tasks,
		out:      out,
		logger:   logger,
		board:    initPosition,
		progress: make(chan progressInfo, 16),
	}
}

// Run handles commands from in until quit or end of input.
func (uci *Protocol) Run(in io.Reader) {
	var commands = make(chan string)

	go func() {
		defer close(commands)
		readCommands(in, commands)
	}()

	for {
		select {
		case pi := <-uci.progress:
			uci.printInfo(pi)
		case <-uci.taskDone():
			uci.onSearchDone()
		case commandLine, ok := <-commands:
			if !ok {
				uci.shutdown()
				return
			}
			var err = uci.handle(commandLine)
			if err != nil {
				uci.logger.Error().Err(err).Str("command", commandLine).Msg("command failed")
			}
		}
	}
}

func readCommands(in io.Reader, commands chan<- string) {
	var scanner = bufio.NewScanner(in)
	for scanner.Scan() {
		var commandLine = strings.TrimSpace(scanner.Text())
		if commandLine == "quit" {
			return
		}
		if commandLine != "" {
			commands <- commandLine
		}
	}
}

func (uci *Protocol) taskDone() <-chan struct{} {
	if uci.task == nil {
		return nil
	}
	return uci.task.Done()
}

func (uci *Protocol) shutdown() {
	if uci.task == nil {
		return
	}
	if err := uci.tasks.Stop(); err != nil {
		uci.logger.Error().Err(err).Msg("shutdown")
	}
	uci.task = nil
}

func (uci *Protocol) handle(commandLine string) error {
	var fields = strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil
	}
	var commandName = fields[0]
	fields = fields[1:]

	var h func(fields []string) error

	switch commandName {
	case "uci":
		h = uci.uciCommand
	case "setoption":
		h = uci.setOptionCommand
	case "isready":
		h = uci.isReadyCommand
	case "position":
		h = uci.positionCommand
	case "go":
		h = uci.goCommand
	case "stop":
		h = uci.stopCommand
	case "ucinewgame":
		h = uci.uciNewGameCommand
	case "eval":
		h = uci.evalCommand
	case "print":
		h = uci.printCommand
	case "tt":
		h = uci.ttCommand
	}

	if h == nil {
		return fmt.Errorf("%w: %v", errUnknownCommand, commandName)
	}
	if uci.task != nil && (commandName == "setoption" || commandName == "ucinewgame") {
		select {
		case <-uci.task.Done():
			// finished but not yet reported by the loop
			uci.onSearchDone()
		default:
			return fmt.Errorf("%w: %v", errSearchRunning, commandName)
		}
	}

	return h(fields)
}

func (uci *Protocol) uciCommand(fields []string) error {
	fmt.Fprintf(uci.out, "id name %s %s\n", uci.name, uci.version)
	fmt.Fprintf(uci.out, "id author %s\n", uci.author)
	for _, option := range uci.options {
		fmt.Fprintln(uci.out, option.UciString())
	}
	fmt.Fprintln(uci.out, "uciok")
	return nil
}

func (uci *Protocol) setOptionCommand(fields []string) error {
	var valueIndex = lo.IndexOf(fields, "value")
	if len(fields) < 4 || fields[0] != "name" || valueIndex < 2 {
		return fmt.Errorf("setoption: %w", errBadArguments)
	}
	var name = strings.Join(fields[1:valueIndex], " ")
	var value = strings.Join(fields[valueIndex+1:], " ")
	var option, ok = findOption(uci.options, name)
	if !ok {
		return fmt.Errorf("%w: %v", errUnknownOption, name)
	}
	return option.Set(value)
}

func (uci *Protocol) isReadyCommand(fields []string) error {
	if uci.task == nil {
		uci.engine.Prepare()
	}
	fmt.Fprintln(uci.out, "readyok")
	return nil
}

func (uci *Protocol) positionCommand(fields []string) error {
	if len(fields) == 0 {
		return fmt.Errorf("position: %w", errBadArguments)
	}
	var movesIndex = lo.IndexOf(fields, "moves")
	var fen string
	switch fields[0] {
	case "startpos":
		fen = board.InitialPositionFen
	case "fen":
		var end = len(fields)
		if movesIndex != -1 {
			end = movesIndex
		}
		fen = strings.Join(fields[1:end], " ")
	default:
		return fmt.Errorf("position: %w: %v", errBadArguments, fields[0])
	}
	var moves []string
	if movesIndex != -1 {
		moves = fields[movesIndex+1:]
	}
	var b, err = board.FromPosition(fen, moves)
	if err != nil {
		return fmt.Errorf("position: %w", err)
	}
	uci.board = b
	return nil
}

func (uci *Protocol) goCommand(fields []string) error {
	var limits, err = parseLimits(fields)
	if err != nil {
		return err
	}
	var request = engine.Request{
		Board:       uci.board,
		EvalGuess:   uci.engine.Evaluate(uci.board),
		MoveVariety: 1,
	}
	var ms = func(v int) time.Duration {
		return time.Duration(v) * time.Millisecond
	}
	switch {
	case limits.Depth > 0:
		request.Depth = limits.Depth
	case limits.MoveTime > 0:
		request.MoveTime = ms(limits.MoveTime)
		request.MoveVariety = uci.moveVariety()
	case limits.WhiteTime > 0 || limits.BlackTime > 0:
		if uci.board.WhiteToMove() {
			request.TimeBudget, request.TimeIncrement = ms(limits.WhiteTime), ms(limits.WhiteIncrement)
		} else {
			request.TimeBudget, request.TimeIncrement = ms(limits.BlackTime), ms(limits.BlackIncrement)
		}
		// a flagged clock still has to produce a move
		request.TimeBudget = mathutil.Max(request.TimeBudget, time.Millisecond)
		request.MovesToGo = limits.MovesToGo
		request.MoveVariety = uci.moveVariety()
	default:
		request.Infinite = true
	}

	var generation = uci.generation + 1
	var progress = uci.progress
	request.Progress = func(r engine.Result) {
		select {
		case progress <- progressInfo{generation: generation, result: r}:
		default:
		}
	}
	task, err := uci.tasks.Start(request)
	if err != nil {
		return err
	}
	uci.generation = generation
	uci.task = task
	uci.held = nil
	uci.stopRequested = false
	return nil
}

// moveVariety widens the choice of opening moves early in the game.
func (uci *Protocol) moveVariety() int {
	var variety = mathutil.Max(1, 2*(5-uci.board.FullMoveNumber()))
	return mathutil.Min(variety, mathutil.Max(1, uci.engine.Options.MoveVariety))
}

func (uci *Protocol) stopCommand(fields []string) error {
	if uci.task != nil {
		uci.task.Cancel()
		uci.stopRequested = true
	} else if uci.held != nil {
		uci.printBestMove(uci.held.Latest())
		uci.held = nil
	}
	return nil
}

func (uci *Protocol) onSearchDone() {
	var task = uci.task
	uci.task = nil
	uci.drainProgress()
	if task.Request().Infinite && !uci.stopRequested {
		// bestmove of an infinite search waits for stop
		uci.held = task
		return
	}
	uci.stopRequested = false
	uci.printBestMove(task.Latest())
}

func (uci *Protocol) drainProgress() {
	for {
		select {
		case pi := <-uci.progress:
			uci.printInfo(pi)
		default:
			return
		}
	}
}

func (uci *Protocol) printInfo(pi progressInfo) {
	if pi.generation != uci.generation || pi.result.Depth == 0 {
		return
	}
	fmt.Fprintln(uci.out, searchInfoToUci(pi.result))
}

func (uci *Protocol) printBestMove(result engine.Result) {
	fmt.Fprintf(uci.out, "bestmove %v\n", result.Move)
}

func (uci *Protocol) uciNewGameCommand(fields []string) error {
	var b, err = board.NewBoard(board.InitialPositionFen)
	if err != nil {
		return err
	}
	uci.board = b
	uci.held = nil
	uci.engine.Clear()
	return nil
}

func (uci *Protocol) evalCommand(fields []string) error {
	fmt.Fprintf(uci.out, "board: %v\n", uci.engine.Evaluate(uci.board))
	return nil
}

func (uci *Protocol) printCommand(fields []string) error {
	fmt.Fprintln(uci.out, uci.board.String())
	return nil
}

func (uci *Protocol) ttCommand(fields []string) error {
	if len(fields) == 0 {
		return fmt.Errorf("tt: %w", errBadArguments)
	}
	var tt = uci.engine.TransTable()
	switch fields[0] {
	case "stats":
		var stats = tt.Stats()
		fmt.Fprintf(uci.out, "SHALLOW_HITS: %d, HITS: %d, REQ: %d, LEN: %d, ADD: %d, ADD_BETTER: %d\n",
			stats.ShallowHits, stats.Hits, stats.Requests, stats.Len, stats.Added, stats.AddedBetter)
		return nil
	case "export":
		if dump := tt.ExportString(); dump != "" {
			fmt.Fprintln(uci.out, dump)
		}
		return nil
	case "save":
		if len(fields) != 2 {
			return fmt.Errorf("tt save: %w", errBadArguments)
		}
		if err := tt.SaveFile(fields[1]); err != nil {
			return fmt.Errorf("tt save: %w", err)
		}
		uci.logger.Info().Str("path", fields[1]).
			Str("entries", humanize.Comma(int64(tt.Stats().Len))).Msg("tt-saved")
		return nil
	case "load":
		if len(fields) != 2 {
			return fmt.Errorf("tt load: %w", errBadArguments)
		}
		var n, err = tt.LoadFile(fields[1])
		if err != nil {
			return fmt.Errorf("tt load: %w", err)
		}
		uci.logger.Info().Str("path", fields[1]).
			Str("entries", humanize.Comma(int64(n))).Msg("tt-loaded")
		return nil
	}
	return fmt.Errorf("tt: %w: %v", errBadArguments, fields[0])
}

func searchInfoToUci(si engine.Result) string {
	var sb = &strings.Builder{}
	fmt.Fprintf(sb, "info depth %v", si.Depth)
	var score = si.UciScore()
	if score.Mate != 0 {
		fmt.Fprintf(sb, " score mate %v", score.Mate)
	} else {
		fmt.Fprintf(sb, " score cp %v", score.Centipawns)
	}
	var timeMs = si.Elapsed.Milliseconds()
	var nps = si.Nodes * 1000 / (timeMs + 1)
	fmt.Fprintf(sb, " nodes %v time %v nps %v", si.Nodes, timeMs, nps)
	if len(si.MainLine) != 0 {
		fmt.Fprintf(sb, " pv")
		for _, move := range si.MainLine {
			sb.WriteString(" ")
			sb.WriteString(move.String())
		}
	}
	return sb.String()
}

type limitsType struct {
	WhiteTime      int
	BlackTime      int
	WhiteIncrement int
	BlackIncrement int
	MovesToGo      int
	Depth          int
	MoveTime       int
	Infinite       bool
}

func parseLimits(args []string) (result limitsType, err error) {
	var intArg = func(i int) (int, error) {
		if i+1 >= len(args) {
			return 0, fmt.Errorf("go %v: %w", args[i], errBadArguments)
		}
		var v, err = strconv.Atoi(args[i+1])
		if err != nil || v < 0 {
			return 0, fmt.Errorf("go %v %v: %w", args[i], args[i+1], errBadArguments)
		}
		return v, nil
	}
	// a search bounded by zero depth or zero time has no result to report
	var positiveArg = func(i int) (int, error) {
		var v, err = intArg(i)
		if err == nil && v == 0 {
			return 0, fmt.Errorf("go %v 0: %w", args[i], errBadArguments)
		}
		return v, err
	}
	for i := 0; i < len(args) && err == nil; i++ {
		switch args[i] {
		case "wtime":
			result.WhiteTime, err = intArg(i)
			i++
		case "btime":
			result.BlackTime, err = intArg(i)
			i++
		case "winc":
			result.WhiteIncrement, err = intArg(i)
			i++
		case "binc":
			result.BlackIncrement, err = intArg(i)
			i++
		case "movestogo":
			result.MovesToGo, err = intArg(i)
			i++
		case "depth":
			result.Depth, err = positiveArg(i)
			i++
		case "movetime":
			result.MoveTime, err = positiveArg(i)
			i++
		case "infinite":
			result.Infinite = true
		}
	}
	return
}
