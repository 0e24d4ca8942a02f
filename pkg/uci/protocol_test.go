package uci

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/heraldchess/herald/pkg/board"
	"github.com/heraldchess/herald/pkg/engine"
	"github.com/heraldchess/herald/pkg/eval"
)

func newTestProtocol(out io.Writer) *Protocol {
	var options = engine.NewOptions()
	options.Hash = 4
	var eng = engine.NewEngine(eval.NewEvaluationService(), options)
	var tasks = engine.NewTaskManager(eng, zerolog.Nop())
	return New("Herald", "tester", "dev", tasks,
		[]Option{
			&IntOption{Name: "Hash", Min: 1, Max: 1024, Value: &eng.Options.Hash},
			&IntOption{Name: "Move Overhead", Min: 0, Max: 5000, Value: &eng.Options.MoveOverhead},
			&IntOption{Name: "MoveVariety", Min: 1, Max: 32, Value: &eng.Options.MoveVariety},
		},
		out, zerolog.Nop())
}

// waitSearch lets the current search finish and handles its completion
// the way Run does.
func waitSearch(t *testing.T, p *Protocol) {
	t.Helper()
	select {
	case <-p.task.Done():
	case <-time.After(20 * time.Second):
		t.Fatal("search did not finish")
	}
	p.onSearchDone()
}

func lines(out *bytes.Buffer) []string {
	return strings.Split(strings.TrimSpace(out.String()), "\n")
}

func TestUciCommand(t *testing.T) {
	is := is.New(t)
	var out = &bytes.Buffer{}
	var p = newTestProtocol(out)
	is.NoErr(p.handle("uci"))
	var result = lines(out)
	is.Equal(result[0], "id name Herald dev")
	is.Equal(result[1], "id author tester")
	is.Equal(result[3], "option name Move Overhead type spin default 30 min 0 max 5000")
	is.Equal(result[len(result)-1], "uciok")
}

func TestUnknownCommand(t *testing.T) {
	is := is.New(t)
	var p = newTestProtocol(io.Discard)
	is.True(errors.Is(p.handle("fly away"), errUnknownCommand))
	is.NoErr(p.handle("   "))
}

func TestSetOption(t *testing.T) {
	is := is.New(t)
	var p = newTestProtocol(io.Discard)
	is.NoErr(p.handle("setoption name Move Overhead value 100"))
	is.Equal(p.engine.Options.MoveOverhead, 100)
	is.NoErr(p.handle("setoption name hash value 16"))
	is.Equal(p.engine.Options.Hash, 16)

	is.True(errors.Is(p.handle("setoption name Hash value 4096"), errOptionRange))
	is.Equal(p.engine.Options.Hash, 16)
	is.True(errors.Is(p.handle("setoption name Contempt value 10"), errUnknownOption))
	is.True(errors.Is(p.handle("setoption Hash 10"), errBadArguments))
	is.True(p.handle("setoption name Hash value big") != nil)

	is.NoErr(p.handle("isready"))
	is.Equal(p.engine.TransTable().Size(), 16)
}

func TestPositionCommand(t *testing.T) {
	is := is.New(t)
	var p = newTestProtocol(io.Discard)
	is.NoErr(p.handle("position startpos moves e2e4 e7e5 g1f3"))
	is.True(!p.board.WhiteToMove())
	is.Equal(p.board.FullMoveNumber(), 2)
	is.Equal(p.board.LastMove().String(), "g1f3")

	is.NoErr(p.handle("position fen 6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1"))
	is.Equal(p.board.FEN(), "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1")

	is.NoErr(p.handle("position fen 6k1/5ppp/8/8/8/8/8/R5K1 w - - moves a1a2 g8h8"))
	is.Equal(p.board.FullMoveNumber(), 2)

	var before = p.board
	is.True(errors.Is(p.handle("position startpos moves e2e5"), board.ErrIllegalMove))
	is.Equal(p.board, before)
	is.True(p.handle("position fen not-a-fen") != nil)
	is.True(errors.Is(p.handle("position"), errBadArguments))
	is.True(errors.Is(p.handle("position somewhere"), errBadArguments))
}

func TestGoDepth(t *testing.T) {
	is := is.New(t)
	var out = &bytes.Buffer{}
	var p = newTestProtocol(out)
	is.NoErr(p.handle("position fen 6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1"))
	is.NoErr(p.handle("go depth 2"))
	is.Equal(p.task.Request().MoveVariety, 1)
	waitSearch(t, p)

	var result = lines(out)
	is.Equal(len(result), 3)
	is.True(strings.HasPrefix(result[0], "info depth 1 score mate 1"))
	is.True(strings.HasPrefix(result[1], "info depth 2 score mate 1"))
	is.True(strings.HasSuffix(result[1], "pv a1a8"))
	is.Equal(result[2], "bestmove a1a8")
	is.True(p.task == nil)
}

func TestGoInfiniteWaitsForStop(t *testing.T) {
	is := is.New(t)
	var out = &bytes.Buffer{}
	var p = newTestProtocol(out)
	// a dead draw, so the search runs out of depth quickly
	is.NoErr(p.handle("position fen k7/8/8/8/8/8/8/K7 w - - 0 1"))
	is.NoErr(p.handle("go infinite"))
	waitSearch(t, p)
	is.True(!strings.Contains(out.String(), "bestmove"))

	is.NoErr(p.handle("stop"))
	var result = lines(out)
	is.True(strings.HasPrefix(result[len(result)-1], "bestmove a1"))
	is.NoErr(p.handle("stop")) // nothing left to stop
	is.Equal(strings.Count(out.String(), "bestmove"), 1)
}

func TestStopKeepsLastResult(t *testing.T) {
	is := is.New(t)
	var out = &bytes.Buffer{}
	var p = newTestProtocol(out)
	is.NoErr(p.handle("go infinite"))
	var deadline = time.Now().Add(10 * time.Second)
	for p.task.Latest().Depth < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	is.True(errors.Is(p.handle("setoption name Hash value 8"), errSearchRunning))
	is.NoErr(p.handle("stop"))
	waitSearch(t, p)

	var result = lines(out)
	var last = strings.Fields(result[len(result)-1])
	is.Equal(last[0], "bestmove")
	var move, err = p.board.ParseMove(last[1])
	is.NoErr(err)
	is.True(move != board.MoveEmpty)
}

func TestSetOptionAfterSearchExited(t *testing.T) {
	is := is.New(t)
	var out = &bytes.Buffer{}
	var p = newTestProtocol(out)
	is.NoErr(p.handle("position fen 6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1"))
	is.NoErr(p.handle("go depth 1"))
	<-p.task.Done()
	is.NoErr(p.handle("setoption name Hash value 8"))
	is.True(p.task == nil)
	is.Equal(p.engine.Options.Hash, 8)
	var result = lines(out)
	is.Equal(result[len(result)-1], "bestmove a1a8")

	is.NoErr(p.handle("go depth 1"))
	<-p.task.Done()
	is.NoErr(p.handle("ucinewgame"))
	is.True(p.task == nil)
	is.Equal(strings.Count(out.String(), "bestmove"), 2)
}

func TestGoSupersedes(t *testing.T) {
	is := is.New(t)
	var out = &bytes.Buffer{}
	var p = newTestProtocol(out)
	is.NoErr(p.handle("go infinite"))
	var first = p.task
	is.NoErr(p.handle("go depth 1"))
	select {
	case <-first.Done():
	default:
		t.Fatal("superseded search still running")
	}
	is.True(p.task != first)
	waitSearch(t, p)
	is.Equal(strings.Count(out.String(), "bestmove"), 1)
	for _, line := range lines(out) {
		if strings.HasPrefix(line, "info") {
			is.True(strings.HasPrefix(line, "info depth 1 "))
		}
	}
}

func TestGoClockVariety(t *testing.T) {
	is := is.New(t)
	var p = newTestProtocol(io.Discard)
	is.NoErr(p.handle("go wtime 3000 btime 1000 winc 100 binc 0"))
	var request = p.task.Request()
	is.Equal(request.TimeBudget, 3*time.Second)
	is.Equal(request.TimeIncrement, 100*time.Millisecond)
	is.Equal(request.MoveVariety, 8)
	is.True(request.EvalGuess == 0)
	waitSearch(t, p)

	is.NoErr(p.handle("setoption name MoveVariety value 3"))
	is.NoErr(p.handle("position startpos moves e2e4"))
	is.NoErr(p.handle("go movetime 50"))
	is.Equal(p.task.Request().MoveVariety, 3)
	waitSearch(t, p)

	is.NoErr(p.handle("position fen 6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 30"))
	is.NoErr(p.handle("go btime 100 wtime 0"))
	is.Equal(p.task.Request().MoveVariety, 1)
	is.Equal(p.task.Request().TimeBudget, time.Millisecond)
	waitSearch(t, p)
}

func TestParseLimits(t *testing.T) {
	is := is.New(t)
	var limits, err = parseLimits(strings.Fields("wtime 100 btime 200 winc 1 binc 2 movestogo 30"))
	is.NoErr(err)
	is.Equal(limits, limitsType{WhiteTime: 100, BlackTime: 200, WhiteIncrement: 1,
		BlackIncrement: 2, MovesToGo: 30})

	limits, err = parseLimits([]string{"infinite"})
	is.NoErr(err)
	is.True(limits.Infinite)

	_, err = parseLimits([]string{"depth"})
	is.True(errors.Is(err, errBadArguments))
	_, err = parseLimits([]string{"movetime", "-5"})
	is.True(errors.Is(err, errBadArguments))
	_, err = parseLimits([]string{"depth", "0"})
	is.True(errors.Is(err, errBadArguments))
	_, err = parseLimits([]string{"movetime", "0"})
	is.True(errors.Is(err, errBadArguments))
	limits, err = parseLimits(strings.Fields("wtime 0 btime 100"))
	is.NoErr(err)
	is.Equal(limits.BlackTime, 100)
}

func TestGoZeroLimitRejected(t *testing.T) {
	is := is.New(t)
	var out = &bytes.Buffer{}
	var p = newTestProtocol(out)
	for _, cmd := range []string{"go depth 0", "go movetime 0"} {
		var err = p.handle(cmd)
		is.True(errors.Is(err, errBadArguments))
		is.True(p.task == nil)
		is.True(p.tasks.Current() == nil)
	}
	is.Equal(out.Len(), 0)
}

func TestEvalAndPrint(t *testing.T) {
	is := is.New(t)
	var out = &bytes.Buffer{}
	var p = newTestProtocol(out)
	is.NoErr(p.handle("eval"))
	is.Equal(out.String(), "board: 0\n")

	out.Reset()
	is.NoErr(p.handle("print"))
	is.True(strings.Contains(out.String(), board.InitialPositionFen))
}

var statsLine = regexp.MustCompile(`^SHALLOW_HITS: \d+, HITS: \d+, REQ: \d+, LEN: (\d+), ADD: \d+, ADD_BETTER: \d+$`)

func ttLen(t *testing.T, p *Protocol, out *bytes.Buffer) int {
	t.Helper()
	out.Reset()
	if err := p.handle("tt stats"); err != nil {
		t.Fatal(err)
	}
	var m = statsLine.FindStringSubmatch(strings.TrimSpace(out.String()))
	if m == nil {
		t.Fatalf("bad stats line %q", out.String())
	}
	var n, _ = strconv.Atoi(m[1])
	return n
}

func TestTTCommands(t *testing.T) {
	is := is.New(t)
	var out = &bytes.Buffer{}
	var p = newTestProtocol(out)
	is.Equal(ttLen(t, p, out), 0)

	is.NoErr(p.handle("go depth 2"))
	waitSearch(t, p)
	var n = ttLen(t, p, out)
	is.True(n > 0)

	out.Reset()
	is.NoErr(p.handle("tt export"))
	is.Equal(len(lines(out)), n)

	var path = filepath.Join(t.TempDir(), "herald.tt")
	is.NoErr(p.handle("tt save " + path))
	is.NoErr(p.handle("ucinewgame"))
	is.Equal(ttLen(t, p, out), 0)
	is.NoErr(p.handle("tt load " + path))
	is.Equal(ttLen(t, p, out), n)

	is.True(errors.Is(p.handle("tt"), errBadArguments))
	is.True(errors.Is(p.handle("tt save"), errBadArguments))
	is.True(errors.Is(p.handle("tt flush"), errBadArguments))
	is.True(p.handle("tt load "+filepath.Join(t.TempDir(), "missing")) != nil)
}

func TestRunSession(t *testing.T) {
	is := is.New(t)
	var inR, inW = io.Pipe()
	var outR, outW = io.Pipe()
	var p = newTestProtocol(outW)

	var finished = make(chan struct{})
	go func() {
		defer close(finished)
		p.Run(inR)
		outW.Close()
	}()
	go func() {
		io.WriteString(inW, "uci\nisready\nposition fen 6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1\ngo depth 3\n")
	}()

	var scanner = bufio.NewScanner(outR)
	var got []string
	for scanner.Scan() {
		var line = scanner.Text()
		got = append(got, line)
		if strings.HasPrefix(line, "bestmove") {
			break
		}
	}
	is.Equal(got[len(got)-1], "bestmove a1a8")
	is.Equal(lo.Count(got, "readyok"), 1)

	go func() {
		io.WriteString(inW, "quit\n")
		inW.Close()
	}()
	go io.Copy(io.Discard, outR)
	select {
	case <-finished:
	case <-time.After(10 * time.Second):
		t.Fatal("session did not end")
	}
}
