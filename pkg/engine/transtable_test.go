package engine

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/matryer/is"

	"github.com/heraldchess/herald/pkg/board"
)

func testMove(t *testing.T, fen, uci string) board.Move {
	t.Helper()
	var b, err = board.NewBoard(fen)
	if err != nil {
		t.Fatal(err)
	}
	m, err := b.ParseMove(uci)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestTransTableMonotonicDepth(t *testing.T) {
	is := is.New(t)
	var tt = NewTransTable(1)
	var move = testMove(t, board.InitialPositionFen, "e2e4")

	is.True(tt.Store(42, 5, 10, BoundExact, move))
	is.True(!tt.Store(42, 3, 99, BoundLower, board.MoveEmpty)) // shallower is discarded
	var entry, ok = tt.Probe(42)
	is.True(ok)
	is.Equal(entry.Depth, 5)
	is.Equal(entry.Score, 10)
	is.Equal(entry.Move, move)

	is.True(tt.Store(42, 5, -7, BoundUpper, move)) // equal depth replaces
	entry, _ = tt.Probe(42)
	is.Equal(entry.Score, -7)
	is.Equal(entry.Bound, BoundUpper)

	var stats = tt.Stats()
	is.Equal(stats.Len, uint64(1))
	is.Equal(stats.Added, uint64(1))
	is.Equal(stats.AddedBetter, uint64(1))
	is.Equal(stats.Requests, uint64(2))
}

func TestTransTableHitCounters(t *testing.T) {
	is := is.New(t)
	var tt = NewTransTable(0)
	_, ok := tt.Probe(1)
	is.True(!ok)
	tt.CountHit(true)
	tt.CountHit(false)
	tt.CountHit(false)
	var stats = tt.Stats()
	is.Equal(stats.Requests, uint64(1))
	is.Equal(stats.Hits, uint64(1))
	is.Equal(stats.ShallowHits, uint64(2))
	is.True(strings.Contains(stats.String(), "shallow 2"))
}

func TestTransTableCapacity(t *testing.T) {
	is := is.New(t)
	var tt = NewTransTable(1)
	// every key in stripe 0
	var stored = 0
	for i := 0; i < tt.capacity+10; i++ {
		if tt.Store(uint64(i)*ttStripes, 1, 0, BoundExact, board.MoveEmpty) {
			stored++
		}
	}
	is.Equal(stored, tt.capacity)
	// existing keys can still improve
	is.True(tt.Store(0, 2, 0, BoundExact, board.MoveEmpty))
	is.Equal(tt.Stats().Len, uint64(tt.capacity))
}

func TestTransTableExport(t *testing.T) {
	is := is.New(t)
	var tt = NewTransTable(0)
	var move = testMove(t, board.InitialPositionFen, "g1f3")
	tt.Store(0xabcdef, 3, 25, BoundLower, move)
	tt.Store(0x1, 1, valueToTT(winIn(3), 1), BoundExact, board.MoveEmpty)
	tt.Store(0x2, 7, -40, BoundUpper, move)

	var dump = tt.ExportString()
	var lines = strings.Split(dump, "\n")
	is.Equal(len(lines), int(tt.Stats().Len))
	is.True(strings.Contains(dump, "0000000000abcdef 3 25 LOWER g1f3"))

	entries, err := ParseExport(strings.NewReader(dump))
	is.NoErr(err)
	is.Equal(len(entries), 3)

	var other = NewTransTable(0)
	is.Equal(other.Import(entries), 3)
	is.Equal(other.ExportString(), dump)
}

func TestParseExportErrors(t *testing.T) {
	is := is.New(t)
	_, err := ParseExport(strings.NewReader("00ff 1 2 EXACT"))
	is.True(err != nil)
	_, err = ParseExport(strings.NewReader("00ff 1 2 SOMETIMES e2e4 0"))
	is.True(err != nil)
	entries, err := ParseExport(strings.NewReader("\n\n"))
	is.NoErr(err)
	is.Equal(len(entries), 0)
}

func TestTransTableSaveLoad(t *testing.T) {
	is := is.New(t)
	var tt = NewTransTable(0)
	for i := 0; i < 1000; i++ {
		tt.Store(uint64(i)*7919, i%20, i-500, BoundExact, board.MoveEmpty)
	}
	var path = filepath.Join(t.TempDir(), "tt.zst")
	is.NoErr(tt.SaveFile(path))

	var loaded = NewTransTable(0)
	n, err := loaded.LoadFile(path)
	is.NoErr(err)
	is.Equal(n, 1000)
	is.Equal(loaded.ExportString(), tt.ExportString())

	_, err = loaded.LoadFile(filepath.Join(t.TempDir(), "missing.zst"))
	is.True(err != nil)
}

func TestTransTableConcurrentStores(t *testing.T) {
	is := is.New(t)
	var tt = NewTransTable(0)
	const writers = 8
	const keys = 500
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for k := 0; k < keys; k++ {
				tt.Store(uint64(k), w, w*100, BoundExact, board.MoveEmpty)
				tt.Probe(uint64(k))
			}
		}(w)
	}
	wg.Wait()

	is.Equal(tt.Stats().Len, uint64(keys))
	for k := 0; k < keys; k++ {
		var entry, ok = tt.Probe(uint64(k))
		is.True(ok)
		// the deepest store wins and its fields are never mixed with another store
		is.Equal(entry.Depth, writers-1)
		is.Equal(entry.Score, entry.Depth*100)
	}
}
