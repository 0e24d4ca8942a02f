package engine

import (
	"bufio"
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
	"github.com/samber/lo"

	"github.com/heraldchess/herald/pkg/board"
)

type Bound uint8

const (
	BoundLower Bound = 1 << iota
	BoundUpper
)

const BoundExact = BoundLower | BoundUpper

func (b Bound) String() string {
	switch b {
	case BoundExact:
		return "EXACT"
	case BoundLower:
		return "LOWER"
	case BoundUpper:
		return "UPPER"
	}
	return "NONE"
}

func parseBound(s string) (Bound, error) {
	switch s {
	case "EXACT":
		return BoundExact, nil
	case "LOWER":
		return BoundLower, nil
	case "UPPER":
		return BoundUpper, nil
	}
	return 0, fmt.Errorf("unknown bound %q", s)
}

type TTEntry struct {
	Key   uint64
	Depth int
	Score int
	Bound Bound
	Move  board.Move
}

// TTStats are counters over the lifetime of one table.
type TTStats struct {
	Requests    uint64
	Hits        uint64
	ShallowHits uint64
	Len         uint64
	Added       uint64
	AddedBetter uint64
}

func (s TTStats) String() string {
	return fmt.Sprintf("requests %v hits %v shallow %v entries %v added %v improved %v",
		humanize.Comma(int64(s.Requests)), humanize.Comma(int64(s.Hits)),
		humanize.Comma(int64(s.ShallowHits)), humanize.Comma(int64(s.Len)),
		humanize.Comma(int64(s.Added)), humanize.Comma(int64(s.AddedBetter)))
}

const (
	ttStripes = 64
	// approximate cost of one map entry, used to turn megabytes into a capacity
	ttEntryBytes = 64
)

type ttStripe struct {
	mu      sync.RWMutex
	entries map[uint64]TTEntry
}

// TransTable maps position keys to search results. It is safe for concurrent
// use: every key lives in one stripe, and a store is a read-modify-write under
// that stripe's write lock, so a reader never sees a half written entry.
// Readers of other stripes are not blocked.
type TransTable struct {
	megabytes   int
	capacity    int
	stripes     [ttStripes]ttStripe
	requests    atomic.Uint64
	hits        atomic.Uint64
	shallowHits atomic.Uint64
	length      atomic.Uint64
	added       atomic.Uint64
	addedBetter atomic.Uint64
}

// NewTransTable creates a table bounded to about megabytes of memory.
// Zero means unbounded.
func NewTransTable(megabytes int) *TransTable {
	var tt = &TransTable{
		megabytes: megabytes,
	}
	if megabytes > 0 {
		tt.capacity = max(1, megabytes*1024*1024/ttEntryBytes/ttStripes)
	}
	for i := range tt.stripes {
		tt.stripes[i].entries = make(map[uint64]TTEntry)
	}
	return tt
}

func (tt *TransTable) Size() int {
	return tt.megabytes
}

func (tt *TransTable) stripe(key uint64) *ttStripe {
	return &tt.stripes[key&(ttStripes-1)]
}

// Probe looks up key. Whether a found entry is deep enough is decided by the
// caller, which reports it back through CountHit.
func (tt *TransTable) Probe(key uint64) (TTEntry, bool) {
	tt.requests.Add(1)
	var s = tt.stripe(key)
	s.mu.RLock()
	var entry, ok = s.entries[key]
	s.mu.RUnlock()
	return entry, ok
}

func (tt *TransTable) CountHit(usable bool) {
	if usable {
		tt.hits.Add(1)
	} else {
		tt.shallowHits.Add(1)
	}
}

// Store inserts or replaces the entry for key. An existing entry is replaced
// only by one searched at least as deep. It reports whether the table changed.
func (tt *TransTable) Store(key uint64, depth, score int, bound Bound, move board.Move) bool {
	var s = tt.stripe(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	var old, found = s.entries[key]
	if found {
		if depth < old.Depth {
			return false
		}
		tt.addedBetter.Add(1)
	} else {
		if tt.capacity != 0 && len(s.entries) >= tt.capacity {
			return false
		}
		tt.added.Add(1)
		tt.length.Add(1)
	}
	s.entries[key] = TTEntry{
		Key:   key,
		Depth: depth,
		Score: score,
		Bound: bound,
		Move:  move,
	}
	return true
}

func (tt *TransTable) Stats() TTStats {
	return TTStats{
		Requests:    tt.requests.Load(),
		Hits:        tt.hits.Load(),
		ShallowHits: tt.shallowHits.Load(),
		Len:         tt.length.Load(),
		Added:       tt.added.Load(),
		AddedBetter: tt.addedBetter.Load(),
	}
}

// Export writes one line per entry:
//
//	key depth score bound move packed-move
//
// Stripes are locked one at a time, so under concurrent stores the dump
// mixes entries from different moments.
func (tt *TransTable) Export(w io.Writer) error {
	var bw = bufio.NewWriter(w)
	for i := range tt.stripes {
		var s = &tt.stripes[i]
		s.mu.RLock()
		var entries = lo.Values(s.entries)
		s.mu.RUnlock()
		slices.SortFunc(entries, func(a, b TTEntry) int {
			return cmp.Compare(a.Key, b.Key)
		})
		for _, e := range entries {
			var _, err = fmt.Fprintf(bw, "%016x %d %d %v %v %d\n",
				e.Key, e.Depth, e.Score, e.Bound, e.Move, uint32(e.Move))
			if err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

func (tt *TransTable) ExportString() string {
	var sb strings.Builder
	tt.Export(&sb)
	return strings.TrimSuffix(sb.String(), "\n")
}

var errBadExportLine = errors.New("bad transposition table line")

// ParseExport reads entries written by Export.
func ParseExport(r io.Reader) ([]TTEntry, error) {
	var result []TTEntry
	var scanner = bufio.NewScanner(r)
	var lineNumber = 0
	for scanner.Scan() {
		lineNumber++
		var line = strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry, err = parseExportLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNumber, err)
		}
		result = append(result, entry)
	}
	return result, scanner.Err()
}

func parseExportLine(line string) (TTEntry, error) {
	var fields = strings.Fields(line)
	if len(fields) != 6 {
		return TTEntry{}, fmt.Errorf("%w: %q", errBadExportLine, line)
	}
	var key, err = strconv.ParseUint(fields[0], 16, 64)
	if err != nil {
		return TTEntry{}, fmt.Errorf("%w: key: %v", errBadExportLine, err)
	}
	depth, err := strconv.Atoi(fields[1])
	if err != nil {
		return TTEntry{}, fmt.Errorf("%w: depth: %v", errBadExportLine, err)
	}
	score, err := strconv.Atoi(fields[2])
	if err != nil {
		return TTEntry{}, fmt.Errorf("%w: score: %v", errBadExportLine, err)
	}
	bound, err := parseBound(fields[3])
	if err != nil {
		return TTEntry{}, fmt.Errorf("%w: %v", errBadExportLine, err)
	}
	move, err := strconv.ParseUint(fields[5], 10, 32)
	if err != nil {
		return TTEntry{}, fmt.Errorf("%w: move: %v", errBadExportLine, err)
	}
	return TTEntry{
		Key:   key,
		Depth: depth,
		Score: score,
		Bound: bound,
		Move:  board.Move(move),
	}, nil
}

// Import stores entries through Store, so deeper entries already present win.
func (tt *TransTable) Import(entries []TTEntry) int {
	var stored = 0
	for _, e := range entries {
		if tt.Store(e.Key, e.Depth, e.Score, e.Bound, e.Move) {
			stored++
		}
	}
	return stored
}

// SaveFile writes a zstd compressed export to path.
func (tt *TransTable) SaveFile(path string) error {
	var f, err = os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	if err = tt.Export(enc); err != nil {
		enc.Close()
		return err
	}
	if err = enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

// LoadFile imports a file written by SaveFile and returns the number of stored entries.
func (tt *TransTable) LoadFile(path string) (int, error) {
	var f, err = os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return 0, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()
	entries, err := ParseExport(dec)
	if err != nil {
		return 0, fmt.Errorf("load %v: %w", path, err)
	}
	return tt.Import(entries), nil
}
