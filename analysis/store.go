package analysis

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/exp/slices"

	"electricchair/game"
	"electricchair/solver"
)

const indexVersion = 1

// index is the per-turn directory of stored strategies. New states are
// appended to chunk floor(totalStates/chunkSize) at write time.
type index struct {
	Version     int            `json:"version"`
	ChunkSize   int            `json:"chunkSize"`
	TotalChunks int            `json:"totalChunks"`
	TotalStates int            `json:"totalStates"`
	HashToChunk map[string]int `json:"hashToChunk"`
}

type storedStrategy struct {
	P1Probs      []float64 `json:"p1Probs"`
	P2Probs      []float64 `json:"p2Probs"`
	Value        float64   `json:"value"`
	IsCalculated bool      `json:"isCalculated"`
}

type chunkFile struct {
	ChunkNumber int                       `json:"chunkNumber"`
	Count       int                       `json:"count"`
	Strategies  map[string]storedStrategy `json:"strategies"`
}

// turnStore holds one turn's index plus a bounded set of resident chunks.
type turnStore struct {
	dir    string
	index  index
	chunks map[int]*chunkFile
	dirty  map[int]bool
	used   []int // LRU order, most recently used last
}

// Store is the chunked, index-addressable strategy store. It is written by
// the driver only, from a single goroutine; concurrent readers must
// coordinate externally.
type Store struct {
	baseDir   string
	chunkSize int
	maxCached int
	turns     map[int]*turnStore
}

func NewStore(baseDir string, chunkSize, maxCached int) *Store {
	if chunkSize <= 0 || maxCached <= 0 {
		panic("strategy store chunk size and cache bound must be positive")
	}
	return &Store{
		baseDir:   baseDir,
		chunkSize: chunkSize,
		maxCached: maxCached,
		turns:     make(map[int]*turnStore),
	}
}

func (s *Store) turnDir(turn int) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("turn-%d", turn))
}

func chunkPath(dir string, chunk int) string {
	return filepath.Join(dir, "chunks", fmt.Sprintf("chunk-%04d.json", chunk))
}

// open loads (or initializes) the turn's index.
func (s *Store) open(turn int) (*turnStore, error) {
	if ts, ok := s.turns[turn]; ok {
		return ts, nil
	}

	ts := &turnStore{
		dir: s.turnDir(turn),
		index: index{
			Version:     indexVersion,
			ChunkSize:   s.chunkSize,
			HashToChunk: make(map[string]int),
		},
		chunks: make(map[int]*chunkFile),
		dirty:  make(map[int]bool),
	}

	data, err := os.ReadFile(filepath.Join(ts.dir, "index.json"))
	if err == nil {
		if err := json.Unmarshal(data, &ts.index); err != nil {
			return nil, fmt.Errorf("failed to unmarshal index for turn %d: %w", turn, err)
		}
		if ts.index.HashToChunk == nil {
			ts.index.HashToChunk = make(map[string]int)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read index for turn %d: %w", turn, err)
	}

	s.turns[turn] = ts
	return ts, nil
}

// loadChunk brings one chunk into the cache, evicting the least recently
// used clean chunk when the bound is hit. Dirty chunks are never evicted.
func (s *Store) loadChunk(ts *turnStore, num int) (*chunkFile, error) {
	if c, ok := ts.chunks[num]; ok {
		s.touch(ts, num)
		return c, nil
	}

	c := &chunkFile{ChunkNumber: num, Strategies: make(map[string]storedStrategy)}
	data, err := os.ReadFile(chunkPath(ts.dir, num))
	if err == nil {
		if err := json.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chunk %d: %w", num, err)
		}
		if c.Strategies == nil {
			c.Strategies = make(map[string]storedStrategy)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read chunk %d: %w", num, err)
	}

	s.evictIfNeeded(ts)
	ts.chunks[num] = c
	ts.used = append(ts.used, num)
	return c, nil
}

func (s *Store) touch(ts *turnStore, num int) {
	for i, u := range ts.used {
		if u == num {
			ts.used = append(append(ts.used[:i:i], ts.used[i+1:]...), num)
			return
		}
	}
	ts.used = append(ts.used, num)
}

func (s *Store) evictIfNeeded(ts *turnStore) {
	if len(ts.chunks) < s.maxCached {
		return
	}
	for i, num := range ts.used {
		if ts.dirty[num] {
			continue
		}
		delete(ts.chunks, num)
		ts.used = append(ts.used[:i:i], ts.used[i+1:]...)
		return
	}
	// Everything resident is dirty; let the cache run over until Flush.
}

// Contains reports whether the state already has a stored strategy.
func (s *Store) Contains(h game.StateHash) (bool, error) {
	ts, err := s.open(h.Turn())
	if err != nil {
		return false, err
	}
	_, ok := ts.index.HashToChunk[h.Hex()]
	return ok, nil
}

// Count returns how many strategies the turn holds.
func (s *Store) Count(turn int) (int, error) {
	ts, err := s.open(turn)
	if err != nil {
		return 0, err
	}
	return ts.index.TotalStates, nil
}

// Put stores a strategy for a new state. Re-putting an existing state
// overwrites in place without growing the turn.
func (s *Store) Put(h game.StateHash, strategy solver.Strategy) error {
	ts, err := s.open(h.Turn())
	if err != nil {
		return err
	}

	hex := h.Hex()
	num, exists := ts.index.HashToChunk[hex]
	if !exists {
		num = ts.index.TotalStates / ts.index.ChunkSize
		ts.index.HashToChunk[hex] = num
		ts.index.TotalStates++
		if num >= ts.index.TotalChunks {
			ts.index.TotalChunks = num + 1
		}
	}

	c, err := s.loadChunk(ts, num)
	if err != nil {
		return err
	}
	c.Strategies[hex] = storedStrategy{
		P1Probs:      strategy.P1Probs,
		P2Probs:      strategy.P2Probs,
		Value:        strategy.Value,
		IsCalculated: true,
	}
	c.Count = len(c.Strategies)
	ts.dirty[num] = true
	return nil
}

// Get returns the stored strategy for a state, or nil when it has none.
func (s *Store) Get(h game.StateHash) (*solver.Strategy, error) {
	ts, err := s.open(h.Turn())
	if err != nil {
		return nil, err
	}
	hex := h.Hex()
	num, ok := ts.index.HashToChunk[hex]
	if !ok {
		return nil, nil
	}
	c, err := s.loadChunk(ts, num)
	if err != nil {
		return nil, err
	}
	stored, ok := c.Strategies[hex]
	if !ok {
		return nil, fmt.Errorf("index points state %s at chunk %d but the chunk lacks it", hex, num)
	}
	return &solver.Strategy{P1Probs: stored.P1Probs, P2Probs: stored.P2Probs, Value: stored.Value}, nil
}

// Flush writes the turn's dirty chunks and its index to disk. The index
// goes last so a crash never advertises strategies that were not written.
func (s *Store) Flush(turn int) error {
	ts, ok := s.turns[turn]
	if !ok {
		return nil
	}
	if len(ts.dirty) == 0 {
		return nil
	}

	if err := os.MkdirAll(filepath.Join(ts.dir, "chunks"), 0755); err != nil {
		return fmt.Errorf("failed to create chunk directory: %w", err)
	}

	nums := make([]int, 0, len(ts.dirty))
	for num := range ts.dirty {
		nums = append(nums, num)
	}
	slices.Sort(nums)

	for _, num := range nums {
		c := ts.chunks[num]
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal chunk %d of turn %d: %w", num, turn, err)
		}
		if err := writeFileAtomic(chunkPath(ts.dir, num), data); err != nil {
			return fmt.Errorf("failed to write chunk %d of turn %d: %w", num, turn, err)
		}
		delete(ts.dirty, num)
	}

	data, err := json.Marshal(ts.index)
	if err != nil {
		return fmt.Errorf("failed to marshal index for turn %d: %w", turn, err)
	}
	if err := writeFileAtomic(filepath.Join(ts.dir, "index.json"), data); err != nil {
		return fmt.Errorf("failed to write index for turn %d: %w", turn, err)
	}
	return nil
}

// LoadTurnValues bulk-loads every stored value of a turn, bypassing the
// chunk cache. The driver uses it as the successor oracle for the turn
// below.
func (s *Store) LoadTurnValues(turn int) (map[game.StateHash]float64, error) {
	ts, err := s.open(turn)
	if err != nil {
		return nil, err
	}

	values := make(map[game.StateHash]float64, ts.index.TotalStates)
	for num := 0; num < ts.index.TotalChunks; num++ {
		data, err := os.ReadFile(chunkPath(ts.dir, num))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read chunk %d of turn %d: %w", num, turn, err)
		}
		var c chunkFile
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chunk %d of turn %d: %w", num, turn, err)
		}
		for hex, stored := range c.Strategies {
			h, err := game.ParseHex(hex)
			if err != nil {
				return nil, fmt.Errorf("chunk %d of turn %d: %w", num, turn, err)
			}
			values[h] = stored.Value
		}
	}
	return values, nil
}

// Release drops a turn's resident chunks. Dirty chunks must be flushed
// first; releasing them is a programmer error.
func (s *Store) Release(turn int) {
	ts, ok := s.turns[turn]
	if !ok {
		return
	}
	if len(ts.dirty) > 0 {
		panic(fmt.Sprintf("releasing turn %d with %d dirty chunks", turn, len(ts.dirty)))
	}
	delete(s.turns, turn)
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
