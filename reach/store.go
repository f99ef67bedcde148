package reach

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/exp/slices"

	"electricchair/game"
)

// Meta describes one completed turn partition on disk.
type Meta struct {
	Turn       int `json:"turn"`
	TotalCount int `json:"totalCount"`
	ChunkSize  int `json:"chunkSize"`
	Chunks     int `json:"chunks"`
}

type chunkFile struct {
	Count  int      `json:"count"`
	States []string `json:"states"`
}

// Store persists per-turn reachable state sets as fixed-size chunks under
// baseDir/turn-<t>/. States inside a chunk are sorted by encoding value and
// serialized as lowercase hex.
type Store struct {
	baseDir   string
	chunkSize int
}

func NewStore(baseDir string, chunkSize int) *Store {
	if chunkSize <= 0 {
		panic("reach store chunk size must be positive")
	}
	return &Store{baseDir: baseDir, chunkSize: chunkSize}
}

func (s *Store) turnDir(turn int) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("turn-%d", turn))
}

func (s *Store) chunkPath(turn, k int) string {
	return filepath.Join(s.turnDir(turn), fmt.Sprintf("chunk-%d.json", k))
}

func (s *Store) metaPath(turn int) string {
	return filepath.Join(s.turnDir(turn), "meta.json")
}

// Meta reads the turn's metadata. A missing meta file is not an error; the
// second return reports presence.
func (s *Store) Meta(turn int) (Meta, bool, error) {
	data, err := os.ReadFile(s.metaPath(turn))
	if os.IsNotExist(err) {
		return Meta{}, false, nil
	}
	if err != nil {
		return Meta{}, false, fmt.Errorf("failed to read meta for turn %d: %w", turn, err)
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return Meta{}, false, fmt.Errorf("failed to unmarshal meta for turn %d: %w", turn, err)
	}
	return m, true, nil
}

// Complete reports whether the turn was fully enumerated and committed. A
// crash mid-turn never writes the meta file, so its presence with a positive
// count is the commit marker.
func (s *Store) Complete(turn int) bool {
	m, ok, err := s.Meta(turn)
	return err == nil && ok && m.TotalCount > 0
}

// WriteTurn commits the turn's full state set: sorted, split into chunks,
// meta written last.
func (s *Store) WriteTurn(turn int, hashes []game.StateHash) error {
	slices.Sort(hashes)

	dir := s.turnDir(turn)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create turn directory: %w", err)
	}

	chunks := 0
	for start := 0; start < len(hashes); start += s.chunkSize {
		end := min(start+s.chunkSize, len(hashes))
		states := make([]string, 0, end-start)
		for _, h := range hashes[start:end] {
			states = append(states, h.Hex())
		}
		data, err := json.Marshal(chunkFile{Count: len(states), States: states})
		if err != nil {
			return fmt.Errorf("failed to marshal chunk %d of turn %d: %w", chunks, turn, err)
		}
		if err := os.WriteFile(s.chunkPath(turn, chunks), data, 0644); err != nil {
			return fmt.Errorf("failed to write chunk %d of turn %d: %w", chunks, turn, err)
		}
		chunks++
	}

	meta := Meta{Turn: turn, TotalCount: len(hashes), ChunkSize: s.chunkSize, Chunks: chunks}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal meta for turn %d: %w", turn, err)
	}
	if err := os.WriteFile(s.metaPath(turn), data, 0644); err != nil {
		return fmt.Errorf("failed to write meta for turn %d: %w", turn, err)
	}
	return nil
}

// LoadTurn reads the turn's full state set back, in ascending order.
func (s *Store) LoadTurn(turn int) ([]game.StateHash, error) {
	m, ok, err := s.Meta(turn)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("turn %d has no committed state set", turn)
	}

	hashes := make([]game.StateHash, 0, m.TotalCount)
	for k := 0; k < m.Chunks; k++ {
		data, err := os.ReadFile(s.chunkPath(turn, k))
		if err != nil {
			return nil, fmt.Errorf("failed to read chunk %d of turn %d: %w", k, turn, err)
		}
		var chunk chunkFile
		if err := json.Unmarshal(data, &chunk); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chunk %d of turn %d: %w", k, turn, err)
		}
		for _, hex := range chunk.States {
			h, err := game.ParseHex(hex)
			if err != nil {
				return nil, fmt.Errorf("chunk %d of turn %d: %w", k, turn, err)
			}
			hashes = append(hashes, h)
		}
	}
	if len(hashes) != m.TotalCount {
		return nil, fmt.Errorf("turn %d: loaded %d states, meta says %d", turn, len(hashes), m.TotalCount)
	}
	return hashes, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
