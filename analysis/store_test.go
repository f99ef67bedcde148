package analysis

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"electricchair/game"
	"electricchair/solver"
)

func testStrategy(value float64) solver.Strategy {
	p1 := make([]float64, 12)
	p2 := make([]float64, 12)
	p1[0], p2[1] = 1, 1
	return solver.Strategy{P1Probs: p1, P2Probs: p2, Value: value}
}

func TestStorePutGetFlushReload(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, 2, 4)

	// Hashes with turn 5 in the top bits.
	h1 := game.StateHash(0x50ff0000)
	h2 := game.StateHash(0x50ff0010)
	h3 := game.StateHash(0x50ff0020)

	require.NoError(t, store.Put(h1, testStrategy(0.25)))
	require.NoError(t, store.Put(h2, testStrategy(-0.5)))
	require.NoError(t, store.Put(h3, testStrategy(1)))
	require.NoError(t, store.Flush(5))

	count, err := store.Count(5)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	// A fresh store must see everything from disk.
	reopened := NewStore(dir, 2, 4)
	for _, tc := range []struct {
		h     game.StateHash
		value float64
	}{{h1, 0.25}, {h2, -0.5}, {h3, 1}} {
		s, err := reopened.Get(tc.h)
		require.NoError(t, err)
		require.NotNil(t, s, "state %s missing after reload", tc.h.Hex())
		require.Equal(t, tc.value, s.Value)
		require.Len(t, s.P1Probs, 12)
	}

	ok, err := reopened.Contains(h2)
	require.NoError(t, err)
	require.True(t, ok)

	missing, err := reopened.Get(game.StateHash(0x50ff0030))
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestStoreChunkAssignmentAndLayout(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, 2, 4)

	hashes := []game.StateHash{0x30ff0000, 0x30ff0010, 0x30ff0020, 0x30ff0030, 0x30ff0040}
	for _, h := range hashes {
		require.NoError(t, store.Put(h, testStrategy(0)))
	}
	require.NoError(t, store.Flush(3))

	data, err := os.ReadFile(filepath.Join(dir, "turn-3", "index.json"))
	require.NoError(t, err)

	var idx struct {
		Version     int            `json:"version"`
		ChunkSize   int            `json:"chunkSize"`
		TotalChunks int            `json:"totalChunks"`
		TotalStates int            `json:"totalStates"`
		HashToChunk map[string]int `json:"hashToChunk"`
	}
	require.NoError(t, json.Unmarshal(data, &idx))
	require.Equal(t, 5, idx.TotalStates)
	require.Equal(t, 3, idx.TotalChunks)
	require.Equal(t, 2, idx.ChunkSize)

	// Insertion order fills chunks front to back.
	require.Equal(t, 0, idx.HashToChunk[hashes[0].Hex()])
	require.Equal(t, 0, idx.HashToChunk[hashes[1].Hex()])
	require.Equal(t, 1, idx.HashToChunk[hashes[2].Hex()])
	require.Equal(t, 2, idx.HashToChunk[hashes[4].Hex()])

	chunk, err := os.ReadFile(filepath.Join(dir, "turn-3", "chunks", "chunk-0001.json"))
	require.NoError(t, err)
	var cf struct {
		ChunkNumber int                        `json:"chunkNumber"`
		Count       int                        `json:"count"`
		Strategies  map[string]json.RawMessage `json:"strategies"`
	}
	require.NoError(t, json.Unmarshal(chunk, &cf))
	require.Equal(t, 1, cf.ChunkNumber)
	require.Equal(t, 2, cf.Count)
	require.Contains(t, cf.Strategies, hashes[2].Hex())
	require.Contains(t, cf.Strategies, hashes[3].Hex())
}

func TestStoreLRUEvictionStaysCorrect(t *testing.T) {
	dir := t.TempDir()
	// Chunk size 1 with a 2-chunk cache: reads churn the cache constantly.
	store := NewStore(dir, 1, 2)

	hashes := make([]game.StateHash, 8)
	for i := range hashes {
		hashes[i] = game.StateHash(0x70ff0000 + uint32(i)<<4)
		require.NoError(t, store.Put(hashes[i], testStrategy(float64(i))))
	}
	require.NoError(t, store.Flush(7))

	reopened := NewStore(dir, 1, 2)
	for round := 0; round < 3; round++ {
		for i, h := range hashes {
			s, err := reopened.Get(h)
			require.NoError(t, err)
			require.NotNil(t, s)
			require.Equal(t, float64(i), s.Value)
		}
	}
}

func TestStoreRePutOverwritesInPlace(t *testing.T) {
	store := NewStore(t.TempDir(), 2, 4)
	h := game.StateHash(0x20ff0000)

	require.NoError(t, store.Put(h, testStrategy(0.1)))
	require.NoError(t, store.Put(h, testStrategy(0.9)))
	require.NoError(t, store.Flush(2))

	count, err := store.Count(2)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	s, err := store.Get(h)
	require.NoError(t, err)
	require.Equal(t, 0.9, s.Value)
}

func TestLoadTurnValues(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, 2, 4)

	h1 := game.StateHash(0x90ff0000)
	h2 := game.StateHash(0x90ff0010)
	require.NoError(t, store.Put(h1, testStrategy(0.5)))
	require.NoError(t, store.Put(h2, testStrategy(-0.25)))
	require.NoError(t, store.Flush(9))

	values, err := NewStore(dir, 2, 4).LoadTurnValues(9)
	require.NoError(t, err)
	require.Equal(t, map[game.StateHash]float64{h1: 0.5, h2: -0.25}, values)

	empty, err := store.LoadTurnValues(11)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestReleasePanicsOnDirtyChunks(t *testing.T) {
	store := NewStore(t.TempDir(), 2, 4)
	require.NoError(t, store.Put(game.StateHash(0x40ff0000), testStrategy(0)))
	require.Panics(t, func() { store.Release(4) })

	require.NoError(t, store.Flush(4))
	store.Release(4)
}
