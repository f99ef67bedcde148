package reach

import (
	"context"
	"testing"

	"electricchair/game"
)

func initialSet() map[game.StateHash]struct{} {
	return map[game.StateHash]struct{}{
		game.NewGameState().Encode(): {},
	}
}

func TestExpandTurnZero(t *testing.T) {
	states := initialSet()
	next := expand(states, 0)

	// Turn 0 has no terminal successors, so the set stays a singleton.
	if len(states) != 1 {
		t.Errorf("turn 0 set grew to %d states", len(states))
	}
	// 12 distinct score successors plus one shock successor: every matched
	// pair (c, c) collapses to the same state.
	if len(next) != 13 {
		t.Errorf("turn 1 frontier has %d states, want 13", len(next))
	}
	for h := range next {
		gs := game.Decode(h)
		if gs.Turn != 1 {
			t.Errorf("frontier state %s has turn %d", gs, gs.Turn)
		}
		if gs.Status() != game.InProgress {
			t.Errorf("frontier state %s is terminal", gs)
		}
	}
}

func TestExpandDeduplicatesTrajectories(t *testing.T) {
	// Two turns deep, distinct move orders reach identical positions; the
	// per-turn sets must collapse them.
	states := initialSet()
	frontier := expand(states, 0)
	third := expand(frontier, 1)

	seen := make(map[game.StateHash]bool)
	for h := range third {
		if seen[h] {
			t.Fatalf("duplicate state %s in frontier", h.Hex())
		}
		seen[h] = true
		if h.Turn() != 2 {
			t.Errorf("state %s in turn-2 frontier has turn %d", h.Hex(), h.Turn())
		}
	}
	// Same-turn terminal successors stay in the expanded set.
	for h := range frontier {
		gs := game.Decode(h)
		if gs.Turn != 1 {
			t.Errorf("turn-1 set holds %s", gs)
		}
	}
}

func TestRunShallowAndResume(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, 100)
	e := NewEnumerator(store)

	if err := e.run(context.Background(), 3); err != nil {
		t.Fatalf("run: %v", err)
	}

	for turn := 0; turn < 3; turn++ {
		if !store.Complete(turn) {
			t.Fatalf("turn %d not committed", turn)
		}
	}
	m0, _, _ := store.Meta(0)
	if m0.TotalCount != 1 {
		t.Errorf("turn 0 has %d states, want 1", m0.TotalCount)
	}
	m1, _, _ := store.Meta(1)
	if m1.TotalCount != 13 {
		t.Errorf("turn 1 has %d states, want 13", m1.TotalCount)
	}

	// A second run over a committed store re-expands nothing new and the
	// files keep their counts.
	if err := e.run(context.Background(), 3); err != nil {
		t.Fatalf("resumed run: %v", err)
	}
	again, _, _ := store.Meta(1)
	if again.TotalCount != m1.TotalCount {
		t.Errorf("turn 1 count changed on resume: %d -> %d", m1.TotalCount, again.TotalCount)
	}

	// Extending the horizon picks up from the committed turns.
	if err := e.run(context.Background(), 4); err != nil {
		t.Fatalf("extended run: %v", err)
	}
	if !store.Complete(3) {
		t.Fatal("turn 3 not committed after extended run")
	}
	hashes, err := store.LoadTurn(3)
	if err != nil {
		t.Fatalf("load turn 3: %v", err)
	}
	for _, h := range hashes {
		if h.Turn() != 3 {
			t.Errorf("turn-3 partition holds state %s with turn %d", h.Hex(), h.Turn())
		}
	}
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEnumerator(NewStore(t.TempDir(), 100))
	if err := e.run(ctx, 3); err == nil {
		t.Fatal("cancelled run returned nil error")
	}
}

func TestFullEnumeration(t *testing.T) {
	if testing.Short() {
		t.Skip("full 16-turn enumeration is slow")
	}
	dir := t.TempDir()
	store := NewStore(dir, 10000)
	if err := NewEnumerator(store).Run(context.Background()); err != nil {
		t.Fatalf("full run: %v", err)
	}
	total := 0
	for turn := 0; turn < 16; turn++ {
		m, ok, err := store.Meta(turn)
		if err != nil || !ok {
			t.Fatalf("turn %d missing after full run", turn)
		}
		total += m.TotalCount
	}
	if total < 1_000_000 {
		t.Errorf("full reachable space has %d states, suspiciously small", total)
	}
}
