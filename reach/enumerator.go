package reach

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/maps"

	"electricchair/game"
	"electricchair/meta"
)

// Enumerator produces, for every turn, the exact deduplicated set of
// reachable encoded states, by level-by-level forward expansion from the
// initial position. Completed turns found on disk are skipped.
type Enumerator struct {
	store *Store
}

func NewEnumerator(store *Store) *Enumerator {
	return &Enumerator{store: store}
}

// Run walks turns 0..15 in order. For each turn it holds the full state set
// in memory, expands every in-progress member over all ordered chair pairs,
// folds same-turn terminal successors back into the set, and commits the
// sorted set before moving on. Cancellation is honored between turns.
func (e *Enumerator) Run(ctx context.Context) error {
	return e.run(ctx, meta.MaxTurns)
}

func (e *Enumerator) run(ctx context.Context, maxTurns int) error {
	start := time.Now()

	// States discovered for the next turn by expanding the previous one.
	pending := map[game.StateHash]struct{}{
		game.NewGameState().Encode(): {},
	}

	for turn := 0; turn < maxTurns; turn++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if e.store.Complete(turn) {
			m, _, _ := e.store.Meta(turn)
			log.Info().Int("turn", turn).Int("states", m.TotalCount).Msg("turn already enumerated, skipping")

			if turn+1 < maxTurns && !e.store.Complete(turn+1) {
				// The next turn still needs this turn's frontier.
				hashes, err := e.store.LoadTurn(turn)
				if err != nil {
					return err
				}
				set := make(map[game.StateHash]struct{}, len(hashes))
				for _, h := range hashes {
					set[h] = struct{}{}
				}
				pending = expand(set, turn)
			} else {
				pending = nil
			}
			continue
		}

		states := pending
		if states == nil {
			return fmt.Errorf("turn %d is missing but turn %d was never expanded", turn, turn-1)
		}
		pending = expand(states, turn)

		if err := e.store.WriteTurn(turn, maps.Keys(states)); err != nil {
			return err
		}
		log.Info().Int("turn", turn).Int("states", len(states)).Msg("turn enumerated")
	}

	log.Info().Dur("elapsed", time.Since(start)).Msg("reachability enumeration complete")
	return nil
}

// expand applies every legal ordered chair pair to every in-progress state
// of the set. Terminal successors keep the current turn and are folded into
// the set itself; in-progress successors form the returned next-turn
// frontier. The iteration snapshot is safe because only terminal states are
// added to the set mid-loop and those are never expanded.
func expand(states map[game.StateHash]struct{}, turn int) map[game.StateHash]struct{} {
	next := make(map[game.StateHash]struct{})

	frontier := maps.Keys(states)
	for _, h := range frontier {
		gs := game.Decode(h)
		if gs.Status() != game.InProgress {
			continue
		}
		chairs := gs.AvailableChairs()
		for _, selectorChoice := range chairs {
			for _, setterChoice := range chairs {
				r := game.Step(gs, selectorChoice, setterChoice)
				if r.State.Turn == turn {
					states[r.Hash] = struct{}{}
				} else {
					next[r.Hash] = struct{}{}
				}
			}
		}
	}
	return next
}
