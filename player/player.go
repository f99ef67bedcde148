package player

import (
	"fmt"

	"golang.org/x/exp/rand"

	"electricchair/game"
	"electricchair/solver"
)

// StrategySource answers strategy lookups by encoded state. The analysis
// store satisfies it.
type StrategySource interface {
	Get(h game.StateHash) (*solver.Strategy, error)
}

// Player samples chair choices from solved strategies. A missing strategy
// is a soft condition: the player falls back to a uniform pick over the
// available chairs.
type Player struct {
	Side   game.Player
	Source StrategySource
	rng    *rand.Rand
}

// NewPlayer creates a player for one side. The seed makes sampling
// reproducible across sessions.
func NewPlayer(side game.Player, source StrategySource, seed uint64) *Player {
	if side != game.PlayerA && side != game.PlayerB {
		panic(fmt.Sprintf("player side must be A or B, got %v", side))
	}
	return &Player{
		Side:   side,
		Source: source,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// ChooseChair picks a chair for the player's next move in gs, whether this
// side is the selector or the setter this turn.
func (p *Player) ChooseChair(gs game.GameState) (int, error) {
	if gs.Status() != game.InProgress {
		return 0, fmt.Errorf("no move to make in terminal state %s", gs)
	}

	strategy, err := p.Source.Get(gs.Encode())
	if err != nil {
		return 0, err
	}
	if strategy == nil {
		return p.uniformChoice(gs), nil
	}

	probs := strategy.P1Probs
	if p.Side == game.PlayerB {
		probs = strategy.P2Probs
	}
	return p.sample(gs, probs), nil
}

// sample draws a chair from the probability vector. Mass on removed chairs
// is ignored and the rest is rescaled to its total; an all-zero vector
// degrades to the uniform fallback.
func (p *Player) sample(gs game.GameState, probs []float64) int {
	total := 0.0
	for _, chair := range gs.AvailableChairs() {
		total += probs[chair-1]
	}
	if total <= 0 {
		return p.uniformChoice(gs)
	}

	target := p.rng.Float64() * total
	acc := 0.0
	chairs := gs.AvailableChairs()
	for _, chair := range chairs {
		acc += probs[chair-1]
		if target < acc {
			return chair
		}
	}
	return chairs[len(chairs)-1]
}

func (p *Player) uniformChoice(gs game.GameState) int {
	chairs := gs.AvailableChairs()
	return chairs[p.rng.Intn(len(chairs))]
}
