package solver

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"electricchair/game"
	"electricchair/meta"
)

// ErrSuccessorNotSolved means the oracle had no value for a non-terminal
// successor. That is a driver ordering bug and must abort the run.
var ErrSuccessorNotSolved = errors.New("successor state not yet solved")

// bestResponseEpsilon bounds how much any pure strategy may improve on the
// reported game value before verification fails.
const bestResponseEpsilon = 5e-8

// renormFloor is the smallest probability mass a strategy vector may carry
// before renormalization falls back to uniform.
const renormFloor = 1e-8

// Oracle returns the already-computed equilibrium value of a successor
// state, Player-A perspective.
type Oracle interface {
	Value(h game.StateHash) (float64, bool)
}

// OracleFunc adapts a plain function to the Oracle interface.
type OracleFunc func(h game.StateHash) (float64, bool)

func (f OracleFunc) Value(h game.StateHash) (float64, bool) { return f(h) }

// Config carries the solver knobs taken from the configuration document.
type Config struct {
	DrawValue       float64 // Player-A payoff assigned to draws
	PrecisionDigits int     // decimal rounding applied before storage
}

// Strategy is the solved output for one state: both players' mixed
// strategies over the 12 chairs (zero on removed chairs) and the game value
// from Player A's perspective. Terminal states carry zero vectors and the
// terminal value.
type Strategy struct {
	P1Probs []float64 `json:"p1Probs"`
	P2Probs []float64 `json:"p2Probs"`
	Value   float64   `json:"value"`
}

// TerminalValue maps a terminal status to its Player-A payoff.
func TerminalValue(status game.Status, drawValue float64) float64 {
	switch status {
	case game.AWins:
		return 1
	case game.BWins:
		return -1
	case game.Draw:
		return drawValue
	default:
		panic(fmt.Sprintf("terminal value requested for status %v", status))
	}
}

// TerminalStrategy builds the stored form of a terminal state.
func TerminalStrategy(gs game.GameState, cfg Config) Strategy {
	return Strategy{
		P1Probs: make([]float64, meta.NumChairs),
		P2Probs: make([]float64, meta.NumChairs),
		Value:   round(TerminalValue(gs.Status(), cfg.DrawValue), cfg.PrecisionDigits),
	}
}

// BuildMatrix constructs the payoff matrix of the simultaneous chair game
// played in gs. Rows are Player A's chair choices, columns Player B's, both
// over the available chairs in ascending order; the turn parity decides who
// is the selector. Terminal outcomes contribute their terminal value
// directly, non-terminal outcomes the oracle's value.
func BuildMatrix(gs game.GameState, oracle Oracle, drawValue float64) ([][]float64, []int, error) {
	chairs := gs.AvailableChairs()
	n := len(chairs)
	selectorIsA := game.Selector(gs.Turn) == game.PlayerA

	m := make([][]float64, n)
	for i, a := range chairs {
		row := make([]float64, n)
		for j, b := range chairs {
			var r game.TurnResult
			if selectorIsA {
				r = game.Step(gs, a, b)
			} else {
				r = game.Step(gs, b, a)
			}
			if status := r.State.Status(); status != game.InProgress {
				row[j] = TerminalValue(status, drawValue)
			} else {
				v, ok := oracle.Value(r.Hash)
				if !ok {
					return nil, nil, fmt.Errorf("state %s (turn %d): %w",
						r.Hash.Hex(), r.State.Turn, ErrSuccessorNotSolved)
				}
				row[j] = v
			}
		}
		m[i] = row
	}
	return m, chairs, nil
}

// Solve computes the mixed-strategy Nash equilibrium of one in-progress
// state. Calling it on a terminal state is a programmer error.
func Solve(gs game.GameState, oracle Oracle, cfg Config) (Strategy, error) {
	if gs.Status() != game.InProgress {
		panic(fmt.Sprintf("solve on terminal state %s", gs))
	}

	m, chairs, err := BuildMatrix(gs, oracle, cfg.DrawValue)
	if err != nil {
		return Strategy{}, err
	}

	x, y, value, err := solveMatrixGame(m)
	if err != nil {
		return Strategy{}, fmt.Errorf("state %s: %w", gs.Encode().Hex(), err)
	}

	x = cleanProbs(x)
	y = cleanProbs(y)

	if err := VerifyEquilibrium(m, x, y, value, bestResponseEpsilon); err != nil {
		log.Warn().Str("state", gs.Encode().Hex()).Err(err).
			Msg("equilibrium verification outside tolerance, keeping result")
	}

	return Strategy{
		P1Probs: scatter(x, chairs, cfg.PrecisionDigits),
		P2Probs: scatter(y, chairs, cfg.PrecisionDigits),
		Value:   round(value, cfg.PrecisionDigits),
	}, nil
}

// VerifyEquilibrium checks the best-response property: no pure row beats
// value against y by more than eps, and no pure column holds the row player
// under value by more than eps.
func VerifyEquilibrium(m [][]float64, x, y []float64, value, eps float64) error {
	n := len(m)
	for i := 0; i < n; i++ {
		payoff := 0.0
		for j := 0; j < n; j++ {
			payoff += m[i][j] * y[j]
		}
		if payoff > value+eps {
			return fmt.Errorf("pure row %d earns %g against column mix, above value %g", i, payoff, value)
		}
	}
	for j := 0; j < n; j++ {
		payoff := 0.0
		for i := 0; i < n; i++ {
			payoff += x[i] * m[i][j]
		}
		if payoff < value-eps {
			return fmt.Errorf("pure column %d holds row player to %g, below value %g", j, payoff, value)
		}
	}
	return nil
}

// cleanProbs clips LP noise out of a probability vector and renormalizes.
// A vector with almost no mass left falls back to uniform.
func cleanProbs(probs []float64) []float64 {
	out := make([]float64, len(probs))
	total := 0.0
	for i, p := range probs {
		if p < 0 {
			p = 0
		} else if p > 1 {
			p = 1
		}
		out[i] = p
		total += p
	}
	if total < renormFloor {
		uniform := 1 / float64(len(out))
		for i := range out {
			out[i] = uniform
		}
		return out
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

// scatter expands a strategy over the available chairs to the fixed
// 12-entry vector, rounding each entry.
func scatter(probs []float64, chairs []int, digits int) []float64 {
	out := make([]float64, meta.NumChairs)
	for i, c := range chairs {
		out[c-1] = round(probs[i], digits)
	}
	return out
}

func round(v float64, digits int) float64 {
	scale := math.Pow(10, float64(digits))
	return math.Round(v*scale) / scale
}
