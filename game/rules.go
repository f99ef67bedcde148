package game

import (
	"fmt"

	"electricchair/meta"
)

// Player identifies one of the two sides.
type Player int

const (
	NoPlayer Player = iota
	PlayerA
	PlayerB
)

func (p Player) String() string {
	switch p {
	case PlayerA:
		return "PlayerA"
	case PlayerB:
		return "PlayerB"
	default:
		return "NoPlayer"
	}
}

// Selector returns the chair-selector for the given turn: A on even turns,
// B on odd turns.
func Selector(turn int) Player {
	if turn%2 == 0 {
		return PlayerA
	}
	return PlayerB
}

// Setter returns the electric-setter for the given turn, the opponent of
// the selector.
func Setter(turn int) Player {
	if Selector(turn) == PlayerA {
		return PlayerB
	}
	return PlayerA
}

// TurnResult bundles the successor state with the diagnostics observers
// want. Only State/Hash matter to the solver.
type TurnResult struct {
	State        GameState
	Hash         StateHash
	Matched      bool
	Shocked      Player // NoPlayer unless Matched
	Points       int    // 0 unless unmatched
	RemovedChair int    // 0 unless unmatched
}

// Step applies one simultaneous move to an in-progress state and returns
// the successor. The selector and setter each name a chair still on the
// board; a match electrocutes the selector (score reset, shock added, no
// chair removed), a miss scores the selector the chair's face value and
// removes that chair. The turn counter only advances when the successor is
// still in progress, so terminal states keep the turn they terminated on.
//
// Step is pure and deterministic. Calling it with an absent chair or on a
// terminal state is a programmer error and panics.
func Step(gs GameState, selectorChoice, setterChoice int) TurnResult {
	if gs.Status() != InProgress {
		panic(fmt.Sprintf("step on terminal state %s", gs))
	}
	if !gs.ChairPresent(selectorChoice) {
		panic(fmt.Sprintf("selector chose absent chair %d in %s", selectorChoice, gs))
	}
	if !gs.ChairPresent(setterChoice) {
		panic(fmt.Sprintf("setter chose absent chair %d in %s", setterChoice, gs))
	}

	selector := Selector(gs.Turn)
	next := gs
	result := TurnResult{Matched: selectorChoice == setterChoice}

	if result.Matched {
		// The selector sat in the electric chair: points gone, one
		// more shock, the chair stays on the board.
		result.Shocked = selector
		if selector == PlayerA {
			next.ScoreA = 0
			next.ShockA++
		} else {
			next.ScoreB = 0
			next.ShockB++
		}
	} else {
		// Safe sit: the selector banks the chair's face value and the
		// chair leaves the board. Gains cap at the winning score so
		// the 40-point finish is always exact.
		result.Points = selectorChoice
		result.RemovedChair = selectorChoice
		if selector == PlayerA {
			next.ScoreA = min(next.ScoreA+selectorChoice, meta.WinningScore)
		} else {
			next.ScoreB = min(next.ScoreB+selectorChoice, meta.WinningScore)
		}
		next.Chairs &^= 1 << (selectorChoice - 1)
	}

	if next.Status() == InProgress {
		next.Turn++
	}

	result.State = next
	result.Hash = next.Encode()
	return result
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
