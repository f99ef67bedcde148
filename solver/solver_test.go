package solver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"electricchair/game"
)

var testConfig = Config{DrawValue: 0, PrecisionDigits: 6}

func noOracle(t *testing.T) Oracle {
	return OracleFunc(func(h game.StateHash) (float64, bool) {
		t.Fatalf("oracle consulted for %s, all successors should be terminal", h.Hex())
		return 0, false
	})
}

func TestBuildMatrixTerminalEntries(t *testing.T) {
	// Two chairs left, A one shock from losing: matching is -1, any safe
	// sit ends the game in A's favor on points.
	gs := game.GameState{Turn: 8, Chairs: 0x014, ScoreA: 10, ScoreB: 12, ShockA: 2}
	require.Equal(t, game.InProgress, gs.Status())

	m, chairs, err := BuildMatrix(gs, noOracle(t), 0)
	require.NoError(t, err)
	require.Equal(t, []int{3, 5}, chairs)
	require.Equal(t, [][]float64{
		{-1, 1},
		{1, -1},
	}, m)
}

func TestBuildMatrixRoleMappingOddTurn(t *testing.T) {
	// On odd turns B selects: rows stay A's chair, columns B's, so the
	// setter choice comes from the row.
	gs := game.GameState{Turn: 1, Chairs: 0x402, ScoreB: 29} // chairs 2, 11
	require.Equal(t, game.InProgress, gs.Status())

	oracle := OracleFunc(func(h game.StateHash) (float64, bool) {
		// Only the matched (shock) successors are non-terminal here.
		s := game.Decode(h)
		require.Equal(t, 1, s.ShockB)
		require.Equal(t, 0, s.ScoreB)
		return 0.25, true
	})

	m, chairs, err := BuildMatrix(gs, oracle, 0)
	require.NoError(t, err)
	require.Equal(t, []int{2, 11}, chairs)

	// (a=2, b=11): B banks 11 for exactly 40 -> B wins.
	require.Equal(t, -1.0, m[0][1])
	// (a=11, b=2): B banks 2, one chair left, B leads on points -> B wins.
	require.Equal(t, -1.0, m[1][0])
	// Matched pairs shock B and continue; the oracle value flows through.
	require.Equal(t, 0.25, m[0][0])
	require.Equal(t, 0.25, m[1][1])
}

func TestBuildMatrixOracleMiss(t *testing.T) {
	gs := game.NewGameState()
	missing := OracleFunc(func(game.StateHash) (float64, bool) { return 0, false })

	_, _, err := BuildMatrix(gs, missing, 0)
	require.ErrorIs(t, err, ErrSuccessorNotSolved)
}

func TestSolveForcedShockGame(t *testing.T) {
	// Matching pennies in disguise: matching shocks A out of the game,
	// missing wins it for A on points.
	gs := game.GameState{Turn: 8, Chairs: 0x014, ScoreA: 10, ScoreB: 12, ShockA: 2}

	strategy, err := Solve(gs, noOracle(t), testConfig)
	require.NoError(t, err)

	require.InDelta(t, 0, strategy.Value, 1e-6)
	require.Len(t, strategy.P1Probs, 12)
	require.Len(t, strategy.P2Probs, 12)

	// Mass sits only on chairs 3 and 5, split evenly.
	for i, p := range strategy.P1Probs {
		switch i {
		case 2, 4:
			require.InDelta(t, 0.5, p, 1e-6)
		default:
			require.Zero(t, p)
		}
	}
	for i, p := range strategy.P2Probs {
		switch i {
		case 2, 4:
			require.InDelta(t, 0.5, p, 1e-6)
		default:
			require.Zero(t, p)
		}
	}
}

func TestSolveScoreTippingWin(t *testing.T) {
	// A holds 31 with chair 9 on the board: a safe sit on 9 lands exactly
	// on 40. The equilibrium value must reflect a strong position for A.
	gs := game.GameState{Turn: 2, Chairs: 0xfff, ScoreA: 31, ScoreB: 5}

	m, chairs, err := BuildMatrix(gs, OracleFunc(func(game.StateHash) (float64, bool) {
		return 0, true
	}), 0)
	require.NoError(t, err)

	row := -1
	for i, c := range chairs {
		if c == 9 {
			row = i
		}
	}
	require.NotEqual(t, -1, row)
	for j, c := range chairs {
		if c == 9 {
			continue // matched pair shocks A instead
		}
		require.Equal(t, 1.0, m[row][j], "unmatched sit on chair 9 against %d must win", c)
	}

	strategy, err := Solve(gs, OracleFunc(func(game.StateHash) (float64, bool) {
		return 0, true
	}), testConfig)
	require.NoError(t, err)
	require.Greater(t, strategy.Value, 0.0)
}

func TestSolveSymmetricStateIsFair(t *testing.T) {
	// Fully symmetric position: equal scores, equal shocks, full board on
	// an even turn mirrors the odd-turn view. Zero-sum symmetry pins the
	// value at the draw value.
	gs := game.NewGameState()

	strategy, err := Solve(gs, OracleFunc(func(h game.StateHash) (float64, bool) {
		// Successor values mirror: a state and its A/B-swapped twin
		// cancel. A flat zero oracle models that exactly.
		return 0, true
	}), testConfig)
	require.NoError(t, err)
	require.InDelta(t, 0, strategy.Value, 1e-6)

	sum := 0.0
	for _, p := range strategy.P1Probs {
		require.GreaterOrEqual(t, p, 0.0)
		require.LessOrEqual(t, p, 1.0)
		sum += p
	}
	require.InDelta(t, 1, sum, 1e-5)
}

func TestSolvePanicsOnTerminalState(t *testing.T) {
	terminal := game.GameState{Turn: 5, Chairs: 0x010, ScoreA: 40}
	require.Panics(t, func() {
		_, _ = Solve(terminal, noOracle(t), testConfig)
	})
}

func TestTerminalStrategy(t *testing.T) {
	cfg := Config{DrawValue: 0.1, PrecisionDigits: 6}

	cases := []struct {
		gs   game.GameState
		want float64
	}{
		{game.GameState{Turn: 5, Chairs: 0x010, ScoreA: 40}, 1},
		{game.GameState{Turn: 5, Chairs: 0x010, ShockA: 3}, -1},
		{game.GameState{Turn: 9, Chairs: 0x040, ScoreA: 20, ScoreB: 20}, 0.1},
	}
	for _, tc := range cases {
		s := TerminalStrategy(tc.gs, cfg)
		require.Equal(t, tc.want, s.Value)
		for i := 0; i < 12; i++ {
			require.Zero(t, s.P1Probs[i])
			require.Zero(t, s.P2Probs[i])
		}
	}

	require.Panics(t, func() {
		TerminalValue(game.InProgress, 0)
	})
}

func TestSuccessorNotSolvedIsDistinguishable(t *testing.T) {
	gs := game.NewGameState()
	_, err := Solve(gs, OracleFunc(func(game.StateHash) (float64, bool) { return 0, false }), testConfig)
	require.True(t, errors.Is(err, ErrSuccessorNotSolved))
}
