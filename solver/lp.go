package solver

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// valueEpsilon scales the allowed disagreement between the row player's and
// the column player's LP optima. Theory says they coincide; simplex noise
// does not.
const valueEpsilon = 5e-8

// solveMatrixGame computes a mixed-strategy equilibrium of the zero-sum
// matrix game m (row-player perspective). It returns the row and column
// mixed strategies over the matrix indices plus the game value.
//
// The matrix is shifted elementwise to be nonnegative, both players' LPs
// are solved independently, and the value is the shifted-back midpoint of
// the two optima. A disagreement beyond tolerance is logged, not fatal.
func solveMatrixGame(m [][]float64) ([]float64, []float64, float64, error) {
	n := len(m)
	if n == 0 {
		return nil, nil, 0, fmt.Errorf("empty payoff matrix")
	}
	if n == 1 {
		return []float64{1}, []float64{1}, m[0][0], nil
	}

	shift := 0.0
	for _, row := range m {
		if len(row) != n {
			return nil, nil, 0, fmt.Errorf("payoff matrix is not square")
		}
		for _, v := range row {
			if -v > shift {
				shift = -v
			}
		}
	}
	shifted := make([][]float64, n)
	for i, row := range m {
		shifted[i] = make([]float64, n)
		for j, v := range row {
			shifted[i][j] = v + shift
		}
	}

	rowProbs, vRow, err := solveRowPlayer(shifted)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("row player LP: %w", err)
	}
	colProbs, vCol, err := solveColPlayer(shifted)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("column player LP: %w", err)
	}

	if diff := math.Abs(vRow - vCol); diff > valueEpsilon*math.Max(1, shift+1) {
		log.Warn().
			Float64("rowValue", vRow).
			Float64("colValue", vCol).
			Float64("diff", diff).
			Msg("LP optima disagree beyond tolerance, accepting midpoint")
	}

	value := (vRow+vCol)/2 - shift
	return rowProbs, colProbs, value, nil
}

// solveRowPlayer maximizes v subject to x^T M' >= v per column, sum x = 1,
// x >= 0. Variables are (x_0..x_{n-1}, v) with v free; lp.Convert splits
// free variables into positive and negative parts, so the original variable
// i is recovered as z[i] - z[n+1+i].
func solveRowPlayer(m [][]float64) ([]float64, float64, error) {
	n := len(m)
	nv := n + 1

	c := make([]float64, nv)
	c[n] = -1 // maximize v

	g := mat.NewDense(2*n, nv, nil)
	h := make([]float64, 2*n)
	for j := 0; j < n; j++ {
		// v - sum_i x_i*M'[i][j] <= 0
		for i := 0; i < n; i++ {
			g.Set(j, i, -m[i][j])
		}
		g.Set(j, n, 1)
	}
	for i := 0; i < n; i++ {
		// -x_i <= 0
		g.Set(n+i, i, -1)
	}

	aeq := mat.NewDense(1, nv, nil)
	for i := 0; i < n; i++ {
		aeq.Set(0, i, 1)
	}
	beq := []float64{1}

	cs, as, bs := lp.Convert(c, g, h, aeq, beq)
	optF, z, err := lp.Simplex(cs, as, bs, 0, nil)
	if err != nil {
		return nil, 0, err
	}

	x := make([]float64, n)
	for i := range x {
		x[i] = z[i] - z[nv+i]
	}
	return x, -optF, nil
}

// solveColPlayer minimizes u subject to M' y <= u per row, sum y = 1,
// y >= 0.
func solveColPlayer(m [][]float64) ([]float64, float64, error) {
	n := len(m)
	nv := n + 1

	c := make([]float64, nv)
	c[n] = 1 // minimize u

	g := mat.NewDense(2*n, nv, nil)
	h := make([]float64, 2*n)
	for i := 0; i < n; i++ {
		// sum_j M'[i][j]*y_j - u <= 0
		for j := 0; j < n; j++ {
			g.Set(i, j, m[i][j])
		}
		g.Set(i, n, -1)
	}
	for j := 0; j < n; j++ {
		// -y_j <= 0
		g.Set(n+j, j, -1)
	}

	aeq := mat.NewDense(1, nv, nil)
	for j := 0; j < n; j++ {
		aeq.Set(0, j, 1)
	}
	beq := []float64{1}

	cs, as, bs := lp.Convert(c, g, h, aeq, beq)
	optF, z, err := lp.Simplex(cs, as, bs, 0, nil)
	if err != nil {
		return nil, 0, err
	}

	y := make([]float64, n)
	for j := range y {
		y[j] = z[j] - z[nv+j]
	}
	return y, optF, nil
}
