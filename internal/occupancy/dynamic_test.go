package occupancy

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOccupancyTrajectory(t *testing.T) {
	got := OccupancyTrajectory(0.5, 0.4, 0.2, 4)
	want := []float64{0.5, 0.30, 0.26, 0.252}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("OccupancyTrajectory mismatch (-want +got):\n%s", diff)
	}

	assert.Nil(t, OccupancyTrajectory(0.5, 0.4, 0.2, 0))
	assert.Equal(t, []float64{0.7}, OccupancyTrajectory(0.7, 0.4, 0.2, 1))
}

func TestOccupancyTrajectory_StaysInUnitInterval(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	for trial := 0; trial < 100; trial++ {
		psi := OccupancyTrajectory(r.Float64(), r.Float64(), r.Float64(), 50)
		for s, v := range psi {
			assert.True(t, v >= 0 && v <= 1, "trial %d season %d: psi=%v", trial, s, v)
		}
	}
}

func TestEquilibriumOccupancy(t *testing.T) {
	assert.InDelta(t, 0.25, EquilibriumOccupancy(0.4, 0.2), 1e-15)

	psi := OccupancyTrajectory(0.9, 0.4, 0.2, 60)
	assert.InDelta(t, EquilibriumOccupancy(0.4, 0.2), psi[len(psi)-1], 1e-12)
}

func TestTurnover(t *testing.T) {
	psi := []float64{0.5, 0.3}
	got := Turnover(psi, 0.4, 0.2)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.1/0.3, got[0], 1e-12)
	assert.Nil(t, Turnover([]float64{0.5}, 0.4, 0.2))
}

func TestEvaluateDynamic_HandComputed(t *testing.T) {
	y := [][][]int{
		{{1, 0}, {0, 0}},
	}
	got, err := EvaluateDynamic(1, 2, y, 0.4, 0.2, 0.5, 0.5)
	require.NoError(t, err)
	// season 1: 0.5 * 0.5 * 0.5; season 2 (psi=0.3): 0.3*0.25 + 0.7
	assert.InDelta(t, math.Log(0.125)+math.Log(0.775), got, 1e-12)
}

func TestEvaluateDynamic_Degenerate(t *testing.T) {
	y := [][][]int{
		{{0, 0, 0}, {0, 0, 0}},
		{{0, 0, 0}, {0, 0, 0}},
	}
	got, err := EvaluateDynamic(2, 2, y, 0, 0, 0, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	y[1][1][2] = 1
	got, err = EvaluateDynamic(2, 2, y, 0, 0, 0, 0.5)
	require.NoError(t, err)
	assert.True(t, math.IsInf(got, -1))
}

func TestEvaluateDynamic_Errors(t *testing.T) {
	good := [][][]int{{{0, 1}, {1, 1}}}

	testCases := []struct {
		name    string
		n, t    int
		y       [][][]int
		params  [4]float64 // phi, gamma, psi1, p
		wantErr error
	}{
		{"phi_invalid", 1, 2, good, [4]float64{1.5, 0.2, 0.5, 0.5}, ErrInvalidParameter},
		{"gamma_invalid", 1, 2, good, [4]float64{0.4, -0.2, 0.5, 0.5}, ErrInvalidParameter},
		{"psi1_invalid", 1, 2, good, [4]float64{0.4, 0.2, math.NaN(), 0.5}, ErrInvalidParameter},
		{"p_invalid", 1, 2, good, [4]float64{0.4, 0.2, 0.5, 2}, ErrInvalidParameter},
		{"n_disagrees", 2, 2, good, [4]float64{0.4, 0.2, 0.5, 0.5}, ErrShapeMismatch},
		{"t_disagrees", 1, 3, good, [4]float64{0.4, 0.2, 0.5, 0.5}, ErrShapeMismatch},
		{"ragged_surveys", 1, 2, [][][]int{{{0, 1}, {1}}}, [4]float64{0.4, 0.2, 0.5, 0.5}, ErrShapeMismatch},
		{"empty", 0, 2, nil, [4]float64{0.4, 0.2, 0.5, 0.5}, ErrShapeMismatch},
		{"non_binary", 1, 2, [][][]int{{{0, 2}, {1, 1}}}, [4]float64{0.4, 0.2, 0.5, 0.5}, ErrInvalidObservation},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := EvaluateDynamic(tc.n, tc.t, tc.y, tc.params[0], tc.params[1], tc.params[2], tc.params[3])
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func randomMultiSeason(r *rand.Rand, n, t, reps int) MultiSeason {
	y := make([][][]int, n)
	for i := range y {
		y[i] = make([][]int, t)
		for s := range y[i] {
			y[i][s] = make([]int, reps)
			for k := range y[i][s] {
				if r.Float64() < 0.2 {
					y[i][s][k] = 1
				}
			}
		}
	}
	return MultiSeason{N: n, T: t, R: reps, Y: y}
}

func TestEvaluateDynamicParallel_MatchesSequential(t *testing.T) {
	d := randomMultiSeason(rand.New(rand.NewPCG(42, 1)), 300, 6, 4)
	params := DynamicParams{Psi1: 0.6, Phi: 0.8, Gamma: 0.1, P: 0.35}

	seq, err := d.LogLikelihood(params)
	require.NoError(t, err)

	for _, workers := range []int{0, 1, 4, 16} {
		par, err := EvaluateDynamicParallel(context.Background(), d, params, workers)
		require.NoError(t, err)
		assert.InEpsilon(t, seq, par, 1e-9, "workers=%d", workers)
	}
}

func TestEvaluateDynamicParallel_Cancelled(t *testing.T) {
	d := randomMultiSeason(rand.New(rand.NewPCG(1, 1)), 50, 3, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := EvaluateDynamicParallel(ctx, d, DynamicParams{Psi1: 0.5, Phi: 0.5, Gamma: 0.5, P: 0.5}, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCellLogLikelihoods_Shape(t *testing.T) {
	d := randomMultiSeason(rand.New(rand.NewPCG(9, 9)), 5, 3, 2)
	cells, err := d.CellLogLikelihoods(DynamicParams{Psi1: 0.5, Phi: 0.7, Gamma: 0.2, P: 0.4})
	require.NoError(t, err)
	require.Len(t, cells, 5)
	for _, unit := range cells {
		require.Len(t, unit, 3)
		for _, v := range unit {
			assert.LessOrEqual(t, v, 0.0)
			assert.False(t, math.IsInf(v, 0) || math.IsNaN(v))
		}
	}
}
