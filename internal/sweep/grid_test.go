package sweep

import (
	"bytes"
	"context"
	"encoding/csv"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/occupancy/internal/occupancy"
	"github.com/banshee-data/occupancy/internal/testutil"
)

func TestRun_MatchesDirectEvaluation(t *testing.T) {
	data := testutil.SmallSingleSeason()
	eval := SingleSeason{Data: data}
	combos, err := ExpandRanges(GenerateRange(0.1, 0.9, 0.2), GenerateRange(0.1, 0.9, 0.2))
	require.NoError(t, err)

	results, err := Run(context.Background(), eval, combos, 3)
	require.NoError(t, err)
	require.Len(t, results, 25)

	for i, r := range results {
		assert.Equal(t, combos[i], r.Params)
		want, err := data.LogLikelihood(occupancy.Params{P: r.Params[0], Psi: r.Params[1]})
		require.NoError(t, err)
		testutil.AssertClose(t, r.LogLikelihood, want, 0)
	}
}

func TestRun_Errors(t *testing.T) {
	eval := SingleSeason{Data: testutil.SmallSingleSeason()}

	_, err := Run(context.Background(), eval, [][]float64{{0.5}}, 1)
	assert.ErrorIs(t, err, occupancy.ErrShapeMismatch)

	bad := SingleSeason{Data: occupancy.SingleSeason{N: 2, K: 3, Y: []int{1}}}
	_, err = Run(context.Background(), bad, [][]float64{{0.5, 0.5}}, 1)
	assert.ErrorIs(t, err, occupancy.ErrShapeMismatch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, eval, [][]float64{{0.5, 0.5}}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProfile_PeaksNearEstimate(t *testing.T) {
	// 60 of 100 sites detected every survey: psi and p both peak at the top.
	y := make([]int, 100)
	for i := 0; i < 60; i++ {
		y[i] = 3
	}
	eval := SingleSeason{Data: occupancy.SingleSeason{N: 100, K: 3, Y: y}}
	idx, err := ParamIndex(eval, "psi")
	require.NoError(t, err)

	results, err := Profile(context.Background(), eval, []float64{0.999, 0}, idx, GenerateRange(0.3, 0.9, 0.01), 0)
	require.NoError(t, err)

	best, ok := Best(results)
	require.True(t, ok)
	assert.InDelta(t, 0.6, best.Params[idx], 0.011)

	lo, hi, ok := ProfileInterval(results, idx, ChiSquare95)
	require.True(t, ok)
	assert.Less(t, lo, 0.6)
	assert.Greater(t, hi, 0.6)
	assert.Greater(t, lo, 0.45)
	assert.Less(t, hi, 0.75)
}

func TestProfile_OutOfRangePointsRankLast(t *testing.T) {
	eval := SingleSeason{Data: testutil.SmallSingleSeason()}
	values, err := ParseParamList("0:1.5:0.1")
	require.NoError(t, err)
	require.Len(t, values, 16)

	results, err := Profile(context.Background(), eval, []float64{0.5, 0.5}, 1, values, 4)
	require.NoError(t, err)
	require.Len(t, results, 16)
	for _, r := range results {
		if r.Params[1] > 1 {
			assert.True(t, math.IsInf(r.LogLikelihood, -1), "psi=%g", r.Params[1])
		} else if r.Params[1] > 0 {
			assert.False(t, math.IsInf(r.LogLikelihood, 0), "psi=%g", r.Params[1])
		}
	}

	best, ok := Best(results)
	require.True(t, ok)
	assert.LessOrEqual(t, best.Params[1], 1.0)
	_, hi, ok := ProfileInterval(results, 1, ChiSquare95)
	require.True(t, ok)
	assert.LessOrEqual(t, hi, 1.0)
	ranked := RankResults(results)
	assert.True(t, math.IsInf(ranked[len(ranked)-1].LogLikelihood, -1))
}

func TestSurface(t *testing.T) {
	eval := Dynamic{Data: testutil.SmallMultiSeason()}
	base := []float64{0.5, 0.5, 0.5, 0.5}
	xs := []float64{0.2, 0.8}
	ys := []float64{0.1, 0.5, 0.9}

	results, err := Surface(context.Background(), eval, base, 1, 2, xs, ys, 2)
	require.NoError(t, err)
	require.Len(t, results, 6)
	assert.Equal(t, []float64{0.5, 0.2, 0.1, 0.5}, results[0].Params)
	assert.Equal(t, []float64{0.5, 0.8, 0.9, 0.5}, results[5].Params)

	_, err = Surface(context.Background(), eval, base, 1, 1, xs, ys, 2)
	assert.Error(t, err)
	_, err = Surface(context.Background(), eval, base[:3], 1, 2, xs, ys, 2)
	assert.ErrorIs(t, err, occupancy.ErrShapeMismatch)
	_, err = Profile(context.Background(), eval, base, 4, xs, 2)
	assert.Error(t, err)
}

func TestGrid(t *testing.T) {
	eval := Dynamic{Data: testutil.SmallMultiSeason()}
	values := [][]float64{{0.5}, {0.4, 0.6}, {0.2}, {0.3, 0.7}}
	results, err := Grid(context.Background(), eval, values, 0)
	require.NoError(t, err)
	assert.Len(t, results, 4)

	_, err = Grid(context.Background(), eval, values[:2], 0)
	assert.ErrorIs(t, err, occupancy.ErrShapeMismatch)

	_, err = ParamIndex(eval, "omega")
	assert.Error(t, err)
}

func TestRankResults(t *testing.T) {
	results := []ComboResult{
		{Params: []float64{0.1}, LogLikelihood: -5},
		{Params: []float64{0.2}, LogLikelihood: math.Inf(-1)},
		{Params: []float64{0.3}, LogLikelihood: -1},
		{Params: []float64{0.4}, LogLikelihood: -5},
	}
	ranked := RankResults(results)
	assert.Equal(t, []float64{0.3}, ranked[0].Params)
	assert.Equal(t, []float64{0.1}, ranked[1].Params)
	assert.Equal(t, []float64{0.4}, ranked[2].Params)
	assert.Equal(t, []float64{0.2}, ranked[3].Params)
	assert.Equal(t, []float64{0.1}, results[0].Params, "input must not be reordered")

	_, ok := Best([]ComboResult{{Params: []float64{0}, LogLikelihood: math.Inf(-1)}})
	assert.False(t, ok)
	_, _, ok = ProfileInterval(nil, 0, ChiSquare95)
	assert.False(t, ok)
}

func TestWriteCSV(t *testing.T) {
	results := []ComboResult{
		{Params: []float64{0.5, 0.25}, LogLikelihood: -2},
		{Params: []float64{0.5, 0.75}, LogLikelihood: -2 - math.Ln2},
		{Params: []float64{0.5, 1}, LogLikelihood: math.Inf(-1)},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []string{"p", "psi"}, results))

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"p", "psi", "log_likelihood", "relative_likelihood"}, rows[0])
	assert.Equal(t, []string{"0.500000", "0.250000", "-2.000000", "1"}, rows[1])
	assert.Equal(t, "0.5", rows[2][3])
	assert.Equal(t, "0", rows[3][3])

	err = WriteCSV(&buf, []string{"p"}, results)
	assert.Error(t, err)
}

func TestRelativeLikelihood(t *testing.T) {
	assert.Equal(t, []float64{0, 0}, RelativeLikelihood([]float64{math.Inf(-1), math.Inf(-1)}))
	assert.Empty(t, RelativeLikelihood(nil))
}
