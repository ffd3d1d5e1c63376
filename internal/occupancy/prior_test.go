package occupancy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBetaLogDensity(t *testing.T) {
	testCases := []struct {
		name  string
		prior Beta
		x     float64
		want  float64
	}{
		{"uniform_interior", Uniform, 0.3, 0},
		{"uniform_lower_edge", Uniform, 0, 0},
		{"uniform_upper_edge", Uniform, 1, 0},
		{"beta22_mid", Beta{2, 2}, 0.5, math.Log(1.5)},
		{"beta22_lower_edge", Beta{2, 2}, 0, math.Inf(-1)},
		{"beta21_upper_edge", Beta{2, 1}, 1, math.Log(2)},
		{"below_support", Uniform, -0.1, math.Inf(-1)},
		{"above_support", Uniform, 1.1, math.Inf(-1)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.prior.LogDensity(tc.x)
			if math.IsInf(tc.want, 0) {
				assert.Equal(t, tc.want, got)
				return
			}
			assert.InDelta(t, tc.want, got, 1e-12)
		})
	}
}

func TestBetaValidate(t *testing.T) {
	assert.NoError(t, Uniform.Validate())
	assert.ErrorIs(t, Beta{0, 1}.Validate(), ErrInvalidParameter)
	assert.ErrorIs(t, Beta{1, math.NaN()}.Validate(), ErrInvalidParameter)
	assert.ErrorIs(t, Beta{1, math.Inf(1)}.Validate(), ErrInvalidParameter)
}

func TestPosteriors(t *testing.T) {
	single := SingleSeasonPosterior{
		Data:   SingleSeason{N: 1, K: 3, Y: []int{0}},
		Priors: UniformPriors(),
	}
	assert.Equal(t, []string{"p", "psi"}, single.Names())
	got, err := single.LogDensity([]float64{0.5, 0.5})
	require.NoError(t, err)
	assert.InDelta(t, math.Log(0.5625), got, 1e-12)

	_, err = single.LogDensity([]float64{0.5})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = single.LogDensity([]float64{0.5, 1.5})
	assert.ErrorIs(t, err, ErrInvalidParameter)

	dynamic := DynamicPosterior{
		Data:   MultiSeason{N: 1, T: 2, R: 2, Y: [][][]int{{{1, 0}, {0, 0}}}},
		Priors: DynamicPriors{Psi1: Uniform, Phi: Uniform, Gamma: Uniform, P: Beta{2, 2}},
	}
	assert.Len(t, dynamic.Names(), 4)
	got, err = dynamic.LogDensity([]float64{0.5, 0.4, 0.2, 0.5})
	require.NoError(t, err)
	assert.InDelta(t, math.Log(0.125)+math.Log(0.775)+math.Log(1.5), got, 1e-12)
}
