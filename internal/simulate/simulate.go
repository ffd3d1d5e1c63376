// Package simulate generates occupancy datasets from known parameters, with
// the latent occupancy states kept alongside for checking recovery.
package simulate

import (
	"fmt"
	"math/rand/v2"

	"github.com/banshee-data/occupancy/internal/occupancy"
)

// SingleSeasonResult is a simulated single-season dataset.
type SingleSeasonResult struct {
	Data occupancy.SingleSeason
	Z    []bool // true occupancy per unit
}

// DynamicResult is a simulated multi-season dataset.
type DynamicResult struct {
	Data occupancy.MultiSeason
	Z    [][]bool // Z[i][t]
}

// NewRand returns a PCG-backed generator for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// SingleSeason draws z_i ~ Bernoulli(psi) and y_i ~ Binomial(k, z_i·p).
func SingleSeason(r *rand.Rand, n, k int, params occupancy.Params) (SingleSeasonResult, error) {
	if err := params.Validate(); err != nil {
		return SingleSeasonResult{}, err
	}
	if n < 1 || k < 1 {
		return SingleSeasonResult{}, fmt.Errorf("%w: n=%d k=%d", occupancy.ErrShapeMismatch, n, k)
	}
	res := SingleSeasonResult{
		Data: occupancy.SingleSeason{N: n, K: k, Y: make([]int, n)},
		Z:    make([]bool, n),
	}
	for i := 0; i < n; i++ {
		res.Z[i] = r.Float64() < params.Psi
		if !res.Z[i] {
			continue
		}
		for j := 0; j < k; j++ {
			if r.Float64() < params.P {
				res.Data.Y[i]++
			}
		}
	}
	return res, nil
}

// Dynamic draws occupancy forward through t seasons and reps surveys per
// season. z[i,1] ~ Bernoulli(psi1); an occupied unit persists with
// probability phi and an empty one is colonized with probability gamma.
func Dynamic(r *rand.Rand, n, t, reps int, params occupancy.DynamicParams) (DynamicResult, error) {
	if err := params.Validate(); err != nil {
		return DynamicResult{}, err
	}
	if n < 1 || t < 1 || reps < 1 {
		return DynamicResult{}, fmt.Errorf("%w: n=%d t=%d reps=%d", occupancy.ErrShapeMismatch, n, t, reps)
	}
	res := DynamicResult{
		Data: occupancy.MultiSeason{N: n, T: t, R: reps, Y: make([][][]int, n)},
		Z:    make([][]bool, n),
	}
	for i := 0; i < n; i++ {
		res.Z[i] = make([]bool, t)
		res.Data.Y[i] = make([][]int, t)
		for s := 0; s < t; s++ {
			switch {
			case s == 0:
				res.Z[i][s] = r.Float64() < params.Psi1
			case res.Z[i][s-1]:
				res.Z[i][s] = r.Float64() < params.Phi
			default:
				res.Z[i][s] = r.Float64() < params.Gamma
			}
			surveys := make([]int, reps)
			if res.Z[i][s] {
				for j := range surveys {
					if r.Float64() < params.P {
						surveys[j] = 1
					}
				}
			}
			res.Data.Y[i][s] = surveys
		}
	}
	return res, nil
}

// OccupiedFraction returns the share of units occupied in each season.
func (d DynamicResult) OccupiedFraction() []float64 {
	if len(d.Z) == 0 {
		return nil
	}
	out := make([]float64, len(d.Z[0]))
	for _, unit := range d.Z {
		for s, z := range unit {
			if z {
				out[s]++
			}
		}
	}
	for s := range out {
		out[s] /= float64(len(d.Z))
	}
	return out
}
