package occupancy

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// MultiSeason holds a detection array Y[i][t][r] over N units, T seasons and
// R repeat surveys per season.
type MultiSeason struct {
	N int       `json:"n"`
	T int       `json:"t"`
	R int       `json:"r"`
	Y [][][]int `json:"y"`
}

// DynamicParams are the dynamic model parameters: initial occupancy,
// persistence, colonization and detection.
type DynamicParams struct {
	Psi1  float64 `json:"psi1"`
	Phi   float64 `json:"phi"`
	Gamma float64 `json:"gamma"`
	P     float64 `json:"p"`
}

// Validate checks that every probability lies in [0,1].
func (p DynamicParams) Validate() error {
	for _, c := range []struct {
		name string
		v    float64
	}{
		{"psi1", p.Psi1},
		{"phi", p.Phi},
		{"gamma", p.Gamma},
		{"p", p.P},
	} {
		if err := checkProbability(c.name, c.v); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the array against the declared N, T and R, and that every
// entry is 0 or 1.
func (d MultiSeason) Validate() error {
	if d.N < 1 || d.T < 1 || d.R < 1 {
		return fmt.Errorf("%w: N, T and R must be at least 1, got N=%d T=%d R=%d", ErrShapeMismatch, d.N, d.T, d.R)
	}
	if len(d.Y) != d.N {
		return fmt.Errorf("%w: len(y)=%d, N=%d", ErrShapeMismatch, len(d.Y), d.N)
	}
	for i, unit := range d.Y {
		if len(unit) != d.T {
			return fmt.Errorf("%w: len(y[%d])=%d, T=%d", ErrShapeMismatch, i, len(unit), d.T)
		}
		for t, surveys := range unit {
			if len(surveys) != d.R {
				return fmt.Errorf("%w: len(y[%d][%d])=%d, R=%d", ErrShapeMismatch, i, t, len(surveys), d.R)
			}
			for r, v := range surveys {
				if v != 0 && v != 1 {
					return fmt.Errorf("%w: y[%d][%d][%d]=%d is not 0 or 1", ErrInvalidObservation, i, t, r, v)
				}
			}
		}
	}
	return nil
}

// OccupancyTrajectory returns ψ[1..T] (zero-indexed) from
//
//	ψ[1] = ψ1
//	ψ[t] = ψ[t-1]·φ + (1-ψ[t-1])·γ
//
// Each step is a convex combination of φ and γ, so values stay in [0,1];
// the clamp only absorbs round-off.
func OccupancyTrajectory(psi1, phi, gamma float64, t int) []float64 {
	if t < 1 {
		return nil
	}
	psi := make([]float64, t)
	psi[0] = psi1
	for s := 1; s < t; s++ {
		prev := psi[s-1]
		psi[s] = math.Min(1, math.Max(0, prev*phi+(1-prev)*gamma))
	}
	return psi
}

// EquilibriumOccupancy is the fixed point of the occupancy recursion,
// γ / (γ + 1 - φ). It is NaN when φ=1 and γ=0, where every ψ1 is a fixed point.
func EquilibriumOccupancy(phi, gamma float64) float64 {
	return gamma / (gamma + 1 - phi)
}

// Turnover returns the expected proportion of occupied units in season t+1
// that were colonized rather than persisting, for every step of psi.
func Turnover(psi []float64, phi, gamma float64) []float64 {
	if len(psi) < 2 {
		return nil
	}
	out := make([]float64, len(psi)-1)
	for t := 0; t < len(psi)-1; t++ {
		colonized := (1 - psi[t]) * gamma
		occupied := colonized + psi[t]*phi
		if occupied > 0 {
			out[t] = colonized / occupied
		}
	}
	return out
}

// EvaluateDynamic returns the dynamic-model log-likelihood summed over all
// unit-season cells.
func EvaluateDynamic(n, t int, y [][][]int, phi, gamma, psi1, p float64) (float64, error) {
	d := MultiSeason{N: n, T: t, Y: y}
	if len(y) > 0 && len(y[0]) > 0 {
		d.R = len(y[0][0])
	}
	return d.LogLikelihood(DynamicParams{Psi1: psi1, Phi: phi, Gamma: gamma, P: p})
}

// LogLikelihood returns the dynamic-model log-likelihood.
func (d MultiSeason) LogLikelihood(params DynamicParams) (float64, error) {
	cells, err := d.CellLogLikelihoods(params)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, unit := range cells {
		total += floats.Sum(unit)
	}
	return total, nil
}

// CellLogLikelihoods returns the marginal log-likelihood of every (i,t) cell.
func (d MultiSeason) CellLogLikelihoods(params DynamicParams) ([][]float64, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	psi := OccupancyTrajectory(params.Psi1, params.Phi, params.Gamma, d.T)
	out := make([][]float64, d.N)
	for i := range d.Y {
		out[i] = d.unitCells(i, psi, params.P)
	}
	return out, nil
}

// EvaluateDynamicParallel computes LogLikelihood with units spread over at
// most workers goroutines. Partial sums are combined in unit order so the
// result does not depend on scheduling.
func EvaluateDynamicParallel(ctx context.Context, d MultiSeason, params DynamicParams, workers int) (float64, error) {
	if err := d.Validate(); err != nil {
		return 0, err
	}
	if err := params.Validate(); err != nil {
		return 0, err
	}
	if workers < 1 {
		workers = 1
	}
	psi := OccupancyTrajectory(params.Psi1, params.Phi, params.Gamma, d.T)
	partial := make([]float64, d.N)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range d.Y {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			partial[i] = floats.Sum(d.unitCells(i, psi, params.P))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return floats.Sum(partial), nil
}

func (d MultiSeason) unitCells(i int, psi []float64, p float64) []float64 {
	cells := make([]float64, d.T)
	for t, surveys := range d.Y[i] {
		detected := false
		logDetect := 0.0
		for _, v := range surveys {
			logDetect += bernoulliLogPMF(v, p)
			if v == 1 {
				detected = true
			}
		}
		cells[t] = marginalize(detected, math.Log(psi[t])+logDetect, psi[t])
	}
	return cells
}
