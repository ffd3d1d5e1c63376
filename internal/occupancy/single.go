// Package occupancy evaluates occupancy-model likelihoods with the latent
// occupancy state of every unit summed out in log space.
//
// Two models are provided. The single-season model observes y_i detections
// out of K repeat surveys at each of N units. The dynamic model observes a
// 0/1 detection array over N units, T seasons and R surveys per season, with
// occupancy evolving through persistence (φ) and colonization (γ).
//
// Surveys are conditionally independent given occupancy and there are no
// false-positive detections: an unoccupied unit never yields a detection.
//
// A log-likelihood of -Inf is a valid result meaning the data are impossible
// under the parameters. Errors are reserved for malformed input.
package occupancy

import (
	"fmt"
	"math"
)

// SingleSeason holds detection counts for N units surveyed K times each.
type SingleSeason struct {
	N int   `json:"n"`
	K int   `json:"k"`
	Y []int `json:"y"`
}

// Params are the single-season model parameters.
type Params struct {
	P   float64 `json:"p"`
	Psi float64 `json:"psi"`
}

// Validate checks the declared sizes against Y and the range of every count.
func (d SingleSeason) Validate() error {
	if d.N < 1 {
		return fmt.Errorf("%w: N must be at least 1, got %d", ErrShapeMismatch, d.N)
	}
	if d.K < 1 {
		return fmt.Errorf("%w: K must be at least 1, got %d", ErrShapeMismatch, d.K)
	}
	if len(d.Y) != d.N {
		return fmt.Errorf("%w: len(y)=%d, N=%d", ErrShapeMismatch, len(d.Y), d.N)
	}
	for i, y := range d.Y {
		if y < 0 || y > d.K {
			return fmt.Errorf("%w: y[%d]=%d outside [0,%d]", ErrInvalidObservation, i, y, d.K)
		}
	}
	return nil
}

// Validate checks that both probabilities lie in [0,1].
func (p Params) Validate() error {
	if err := checkProbability("p", p.P); err != nil {
		return err
	}
	return checkProbability("psi", p.Psi)
}

// Evaluate returns the single-season log posterior density under uniform
// priors on p and psi, which is the marginal log-likelihood of y.
func Evaluate(n, k int, y []int, p, psi float64) (float64, error) {
	d := SingleSeason{N: n, K: k, Y: y}
	params := Params{P: p, Psi: psi}
	ll, err := d.LogLikelihood(params)
	if err != nil {
		return 0, err
	}
	return ll + UniformPriors().LogDensity(params), nil
}

// LogLikelihood returns Σ_i log P(y_i | p, ψ) with z_i summed out.
func (d SingleSeason) LogLikelihood(params Params) (float64, error) {
	if err := d.Validate(); err != nil {
		return 0, err
	}
	if err := params.Validate(); err != nil {
		return 0, err
	}
	logPsi := math.Log(params.Psi)
	total := 0.0
	for _, y := range d.Y {
		total += unitLogLikelihood(y, d.K, params.P, params.Psi, logPsi)
	}
	return total, nil
}

// UnitLogLikelihoods returns the per-unit marginal log-likelihood terms.
func (d SingleSeason) UnitLogLikelihoods(params Params) ([]float64, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	logPsi := math.Log(params.Psi)
	out := make([]float64, d.N)
	for i, y := range d.Y {
		out[i] = unitLogLikelihood(y, d.K, params.P, params.Psi, logPsi)
	}
	return out, nil
}

// LogLikelihoodVarying is LogLikelihood with unit-specific detection and
// occupancy probabilities, e.g. from a covariate model.
func (d SingleSeason) LogLikelihoodVarying(p, psi []float64) (float64, error) {
	if err := d.Validate(); err != nil {
		return 0, err
	}
	if len(p) != d.N || len(psi) != d.N {
		return 0, fmt.Errorf("%w: len(p)=%d, len(psi)=%d, N=%d", ErrShapeMismatch, len(p), len(psi), d.N)
	}
	total := 0.0
	for i, y := range d.Y {
		if err := checkProbability(fmt.Sprintf("p[%d]", i), p[i]); err != nil {
			return 0, err
		}
		if err := checkProbability(fmt.Sprintf("psi[%d]", i), psi[i]); err != nil {
			return 0, err
		}
		total += unitLogLikelihood(y, d.K, p[i], psi[i], math.Log(psi[i]))
	}
	return total, nil
}

// ConditionalOccupancy returns P(z_i = 1 | y_i) for every unit. Units with a
// detection are occupied with certainty.
func (d SingleSeason) ConditionalOccupancy(params Params) ([]float64, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	logPsi := math.Log(params.Psi)
	out := make([]float64, d.N)
	for i, y := range d.Y {
		if y > 0 {
			out[i] = 1
			continue
		}
		logOccupied := logPsi + binomialLogPMF(0, d.K, params.P)
		marginal := marginalize(false, logOccupied, params.Psi)
		if math.IsInf(marginal, -1) {
			continue
		}
		out[i] = math.Exp(logOccupied - marginal)
	}
	return out, nil
}

func unitLogLikelihood(y, k int, p, psi, logPsi float64) float64 {
	return marginalize(y > 0, logPsi+binomialLogPMF(y, k, p), psi)
}
