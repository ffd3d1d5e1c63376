package occupancy

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Beta is a Beta(Alpha, Beta) prior on a probability.
type Beta struct {
	Alpha float64 `json:"alpha" yaml:"alpha"`
	Beta  float64 `json:"beta" yaml:"beta"`
}

// Uniform is the Beta(1,1) prior.
var Uniform = Beta{Alpha: 1, Beta: 1}

// Validate reports whether both shape parameters are positive.
func (b Beta) Validate() error {
	if !(b.Alpha > 0) || !(b.Beta > 0) || math.IsInf(b.Alpha, 0) || math.IsInf(b.Beta, 0) {
		return fmt.Errorf("%w: beta prior shapes must be positive and finite, got (%g, %g)", ErrInvalidParameter, b.Alpha, b.Beta)
	}
	return nil
}

// LogDensity returns the log prior density at x. Outside [0,1] it is -Inf.
// At the endpoints a unit shape contributes nothing, so Beta(1,1) is 0
// everywhere on the closed interval.
func (b Beta) LogDensity(x float64) float64 {
	if math.IsNaN(x) || x < 0 || x > 1 {
		return math.Inf(-1)
	}
	if x > 0 && x < 1 {
		return distuv.Beta{Alpha: b.Alpha, Beta: b.Beta}.LogProb(x)
	}
	lnorm := lgamma(b.Alpha+b.Beta) - lgamma(b.Alpha) - lgamma(b.Beta)
	// Exactly one of log(x), log(1-x) is -Inf here.
	if x == 0 {
		return lnorm + endpointTerm(b.Alpha)
	}
	return lnorm + endpointTerm(b.Beta)
}

// endpointTerm is (shape-1)*log(0) with 0*log(0) taken as 0.
func endpointTerm(shape float64) float64 {
	switch {
	case shape == 1:
		return 0
	case shape > 1:
		return math.Inf(-1)
	default:
		return math.Inf(1)
	}
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

// Priors are the single-season priors.
type Priors struct {
	P   Beta `json:"p" yaml:"p"`
	Psi Beta `json:"psi" yaml:"psi"`
}

// UniformPriors returns Beta(1,1) priors for p and psi.
func UniformPriors() Priors {
	return Priors{P: Uniform, Psi: Uniform}
}

// LogDensity returns log prior(p) + log prior(psi).
func (pr Priors) LogDensity(params Params) float64 {
	return pr.P.LogDensity(params.P) + pr.Psi.LogDensity(params.Psi)
}

// DynamicPriors are the dynamic-model priors.
type DynamicPriors struct {
	Psi1  Beta `json:"psi1" yaml:"psi1"`
	Phi   Beta `json:"phi" yaml:"phi"`
	Gamma Beta `json:"gamma" yaml:"gamma"`
	P     Beta `json:"p" yaml:"p"`
}

// UniformDynamicPriors returns Beta(1,1) priors for every dynamic parameter.
func UniformDynamicPriors() DynamicPriors {
	return DynamicPriors{Psi1: Uniform, Phi: Uniform, Gamma: Uniform, P: Uniform}
}

// LogDensity returns the summed log prior density.
func (pr DynamicPriors) LogDensity(params DynamicParams) float64 {
	return pr.Psi1.LogDensity(params.Psi1) +
		pr.Phi.LogDensity(params.Phi) +
		pr.Gamma.LogDensity(params.Gamma) +
		pr.P.LogDensity(params.P)
}
