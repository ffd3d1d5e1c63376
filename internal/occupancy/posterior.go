package occupancy

import "fmt"

// SingleSeasonPosterior is the unnormalised single-season log posterior over
// θ = (p, psi).
type SingleSeasonPosterior struct {
	Data   SingleSeason
	Priors Priors
}

// Names returns the parameter order used by LogDensity.
func (sp SingleSeasonPosterior) Names() []string { return []string{"p", "psi"} }

// LogDensity returns log-likelihood plus log prior at θ = (p, psi).
func (sp SingleSeasonPosterior) LogDensity(theta []float64) (float64, error) {
	if len(theta) != 2 {
		return 0, fmt.Errorf("%w: expected 2 parameters, got %d", ErrShapeMismatch, len(theta))
	}
	params := Params{P: theta[0], Psi: theta[1]}
	ll, err := sp.Data.LogLikelihood(params)
	if err != nil {
		return 0, err
	}
	return ll + sp.Priors.LogDensity(params), nil
}

// DynamicPosterior is the unnormalised dynamic-model log posterior over
// θ = (psi1, phi, gamma, p).
type DynamicPosterior struct {
	Data   MultiSeason
	Priors DynamicPriors
}

// Names returns the parameter order used by LogDensity.
func (dp DynamicPosterior) Names() []string { return []string{"psi1", "phi", "gamma", "p"} }

// LogDensity returns log-likelihood plus log prior at θ.
func (dp DynamicPosterior) LogDensity(theta []float64) (float64, error) {
	if len(theta) != 4 {
		return 0, fmt.Errorf("%w: expected 4 parameters, got %d", ErrShapeMismatch, len(theta))
	}
	params := DynamicParams{Psi1: theta[0], Phi: theta[1], Gamma: theta[2], P: theta[3]}
	ll, err := dp.Data.LogLikelihood(params)
	if err != nil {
		return 0, err
	}
	return ll + dp.Priors.LogDensity(params), nil
}
