package occupancy

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// logSumExp2 returns log(exp(a) + exp(b)) without leaving log space.
// Either argument may be -Inf.
func logSumExp2(a, b float64) float64 {
	pair := [2]float64{a, b}
	return floats.LogSumExp(pair[:])
}

// binomialLogPMF is the Binomial(k, p) log mass at y. The p=0 and p=1
// endpoints are handled here because 0*log(0) in the closed form is NaN.
func binomialLogPMF(y, k int, p float64) float64 {
	if y < 0 || y > k {
		return math.Inf(-1)
	}
	switch p {
	case 0:
		if y == 0 {
			return 0
		}
		return math.Inf(-1)
	case 1:
		if y == k {
			return 0
		}
		return math.Inf(-1)
	}
	return distuv.Binomial{N: float64(k), P: p}.LogProb(float64(y))
}

// bernoulliLogPMF is the Bernoulli(p) log mass at y ∈ {0,1}.
func bernoulliLogPMF(y int, p float64) float64 {
	return distuv.Bernoulli{P: p}.LogProb(float64(y))
}

// marginalize sums the latent occupancy state out of one unit.
// logOccupied is log(ψ) + log P(data | z=1). When anything was detected the
// unoccupied branch has zero mass and is skipped.
func marginalize(detected bool, logOccupied, psi float64) float64 {
	if detected {
		return logOccupied
	}
	return logSumExp2(logOccupied, math.Log1p(-psi))
}
