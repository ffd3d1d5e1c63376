package sweep

import (
	"math"
	"sort"
)

// ChiSquare95 is half the 95% chi-square(1) quantile, the log-likelihood drop
// that bounds a profile-likelihood interval.
const ChiSquare95 = 1.920729410347062

// RankResults sorts results by log-likelihood (highest first). Ties keep
// their grid order. The input is not modified.
func RankResults(results []ComboResult) []ComboResult {
	ranked := append([]ComboResult(nil), results...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].LogLikelihood > ranked[j].LogLikelihood
	})
	return ranked
}

// Best returns the highest log-likelihood result. ok is false when results
// is empty or every point is impossible.
func Best(results []ComboResult) (best ComboResult, ok bool) {
	for _, r := range results {
		if math.IsInf(r.LogLikelihood, -1) {
			continue
		}
		if !ok || r.LogLikelihood > best.LogLikelihood {
			best, ok = r, true
		}
	}
	return best, ok
}

// ProfileInterval returns the smallest and largest value of parameter index
// among profile points within drop of the best log-likelihood.
func ProfileInterval(results []ComboResult, index int, drop float64) (lo, hi float64, ok bool) {
	best, ok := Best(results)
	if !ok {
		return 0, 0, false
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, r := range results {
		if best.LogLikelihood-r.LogLikelihood > drop {
			continue
		}
		v := r.Params[index]
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi, true
}
