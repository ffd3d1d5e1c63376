package sampler

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Chain holds the kept draws of one Markov chain.
type Chain struct {
	ID         int
	Draws      [][]float64 // Draws[k][j] is parameter j at kept draw k
	LogDensity []float64   // target log density at each kept draw

	// Accepted and Proposed count post-burn-in moves per parameter.
	Accepted []int
	Proposed []int
	// Impossible counts proposals with zero density, burn-in included.
	Impossible int
	// Scales are the proposal scales after adaptation.
	Scales []float64
}

// AcceptanceRate returns the post-burn-in acceptance rate of parameter j.
func (c Chain) AcceptanceRate(j int) float64 {
	if c.Proposed[j] == 0 {
		return 0
	}
	return float64(c.Accepted[j]) / float64(c.Proposed[j])
}

// Series returns the kept draws of parameter j in order.
func (c Chain) Series(j int) []float64 {
	out := make([]float64, len(c.Draws))
	for k, d := range c.Draws {
		out[k] = d[j]
	}
	return out
}

// Result is the output of Run.
type Result struct {
	Names  []string
	Chains []Chain
}

// Index returns the position of the named parameter, or -1.
func (r *Result) Index(name string) int {
	for j, n := range r.Names {
		if n == name {
			return j
		}
	}
	return -1
}

// Pooled returns the draws of parameter j from every chain, concatenated.
func (r *Result) Pooled(j int) []float64 {
	var out []float64
	for _, c := range r.Chains {
		out = append(out, c.Series(j)...)
	}
	return out
}

// Summary describes the marginal posterior of one parameter.
type Summary struct {
	Name           string  `json:"name"`
	Mean           float64 `json:"mean"`
	SD             float64 `json:"sd"`
	Q025           float64 `json:"q025"`
	Median         float64 `json:"median"`
	Q975           float64 `json:"q975"`
	RHat           float64 `json:"rhat"`
	AcceptanceRate float64 `json:"acceptance_rate"`
	Draws          int     `json:"draws"`
}

// Summarize returns one Summary per parameter, in parameter order.
func (r *Result) Summarize() []Summary {
	out := make([]Summary, len(r.Names))
	for j, name := range r.Names {
		pooled := r.Pooled(j)
		s := Summary{Name: name, Draws: len(pooled), RHat: r.RHat(j)}
		if len(pooled) > 0 {
			s.Mean, s.SD = stat.MeanStdDev(pooled, nil)
			sorted := append([]float64(nil), pooled...)
			sort.Float64s(sorted)
			s.Q025 = stat.Quantile(0.025, stat.Empirical, sorted, nil)
			s.Median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
			s.Q975 = stat.Quantile(0.975, stat.Empirical, sorted, nil)
		}
		var rate float64
		for _, c := range r.Chains {
			rate += c.AcceptanceRate(j)
		}
		if len(r.Chains) > 0 {
			s.AcceptanceRate = rate / float64(len(r.Chains))
		}
		out[j] = s
	}
	return out
}

// RHat returns the Gelman-Rubin potential scale reduction factor of
// parameter j. It is NaN with fewer than two chains or two draws per chain,
// or when every chain is constant.
func (r *Result) RHat(j int) float64 {
	m := len(r.Chains)
	if m < 2 {
		return math.NaN()
	}
	n := len(r.Chains[0].Draws)
	for _, c := range r.Chains {
		if len(c.Draws) != n {
			return math.NaN()
		}
	}
	if n < 2 {
		return math.NaN()
	}

	means := make([]float64, m)
	var w float64
	for i, c := range r.Chains {
		mean, variance := stat.MeanVariance(c.Series(j), nil)
		means[i] = mean
		w += variance
	}
	w /= float64(m)
	if w == 0 {
		return math.NaN()
	}
	b := float64(n) * stat.Variance(means, nil)
	varPlus := float64(n-1)/float64(n)*w + b/float64(n)
	return math.Sqrt(varPlus / w)
}
