package sweep

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// ParseCSVFloat64s parses a comma-separated list of float64 values.
// Returns nil, nil for empty input strings.
func ParseCSVFloat64s(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// RelativeLikelihood returns exp(ll - max(ll)) for each entry, so the best
// grid point scores 1. All-impossible input yields all zeros.
func RelativeLikelihood(ll []float64) []float64 {
	out := make([]float64, len(ll))
	if len(ll) == 0 {
		return out
	}
	best := floats.Max(ll)
	if math.IsInf(best, -1) {
		return out
	}
	for i, v := range ll {
		out[i] = math.Exp(v - best)
	}
	return out
}
