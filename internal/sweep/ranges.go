// Package sweep evaluates occupancy log-likelihoods over parameter grids.
// It parses range specifications, expands them into grid points, evaluates
// each point concurrently and ranks or profiles the results.
package sweep

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// maxValues bounds the number of values a single range may expand to.
const maxValues = 10000

// maxCombos bounds the size of a cartesian product of ranges.
const maxCombos = 100000

// RangeSpec defines a floating-point parameter range for sweeping.
type RangeSpec struct {
	Min  float64
	Max  float64
	Step float64
}

// ParseRangeSpec parses a "min:max:step" string into a RangeSpec.
// Returns an error if the format is invalid or values cannot be parsed.
func ParseRangeSpec(s string) (RangeSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return RangeSpec{}, fmt.Errorf("invalid range format %q: expected min:max:step", s)
	}

	min, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return RangeSpec{}, fmt.Errorf("invalid min value %q: %w", parts[0], err)
	}

	max, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return RangeSpec{}, fmt.Errorf("invalid max value %q: %w", parts[1], err)
	}

	step, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return RangeSpec{}, fmt.Errorf("invalid step value %q: %w", parts[2], err)
	}

	if !(step > 0) {
		return RangeSpec{}, fmt.Errorf("step must be positive, got %f", step)
	}

	return RangeSpec{Min: min, Max: max, Step: step}, nil
}

// GenerateRange generates values from min to max (inclusive) stepping by
// step. Returns nil if min > max, step is not positive, or the range would
// exceed maxValues.
func GenerateRange(min, max, step float64) []float64 {
	if !(step > 0) || min > max {
		return nil
	}

	count := math.Floor((max-min)/step+1e-9) + 1
	if count > maxValues {
		return nil
	}

	result := make([]float64, 0, int(count))
	for i := 0; i < int(count); i++ {
		// Index-based with rounding so 0.1 steps land on 0.3, not 0.30000000000000004.
		v := math.Round((min+float64(i)*step)*1e9) / 1e9
		if v > max {
			break
		}
		result = append(result, v)
	}
	return result
}

// ParseParamList parses a comma-separated list of floats or a range specification.
// If the string contains a colon, it is treated as "min:max:step" range spec.
// Otherwise, it is parsed as comma-separated values.
func ParseParamList(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}

	if strings.Contains(s, ":") {
		spec, err := ParseRangeSpec(s)
		if err != nil {
			return nil, err
		}
		values := GenerateRange(spec.Min, spec.Max, spec.Step)
		if values == nil {
			return nil, fmt.Errorf("range %q is empty or exceeds %d values", s, maxValues)
		}
		return values, nil
	}

	return ParseCSVFloat64s(s)
}

// ExpandRanges generates the cartesian product of the given value lists.
// The last list varies fastest. Returns an error if the product would exceed
// maxCombos or any list is empty.
func ExpandRanges(values ...[]float64) ([][]float64, error) {
	if len(values) == 0 {
		return nil, nil
	}

	total := int64(1)
	for i, v := range values {
		if len(v) == 0 {
			return nil, fmt.Errorf("dimension %d has no values", i)
		}
		total *= int64(len(v))
		if total > maxCombos {
			return nil, fmt.Errorf("parameter combinations would exceed safe limit of %d", maxCombos)
		}
	}

	result := make([][]float64, total)
	for i := range result {
		result[i] = make([]float64, len(values))
	}

	repeat := int64(1)
	for dim := len(values) - 1; dim >= 0; dim-- {
		dimValues := values[dim]
		cycle := int64(len(dimValues))
		for i := int64(0); i < total; i++ {
			result[i][dim] = dimValues[(i/repeat)%cycle]
		}
		repeat *= cycle
	}

	return result, nil
}
