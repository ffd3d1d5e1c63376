package sweep

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/occupancy/internal/monitoring"
	"github.com/banshee-data/occupancy/internal/occupancy"
)

// Evaluator computes a log-likelihood for one parameter vector.
type Evaluator interface {
	Names() []string
	LogLikelihood(params []float64) (float64, error)
}

// ComboResult is one evaluated grid point.
type ComboResult struct {
	Params        []float64 `json:"params"`
	LogLikelihood float64   `json:"log_likelihood"`
}

// SingleSeason evaluates the single-season model over (p, psi).
type SingleSeason struct {
	Data occupancy.SingleSeason
}

// Names implements Evaluator.
func (SingleSeason) Names() []string { return []string{"p", "psi"} }

// LogLikelihood implements Evaluator.
func (s SingleSeason) LogLikelihood(params []float64) (float64, error) {
	if len(params) != 2 {
		return 0, fmt.Errorf("%w: want 2 parameters, got %d", occupancy.ErrShapeMismatch, len(params))
	}
	return s.Data.LogLikelihood(occupancy.Params{P: params[0], Psi: params[1]})
}

// Dynamic evaluates the dynamic model over (psi1, phi, gamma, p).
type Dynamic struct {
	Data occupancy.MultiSeason
}

// Names implements Evaluator.
func (Dynamic) Names() []string { return []string{"psi1", "phi", "gamma", "p"} }

// LogLikelihood implements Evaluator.
func (d Dynamic) LogLikelihood(params []float64) (float64, error) {
	if len(params) != 4 {
		return 0, fmt.Errorf("%w: want 4 parameters, got %d", occupancy.ErrShapeMismatch, len(params))
	}
	return d.Data.LogLikelihood(occupancy.DynamicParams{
		Psi1: params[0], Phi: params[1], Gamma: params[2], P: params[3],
	})
}

// Run evaluates every combo with at most workers concurrent evaluations
// (0 means GOMAXPROCS). Results keep the order of combos. A combo with a
// probability outside [0,1] scores -Inf and ranks last; any other
// evaluation error stops the run.
func Run(ctx context.Context, eval Evaluator, combos [][]float64, workers int) ([]ComboResult, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	dim := len(eval.Names())
	for i, c := range combos {
		if len(c) != dim {
			return nil, fmt.Errorf("%w: combo %d has %d values, want %d", occupancy.ErrShapeMismatch, i, len(c), dim)
		}
	}

	results := make([]ComboResult, len(combos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, combo := range combos {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ll, err := eval.LogLikelihood(combo)
			if errors.Is(err, occupancy.ErrInvalidParameter) {
				monitoring.Debugf("sweep: combo %v out of range: %v", combo, err)
				ll, err = math.Inf(-1), nil
			}
			if err != nil {
				return fmt.Errorf("combo %v: %w", combo, err)
			}
			results[i] = ComboResult{Params: append([]float64(nil), combo...), LogLikelihood: ll}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	monitoring.Debugf("sweep: evaluated %d combos with %d workers", len(combos), workers)
	return results, nil
}

// Profile varies parameter index over values with the others held at base.
func Profile(ctx context.Context, eval Evaluator, base []float64, index int, values []float64, workers int) ([]ComboResult, error) {
	if err := checkBase(eval, base, index); err != nil {
		return nil, err
	}
	combos := make([][]float64, len(values))
	for i, v := range values {
		combo := append([]float64(nil), base...)
		combo[index] = v
		combos[i] = combo
	}
	return Run(ctx, eval, combos, workers)
}

// Surface evaluates the grid xs × ys over parameters ix and iy with the
// others held at base. ys varies fastest.
func Surface(ctx context.Context, eval Evaluator, base []float64, ix, iy int, xs, ys []float64, workers int) ([]ComboResult, error) {
	if err := checkBase(eval, base, ix); err != nil {
		return nil, err
	}
	if err := checkBase(eval, base, iy); err != nil {
		return nil, err
	}
	if ix == iy {
		return nil, fmt.Errorf("surface needs two distinct parameters, got %d twice", ix)
	}
	pairs, err := ExpandRanges(xs, ys)
	if err != nil {
		return nil, err
	}
	combos := make([][]float64, len(pairs))
	for i, pair := range pairs {
		combo := append([]float64(nil), base...)
		combo[ix] = pair[0]
		combo[iy] = pair[1]
		combos[i] = combo
	}
	return Run(ctx, eval, combos, workers)
}

// Grid evaluates the full cartesian product of one value list per parameter.
func Grid(ctx context.Context, eval Evaluator, values [][]float64, workers int) ([]ComboResult, error) {
	if len(values) != len(eval.Names()) {
		return nil, fmt.Errorf("%w: %d value lists for %d parameters", occupancy.ErrShapeMismatch, len(values), len(eval.Names()))
	}
	combos, err := ExpandRanges(values...)
	if err != nil {
		return nil, err
	}
	return Run(ctx, eval, combos, workers)
}

// ParamIndex returns the position of name in eval's parameters.
func ParamIndex(eval Evaluator, name string) (int, error) {
	for i, n := range eval.Names() {
		if n == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("unknown parameter %q, want one of %v", name, eval.Names())
}

func checkBase(eval Evaluator, base []float64, index int) error {
	dim := len(eval.Names())
	if len(base) != dim {
		return fmt.Errorf("%w: base has %d values, want %d", occupancy.ErrShapeMismatch, len(base), dim)
	}
	if index < 0 || index >= dim {
		return fmt.Errorf("parameter index %d out of range [0,%d)", index, dim)
	}
	return nil
}
