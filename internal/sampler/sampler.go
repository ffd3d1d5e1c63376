// Package sampler draws from posterior distributions over probability
// parameters with random-walk Metropolis on the logit scale.
//
// Burn-in updates one coordinate at a time and tunes each proposal scale.
// The kept draws come from a joint Gaussian random walk run through gonum's
// samplemv.MetropolisHastingser, with the tuned scales on the diagonal.
//
// A proposal whose log density is -Inf, or that the target rejects with
// occupancy.ErrInvalidParameter, is rejected and the chain moves on. A NaN or
// +Inf log density is a defect in the target: it is logged and the chain
// halts with ErrNonFiniteDensity.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/samplemv"

	"github.com/banshee-data/occupancy/internal/monitoring"
	"github.com/banshee-data/occupancy/internal/occupancy"
)

var (
	// ErrNonFiniteDensity indicates the target returned NaN or +Inf.
	ErrNonFiniteDensity = errors.New("non-finite log density")
	// ErrNoValidStart indicates no initial point with finite density was found.
	ErrNoValidStart = errors.New("no initial point with finite log density")
	// ErrInvalidOptions indicates unusable sampler options.
	ErrInvalidOptions = errors.New("invalid sampler options")
)

// Target is an unnormalised log density over parameters in [0,1].
type Target interface {
	// Names returns one name per parameter, fixing the parameter order.
	Names() []string
	LogDensity(theta []float64) (float64, error)
}

const (
	maxIterations     = 1_000_000
	defaultIterations = 2000
	adaptBatch        = 50
	maxStartAttempts  = 100
	// sampleChunk is the number of kept draws per gonum batch. The context
	// is checked between batches.
	sampleChunk = 256
)

var (
	minProb = math.Nextafter(0, 1)
	maxProb = math.Nextafter(1, 0)
)

// Options configures a sampling run.
type Options struct {
	Chains     int
	Iterations int // kept iterations per chain before thinning
	BurnIn     int
	Thin       int
	Seed       uint64

	// ProposalScale is the initial random-walk standard deviation on the
	// logit scale, shared by every parameter.
	ProposalScale float64
	// Adapt tunes each parameter's scale during burn-in towards TargetAcceptance.
	Adapt            bool
	TargetAcceptance float64

	// Workers bounds how many chains run at once. Zero means all of them.
	Workers int

	// Init optionally fixes the starting point of every chain. Values must
	// lie strictly inside (0,1).
	Init []float64
}

// DefaultOptions returns four chains of 2000 iterations after 1000 burn-in.
func DefaultOptions() Options {
	return Options{
		Chains:           4,
		Iterations:       defaultIterations,
		BurnIn:           1000,
		Thin:             1,
		Seed:             1,
		ProposalScale:    0.5,
		Adapt:            true,
		TargetAcceptance: 0.44,
	}
}

// Validate checks the options that cannot be clamped.
func (o Options) Validate(dim int) error {
	if o.Chains < 1 {
		return fmt.Errorf("%w: chains must be at least 1, got %d", ErrInvalidOptions, o.Chains)
	}
	if o.BurnIn < 0 {
		return fmt.Errorf("%w: burn-in must be non-negative, got %d", ErrInvalidOptions, o.BurnIn)
	}
	if !(o.ProposalScale > 0) || math.IsInf(o.ProposalScale, 0) {
		return fmt.Errorf("%w: proposal scale must be positive, got %g", ErrInvalidOptions, o.ProposalScale)
	}
	if o.Adapt && (!(o.TargetAcceptance > 0) || o.TargetAcceptance >= 1) {
		return fmt.Errorf("%w: target acceptance must be in (0,1), got %g", ErrInvalidOptions, o.TargetAcceptance)
	}
	if o.Init != nil {
		if len(o.Init) != dim {
			return fmt.Errorf("%w: init has %d values, target has %d parameters", ErrInvalidOptions, len(o.Init), dim)
		}
		for j, v := range o.Init {
			if !(v > 0 && v < 1) {
				return fmt.Errorf("%w: init[%d]=%g must be in (0,1)", ErrInvalidOptions, j, v)
			}
		}
	}
	return nil
}

// Run samples every chain and returns the kept draws. Chains run
// concurrently, each with its own PCG stream derived from Seed.
func Run(ctx context.Context, target Target, opts Options) (*Result, error) {
	names := target.Names()
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: target has no parameters", ErrInvalidOptions)
	}
	if err := opts.Validate(len(names)); err != nil {
		return nil, err
	}
	opts.Iterations = clampIterations(opts.Iterations)
	if opts.Thin < 1 {
		opts.Thin = 1
	}
	workers := opts.Workers
	if workers < 1 || workers > opts.Chains {
		workers = opts.Chains
	}

	chains := make([]Chain, opts.Chains)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for id := range chains {
		g.Go(func() error {
			c, err := runChain(gctx, target, len(names), opts, id)
			if err != nil {
				return fmt.Errorf("chain %d: %w", id, err)
			}
			chains[id] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Result{Names: names, Chains: chains}, nil
}

// clampIterations bounds the per-chain iteration count to keep allocations
// predictable.
func clampIterations(n int) int {
	switch {
	case n > maxIterations:
		monitoring.Logf("WARNING: Iterations %d exceeds maximum %d, clamping to maximum", n, maxIterations)
		return maxIterations
	case n <= 0:
		monitoring.Logf("WARNING: Invalid iterations %d, using default %d", n, defaultIterations)
		return defaultIterations
	}
	return n
}

type chainState struct {
	target Target
	u      []float64 // logit-scale position
	theta  []float64 // probability-scale position
	lp     float64   // log density on the logit scale, Jacobian included
	ld     float64   // target log density at theta
}

// evaluate sets theta from u and returns the logit-scale log density and the
// target density. Rejectable points come back as -Inf with a nil error.
func (s *chainState) evaluate(u []float64) (lp, ld float64, err error) {
	jac := 0.0
	for j, v := range u {
		s.theta[j] = interior(logistic(v))
		jac -= softplus(v) + softplus(-v)
	}
	ld, err = s.target.LogDensity(s.theta)
	if err != nil {
		if errors.Is(err, occupancy.ErrInvalidParameter) {
			return math.Inf(-1), math.Inf(-1), nil
		}
		return 0, 0, err
	}
	if math.IsNaN(ld) || math.IsInf(ld, 1) {
		monitoring.Logf("sampler: target returned %v at %v", ld, s.theta)
		return 0, 0, fmt.Errorf("%w: %v at %v", ErrNonFiniteDensity, ld, s.theta)
	}
	return ld + jac, ld, nil
}

func runChain(ctx context.Context, target Target, dim int, opts Options, id int) (Chain, error) {
	src := rand.NewPCG(opts.Seed, uint64(id)+1)
	rng := rand.New(src)
	s := &chainState{
		target: target,
		u:      make([]float64, dim),
		theta:  make([]float64, dim),
	}
	if err := s.start(rng, opts.Init); err != nil {
		return Chain{}, err
	}

	scales := make([]float64, dim)
	for j := range scales {
		scales[j] = opts.ProposalScale
	}
	batchAccepted := make([]int, dim)
	batches := 0

	kept := opts.Iterations / opts.Thin
	c := Chain{
		ID:         id,
		Draws:      make([][]float64, 0, kept),
		LogDensity: make([]float64, 0, kept),
		Accepted:   make([]int, dim),
		Proposed:   make([]int, dim),
	}

	for iter := 0; iter < opts.BurnIn; iter++ {
		if err := ctx.Err(); err != nil {
			return Chain{}, err
		}
		for j := 0; j < dim; j++ {
			ok, impossible, err := s.step(rng, j, scales[j])
			if err != nil {
				return Chain{}, err
			}
			if impossible {
				c.Impossible++
			}
			if ok {
				batchAccepted[j]++
			}
		}

		if opts.Adapt && (iter+1)%adaptBatch == 0 {
			batches++
			delta := math.Min(0.1, 1/math.Sqrt(float64(batches)))
			for j := range scales {
				rate := float64(batchAccepted[j]) / adaptBatch
				if rate > opts.TargetAcceptance {
					scales[j] *= math.Exp(delta)
				} else {
					scales[j] *= math.Exp(-delta)
				}
				batchAccepted[j] = 0
			}
			monitoring.Debugf("chain %d: batch %d scales %v", id, batches, scales)
		}
	}

	if err := s.sample(ctx, src, scales, opts, &c); err != nil {
		return Chain{}, err
	}
	c.Scales = scales
	monitoring.Debugf("chain %d: kept %d draws, %d impossible proposals", id, len(c.Draws), c.Impossible)
	return c, nil
}

// sample runs the kept iterations as a joint random walk through
// samplemv.MetropolisHastingser. Each tuned scale is shrunk by √dim because
// every coordinate now moves at once.
func (s *chainState) sample(ctx context.Context, src rand.Source, scales []float64, opts Options, c *Chain) error {
	dim := len(s.u)
	sigma := mat.NewSymDense(dim, nil)
	for j, sc := range scales {
		sigma.SetSym(j, j, sc*sc/float64(dim))
	}
	proposal, ok := samplemv.NewProposalNormal(sigma, src)
	if !ok {
		return fmt.Errorf("%w: proposal scales %v are not usable", ErrInvalidOptions, scales)
	}

	density := &logitDensity{s: s}
	step := sampleChunk * opts.Thin
	for done := 0; done < opts.Iterations; done += step {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows := min(step, opts.Iterations-done)
		batch := mat.NewDense(rows, dim, nil)
		density.evals = density.evals[:0]
		samplemv.MetropolisHastingser{
			Initial:  s.u,
			Target:   density,
			Proposal: proposal,
			Src:      src,
		}.Sample(batch)
		if density.err != nil {
			return density.err
		}
		// One evaluation at the start point, then one per proposal.
		if len(density.evals) != rows+1 {
			return fmt.Errorf("sampler: %d density evaluations for %d proposals", len(density.evals), rows)
		}

		for i := 0; i < rows; i++ {
			row := batch.RawRowView(i)
			proposed := density.evals[i+1]
			if math.IsInf(proposed.lp, -1) {
				c.Impossible++
			}
			if floats.Equal(row, proposed.u) {
				s.lp, s.ld = proposed.lp, proposed.ld
				for j := range c.Accepted {
					c.Accepted[j]++
				}
			}
			for j := range c.Proposed {
				c.Proposed[j]++
			}
			copy(s.u, row)
			if (done+i+1)%opts.Thin == 0 {
				c.Draws = append(c.Draws, probabilities(s.u))
				c.LogDensity = append(c.LogDensity, s.ld)
			}
		}
	}
	return nil
}

type evaluation struct {
	u      []float64
	lp, ld float64
}

// logitDensity exposes a chain's logit-scale density as a distmv.LogProber
// and records every evaluation in call order. After the first error every
// call returns -Inf without touching the target.
type logitDensity struct {
	s     *chainState
	evals []evaluation
	err   error
}

func (d *logitDensity) LogProb(u []float64) float64 {
	e := evaluation{u: append([]float64(nil), u...), lp: math.Inf(-1), ld: math.Inf(-1)}
	if d.err == nil {
		lp, ld, err := d.s.evaluate(u)
		if err != nil {
			d.err = err
		} else {
			e.lp, e.ld = lp, ld
		}
	}
	d.evals = append(d.evals, e)
	return e.lp
}

// start places the chain at Init, or at a random interior point, retrying
// until the density is finite.
func (s *chainState) start(rng *rand.Rand, init []float64) error {
	for attempt := 0; attempt < maxStartAttempts; attempt++ {
		for j := range s.u {
			if init != nil && attempt == 0 {
				s.u[j] = logit(init[j])
			} else {
				s.u[j] = logit(0.1 + 0.8*rng.Float64())
			}
		}
		lp, ld, err := s.evaluate(s.u)
		if err != nil {
			return err
		}
		if !math.IsInf(lp, -1) {
			s.lp, s.ld = lp, ld
			return nil
		}
	}
	return ErrNoValidStart
}

// step proposes a move in coordinate j. It reports whether the move was
// accepted and whether the proposal had zero density.
func (s *chainState) step(rng *rand.Rand, j int, scale float64) (accepted, impossible bool, err error) {
	old := s.u[j]
	s.u[j] = old + scale*rng.NormFloat64()
	lp, ld, err := s.evaluate(s.u)
	if err != nil {
		return false, false, err
	}
	if math.IsInf(lp, -1) {
		s.u[j] = old
		return false, true, nil
	}
	if math.Log(rng.Float64()) < lp-s.lp {
		s.lp, s.ld = lp, ld
		return true, false, nil
	}
	s.u[j] = old
	return false, false, nil
}

func probabilities(u []float64) []float64 {
	out := make([]float64, len(u))
	for j, v := range u {
		out[j] = interior(logistic(v))
	}
	return out
}

// interior keeps a saturated logistic value strictly inside (0,1).
func interior(p float64) float64 {
	return math.Min(maxProb, math.Max(minProb, p))
}

func logistic(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

func logit(p float64) float64 {
	return math.Log(p) - math.Log1p(-p)
}

// softplus is log(1 + e^x) without overflow.
func softplus(x float64) float64 {
	if x > 0 {
		return x + math.Log1p(math.Exp(-x))
	}
	return math.Log1p(math.Exp(x))
}
