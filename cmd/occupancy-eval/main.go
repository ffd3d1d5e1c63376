// Command occupancy-eval evaluates the marginal log-likelihood of an
// occupancy dataset at fixed parameters. It can also profile one parameter
// over a range, map a two-parameter surface, or score a full grid.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/occupancy/internal/config"
	"github.com/banshee-data/occupancy/internal/dataset"
	"github.com/banshee-data/occupancy/internal/monitoring"
	"github.com/banshee-data/occupancy/internal/occupancy"
	"github.com/banshee-data/occupancy/internal/report"
	"github.com/banshee-data/occupancy/internal/sweep"
	"github.com/banshee-data/occupancy/internal/version"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("occupancy-eval: %v", err)
	}
}

type options struct {
	data    string
	model   string
	p       float64
	psi     float64
	psi1    float64
	phi     float64
	gamma   float64
	workers int

	profile   string
	surface   string
	grid      string
	rangeSpec string
	rangeY    string
	top       int
	output    string
	plot      string
	perSite   bool
	verbose   bool
	showVer   bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("occupancy-eval", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.data, "data", "", "Dataset path (.csv or .json)")
	fs.StringVar(&o.model, "model", config.ModelSingle, "Model: 'single' or 'dynamic'")
	fs.Float64Var(&o.p, "p", 0.5, "Detection probability")
	fs.Float64Var(&o.psi, "psi", 0.5, "Occupancy probability (single-season)")
	fs.Float64Var(&o.psi1, "psi1", 0.5, "Initial occupancy probability (dynamic)")
	fs.Float64Var(&o.phi, "phi", 0.5, "Persistence probability (dynamic)")
	fs.Float64Var(&o.gamma, "gamma", 0.5, "Colonization probability (dynamic)")
	fs.IntVar(&o.workers, "workers", 0, "Concurrent evaluations (0 = GOMAXPROCS)")
	fs.StringVar(&o.profile, "profile", "", "Parameter to profile (e.g. psi, phi)")
	fs.StringVar(&o.surface, "surface", "", "Two parameters to map jointly, e.g. p,psi")
	fs.StringVar(&o.grid, "grid", "", "Full grid as name=values pairs separated by ';', e.g. 'p=0.2:0.8:0.1;psi=0.3,0.6'")
	fs.StringVar(&o.rangeSpec, "range", "0.01:0.99:0.01", "Profile values, or first surface axis: comma-separated list or min:max:step")
	fs.StringVar(&o.rangeY, "range2", "", "Second surface axis values (defaults to -range)")
	fs.IntVar(&o.top, "top", 5, "Best grid points printed for -surface and -grid")
	fs.StringVar(&o.output, "output", "", "Profile, surface or grid CSV output path")
	fs.StringVar(&o.plot, "plot", "", "Profile PNG output path")
	fs.BoolVar(&o.perSite, "per-site", false, "Print per-site log-likelihood terms and conditional occupancy")
	fs.BoolVar(&o.verbose, "verbose", false, "Enable debug logging")
	fs.BoolVar(&o.showVer, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.showVer {
		return o, nil
	}
	if o.data == "" {
		return o, fmt.Errorf("-data is required")
	}
	if o.model != config.ModelSingle && o.model != config.ModelDynamic {
		return o, fmt.Errorf("invalid model %q (must be %s or %s)", o.model, config.ModelSingle, config.ModelDynamic)
	}
	modes := 0
	for _, m := range []string{o.profile, o.surface, o.grid} {
		if m != "" {
			modes++
		}
	}
	if modes > 1 {
		return o, fmt.Errorf("-profile, -surface and -grid are mutually exclusive")
	}
	if o.plot != "" && o.profile == "" {
		return o, fmt.Errorf("-plot requires -profile")
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	o, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}
	if o.showVer {
		fmt.Fprintf(stdout, "occupancy-eval %s\n", version.String())
		return nil
	}
	monitoring.SetVerbose(o.verbose)

	var (
		eval  sweep.Evaluator
		base  []float64
		sites []string
	)
	switch o.model {
	case config.ModelSingle:
		d, names, err := dataset.LoadSingleSeason(o.data)
		if err != nil {
			return err
		}
		sites = names
		if err := evaluateSingle(stdout, d, sites, occupancy.Params{P: o.p, Psi: o.psi}, o.perSite); err != nil {
			return err
		}
		eval, base = sweep.SingleSeason{Data: d}, []float64{o.p, o.psi}
	case config.ModelDynamic:
		d, names, err := dataset.LoadMultiSeason(o.data)
		if err != nil {
			return err
		}
		sites = names
		params := occupancy.DynamicParams{Psi1: o.psi1, Phi: o.phi, Gamma: o.gamma, P: o.p}
		if err := evaluateDynamic(ctx, stdout, d, sites, params, o.workers, o.perSite); err != nil {
			return err
		}
		eval, base = sweep.Dynamic{Data: d}, []float64{o.psi1, o.phi, o.gamma, o.p}
	}

	switch {
	case o.profile != "":
		return runProfile(ctx, stdout, eval, base, o)
	case o.surface != "":
		results, err := runSurface(ctx, eval, base, o)
		if err != nil {
			return err
		}
		return reportGrid(stdout, "surface "+o.surface, eval, results, o)
	case o.grid != "":
		results, err := runGrid(ctx, eval, base, o)
		if err != nil {
			return err
		}
		return reportGrid(stdout, "grid", eval, results, o)
	}
	return nil
}

func evaluateSingle(w io.Writer, d occupancy.SingleSeason, sites []string, params occupancy.Params, perSite bool) error {
	ll, err := d.LogLikelihood(params)
	if err != nil {
		return err
	}
	lp, err := occupancy.Evaluate(d.N, d.K, d.Y, params.P, params.Psi)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "model=single N=%d K=%d p=%g psi=%g\n", d.N, d.K, params.P, params.Psi)
	fmt.Fprintf(w, "log_likelihood=%.6f\n", ll)
	fmt.Fprintf(w, "log_posterior_uniform=%.6f\n", lp)
	if !perSite {
		return nil
	}

	units, err := d.UnitLogLikelihoods(params)
	if err != nil {
		return err
	}
	cond, err := d.ConditionalOccupancy(params)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "site,detections,log_likelihood,p_occupied")
	for i := range units {
		fmt.Fprintf(w, "%s,%d,%.6f,%.6f\n", siteLabel(sites, i), d.Y[i], units[i], cond[i])
	}
	return nil
}

func evaluateDynamic(ctx context.Context, w io.Writer, d occupancy.MultiSeason, sites []string, params occupancy.DynamicParams, workers int, perSite bool) error {
	ll, err := occupancy.EvaluateDynamicParallel(ctx, d, params, workers)
	if err != nil {
		return err
	}
	psi := occupancy.OccupancyTrajectory(params.Psi1, params.Phi, params.Gamma, d.T)
	fmt.Fprintf(w, "model=dynamic N=%d T=%d R=%d psi1=%g phi=%g gamma=%g p=%g\n",
		d.N, d.T, d.R, params.Psi1, params.Phi, params.Gamma, params.P)
	fmt.Fprintf(w, "log_likelihood=%.6f\n", ll)
	fmt.Fprintf(w, "psi_trajectory=%s\n", formatFloats(psi))
	fmt.Fprintf(w, "turnover=%s\n", formatFloats(occupancy.Turnover(psi, params.Phi, params.Gamma)))
	fmt.Fprintf(w, "equilibrium=%.6f\n", occupancy.EquilibriumOccupancy(params.Phi, params.Gamma))
	if !perSite {
		return nil
	}

	cells, err := d.CellLogLikelihoods(params)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "site,season,log_likelihood")
	for i, unit := range cells {
		for t, v := range unit {
			fmt.Fprintf(w, "%s,%d,%.6f\n", siteLabel(sites, i), t+1, v)
		}
	}
	return nil
}

func runProfile(ctx context.Context, w io.Writer, eval sweep.Evaluator, base []float64, o options) error {
	index, err := sweep.ParamIndex(eval, o.profile)
	if err != nil {
		return err
	}
	values, err := sweep.ParseParamList(o.rangeSpec)
	if err != nil {
		return fmt.Errorf("invalid -range: %w", err)
	}
	results, err := sweep.Profile(ctx, eval, base, index, values, o.workers)
	if err != nil {
		return err
	}

	if best, ok := sweep.Best(results); ok {
		fmt.Fprintf(w, "profile %s: max log_likelihood=%.6f at %s=%g\n", o.profile, best.LogLikelihood, o.profile, best.Params[index])
		if lo, hi, ok := sweep.ProfileInterval(results, index, sweep.ChiSquare95); ok {
			fmt.Fprintf(w, "profile %s: 95%% likelihood interval [%g, %g]\n", o.profile, lo, hi)
		}
	} else {
		fmt.Fprintf(w, "profile %s: every point has zero likelihood\n", o.profile)
	}

	if err := writeSweepCSV(o.output, eval, results); err != nil {
		return err
	}
	if o.plot != "" {
		if err := report.ProfilePlot(results, index, o.profile, o.plot); err != nil {
			return err
		}
		log.Printf("Wrote profile plot to %s", o.plot)
	}
	return nil
}

// runSurface evaluates the -surface pair over -range × -range2 with the
// other parameters held at their flag values.
func runSurface(ctx context.Context, eval sweep.Evaluator, base []float64, o options) ([]sweep.ComboResult, error) {
	names := strings.Split(o.surface, ",")
	if len(names) != 2 {
		return nil, fmt.Errorf("-surface needs two parameters, e.g. p,psi; got %q", o.surface)
	}
	ix, err := sweep.ParamIndex(eval, strings.TrimSpace(names[0]))
	if err != nil {
		return nil, err
	}
	iy, err := sweep.ParamIndex(eval, strings.TrimSpace(names[1]))
	if err != nil {
		return nil, err
	}
	xs, err := sweep.ParseParamList(o.rangeSpec)
	if err != nil {
		return nil, fmt.Errorf("invalid -range: %w", err)
	}
	ySpec := o.rangeY
	if ySpec == "" {
		ySpec = o.rangeSpec
	}
	ys, err := sweep.ParseParamList(ySpec)
	if err != nil {
		return nil, fmt.Errorf("invalid -range2: %w", err)
	}
	return sweep.Surface(ctx, eval, base, ix, iy, xs, ys, o.workers)
}

// runGrid evaluates the cartesian grid named by -grid. Parameters it does not
// name stay at their flag values.
func runGrid(ctx context.Context, eval sweep.Evaluator, base []float64, o options) ([]sweep.ComboResult, error) {
	values := make([][]float64, len(base))
	for i, v := range base {
		values[i] = []float64{v}
	}
	for _, entry := range strings.Split(o.grid, ";") {
		name, spec, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid -grid entry %q, want name=values", entry)
		}
		i, err := sweep.ParamIndex(eval, strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		vals, err := sweep.ParseParamList(strings.TrimSpace(spec))
		if err != nil {
			return nil, fmt.Errorf("invalid -grid values for %s: %w", name, err)
		}
		if len(vals) == 0 {
			return nil, fmt.Errorf("-grid entry %q has no values", entry)
		}
		values[i] = vals
	}
	return sweep.Grid(ctx, eval, values, o.workers)
}

func reportGrid(w io.Writer, label string, eval sweep.Evaluator, results []sweep.ComboResult, o options) error {
	ranked := sweep.RankResults(results)
	n := min(max(o.top, 0), len(ranked))
	fmt.Fprintf(w, "%s: %d points, best %d:\n", label, len(results), n)
	names := eval.Names()
	for rank, r := range ranked[:n] {
		parts := make([]string, len(names))
		for i, name := range names {
			parts[i] = fmt.Sprintf("%s=%g", name, r.Params[i])
		}
		fmt.Fprintf(w, "%d %s log_likelihood=%.6f\n", rank+1, strings.Join(parts, " "), r.LogLikelihood)
	}
	return writeSweepCSV(o.output, eval, results)
}

func writeSweepCSV(path string, eval sweep.Evaluator, results []sweep.ComboResult) error {
	if path == "" {
		return nil
	}
	if err := writeFile(path, func(f io.Writer) error {
		return sweep.WriteCSV(f, eval.Names(), results)
	}); err != nil {
		return err
	}
	log.Printf("Wrote %d grid points to %s", len(results), path)
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func siteLabel(sites []string, i int) string {
	if i < len(sites) {
		return sites[i]
	}
	return fmt.Sprint(i + 1)
}

func formatFloats(xs []float64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprintf("%.6f", x)
	}
	return strings.Join(parts, ",")
}
