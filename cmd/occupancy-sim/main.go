// Command occupancy-sim simulates single-season or dynamic occupancy data
// from known parameters.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/occupancy/internal/config"
	"github.com/banshee-data/occupancy/internal/dataset"
	"github.com/banshee-data/occupancy/internal/occupancy"
	"github.com/banshee-data/occupancy/internal/simulate"
	"github.com/banshee-data/occupancy/internal/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("occupancy-sim: %v", err)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("occupancy-sim", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	model := fs.String("model", config.ModelSingle, "Model: 'single' or 'dynamic'")
	n := fs.Int("n", 100, "Number of sites")
	k := fs.Int("k", 4, "Surveys per site (single) or per season (dynamic)")
	t := fs.Int("t", 5, "Number of seasons (dynamic)")
	p := fs.Float64("p", 0.5, "Detection probability")
	psi := fs.Float64("psi", 0.5, "Occupancy probability (single-season)")
	psi1 := fs.Float64("psi1", 0.5, "Initial occupancy probability (dynamic)")
	phi := fs.Float64("phi", 0.8, "Persistence probability (dynamic)")
	gamma := fs.Float64("gamma", 0.1, "Colonization probability (dynamic)")
	seed := fs.Uint64("seed", 1, "Random seed")
	output := fs.String("output", "", "Output path (.csv or .json); stdout CSV when empty")
	truth := fs.String("truth", "", "Optional JSON path for the latent occupancy states")
	showVer := fs.Bool("version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVer {
		fmt.Fprintf(stdout, "occupancy-sim %s\n", version.String())
		return nil
	}

	r := simulate.NewRand(*seed)
	var (
		data   interface{}
		latent interface{}
		write  func(io.Writer) error
	)
	switch *model {
	case config.ModelSingle:
		res, err := simulate.SingleSeason(r, *n, *k, occupancy.Params{P: *p, Psi: *psi})
		if err != nil {
			return err
		}
		data, latent = res.Data, res.Z
		write = func(w io.Writer) error { return dataset.WriteSingleSeasonCSV(w, res.Data, nil) }
		log.Printf("Simulated %d sites, %d occupied, %d with detections", *n, countTrue(res.Z), countPositive(res.Data.Y))
	case config.ModelDynamic:
		params := occupancy.DynamicParams{Psi1: *psi1, Phi: *phi, Gamma: *gamma, P: *p}
		res, err := simulate.Dynamic(r, *n, *t, *k, params)
		if err != nil {
			return err
		}
		data, latent = res.Data, res.Z
		write = func(w io.Writer) error { return dataset.WriteMultiSeasonCSV(w, res.Data, nil) }
		log.Printf("Simulated %d sites over %d seasons, occupied fraction %v (expected %v)",
			*n, *t, res.OccupiedFraction(), occupancy.OccupancyTrajectory(*psi1, *phi, *gamma, *t))
	default:
		return fmt.Errorf("invalid model %q (must be %s or %s)", *model, config.ModelSingle, config.ModelDynamic)
	}

	switch {
	case *output == "":
		if err := write(stdout); err != nil {
			return err
		}
	case strings.EqualFold(filepath.Ext(*output), ".json"):
		if err := writeFile(*output, func(w io.Writer) error { return dataset.WriteJSON(w, data) }); err != nil {
			return err
		}
	case strings.EqualFold(filepath.Ext(*output), ".csv"):
		if err := writeFile(*output, write); err != nil {
			return err
		}
	default:
		return fmt.Errorf("output must be .csv or .json, got %q", *output)
	}

	if *truth != "" {
		if err := writeFile(*truth, func(w io.Writer) error { return dataset.WriteJSON(w, latent) }); err != nil {
			return err
		}
	}
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

func countTrue(z []bool) int {
	n := 0
	for _, v := range z {
		if v {
			n++
		}
	}
	return n
}

func countPositive(y []int) int {
	n := 0
	for _, v := range y {
		if v > 0 {
			n++
		}
	}
	return n
}
