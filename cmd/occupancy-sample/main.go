// Command occupancy-sample draws from the posterior of an occupancy model,
// stores the run in SQLite and writes summary, trace and HTML reports.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/occupancy/internal/config"
	"github.com/banshee-data/occupancy/internal/dataset"
	"github.com/banshee-data/occupancy/internal/db"
	"github.com/banshee-data/occupancy/internal/monitoring"
	"github.com/banshee-data/occupancy/internal/occupancy"
	"github.com/banshee-data/occupancy/internal/report"
	"github.com/banshee-data/occupancy/internal/sampler"
	"github.com/banshee-data/occupancy/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("occupancy-sample: %v", err)
	}
}

type options struct {
	configPath string
	data       string
	dbPath     string
	outDir     string
	notes      string
	list       bool
	limit      int
	show       string
	remove     string
	migrate    string
	verbose    bool
	showVer    bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("occupancy-sample", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.StringVar(&o.configPath, "config", "", "Sampler config (.json, .yaml or .yml); built-in defaults when empty")
	fs.StringVar(&o.data, "data", "", "Dataset path (.csv or .json)")
	fs.StringVar(&o.dbPath, "db", "occupancy.db", "Run store path; empty disables persistence")
	fs.StringVar(&o.outDir, "out", "", "Directory for summary.csv, trace PNGs and report.html")
	fs.StringVar(&o.notes, "notes", "", "Free-text notes stored with the run")
	fs.BoolVar(&o.list, "list", false, "List stored runs and exit")
	fs.IntVar(&o.limit, "limit", 20, "Maximum runs shown by -list (0 = all)")
	fs.StringVar(&o.show, "show", "", "Print the stored summaries of a run ID and exit; with -out, rebuild its reports")
	fs.StringVar(&o.remove, "delete", "", "Delete a stored run ID and exit")
	fs.StringVar(&o.migrate, "migrate", "", "Run store migration: up, down or version")
	fs.BoolVar(&o.verbose, "verbose", false, "Enable debug logging")
	fs.BoolVar(&o.showVer, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}
	if o.showVer {
		fmt.Fprintf(stdout, "occupancy-sample %s\n", version.String())
		return nil
	}
	monitoring.SetVerbose(o.verbose)

	if o.migrate != "" {
		return runMigrate(stdout, o)
	}
	if o.list || o.show != "" || o.remove != "" {
		return runStoreCommand(ctx, stdout, o)
	}
	if o.data == "" {
		return fmt.Errorf("-data is required")
	}

	cfg := config.DefaultSamplerConfig()
	if o.configPath != "" {
		if cfg, err = config.LoadSamplerConfig(o.configPath); err != nil {
			return err
		}
	}

	target, err := loadTarget(cfg, o.data)
	if err != nil {
		return err
	}

	opts := cfg.Options()
	start := time.Now()
	res, err := sampler.Run(ctx, target, opts)
	if err != nil {
		return err
	}
	sums := res.Summarize()
	log.Printf("Sampled %d chains in %s", len(res.Chains), time.Since(start).Round(time.Millisecond))
	if err := printSummaries(stdout, sums); err != nil {
		return err
	}

	if o.dbPath != "" {
		id, err := saveRun(ctx, o, cfg, res, sums)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "run_id=%s\n", id)
	}
	if o.outDir != "" {
		if err := writeReports(o.outDir, o.data, res, sums); err != nil {
			return err
		}
		log.Printf("Wrote reports to %s", o.outDir)
	}
	return nil
}

func loadTarget(cfg *config.SamplerConfig, path string) (sampler.Target, error) {
	switch cfg.GetModel() {
	case config.ModelDynamic:
		d, _, err := dataset.LoadMultiSeason(path)
		if err != nil {
			return nil, err
		}
		return occupancy.DynamicPosterior{Data: d, Priors: cfg.DynamicPriors()}, nil
	default:
		d, _, err := dataset.LoadSingleSeason(path)
		if err != nil {
			return nil, err
		}
		return occupancy.SingleSeasonPosterior{Data: d, Priors: cfg.SinglePriors()}, nil
	}
}

func saveRun(ctx context.Context, o options, cfg *config.SamplerConfig, res *sampler.Result, sums []sampler.Summary) (string, error) {
	store, err := db.Open(o.dbPath)
	if err != nil {
		return "", err
	}
	defer store.Close()

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	opts := cfg.Options()
	notes := o.notes
	if notes == "" {
		notes = "occupancy-sample " + version.String()
	}
	return store.SaveRun(ctx, db.Run{
		Model:      cfg.GetModel(),
		Dataset:    o.data,
		ConfigJSON: string(cfgJSON),
		Iterations: opts.Iterations,
		BurnIn:     opts.BurnIn,
		Thin:       opts.Thin,
		Seed:       opts.Seed,
		Notes:      notes,
	}, res, sums)
}

func runStoreCommand(ctx context.Context, stdout io.Writer, o options) error {
	store, err := db.Open(o.dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	switch {
	case o.remove != "":
		if err := store.DeleteRun(ctx, o.remove); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "deleted %s\n", o.remove)
		return nil
	case o.show != "":
		run, err := store.GetRun(ctx, o.show)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "run_id=%s model=%s dataset=%s created=%s\n",
			run.ID, run.Model, run.Dataset, run.CreatedAt.Format(time.RFC3339))
		sums, err := store.LoadSummaries(ctx, o.show)
		if err != nil {
			return err
		}
		if err := printSummaries(stdout, sums); err != nil {
			return err
		}
		if o.outDir == "" {
			return nil
		}
		res, err := store.LoadDraws(ctx, o.show)
		if err != nil {
			return err
		}
		if err := writeReports(o.outDir, run.Dataset, res, sums); err != nil {
			return err
		}
		log.Printf("Rebuilt reports for %s in %s", run.ID, o.outDir)
		return nil
	}

	runs, err := store.ListRuns(ctx, o.limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tMODEL\tCHAINS\tITER\tCREATED\tDATASET")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ID, r.Model, r.Chains, r.Iterations, r.CreatedAt.Format(time.RFC3339), r.Dataset)
	}
	return tw.Flush()
}

func runMigrate(stdout io.Writer, o options) error {
	if o.dbPath == "" {
		return fmt.Errorf("-migrate requires -db")
	}
	store, err := db.Open(o.dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	switch o.migrate {
	case "up":
		// Open has already migrated to the latest version.
	case "down":
		if err := store.MigrateDown(); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("invalid -migrate %q (must be up, down or version)", o.migrate)
	}

	current, dirty, err := store.MigrateVersion()
	if err != nil {
		return err
	}
	latest, err := db.LatestMigrationVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "schema_version=%d latest=%d dirty=%t\n", current, latest, dirty)
	return nil
}

func printSummaries(w io.Writer, sums []sampler.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PARAM\tMEAN\tSD\t2.5%\t50%\t97.5%\tRHAT\tACCEPT")
	for _, s := range sums {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\t%.3f\t%.2f\n",
			s.Name, s.Mean, s.SD, s.Q025, s.Median, s.Q975, s.RHat, s.AcceptanceRate)
	}
	return tw.Flush()
}

func writeReports(dir, data string, res *sampler.Result, sums []sampler.Summary) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, "summary.csv"), func(w io.Writer) error {
		return report.WriteSummaryCSV(w, sums)
	}); err != nil {
		return err
	}
	if _, err := report.TracePlots(res, dir); err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, "report.html"), func(w io.Writer) error {
		return report.WriteHTML(w, "Posterior - "+filepath.Base(data), res, sums)
	})
}

func writeFile(path string, write func(io.Writer) error) error {
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
