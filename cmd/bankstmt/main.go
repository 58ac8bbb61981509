package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/rumor-ml/commons.systems/bankstmt/internal/config"
	"github.com/rumor-ml/commons.systems/bankstmt/internal/logger"
	"github.com/rumor-ml/commons.systems/bankstmt/internal/reconcile"
	"github.com/rumor-ml/commons.systems/bankstmt/internal/scanner"
	"github.com/rumor-ml/commons.systems/bankstmt/internal/ui"
)

const (
	version = "0.1.0"
)

const usageText = `bankstmt - Bank snapshot reconciliation

Usage:
  bankstmt [flags]

Flags:
`

const examplesText = `
Examples:
  # Reconcile every company in ./snapshots into ./results_movements
  bankstmt

  # One company, with a JSON ledger next to the text report
  bankstmt -input ~/snapshots -company ACME -json

  # Show the reports without writing them
  bankstmt -dry-run -verbose

`

// errCompaniesFailed signals that at least one company produced no report.
var errCompaniesFailed = errors.New("one or more companies failed")

// options are the parsed command-line flags.
type options struct {
	configPath string
	version    bool
	cfg        config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags reads the config file named by -config, then applies every flag
// the user set explicitly on top of it.
func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("bankstmt", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usageText)
		fs.PrintDefaults()
		fmt.Fprint(stderr, examplesText)
	}

	defaults := config.Default()
	var (
		versionFlag = fs.Bool("version", false, "Show version")
		configPath  = fs.String("config", "", "YAML config file")
		inputDir    = fs.String("input", defaults.InputDir, "Directory containing snapshot_<company>_*.json files")
		outputDir   = fs.String("output", defaults.OutputDir, "Directory for empresa_<company>.txt reports")
		company     = fs.String("company", "", "Only reconcile this company")
		workers     = fs.Int("workers", defaults.Workers, "Companies reconciled in parallel")
		jsonExport  = fs.Bool("json", false, "Also write a JSON ledger per company")
		logLevel    = fs.String("log-level", defaults.LogLevel, "Log level: debug, info, warn, error")
		dryRun      = fs.Bool("dry-run", false, "Render reports without writing files")
		verbose     = fs.Bool("verbose", false, "Show per-file merge details and all warnings")
	)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	opts := &options{configPath: *configPath, version: *versionFlag}
	if opts.version {
		return opts, nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}

	// Flags override the file only when given explicitly.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.InputDir = *inputDir
		case "output":
			cfg.OutputDir = *outputDir
		case "company":
			cfg.Company = *company
		case "workers":
			cfg.Workers = *workers
		case "json":
			cfg.JSONExport = *jsonExport
		case "log-level":
			cfg.LogLevel = *logLevel
		case "dry-run":
			cfg.DryRun = *dryRun
		case "verbose":
			cfg.Verbose = *verbose
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	opts.cfg = cfg
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if opts.version {
		fmt.Fprintf(stdout, "bankstmt version %s\n", version)
		return nil
	}
	cfg := opts.cfg

	prevUI := ui.Writer
	ui.Writer = stderr
	defer func() { ui.Writer = prevUI }()

	log, err := logger.NewConsole(stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	ctx = logger.WithContext(ctx, log)

	ui.Header("Reconciling Bank Snapshots")
	ui.Step(1, 3, fmt.Sprintf("Scanning %s", cfg.InputDir))

	results, skipped, err := scanner.New(cfg.InputDir).Scan()
	if err != nil {
		return fmt.Errorf("failed to scan directory %s: %w", cfg.InputDir, err)
	}
	for _, path := range skipped {
		ui.Warning(fmt.Sprintf("Skipping %s: no company token in file name", path))
	}

	groups := scanner.GroupByCompany(results)
	if cfg.Company != "" {
		groups = filterCompany(groups, cfg.Company)
	}
	if len(groups) == 0 {
		if cfg.Company != "" {
			return fmt.Errorf("no snapshots for company %q in %s", cfg.Company, cfg.InputDir)
		}
		return fmt.Errorf("no snapshot files found in %s\n\nPlease check:\n  - Directory path is correct\n  - Files are named snapshot_<company>_<suffix>.json\n  - You have read permissions on the directory and files", cfg.InputDir)
	}
	ui.Success(fmt.Sprintf("Found %d snapshot files for %d companies", len(results), len(groups)))

	ui.Step(2, 3, "Merging snapshots")
	runner := reconcile.NewRunner(reconcile.Options{
		OutputDir:  cfg.OutputDir,
		Workers:    cfg.Workers,
		JSONExport: cfg.JSONExport,
		DryRun:     cfg.DryRun,
	})
	companyResults, err := runner.Run(ctx, groups)
	if err != nil {
		return err
	}

	ui.Step(3, 3, "Writing reports")
	failed := 0
	for _, res := range companyResults {
		if res.Failed() {
			failed++
			ui.Error(fmt.Sprintf("%s: %v", res.Company, res.Err))
			if res.Validation != nil {
				for _, e := range res.Validation.Errors {
					ui.Detail(fmt.Sprintf("%s [%s] %q: %s", e.Key, e.Field, e.Value, e.Message))
				}
			}
			continue
		}
		printCompany(stdout, res)
		reportCompany(res, cfg)
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errCompaniesFailed, failed, len(companyResults))
	}
	if cfg.DryRun {
		ui.Info(fmt.Sprintf("Dry run complete. Would write %d reports to %s", len(companyResults), cfg.OutputDir))
	}
	return nil
}

func filterCompany(groups []scanner.CompanyFiles, company string) []scanner.CompanyFiles {
	for _, g := range groups {
		if g.Company == company {
			return []scanner.CompanyFiles{g}
		}
	}
	return nil
}

// printCompany writes the movement lines of one company to stdout, followed
// by a blank line. The count header only goes to the report file.
func printCompany(w io.Writer, res reconcile.CompanyResult) {
	fmt.Fprintf(w, "empresa %s\n", res.Company)
	if len(res.Lines) > 1 {
		for _, line := range res.Lines[1:] {
			fmt.Fprintln(w, line)
		}
	}
	fmt.Fprintln(w)
}

func reportCompany(res reconcile.CompanyResult, cfg config.Config) {
	if cfg.Verbose {
		for _, f := range res.Files {
			ui.Detail(fmt.Sprintf("%s: %d read, %d new, %d replaced, %d synthetic keys, %d collisions",
				f.Path, f.Stats.Read, f.Stats.Inserted, f.Stats.Replaced, f.Stats.Synthesized, f.Stats.Collisions))
		}
	}

	if v := res.Validation; v != nil {
		if len(v.Warnings) > 0 {
			ui.Warning(fmt.Sprintf("%s: %d warnings", res.Company, len(v.Warnings)))
			if cfg.Verbose {
				for _, w := range v.Warnings {
					ui.Detail(fmt.Sprintf("%s [%s]: %s", w.Key, w.Field, w.Message))
				}
			}
		}
	}

	if res.ReportPath == "" {
		ui.Info(fmt.Sprintf("%s: %d movements", ui.BlueText(res.Company), res.Count))
		return
	}
	ui.Success(fmt.Sprintf("%s: %d movements written to %s", res.Company, res.Count, res.ReportPath))
	if res.LedgerPath != "" {
		ui.Detail(fmt.Sprintf("ledger: %s", res.LedgerPath))
	}
}
