// Package reconcile drives one run: it merges every snapshot of each company
// into a fresh statement, validates it and writes the company report.
package reconcile

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rumor-ml/commons.systems/bankstmt/internal/logger"
	"github.com/rumor-ml/commons.systems/bankstmt/internal/output"
	"github.com/rumor-ml/commons.systems/bankstmt/internal/scanner"
	"github.com/rumor-ml/commons.systems/bankstmt/internal/snapshot"
	"github.com/rumor-ml/commons.systems/bankstmt/internal/statement"
	"github.com/rumor-ml/commons.systems/bankstmt/internal/validate"
	"golang.org/x/sync/errgroup"
)

// Options controls where and how reports are written.
type Options struct {
	OutputDir  string
	Workers    int
	JSONExport bool
	// DryRun merges and renders without writing any file.
	DryRun bool
}

// FileResult records the merge of one snapshot file.
type FileResult struct {
	Path  string
	Stats statement.UpdateStats
}

// CompanyResult is the outcome of reconciling one company.
type CompanyResult struct {
	Company    string
	Files      []FileResult
	Count      int
	Lines      []string // header line followed by sorted movement lines
	ReportPath string
	LedgerPath string
	Validation *validate.ValidationResult
	Err        error
}

// Failed reports whether the company could not be reconciled.
func (r CompanyResult) Failed() bool {
	return r.Err != nil
}

// Runner reconciles companies independently. Each company gets its own
// statement, so a failure in one never touches another.
type Runner struct {
	opts  Options
	runID string
}

// NewRunner creates a runner with a fresh run id.
func NewRunner(opts Options) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Runner{
		opts:  opts,
		runID: uuid.NewString(),
	}
}

// RunID identifies this run in logs and JSON ledgers.
func (r *Runner) RunID() string {
	return r.runID
}

// Run reconciles every company group. Results come back in the order of
// groups regardless of how many workers ran them. The returned error is
// non-nil only when ctx was cancelled; per-company failures are carried in
// each CompanyResult.
func (r *Runner) Run(ctx context.Context, groups []scanner.CompanyFiles) ([]CompanyResult, error) {
	log := logger.FromContext(ctx).With().Str("run_id", r.runID).Logger()
	log.Info().Int("companies", len(groups)).Int("workers", r.opts.Workers).Msg("reconciliation started")

	results := make([]CompanyResult, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for i, group := range groups {
		i, group := i, group
		g.Go(func() error {
			clog := log.With().Str("company", group.Company).Logger()
			results[i] = r.reconcileCompany(gctx, clog, group)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("reconciliation cancelled: %w", err)
	}

	failed := 0
	for _, res := range results {
		if res.Failed() {
			failed++
		}
	}
	log.Info().Int("companies", len(groups)).Int("failed", failed).Msg("reconciliation finished")
	return results, nil
}

func (r *Runner) reconcileCompany(ctx context.Context, log zerolog.Logger, group scanner.CompanyFiles) CompanyResult {
	result := CompanyResult{Company: group.Company}
	fail := func(err error) CompanyResult {
		result.Err = err
		log.Error().Err(err).Msg("company failed")
		return result
	}

	st := statement.New(group.Company)
	for _, path := range group.Paths {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		snap, err := snapshot.Load(path)
		if err != nil {
			return fail(fmt.Errorf("failed to load %s: %w", path, err))
		}
		stats, err := st.Update(snap)
		if err != nil {
			return fail(fmt.Errorf("failed to merge %s: %w", path, err))
		}
		result.Files = append(result.Files, FileResult{Path: path, Stats: stats})

		log.Debug().
			Str("file", path).
			Int("read", stats.Read).
			Int("inserted", stats.Inserted).
			Int("replaced", stats.Replaced).
			Int("synthesized", stats.Synthesized).
			Int("collisions", stats.Collisions).
			Msg("snapshot merged")
	}
	result.Count = st.Len()

	result.Validation = validate.ValidateStatement(st)
	for _, w := range result.Validation.Warnings {
		log.Warn().Str("key", w.Key).Str("field", w.Field).Msg(w.Message)
	}
	for _, e := range result.Validation.Errors {
		log.Error().Str("key", e.Key).Str("field", e.Field).Str("value", e.Value).Msg(e.Message)
	}
	if err := result.Validation.Err(); err != nil {
		return fail(err)
	}

	lines, err := output.Render(st)
	if err != nil {
		return fail(err)
	}
	result.Lines = lines

	if r.opts.DryRun {
		log.Info().Int("movements", result.Count).Msg("dry run, no report written")
		return result
	}

	result.ReportPath, err = output.WriteReportToFile(r.opts.OutputDir, st)
	if err != nil {
		return fail(err)
	}
	if r.opts.JSONExport {
		result.LedgerPath, err = output.WriteLedgerToFile(r.opts.OutputDir, st, r.runID)
		if err != nil {
			return fail(err)
		}
	}

	log.Info().Int("movements", result.Count).Str("report", result.ReportPath).Msg("report written")
	return result
}
