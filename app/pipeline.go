package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"godfi/domain/core"
	"godfi/domain/cutoff"
	"godfi/domain/misspec"
	"godfi/domain/model"
	"godfi/internal"
	"godfi/ports"
)

// DefaultReps is the replication count used when the request leaves it unset.
const DefaultReps = 500

// Request is the single top-level operation's input.
type Request struct {
	Input     model.Input
	Estimator string // default "ML"
	Reps      int    // default DefaultReps
	Seed      int64  // 0 means derive from the clock
	Parallel  int    // 0 means use all CPUs
	// KeepReplications retains the raw per-level replication dataset on the
	// result in addition to the derived table.
	KeepReplications bool
}

// Result carries the derived table plus optional simulation byproducts.
type Result struct {
	Run      *cutoff.Run
	Levels   []cutoff.LevelRun // populated when KeepReplications is set
	Warnings []string
}

// Pipeline is the end-to-end cutoff derivation service.
type Pipeline struct {
	Cov       ports.CovarianceDeriver
	Sampler   ports.Sampler
	Estimator ports.Estimator
	Logger    *internal.Logger
}

// NewPipeline assembles a pipeline over the given collaborators.
func NewPipeline(cov ports.CovarianceDeriver, sampler ports.Sampler, estimator ports.Estimator, logger *internal.Logger) *Pipeline {
	return &Pipeline{Cov: cov, Sampler: sampler, Estimator: estimator, Logger: logger}
}

// Run executes the full pipeline. All validation happens before any
// simulation work begins; errors are fatal and no partial results come back.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	warnings, err := gateEstimator(req.Estimator)
	if err != nil {
		return nil, err
	}

	spec, n, err := req.Input.Resolve()
	if err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := misspec.CheckSufficient(spec); err != nil {
		return nil, err
	}

	levels, err := misspec.Levels(spec)
	if err != nil {
		return nil, err
	}

	reps := req.Reps
	if reps <= 0 {
		reps = DefaultReps
	}
	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	if p.Logger != nil {
		p.Logger.Info("simulating %d levels x %d replications, n=%d, seed=%d",
			len(levels)+1, reps, int(n), seed)
	}

	sim := &Simulator{Cov: p.Cov, Sampler: p.Sampler, Estimator: p.Estimator, Parallel: req.Parallel, Logger: p.Logger}
	runs, err := sim.Run(ctx, spec, levels, n, reps, seed)
	if err != nil {
		return nil, err
	}

	rows := make([]cutoff.Row, 0, len(runs))
	for _, run := range runs {
		row, err := cutoff.Derive(run)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	table := cutoff.Table{
		Rows:       rows,
		SampleSize: int(n),
		Reps:       reps,
		Estimator:  p.Estimator.Name(),
	}
	result := &Result{
		Run: &cutoff.Run{
			ID:         core.NewRunID(),
			ModelText:  spec.Render(),
			SampleSize: int(n),
			Reps:       reps,
			Seed:       seed,
			Estimator:  p.Estimator.Name(),
			Table:      table,
			CreatedAt:  core.Now(),
		},
		Warnings: warnings,
	}
	if req.KeepReplications {
		result.Levels = runs
	}
	return result, nil
}

// gateEstimator enforces the ML-only policy of this code path: MLR is
// rejected outright (redundant with ML under normal data), ULS/WLS-family
// names draw a warning and fall through to ML, anything else runs as ML.
func gateEstimator(name string) ([]string, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	switch {
	case upper == "" || upper == "ML":
		return nil, nil
	case upper == "MLR":
		return nil, core.NewEstimatorError(name)
	case strings.HasPrefix(upper, "U") || strings.HasPrefix(upper, "W"):
		return []string{fmt.Sprintf("estimator %q is not supported for these cutoffs; proceeding with ML", name)}, nil
	default:
		return []string{fmt.Sprintf("unrecognized estimator %q; proceeding with ML", name)}, nil
	}
}
