// Package app wires the pipeline: input resolution, misspecification
// planning, Monte Carlo simulation, cutoff derivation, and reporting.
package app

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
	"gonum.org/v1/gonum/mat"

	"godfi/domain/core"
	"godfi/domain/cutoff"
	"godfi/domain/misspec"
	"godfi/domain/model"
	"godfi/internal"
	"godfi/ports"
)

// maxFailureFraction is the per-level share of non-converged replications
// above which the run is considered unreliable and fails outright.
const maxFailureFraction = 0.25

// Simulator runs the (level, replication) Monte Carlo grid. Replications are
// independent, so they fan out over a bounded worker pool; each replication
// derives its own seeds from (seed, level, rep), which keeps full runs
// bit-identical no matter how the scheduler interleaves them.
type Simulator struct {
	Cov       ports.CovarianceDeriver
	Sampler   ports.Sampler
	Estimator ports.Estimator
	Parallel  int
	Logger    *internal.Logger
}

// Run simulates every level (0 = true model, then each misspecified variant)
// with reps replications and returns the per-level distributions, tagged by
// level and ordered by replication index.
func (s *Simulator) Run(ctx context.Context, trueSpec model.Spec, levels []misspec.Level, n model.SampleSize, reps int, seed int64) ([]cutoff.LevelRun, error) {
	if reps <= 0 {
		return nil, fmt.Errorf("replication count must be positive, got %d", reps)
	}

	covTrue, err := s.Cov.ImpliedCovariance(trueSpec)
	if err != nil {
		return nil, fmt.Errorf("true model covariance: %w", err)
	}

	// Level 0 reuses the true covariance; its "misspecified" column is an
	// independent second draw from the same population.
	covs := make([]*mat.SymDense, 0, len(levels)+1)
	runs := make([]cutoff.LevelRun, 0, len(levels)+1)
	covs = append(covs, covTrue)
	runs = append(runs, cutoff.LevelRun{Level: 0, Replications: make([]cutoff.Replication, reps)})

	for _, lv := range levels {
		cov, err := s.Cov.ImpliedCovariance(lv.Spec)
		if err != nil {
			return nil, fmt.Errorf("level %d covariance: %w", lv.Index, err)
		}
		covs = append(covs, cov)
		runs = append(runs, cutoff.LevelRun{
			Level:        lv.Index,
			Magnitude:    lv.Magnitude,
			Replications: make([]cutoff.Replication, reps),
		})
	}

	parallel := s.Parallel
	if parallel <= 0 {
		parallel = runtime.NumCPU()
	}
	sem := semaphore.NewWeighted(int64(parallel))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for li := range runs {
		for rep := 0; rep < reps; rep++ {
			if err := sem.Acquire(ctx, 1); err != nil {
				setErr(err)
				break
			}
			wg.Add(1)
			go func(li, rep int) {
				defer sem.Release(1)
				defer wg.Done()
				record, err := s.replicate(trueSpec, covTrue, covs[li], int(n), seed, runs[li].Level, rep)
				if err != nil {
					setErr(fmt.Errorf("level %d rep %d: %w", runs[li].Level, rep, err))
					return
				}
				runs[li].Replications[rep] = record
			}(li, rep)
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	for _, run := range runs {
		limit := int(maxFailureFraction * float64(reps))
		exTrue, exMis := run.ExcludedTrue(), run.ExcludedMis()
		if s.Logger != nil && (exTrue > 0 || exMis > 0) {
			s.Logger.Warn("level %d excluded replications: true=%d mis=%d", run.Level, exTrue, exMis)
		}
		if exTrue > limit || exMis > limit {
			return nil, fmt.Errorf("%w: level %d excluded true=%d mis=%d of %d",
				core.ErrSimulationReliability, run.Level, exTrue, exMis, reps)
		}
	}
	return runs, nil
}

// replicate performs one Monte Carlo replication. Both fits use the analysis
// model (the true spec): once against a true-population draw, once against a
// draw from the level's misspecified population. Fitting the level spec to
// its own population would be a correctly specified fit and could never show
// misfit.
func (s *Simulator) replicate(trueSpec model.Spec, covTrue, covLevel *mat.SymDense, n int, seed int64, level, rep int) (cutoff.Replication, error) {
	trueSample, err := s.Sampler.Sample(covTrue, n, deriveSeed(seed, level, rep, 0))
	if err != nil {
		return cutoff.Replication{}, err
	}
	fitTrue, err := s.Estimator.Fit(trueSpec, trueSample)
	if err != nil {
		return cutoff.Replication{}, err
	}

	misSample, err := s.Sampler.Sample(covLevel, n, deriveSeed(seed, level, rep, 1))
	if err != nil {
		return cutoff.Replication{}, err
	}
	fitMis, err := s.Estimator.Fit(trueSpec, misSample)
	if err != nil {
		return cutoff.Replication{}, err
	}

	return cutoff.Replication{
		SRMRTrue:      fitTrue.SRMR,
		RMSEATrue:     fitTrue.RMSEA,
		CFITrue:       fitTrue.CFI,
		SRMRMis:       fitMis.SRMR,
		RMSEAMis:      fitMis.RMSEA,
		CFIMis:        fitMis.CFI,
		ConvergedTrue: fitTrue.Converged,
		ConvergedMis:  fitMis.Converged,
	}, nil
}

// deriveSeed mixes (seed, level, rep, stream) through a splitmix64 finalizer
// so replication seeds never collide across the grid.
func deriveSeed(seed int64, level, rep, stream int) int64 {
	z := uint64(seed)
	z += uint64(level)*0x9e3779b97f4a7c15 + uint64(rep)*0xbf58476d1ce4e5b9 + uint64(stream)*0x94d049bb133111eb + 0x2545f4914f6cdd1d
	z ^= z >> 30
	z *= 0xbf58476d1ce4e5b9
	z ^= z >> 27
	z *= 0x94d049bb133111eb
	z ^= z >> 31
	return int64(z)
}
