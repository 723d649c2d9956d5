// Package cutoff holds the simulated fit distributions and derives the
// dynamic fit index thresholds from them.
package cutoff

import (
	"godfi/domain/core"
)

// Replication is one Monte Carlo draw at one level: the analysis model fit to
// true-population data, and the same analysis model fit to data generated
// from the level's misspecified population.
type Replication struct {
	SRMRTrue  float64 `json:"srmr_true"`
	RMSEATrue float64 `json:"rmsea_true"`
	CFITrue   float64 `json:"cfi_true"`
	SRMRMis   float64 `json:"srmr_mis"`
	RMSEAMis  float64 `json:"rmsea_mis"`
	CFIMis    float64 `json:"cfi_mis"`

	ConvergedTrue bool `json:"converged_true"`
	ConvergedMis  bool `json:"converged_mis"`
}

// LevelRun owns all replications for one misspecification level.
type LevelRun struct {
	Level        int           `json:"level"`
	Magnitude    float64       `json:"magnitude"` // cross-loading added at this level, 0 at level 0
	Replications []Replication `json:"replications"`
}

// ExcludedTrue counts replications dropped from the true-fit distribution.
func (r LevelRun) ExcludedTrue() int {
	n := 0
	for _, rep := range r.Replications {
		if !rep.ConvergedTrue {
			n++
		}
	}
	return n
}

// ExcludedMis counts replications dropped from the misspecified-fit distribution.
func (r LevelRun) ExcludedMis() int {
	n := 0
	for _, rep := range r.Replications {
		if !rep.ConvergedMis {
			n++
		}
	}
	return n
}

// IndexCutoff is the derived threshold for a single fit index at one level.
// None means no quantile point at or above 50% power discriminated the
// distributions, and no numeric cutoff may be shown.
type IndexCutoff struct {
	Value float64 `json:"value"`
	Power float64 `json:"power"`
	None  bool    `json:"none"`
}

// Row is the derived result for one level across all three indices.
type Row struct {
	Level     int         `json:"level"`
	Magnitude float64     `json:"magnitude"`
	SRMR      IndexCutoff `json:"srmr"`
	RMSEA     IndexCutoff `json:"rmsea"`
	CFI       IndexCutoff `json:"cfi"`
}

// Table is the final artifact: one row per level, 0..(factors-1), contiguous.
type Table struct {
	Rows       []Row  `json:"rows"`
	SampleSize int    `json:"sample_size"`
	Reps       int    `json:"reps"`
	Estimator  string `json:"estimator"`
}

// Run is the persistable record of one full pipeline execution.
type Run struct {
	ID         core.RunID     `json:"id"`
	ModelText  string         `json:"model_text"`
	SampleSize int            `json:"sample_size"`
	Reps       int            `json:"reps"`
	Seed       int64          `json:"seed"`
	Estimator  string         `json:"estimator"`
	Table      Table          `json:"table"`
	CreatedAt  core.Timestamp `json:"created_at"`
}
