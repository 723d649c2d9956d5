// Package ports defines the collaborator contracts the pipeline depends on.
// Everything here is an in-process service boundary: the default adapters
// live under adapters/sem, and tests substitute fakes.
package ports

import (
	"gonum.org/v1/gonum/mat"

	"godfi/domain/model"
)

// CovarianceDeriver maps a standardized model spec to its implied population
// covariance over observed items. Must fail if the spec does not imply a
// positive-definite matrix.
type CovarianceDeriver interface {
	ImpliedCovariance(spec model.Spec) (*mat.SymDense, error)
}

// Sampler draws an n-row multivariate-normal sample from a population
// covariance. The seed fully determines the draw.
type Sampler interface {
	Sample(cov *mat.SymDense, n int, seed int64) (*mat.Dense, error)
}

// FitResult carries the global fit statistics one estimation emits.
type FitResult struct {
	SRMR      float64 `json:"srmr"`
	RMSEA     float64 `json:"rmsea"`
	CFI       float64 `json:"cfi"`
	ChiSquare float64 `json:"chi_square"`
	PValue    float64 `json:"p_value"`
	DF        int     `json:"df"`
	Converged bool    `json:"converged"`
}

// Estimator fits a CFA structure to sample data. A replication that fails to
// converge is reported through FitResult.Converged, not the error: the error
// return is for structural problems (dimension mismatch, degenerate sample).
type Estimator interface {
	Name() string
	Fit(spec model.Spec, data *mat.Dense) (FitResult, error)
}
