package sem

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"godfi/domain/model"
	"godfi/ports"
)

// penalty is returned by the discrepancy function outside the admissible
// parameter region (non-PD Sigma, negative residual variance, |corr| >= 1).
const penalty = 1e10

// MLEstimator fits a CFA structure by minimizing the maximum-likelihood
// discrepancy F(theta) = ln|Sigma| + tr(S Sigma^-1) - ln|S| - p over the free
// standardized parameters, starting from the spec's stated values.
type MLEstimator struct {
	MaxIterations int
}

// NewMLEstimator creates the default ML estimator.
func NewMLEstimator() *MLEstimator {
	return &MLEstimator{MaxIterations: 500}
}

// Name implements ports.Estimator.
func (e *MLEstimator) Name() string { return "ML" }

// Fit implements ports.Estimator. Non-convergence is reported through
// FitResult.Converged; the error return is reserved for structural problems.
func (e *MLEstimator) Fit(spec model.Spec, data *mat.Dense) (ports.FitResult, error) {
	n, p := data.Dims()
	items := spec.Items()
	if p != len(items) {
		return ports.FitResult{}, fmt.Errorf("data has %d columns, model has %d items", p, len(items))
	}
	if n <= p+1 {
		return ports.FitResult{}, fmt.Errorf("sample size %d too small for %d items", n, p)
	}

	S := mat.NewSymDense(p, nil)
	stat.CovarianceMatrix(S, data, nil)

	df := spec.DegreesOfFreedom()
	res := ports.FitResult{DF: df}

	var cholS mat.Cholesky
	if !cholS.Factorize(S) {
		// Degenerate sample covariance: flag, do not abort the run.
		return res, nil
	}
	logDetS := cholS.LogDet()

	tmpl := newTemplate(spec, items)
	obj := func(x []float64) float64 {
		sigma, ok := tmpl.sigma(x)
		if !ok {
			return penalty
		}
		var chol mat.Cholesky
		if !chol.Factorize(sigma) {
			return penalty
		}
		var inv mat.SymDense
		if err := chol.InverseTo(&inv); err != nil {
			return penalty
		}
		tr := 0.0
		for i := 0; i < p; i++ {
			for j := 0; j < p; j++ {
				tr += S.At(i, j) * inv.At(i, j)
			}
		}
		f := chol.LogDet() + tr - logDetS - float64(p)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return penalty
		}
		return f
	}

	problem := optimize.Problem{
		Func: obj,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, obj, x, nil)
		},
	}
	settings := &optimize.Settings{MajorIterations: e.MaxIterations}

	result, err := optimize.Minimize(problem, tmpl.start(), settings, &optimize.LBFGS{})
	if result == nil || math.IsNaN(result.F) || result.F >= penalty/2 {
		return res, nil
	}
	// A linesearch stall at an already-good point still yields a usable
	// minimum; anything else counts as non-convergence.
	if err != nil && !errors.Is(err, optimize.ErrLinesearcherFailure) {
		return res, nil
	}

	sigmaHat, ok := tmpl.sigma(result.X)
	if !ok {
		return res, nil
	}

	fMin := math.Max(result.F, 0)
	t := float64(n-1) * fMin

	// Baseline (independence) model for CFI: only variances free.
	logDetDiag := 0.0
	for i := 0; i < p; i++ {
		logDetDiag += math.Log(S.At(i, i))
	}
	tB := float64(n-1) * (logDetDiag - logDetS)
	dfB := p * (p - 1) / 2

	res.ChiSquare = t
	res.SRMR = srmr(S, sigmaHat)
	res.RMSEA = rmsea(t, df, n)
	res.CFI = cfi(t, df, tB, dfB)
	if df > 0 {
		chi2 := distuv.ChiSquared{K: float64(df)}
		res.PValue = chi2.Survival(t)
	}
	res.Converged = true
	return res, nil
}

// rmsea is sqrt(max(0, (T - df) / (df (n-1)))).
func rmsea(t float64, df, n int) float64 {
	if df <= 0 || n <= 1 {
		return 0
	}
	num := t - float64(df)
	if num <= 0 {
		return 0
	}
	return math.Sqrt(num / (float64(df) * float64(n-1)))
}

// cfi compares model noncentrality against the baseline's.
func cfi(t float64, df int, tB float64, dfB int) float64 {
	d := math.Max(t-float64(df), 0)
	dB := math.Max(tB-float64(dfB), 0)
	if d == 0 {
		return 1
	}
	if dB < d {
		dB = d
	}
	return 1 - d/dB
}

// srmr is the root mean square standardized residual over all unique moments.
func srmr(s *mat.SymDense, sigma *mat.SymDense) float64 {
	p := s.SymmetricDim()
	sum := 0.0
	count := 0
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			denom := math.Sqrt(s.At(i, i) * s.At(j, j))
			if denom == 0 {
				continue
			}
			r := (s.At(i, j) - sigma.At(i, j)) / denom
			sum += r * r
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(count))
}
