package sem

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"godfi/domain/model"
)

const wellFittingModel = `
F1 =~ .75*x1 + .80*x2 + .70*x3
F2 =~ .72*x4 + .68*x5 + .76*x6
F3 =~ .70*x7 + .74*x8 + .66*x9
F1 ~~ .40*F2
F1 ~~ .35*F3
F2 ~~ .45*F3
`

func TestMLEstimator_RecoversTrueModelFit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping optimization test in short mode")
	}

	spec, err := model.Parse(wellFittingModel)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	sigma, err := NewDeriver().ImpliedCovariance(spec)
	if err != nil {
		t.Fatalf("ImpliedCovariance failed: %v", err)
	}
	data, err := NewNormalSampler().Sample(sigma, 1000, 7)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}

	fit, err := NewMLEstimator().Fit(spec, data)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if !fit.Converged {
		t.Fatal("True-model fit to its own population should converge")
	}
	if fit.DF != 24 {
		t.Errorf("Expected df = 24, got %d", fit.DF)
	}
	// Generous Monte Carlo bounds: the true model fit to a large sample from
	// its own population must look like a well-fitting model.
	if fit.SRMR > 0.08 {
		t.Errorf("SRMR too high for a correctly specified model: %g", fit.SRMR)
	}
	if fit.RMSEA > 0.08 {
		t.Errorf("RMSEA too high for a correctly specified model: %g", fit.RMSEA)
	}
	if fit.CFI < 0.90 {
		t.Errorf("CFI too low for a correctly specified model: %g", fit.CFI)
	}
	if fit.PValue < 0 || fit.PValue > 1 {
		t.Errorf("P-value out of range: %g", fit.PValue)
	}
}

func TestMLEstimator_DetectsMisspecification(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping optimization test in short mode")
	}

	spec, err := model.Parse(wellFittingModel)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	// Population contains a strong cross-loading the fitted model omits.
	mis, err := spec.AddCrossLoading("x4", "F1", 0.4)
	if err != nil {
		t.Fatalf("AddCrossLoading failed: %v", err)
	}
	sigma, err := NewDeriver().ImpliedCovariance(mis)
	if err != nil {
		t.Fatalf("ImpliedCovariance failed: %v", err)
	}
	data, err := NewNormalSampler().Sample(sigma, 1000, 11)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}

	fitWrong, err := NewMLEstimator().Fit(spec, data)
	if err != nil {
		t.Fatalf("Fit of omitting model failed: %v", err)
	}
	fitRight, err := NewMLEstimator().Fit(mis, data)
	if err != nil {
		t.Fatalf("Fit of generating model failed: %v", err)
	}
	if !fitWrong.Converged || !fitRight.Converged {
		t.Fatal("Both fits should converge on a large clean sample")
	}
	if fitWrong.ChiSquare <= fitRight.ChiSquare {
		t.Errorf("Omitting the population cross-loading should fit worse: chi2 %g vs %g",
			fitWrong.ChiSquare, fitRight.ChiSquare)
	}
	if fitRight.DF != fitWrong.DF-1 {
		t.Errorf("Generating model spends one more df: %d vs %d", fitRight.DF, fitWrong.DF)
	}
}

func TestMLEstimator_RejectsColumnMismatch(t *testing.T) {
	spec, err := model.Parse(wellFittingModel)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	data := mat.NewDense(100, 4, nil)
	if _, err := NewMLEstimator().Fit(spec, data); err == nil {
		t.Error("Expected an error for mismatched column count")
	}
}
