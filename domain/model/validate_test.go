package model

import (
	"errors"
	"testing"

	"godfi/domain/core"
)

func TestValidate_AcceptsThreeFactorModel(t *testing.T) {
	spec, err := Parse(threeFactorModel)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if err := spec.Validate(); err != nil {
		t.Errorf("Expected valid model, got %v", err)
	}
	if df := spec.DegreesOfFreedom(); df != 24 {
		t.Errorf("Expected df = 24, got %d", df)
	}
}

func TestValidate_RejectsImpossibleLoading(t *testing.T) {
	text := `
F1 =~ 1.2*x1 + .7*x2 + .7*x3
F2 =~ .7*x4 + .7*x5 + .7*x6
F1 ~~ .3*F2
`
	spec, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	err = spec.Validate()
	if !errors.Is(err, core.ErrInvalidParameter) {
		t.Errorf("Expected ErrInvalidParameter, got %v", err)
	}
}

func TestValidate_RejectsImpossibleCorrelation(t *testing.T) {
	text := `
F1 =~ .7*x1 + .7*x2 + .7*x3
F2 =~ .7*x4 + .7*x5 + .7*x6
F1 ~~ 1.0*F2
`
	spec, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	err = spec.Validate()
	if !errors.Is(err, core.ErrInvalidParameter) {
		t.Errorf("Expected ErrInvalidParameter, got %v", err)
	}
}

func TestValidate_RejectsOneFactorModel(t *testing.T) {
	spec, err := Parse("F1 =~ .7*x1 + .7*x2 + .7*x3 + .7*x4")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	err = spec.Validate()
	if !errors.Is(err, core.ErrUnsupportedModel) {
		t.Errorf("Expected ErrUnsupportedModel, got %v", err)
	}
}

func TestValidate_RejectsSaturatedModel(t *testing.T) {
	// 4 items give 10 moments; 4 loadings + 1 factor corr + 4 residual
	// variances + 1 residual corr = 10 free parameters, df = 0.
	text := `
F1 =~ .7*x1 + .7*x2
F2 =~ .7*x3 + .7*x4
F1 ~~ .3*F2
x1 ~~ .1*x3
`
	spec, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if df := spec.DegreesOfFreedom(); df != 0 {
		t.Fatalf("Test model should be saturated, df = %d", df)
	}
	err = spec.Validate()
	if !errors.Is(err, core.ErrIdentification) {
		t.Errorf("Expected ErrIdentification, got %v", err)
	}
}

func TestValidate_ChecksMagnitudesBeforeFactorCount(t *testing.T) {
	// Both violations present; the magnitude check must win.
	spec, err := Parse("F1 =~ 1.5*x1 + .7*x2 + .7*x3")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	err = spec.Validate()
	if !errors.Is(err, core.ErrInvalidParameter) {
		t.Errorf("Expected ErrInvalidParameter first, got %v", err)
	}
}
