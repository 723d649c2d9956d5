package model

import (
	"encoding/json"
	"fmt"

	"godfi/domain/core"
)

// Input is the tagged union the boundary accepts: either a fitted-model JSON
// artifact exported from an SEM tool, or a manually written standardized
// syntax with an explicit sample size. It is resolved exactly once into a
// canonical Spec + SampleSize before any core logic runs.
type Input struct {
	Manual bool
	// Text holds the manual standardized syntax when Manual is set.
	Text string
	// Fitted holds the fitted-model JSON artifact when Manual is unset.
	Fitted []byte
	// N is the sample size; required for manual entry, ignored (read from
	// the artifact) for fitted-model input.
	N int
}

// fittedModel is the on-disk shape of a fitted CFA exported with
// standardized estimates.
type fittedModel struct {
	Factors     []Factor      `json:"factors"`
	FactorCorrs []Correlation `json:"factor_correlations"`
	ResidCorrs  []Correlation `json:"residual_correlations"`
	SampleSize  int           `json:"sample_size"`
}

// Resolve turns the union into a canonical (Spec, SampleSize) pair, raising
// ErrInputMismatch when the declared mode and the supplied payload disagree.
func (in Input) Resolve() (Spec, SampleSize, error) {
	if in.Manual {
		if in.Text == "" {
			return Spec{}, 0, core.NewInputMismatchError("manual entry selected but no model syntax supplied")
		}
		if len(in.Fitted) > 0 {
			return Spec{}, 0, core.NewInputMismatchError("manual entry selected but a fitted-model artifact was supplied")
		}
		if in.N <= 0 {
			return Spec{}, 0, core.NewInputMismatchError("manual entry requires an explicit positive sample size")
		}
		spec, err := Parse(in.Text)
		if err != nil {
			return Spec{}, 0, err
		}
		return spec, SampleSize(in.N), nil
	}

	if len(in.Fitted) == 0 {
		if in.Text != "" {
			return Spec{}, 0, core.NewInputMismatchError("raw model syntax supplied without the manual flag")
		}
		return Spec{}, 0, core.NewInputMismatchError("no fitted-model artifact supplied")
	}
	return Extract(in.Fitted)
}

// Extract parses a fitted-model JSON artifact into a Spec and its case count.
func Extract(artifact []byte) (Spec, SampleSize, error) {
	var fm fittedModel
	if err := json.Unmarshal(artifact, &fm); err != nil {
		return Spec{}, 0, core.NewInputMismatchError(fmt.Sprintf("not a valid fitted-model artifact: %v", err))
	}
	if len(fm.Factors) == 0 {
		return Spec{}, 0, core.NewInputMismatchError("fitted-model artifact contains no factors")
	}
	if fm.SampleSize <= 0 {
		return Spec{}, 0, core.NewInputMismatchError("fitted-model artifact has no positive sample size")
	}
	spec := Spec{
		Factors:     fm.Factors,
		FactorCorrs: fm.FactorCorrs,
		ResidCorrs:  fm.ResidCorrs,
	}
	return spec, SampleSize(fm.SampleSize), nil
}

// ToStandardizedSyntax converts a fitted-model artifact to the same textual
// representation accepted for manual entry.
func ToStandardizedSyntax(artifact []byte) (string, SampleSize, error) {
	spec, n, err := Extract(artifact)
	if err != nil {
		return "", 0, err
	}
	return spec.Render(), n, nil
}
