package model

import (
	"errors"
	"strings"
	"testing"

	"godfi/domain/core"
)

const fittedArtifact = `{
	"factors": [
		{"name": "F1", "loadings": [{"item": "x1", "value": 0.75}, {"item": "x2", "value": 0.8}, {"item": "x3", "value": 0.7}]},
		{"name": "F2", "loadings": [{"item": "x4", "value": 0.72}, {"item": "x5", "value": 0.68}, {"item": "x6", "value": 0.76}]}
	],
	"factor_correlations": [{"a": "F1", "b": "F2", "value": 0.4}],
	"sample_size": 400
}`

func TestInput_ResolveManual(t *testing.T) {
	in := Input{Manual: true, Text: threeFactorModel, N: 400}
	spec, n, err := in.Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if spec.NumFactors() != 3 || n != 400 {
		t.Errorf("Unexpected resolution: factors=%d n=%d", spec.NumFactors(), n)
	}
}

func TestInput_ResolveFitted(t *testing.T) {
	in := Input{Fitted: []byte(fittedArtifact)}
	spec, n, err := in.Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if spec.NumFactors() != 2 {
		t.Errorf("Expected 2 factors, got %d", spec.NumFactors())
	}
	if n != 400 {
		t.Errorf("Expected sample size 400 from artifact, got %d", n)
	}
}

func TestInput_MismatchCases(t *testing.T) {
	cases := []struct {
		name string
		in   Input
	}{
		{"manual without text", Input{Manual: true, N: 400}},
		{"manual with artifact", Input{Manual: true, Text: threeFactorModel, Fitted: []byte(fittedArtifact), N: 400}},
		{"manual without sample size", Input{Manual: true, Text: threeFactorModel}},
		{"text without manual flag", Input{Text: threeFactorModel, N: 400}},
		{"nothing supplied", Input{}},
		{"artifact without sample size", Input{Fitted: []byte(`{"factors":[{"name":"F1","loadings":[{"item":"x1","value":0.7}]}]}`)}},
		{"artifact not json", Input{Fitted: []byte("F1 =~ .7*x1")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := tc.in.Resolve()
			if !errors.Is(err, core.ErrInputMismatch) {
				t.Errorf("Expected ErrInputMismatch, got %v", err)
			}
		})
	}
}

func TestToStandardizedSyntax(t *testing.T) {
	text, n, err := ToStandardizedSyntax([]byte(fittedArtifact))
	if err != nil {
		t.Fatalf("ToStandardizedSyntax failed: %v", err)
	}
	if n != 400 {
		t.Errorf("Expected sample size 400, got %d", n)
	}
	if !strings.Contains(text, "F1 =~ 0.75*x1 + 0.8*x2 + 0.7*x3") {
		t.Errorf("Unexpected syntax:\n%s", text)
	}
	if !strings.Contains(text, "F1 ~~ 0.4*F2") {
		t.Errorf("Missing factor correlation line:\n%s", text)
	}
}
