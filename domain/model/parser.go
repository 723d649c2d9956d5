package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse reads the manual standardized model syntax:
//
//	F1 =~ .75*x1 + .80*x2 + .70*x3
//	F1 ~~ .40*F2
//	x1 ~~ .10*x2
//
// Every term carries an explicit standardized value. Lines starting with #
// (or trailing # comments) are ignored. Correlation lines are classified as
// factor or residual correlations once all factors are known.
func Parse(text string) (Spec, error) {
	spec := Spec{}
	type rawCorr struct {
		a, b  string
		value float64
		line  int
	}
	var corrs []rawCorr

	for i, raw := range strings.Split(text, "\n") {
		line := raw
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lineNo := i + 1

		switch {
		case strings.Contains(line, "=~"):
			parts := strings.SplitN(line, "=~", 2)
			name := strings.TrimSpace(parts[0])
			if name == "" {
				return Spec{}, fmt.Errorf("line %d: missing factor name", lineNo)
			}
			var loadings []Loading
			for _, term := range strings.Split(parts[1], "+") {
				item, value, err := parseTerm(term)
				if err != nil {
					return Spec{}, fmt.Errorf("line %d: %v", lineNo, err)
				}
				loadings = append(loadings, Loading{Item: item, Value: value})
			}
			if len(loadings) == 0 {
				return Spec{}, fmt.Errorf("line %d: factor %s has no indicators", lineNo, name)
			}
			merged := false
			for fi := range spec.Factors {
				if spec.Factors[fi].Name == name {
					spec.Factors[fi].Loadings = append(spec.Factors[fi].Loadings, loadings...)
					merged = true
					break
				}
			}
			if !merged {
				spec.Factors = append(spec.Factors, Factor{Name: name, Loadings: loadings})
			}

		case strings.Contains(line, "~~"):
			parts := strings.SplitN(line, "~~", 2)
			a := strings.TrimSpace(parts[0])
			b, value, err := parseTerm(parts[1])
			if err != nil {
				return Spec{}, fmt.Errorf("line %d: %v", lineNo, err)
			}
			if a == "" {
				return Spec{}, fmt.Errorf("line %d: missing left-hand variable", lineNo)
			}
			corrs = append(corrs, rawCorr{a: a, b: b, value: value, line: lineNo})

		default:
			return Spec{}, fmt.Errorf("line %d: expected =~ or ~~ operator: %q", lineNo, line)
		}
	}

	if len(spec.Factors) == 0 {
		return Spec{}, fmt.Errorf("model defines no factors")
	}

	factorNames := make(map[string]bool, len(spec.Factors))
	for _, f := range spec.Factors {
		factorNames[f.Name] = true
	}
	itemNames := make(map[string]bool)
	for _, item := range spec.Items() {
		itemNames[item] = true
	}

	for _, c := range corrs {
		corr := Correlation{A: c.a, B: c.b, Value: c.value}
		switch {
		case factorNames[c.a] && factorNames[c.b]:
			spec.FactorCorrs = append(spec.FactorCorrs, corr)
		case itemNames[c.a] && itemNames[c.b]:
			spec.ResidCorrs = append(spec.ResidCorrs, corr)
		default:
			return Spec{}, fmt.Errorf("line %d: %s ~~ %s mixes factor and item names or references unknown variables", c.line, c.a, c.b)
		}
	}

	return spec, nil
}

// parseTerm parses "value*name" with a mandatory standardized value.
func parseTerm(term string) (string, float64, error) {
	term = strings.TrimSpace(term)
	parts := strings.SplitN(term, "*", 2)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("term %q needs an explicit standardized value (value*name)", term)
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return "", 0, fmt.Errorf("term %q has a non-numeric value", term)
	}
	name := strings.TrimSpace(parts[1])
	if name == "" {
		return "", 0, fmt.Errorf("term %q has no variable name", term)
	}
	return name, value, nil
}
