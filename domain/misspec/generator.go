// Package misspec enumerates cross-loading misspecification candidates and
// builds the cumulative population models for each severity level.
package misspec

import (
	"fmt"
	"math"

	"godfi/domain/core"
	"godfi/domain/model"
)

// maxCommunality bounds the explained variance an item may reach after a
// cross-loading is added; beyond it the implied residual variance collapses
// and the population covariance stops being positive definite.
const maxCommunality = 0.95

// minMagnitude is the smallest cross-loading still worth calling a
// misspecification; candidates capped below it are skipped.
const minMagnitude = 0.10

// Candidate is an (item, factor) pair not yet loaded, with the magnitude the
// new cross-loading would take.
type Candidate struct {
	Item      string
	Factor    string
	Magnitude float64
}

// Level pairs a misspecified population spec with the cross-loading magnitude
// introduced at that step. Index 0 is reserved for the true model (magnitude 0)
// and is prepended by the pipeline, not produced here.
type Level struct {
	Index     int
	Magnitude float64
	Spec      model.Spec
}

// magnitudeFor maps the indicator count of the factor receiving a new
// cross-loading to the standardized magnitude it is assigned. More indicators
// mean the factor is better determined, so the plausible added loading shrinks.
func magnitudeFor(indicators int) float64 {
	switch {
	case indicators <= 2:
		return 0.65
	case indicators == 3:
		return 0.60
	case indicators == 4:
		return 0.55
	case indicators == 5:
		return 0.50
	case indicators == 6:
		return 0.45
	default:
		return 0.40
	}
}

// Candidates enumerates selectable cross-loadings in deterministic order:
// target factors in model order, items in model order within each, skipping
// pairs already loaded and items already claimed by an earlier candidate.
// Each level therefore perturbs a distinct indicator. The table magnitude is
// capped so the item's communality stays below maxCommunality, rounded down
// to two decimals; candidates whose cap falls below minMagnitude are skipped.
func Candidates(spec model.Spec) []Candidate {
	items := spec.Items()
	used := make(map[string]bool)
	var out []Candidate
	for _, f := range spec.Factors {
		tableMag := magnitudeFor(len(f.Loadings))
		for _, item := range items {
			if used[item] || spec.Loads(item, f.Name) {
				continue
			}
			mag := capMagnitude(spec, item, f.Name, tableMag)
			if mag < minMagnitude {
				continue
			}
			used[item] = true
			out = append(out, Candidate{Item: item, Factor: f.Name, Magnitude: mag})
		}
	}
	return out
}

// capMagnitude shrinks a table magnitude until the item's communality after
// the new cross-loading stays below maxCommunality. With existing loadings
// lambda and factor correlations phi, adding loading m on factor g gives
// communality h0 + m^2 + 2mc where c = sum_f lambda_f * phi(f, g).
func capMagnitude(spec model.Spec, item, target string, mag float64) float64 {
	h0, c := 0.0, 0.0
	for _, fa := range spec.Factors {
		la := loadingOf(fa, item)
		if la == 0 {
			continue
		}
		c += la * corrBetween(spec, fa.Name, target)
		for _, fb := range spec.Factors {
			lb := loadingOf(fb, item)
			if lb == 0 {
				continue
			}
			h0 += la * lb * corrBetween(spec, fa.Name, fb.Name)
		}
	}

	headroom := maxCommunality - h0
	if headroom <= 0 {
		return 0
	}
	bound := math.Sqrt(c*c+headroom) - c
	if bound < mag {
		mag = bound
	}
	// Two-decimal floor keeps reported magnitudes tidy and never exceeds the bound.
	return math.Floor(mag*100) / 100
}

func loadingOf(f model.Factor, item string) float64 {
	for _, l := range f.Loadings {
		if l.Item == item {
			return l.Value
		}
	}
	return 0
}

func corrBetween(spec model.Spec, a, b string) float64 {
	if a == b {
		return 1
	}
	return spec.FactorCorr(a, b)
}

// Levels builds the (factors-1) cumulative misspecified specs: level k is the
// true model plus the first k candidates. Runs out of candidates only on
// models the validator should already have rejected, but the error is still
// surfaced rather than silently truncating.
func Levels(spec model.Spec) ([]Level, error) {
	want := spec.NumFactors() - 1
	cands := Candidates(spec)
	if len(cands) < want {
		return nil, fmt.Errorf("%w: need %d, have %d", core.ErrInsufficientCandidates, want, len(cands))
	}

	levels := make([]Level, 0, want)
	current := spec
	for k := 1; k <= want; k++ {
		c := cands[k-1]
		next, err := current.AddCrossLoading(c.Item, c.Factor, c.Magnitude)
		if err != nil {
			return nil, err
		}
		current = next
		levels = append(levels, Level{Index: k, Magnitude: c.Magnitude, Spec: current})
	}
	return levels, nil
}

// CheckSufficient is the validator-side form of the candidate count rule.
func CheckSufficient(spec model.Spec) error {
	want := spec.NumFactors() - 1
	if got := len(Candidates(spec)); got < want {
		return fmt.Errorf("%w: need %d, have %d", core.ErrInsufficientCandidates, want, got)
	}
	return nil
}
