package model

import (
	"fmt"
	"math"
	"strings"

	"godfi/domain/core"
)

// Loading is one indicator's standardized loading on a factor.
type Loading struct {
	Item  string  `json:"item"`
	Value float64 `json:"value"`
}

// Factor groups the indicators loading on one latent variable, in model order.
type Factor struct {
	Name     string    `json:"name"`
	Loadings []Loading `json:"loadings"`
}

// Correlation is a standardized correlation between two named variables
// (two factors, or two items' residuals).
type Correlation struct {
	A     string  `json:"a"`
	B     string  `json:"b"`
	Value float64 `json:"value"`
}

// SampleSize is the number of cases the model was (or will be) fit to.
type SampleSize int

// Spec is a fully standardized CFA model: every loading and correlation is on
// the unit-variance scale, so valid magnitudes are strictly below 1.
type Spec struct {
	Factors     []Factor      `json:"factors"`
	FactorCorrs []Correlation `json:"factor_correlations,omitempty"`
	ResidCorrs  []Correlation `json:"residual_correlations,omitempty"`
}

// NumFactors returns the latent factor count.
func (s Spec) NumFactors() int { return len(s.Factors) }

// Items returns observed item names in first-appearance order.
func (s Spec) Items() []string {
	seen := make(map[string]bool)
	items := make([]string, 0)
	for _, f := range s.Factors {
		for _, l := range f.Loadings {
			if !seen[l.Item] {
				seen[l.Item] = true
				items = append(items, l.Item)
			}
		}
	}
	return items
}

// NumItems returns the observed item count.
func (s Spec) NumItems() int { return len(s.Items()) }

// Loads reports whether item already has a loading on factor.
func (s Spec) Loads(item, factor string) bool {
	for _, f := range s.Factors {
		if f.Name != factor {
			continue
		}
		for _, l := range f.Loadings {
			if l.Item == item {
				return true
			}
		}
	}
	return false
}

// FactorCorr returns the population correlation between two factors (0 if unlisted).
func (s Spec) FactorCorr(a, b string) float64 {
	for _, c := range s.FactorCorrs {
		if (c.A == a && c.B == b) || (c.A == b && c.B == a) {
			return c.Value
		}
	}
	return 0
}

// Clone returns a deep copy so misspecified variants never alias the original.
func (s Spec) Clone() Spec {
	out := Spec{
		Factors:     make([]Factor, len(s.Factors)),
		FactorCorrs: append([]Correlation(nil), s.FactorCorrs...),
		ResidCorrs:  append([]Correlation(nil), s.ResidCorrs...),
	}
	for i, f := range s.Factors {
		out.Factors[i] = Factor{
			Name:     f.Name,
			Loadings: append([]Loading(nil), f.Loadings...),
		}
	}
	return out
}

// AddCrossLoading returns a copy of the spec with item loading on factor at
// the given magnitude. The factor must exist.
func (s Spec) AddCrossLoading(item, factor string, value float64) (Spec, error) {
	out := s.Clone()
	for i := range out.Factors {
		if out.Factors[i].Name == factor {
			out.Factors[i].Loadings = append(out.Factors[i].Loadings, Loading{Item: item, Value: value})
			return out, nil
		}
	}
	return Spec{}, fmt.Errorf("unknown factor %q", factor)
}

// FreeParameters counts the parameters an ML fit of this structure estimates:
// all loadings, all factor-pair covariances, one residual variance per item,
// and each listed residual correlation. Factor variances are fixed at 1.
func (s Spec) FreeParameters() int {
	nLoad := 0
	for _, f := range s.Factors {
		nLoad += len(f.Loadings)
	}
	m := s.NumFactors()
	p := s.NumItems()
	return nLoad + m*(m-1)/2 + p + len(s.ResidCorrs)
}

// DegreesOfFreedom is observed moments minus free parameters.
func (s Spec) DegreesOfFreedom() int {
	p := s.NumItems()
	return p*(p+1)/2 - s.FreeParameters()
}

// Validate runs the precondition checks in their fixed order: parameter
// magnitudes, factor count, identification. Candidate sufficiency is checked
// by the misspecification planner, before any simulation starts.
func (s Spec) Validate() error {
	for _, f := range s.Factors {
		for _, l := range f.Loadings {
			if math.Abs(l.Value) >= 1 {
				return core.NewInvalidParameterError("loading", fmt.Sprintf("%s=~%s", f.Name, l.Item), l.Value)
			}
		}
	}
	for _, c := range s.FactorCorrs {
		if math.Abs(c.Value) >= 1 {
			return core.NewInvalidParameterError("factor correlation", c.A+"~~"+c.B, c.Value)
		}
	}
	for _, c := range s.ResidCorrs {
		if math.Abs(c.Value) >= 1 {
			return core.NewInvalidParameterError("residual correlation", c.A+"~~"+c.B, c.Value)
		}
	}
	if s.NumFactors() < 2 {
		return fmt.Errorf("%w: got %d", core.ErrUnsupportedModel, s.NumFactors())
	}
	if df := s.DegreesOfFreedom(); df <= 0 {
		return fmt.Errorf("%w: df = %d", core.ErrIdentification, df)
	}
	return nil
}

// Render writes the spec back out in the manual entry syntax.
func (s Spec) Render() string {
	var b strings.Builder
	for _, f := range s.Factors {
		terms := make([]string, len(f.Loadings))
		for i, l := range f.Loadings {
			terms[i] = fmt.Sprintf("%g*%s", l.Value, l.Item)
		}
		fmt.Fprintf(&b, "%s =~ %s\n", f.Name, strings.Join(terms, " + "))
	}
	for _, c := range s.FactorCorrs {
		fmt.Fprintf(&b, "%s ~~ %g*%s\n", c.A, c.Value, c.B)
	}
	for _, c := range s.ResidCorrs {
		fmt.Fprintf(&b, "%s ~~ %g*%s\n", c.A, c.Value, c.B)
	}
	return b.String()
}
