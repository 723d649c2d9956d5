package sem

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"godfi/domain/model"
)

// template fixes the free-parameter layout for one model structure:
// loadings, then all factor-pair correlations, then residual variances,
// then listed residual correlations. Starting values come from the spec.
type template struct {
	p, m int

	loadItem   []int // parallel arrays: loading k sits at (loadItem[k], loadFactor[k])
	loadFactor []int
	pairsA     []int // factor pairs, a < b
	pairsB     []int
	residA     []int // residual correlation item pairs
	residB     []int

	x0 []float64
}

func newTemplate(spec model.Spec, items []string) *template {
	p := len(items)
	m := spec.NumFactors()
	itemIdx := make(map[string]int, p)
	for i, item := range items {
		itemIdx[item] = i
	}
	factorIdx := make(map[string]int, m)
	for i, f := range spec.Factors {
		factorIdx[f.Name] = i
	}

	t := &template{p: p, m: m}
	var x0 []float64

	for fi, f := range spec.Factors {
		for _, l := range f.Loadings {
			t.loadItem = append(t.loadItem, itemIdx[l.Item])
			t.loadFactor = append(t.loadFactor, fi)
			x0 = append(x0, l.Value)
		}
	}
	for a := 0; a < m; a++ {
		for b := a + 1; b < m; b++ {
			t.pairsA = append(t.pairsA, a)
			t.pairsB = append(t.pairsB, b)
			x0 = append(x0, spec.FactorCorr(spec.Factors[a].Name, spec.Factors[b].Name))
		}
	}

	// Residual variance starts at 1 minus the spec-implied communality.
	lambda := loadingMatrix(spec, itemIdx)
	phi := factorCorrMatrix(spec)
	var lp, common mat.Dense
	lp.Mul(lambda, phi)
	common.Mul(&lp, lambda.T())
	for i := 0; i < p; i++ {
		theta := 1 - common.At(i, i)
		x0 = append(x0, math.Min(math.Max(theta, 0.05), 0.95))
	}

	for _, rc := range spec.ResidCorrs {
		t.residA = append(t.residA, itemIdx[rc.A])
		t.residB = append(t.residB, itemIdx[rc.B])
		x0 = append(x0, rc.Value)
	}

	t.x0 = x0
	return t
}

// start returns a copy of the starting vector (the optimizer mutates it).
func (t *template) start() []float64 {
	return append([]float64(nil), t.x0...)
}

// sigma assembles the model-implied covariance for a parameter vector.
// The ok result is false outside the admissible region.
func (t *template) sigma(x []float64) (*mat.SymDense, bool) {
	idx := 0

	lambda := mat.NewDense(t.p, t.m, nil)
	for k := range t.loadItem {
		lambda.Set(t.loadItem[k], t.loadFactor[k], x[idx])
		idx++
	}

	phi := mat.NewSymDense(t.m, nil)
	for i := 0; i < t.m; i++ {
		phi.SetSym(i, i, 1)
	}
	for k := range t.pairsA {
		v := x[idx]
		idx++
		if math.Abs(v) >= 1 {
			return nil, false
		}
		phi.SetSym(t.pairsA[k], t.pairsB[k], v)
	}

	theta := make([]float64, t.p)
	for i := 0; i < t.p; i++ {
		v := x[idx]
		idx++
		if v <= 1e-6 {
			return nil, false
		}
		theta[i] = v
	}

	var lp, common mat.Dense
	lp.Mul(lambda, phi)
	common.Mul(&lp, lambda.T())

	sigma := mat.NewSymDense(t.p, nil)
	for i := 0; i < t.p; i++ {
		sigma.SetSym(i, i, common.At(i, i)+theta[i])
		for j := i + 1; j < t.p; j++ {
			sigma.SetSym(i, j, common.At(i, j))
		}
	}
	for k := range t.residA {
		r := x[idx]
		idx++
		if math.Abs(r) >= 1 {
			return nil, false
		}
		i, j := t.residA[k], t.residB[k]
		sigma.SetSym(i, j, common.At(i, j)+r*math.Sqrt(theta[i]*theta[j]))
	}

	return sigma, true
}
