// Package sem provides the default structural-equation-model collaborators:
// implied population covariance, multivariate-normal sampling, and ML CFA
// estimation with SRMR/RMSEA/CFI.
package sem

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"godfi/domain/core"
	"godfi/domain/model"
)

// Deriver computes the covariance matrix a standardized CFA spec implies:
// Sigma = Lambda Phi Lambda' + Theta, with Theta's diagonal chosen so every
// observed variance is 1 and its off-diagonal filled from residual
// correlations scaled by the residual standard deviations.
type Deriver struct{}

// NewDeriver creates the default covariance deriver.
func NewDeriver() Deriver { return Deriver{} }

// ImpliedCovariance implements ports.CovarianceDeriver.
func (Deriver) ImpliedCovariance(spec model.Spec) (*mat.SymDense, error) {
	items := spec.Items()
	p := len(items)
	m := spec.NumFactors()
	if p == 0 || m == 0 {
		return nil, fmt.Errorf("empty model spec")
	}

	itemIdx := make(map[string]int, p)
	for i, item := range items {
		itemIdx[item] = i
	}

	lambda := loadingMatrix(spec, itemIdx)
	phi := factorCorrMatrix(spec)

	// Common part: Lambda Phi Lambda'
	var lp, common mat.Dense
	lp.Mul(lambda, phi)
	common.Mul(&lp, lambda.T())

	// Residual variances keep the diagonal at 1.
	theta := make([]float64, p)
	for i := 0; i < p; i++ {
		theta[i] = 1 - common.At(i, i)
		if theta[i] <= 0 {
			return nil, fmt.Errorf("%w: item %s has communality %.3f >= 1",
				core.ErrNotPositiveDefinite, items[i], common.At(i, i))
		}
	}

	sigma := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		sigma.SetSym(i, i, 1)
		for j := i + 1; j < p; j++ {
			sigma.SetSym(i, j, common.At(i, j))
		}
	}
	for _, rc := range spec.ResidCorrs {
		i, iok := itemIdx[rc.A]
		j, jok := itemIdx[rc.B]
		if !iok || !jok {
			return nil, fmt.Errorf("residual correlation references unknown item %s~~%s", rc.A, rc.B)
		}
		cov := common.At(i, j) + rc.Value*sqrtProduct(theta[i], theta[j])
		sigma.SetSym(i, j, cov)
	}

	var chol mat.Cholesky
	if !chol.Factorize(sigma) {
		return nil, fmt.Errorf("%w: implied matrix failed Cholesky factorization", core.ErrNotPositiveDefinite)
	}
	return sigma, nil
}

// loadingMatrix builds the p x m standardized loading matrix.
func loadingMatrix(spec model.Spec, itemIdx map[string]int) *mat.Dense {
	p := len(itemIdx)
	m := spec.NumFactors()
	lambda := mat.NewDense(p, m, nil)
	for fi, f := range spec.Factors {
		for _, l := range f.Loadings {
			lambda.Set(itemIdx[l.Item], fi, l.Value)
		}
	}
	return lambda
}

// factorCorrMatrix builds the m x m factor correlation matrix; unlisted
// pairs are uncorrelated in the population.
func factorCorrMatrix(spec model.Spec) *mat.SymDense {
	m := spec.NumFactors()
	phi := mat.NewSymDense(m, nil)
	idx := make(map[string]int, m)
	for i, f := range spec.Factors {
		idx[f.Name] = i
		phi.SetSym(i, i, 1)
	}
	for _, c := range spec.FactorCorrs {
		i, iok := idx[c.A]
		j, jok := idx[c.B]
		if iok && jok && i != j {
			phi.SetSym(i, j, c.Value)
		}
	}
	return phi
}

func sqrtProduct(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	return math.Sqrt(a) * math.Sqrt(b)
}
