package sem

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"godfi/domain/core"
)

// NormalSampler draws multivariate-normal samples from a population
// covariance. Every draw is fully determined by the seed, which is what makes
// whole pipeline runs reproducible.
type NormalSampler struct{}

// NewNormalSampler creates the default sampler.
func NewNormalSampler() NormalSampler { return NormalSampler{} }

// Sample implements ports.Sampler.
func (NormalSampler) Sample(cov *mat.SymDense, n int, seed int64) (*mat.Dense, error) {
	p := cov.SymmetricDim()
	if n <= 0 || p == 0 {
		return nil, fmt.Errorf("sample dimensions must be positive, got n=%d p=%d", n, p)
	}

	src := rand.NewSource(uint64(seed))
	dist, ok := distmv.NewNormal(make([]float64, p), cov, src)
	if !ok {
		return nil, fmt.Errorf("%w: cannot sample from this covariance", core.ErrNotPositiveDefinite)
	}

	data := mat.NewDense(n, p, nil)
	row := make([]float64, p)
	for i := 0; i < n; i++ {
		dist.Rand(row)
		data.SetRow(i, row)
	}
	return data, nil
}
