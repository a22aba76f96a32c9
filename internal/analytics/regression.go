package analytics

import (
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/quantfeed/tradesim/internal/domain"
)

// ridge is a small diagonal regularizer so the normal equations stay solvable
// when a feature column is constant (for example a fixed order quantity).
const ridge = 1e-8

// linearModel is a fitted linear map from a FeatureVector to a slippage
// value. Immutable after fitting.
type linearModel struct {
	intercept float64
	weights   [domain.FeatureCount]float64
}

func (m *linearModel) predict(f domain.FeatureVector) float64 {
	y := m.intercept
	for i, w := range m.weights {
		y += w * f[i]
	}
	return y
}

// fitLeastSquares fits a ridge-regularized least-squares model on the given
// samples. It returns false when there are too few samples to determine the
// coefficients or the system cannot be solved.
func fitLeastSquares(samples []domain.TrainingSample) (*linearModel, bool) {
	n := len(samples)
	cols := domain.FeatureCount + 1
	if n < cols {
		return nil, false
	}

	a := mat.NewDense(n, cols, nil)
	b := mat.NewVecDense(n, nil)
	for i, s := range samples {
		a.Set(i, 0, 1)
		for j, v := range s.Features {
			a.Set(i, j+1, v)
		}
		b.SetVec(i, s.Slippage)
	}

	var ata mat.Dense
	ata.Mul(a.T(), a)
	for i := 0; i < cols; i++ {
		ata.Set(i, i, ata.At(i, i)+ridge)
	}
	var atb mat.VecDense
	atb.MulVec(a.T(), b)

	var beta mat.VecDense
	if err := beta.SolveVec(&ata, &atb); err != nil {
		return nil, false
	}

	m := &linearModel{intercept: beta.AtVec(0)}
	for i := 0; i < domain.FeatureCount; i++ {
		m.weights[i] = beta.AtVec(i + 1)
	}
	return m, true
}

// fitQuantile derives a high-quantile model from the mean model by shifting
// its intercept by the tau-quantile of the in-window residuals. The result
// tracks the conditional mean's shape while bounding the worst-case tail.
func fitQuantile(samples []domain.TrainingSample, base *linearModel, tau float64) *linearModel {
	residuals := make([]float64, len(samples))
	for i, s := range samples {
		residuals[i] = s.Slippage - base.predict(s.Features)
	}
	sort.Float64s(residuals)

	m := *base
	m.intercept += stat.Quantile(tau, stat.Empirical, residuals, nil)
	return &m
}
