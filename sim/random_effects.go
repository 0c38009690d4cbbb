package sim

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

// EtaSampler draws between-subject random effects from N(0, OMEGA).
type EtaSampler struct {
	cov  *distmv.PositivePartEigenSym // nil when every draw is zero
	mean []float64
}

// NewEtaSampler factorizes omega once. Singular or zero matrices are
// accepted; negative eigenvalues from rounding are clamped to zero.
func NewEtaSampler(omega mat.Symmetric) (*EtaSampler, error) {
	n := omega.SymmetricDim()
	s := &EtaSampler{mean: make([]float64, n)}
	if isZeroSym(omega) {
		return s, nil
	}
	var ed mat.EigenSym
	if ok := ed.Factorize(omega, true); !ok {
		return nil, fmt.Errorf("omega eigendecomposition failed")
	}
	if vals := ed.RawValues(); len(vals) > 0 && vals[0] < -1e-10 {
		logrus.Warnf("omega is not positive semi-definite (min eigenvalue %g); clamping negative eigenvalues to zero", vals[0])
	}
	s.cov = distmv.NewPositivePartEigenSym(&ed)
	return s, nil
}

// Sample returns one ETA vector, ordered as the card's olabels.
func (s *EtaSampler) Sample(src rand.Source) []float64 {
	if s.cov == nil {
		return make([]float64, len(s.mean))
	}
	return distmv.NormalRandCov(nil, s.mean, s.cov, src)
}

// ResidualSampler draws the proportional residual error PROP from N(0, SIGMA(1,1)).
type ResidualSampler struct {
	sd float64
}

// NewResidualSampler takes the residual variance (not the standard deviation).
func NewResidualSampler(variance float64) *ResidualSampler {
	return &ResidualSampler{sd: math.Sqrt(variance)}
}

// Sample returns one PROP draw. A zero variance always yields 0 and consumes no randomness.
func (s *ResidualSampler) Sample(src rand.Source) float64 {
	if s.sd == 0 {
		return 0
	}
	return distuv.Normal{Mu: 0, Sigma: s.sd, Src: src}.Rand()
}

func isZeroSym(m mat.Symmetric) bool {
	n := m.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if m.At(i, j) != 0 {
				return false
			}
		}
	}
	return true
}
