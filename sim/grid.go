package sim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// gridTolerance absorbs floating error in end/delta when end is a multiple of delta.
const gridTolerance = 1e-9

// MaxGridPoints caps the number of output times a single TimeGrid call may produce.
const MaxGridPoints = 10_000_000

// TimeGrid returns the output times 0, delta, 2*delta, ... up to and including end
// when end is a multiple of delta (within rounding), otherwise the last point below end.
// Each point is computed from its index, never by accumulation.
func TimeGrid(delta, end float64) ([]float64, error) {
	if math.IsNaN(delta) || math.IsInf(delta, 0) || delta <= 0 {
		return nil, fmt.Errorf("delta must be a finite positive number, got %f", delta)
	}
	if math.IsNaN(end) || math.IsInf(end, 0) || end < 0 {
		return nil, fmt.Errorf("end must be a finite non-negative number, got %f", end)
	}
	steps := math.Floor(end/delta + gridTolerance)
	if math.IsInf(steps, 0) || steps+1 > MaxGridPoints {
		return nil, fmt.Errorf("delta %g over end %g gives more than %d grid points", delta, end, MaxGridPoints)
	}
	n := int(steps) + 1
	if n == 1 {
		return []float64{0}, nil
	}
	return floats.Span(make([]float64, n), 0, float64(n-1)*delta), nil
}
