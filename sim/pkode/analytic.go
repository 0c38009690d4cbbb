package pkode

import (
	"math"

	"github.com/inference-sim/pksim/sim"
)

// AnalyticSolver evaluates the closed-form one-compartment solution by
// superposing every dose's contribution at each grid time.
//
// Bolus:    A(s) = amt * exp(-k*s)
// Infusion: A(s) = R * (1 - exp(-k*s)) / k                     for s <= T
//
//	A(s) = R * (1 - exp(-k*T)) / k * exp(-k*(s-T))      for s > T
//
// where s = t - dose time, k = CL/V, R = rate, T = amt/rate.
type AnalyticSolver struct{}

// NewAnalyticSolver creates a closed-form solver.
func NewAnalyticSolver() *AnalyticSolver {
	return &AnalyticSolver{}
}

func (a *AnalyticSolver) Solve(params sim.IndividualParams, doses []sim.Dose, grid []float64) ([]sim.CompartmentState, error) {
	k := params.K()
	states := make([]sim.CompartmentState, len(grid))
	for i, t := range grid {
		central := 0.0
		for _, d := range doses {
			if !due(d.Time, t) {
				continue
			}
			s := math.Max(0, t-d.Time)
			central += doseAmount(d, k, s)
		}
		states[i] = sim.CompartmentState{Time: t, Central: central, CP: central / params.V}
	}
	return states, nil
}

// doseAmount returns one dose's contribution to CENTRAL s time units after it starts.
func doseAmount(d sim.Dose, k, s float64) float64 {
	if !d.IsInfusion() {
		return d.Amt * math.Exp(-k*s)
	}
	dur := d.Duration()
	if s <= dur {
		return d.Rate * infusedFraction(k, s)
	}
	return d.Rate * infusedFraction(k, dur) * math.Exp(-k*(s-dur))
}

// infusedFraction is (1 - exp(-k*s)) / k, with its k → 0 limit s.
func infusedFraction(k, s float64) float64 {
	if k == 0 {
		return s
	}
	return -math.Expm1(-k*s) / k
}
