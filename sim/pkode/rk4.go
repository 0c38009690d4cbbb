package pkode

import (
	"fmt"
	"math"
	"sort"

	"github.com/inference-sim/pksim/sim"
)

// DefaultMaxStep is the RK4 step bound used when SolverConfig.MaxStep is 0.
const DefaultMaxStep = 0.01

// MinMaxStep is the smallest maximum step NewRK4Solver accepts.
const MinMaxStep = 1e-9

// MaxStepsPerInterval limits how many RK4 steps one breakpoint interval may take.
const MaxStepsPerInterval = 1 << 30

// RK4Solver integrates d(CENTRAL)/dt = -k*CENTRAL + R(t) with the classical
// fourth-order Runge–Kutta method. R(t) is piecewise constant between
// breakpoints (grid times, dose times, infusion ends); boluses are applied
// as jumps at their breakpoint before any grid time there is recorded.
type RK4Solver struct {
	maxStep float64
}

// NewRK4Solver creates an RK4 solver with the given maximum step.
func NewRK4Solver(maxStep float64) (*RK4Solver, error) {
	if maxStep == 0 {
		maxStep = DefaultMaxStep
	}
	if math.IsNaN(maxStep) || math.IsInf(maxStep, 0) || maxStep < 0 {
		return nil, fmt.Errorf("rk4 max step must be a finite positive number, got %f", maxStep)
	}
	if maxStep < MinMaxStep {
		return nil, fmt.Errorf("rk4 max step %g is below the minimum %g", maxStep, MinMaxStep)
	}
	return &RK4Solver{maxStep: maxStep}, nil
}

// breakpoint is a time at which the right-hand side or the state may change.
type breakpoint struct {
	t       float64
	bolus   float64 // amount added at t
	gridIdx []int   // grid positions recorded at t
}

func (r *RK4Solver) Solve(params sim.IndividualParams, doses []sim.Dose, grid []float64) ([]sim.CompartmentState, error) {
	states := make([]sim.CompartmentState, len(grid))
	if len(grid) == 0 {
		return states, nil
	}
	points := breakpoints(doses, grid)
	k := params.K()

	central := 0.0
	for i, p := range points {
		central += p.bolus
		for _, gi := range p.gridIdx {
			states[gi] = sim.CompartmentState{Time: grid[gi], Central: central, CP: central / params.V}
		}
		if i+1 == len(points) {
			break
		}
		rate := infusionRate(doses, p.t)
		var err error
		if central, err = r.integrate(central, k, rate, points[i+1].t-p.t); err != nil {
			return nil, fmt.Errorf("integrating from t=%g: %w", p.t, err)
		}
	}
	return states, nil
}

// integrate advances the state over span with steps no larger than maxStep.
func (r *RK4Solver) integrate(a, k, rate, span float64) (float64, error) {
	if span <= 0 {
		return a, nil
	}
	steps := math.Ceil(span / r.maxStep)
	if math.IsInf(steps, 0) || steps > MaxStepsPerInterval {
		return 0, fmt.Errorf("span %g needs more than %d steps of at most %g", span, MaxStepsPerInterval, r.maxStep)
	}
	n := int(steps)
	dt := span / float64(n)
	f := func(x float64) float64 { return -k*x + rate }
	for i := 0; i < n; i++ {
		k1 := f(a)
		k2 := f(a + 0.5*dt*k1)
		k3 := f(a + 0.5*dt*k2)
		k4 := f(a + dt*k3)
		a += (dt / 6.0) * (k1 + 2.0*k2 + 2.0*k3 + k4)
	}
	return a, nil
}

// infusionRate sums the rates of infusions running during [t, next breakpoint).
func infusionRate(doses []sim.Dose, t float64) float64 {
	rate := 0.0
	for _, d := range doses {
		if !d.IsInfusion() || !due(d.Time, t) {
			continue
		}
		if end := d.Time + d.Duration(); !due(end, t) {
			rate += d.Rate
		}
	}
	return rate
}

// breakpoints collects and merges every time at which something happens.
// Times within timeTolerance of each other collapse into one breakpoint.
func breakpoints(doses []sim.Dose, grid []float64) []breakpoint {
	raw := make([]breakpoint, 0, len(grid)+2*len(doses))
	for i, t := range grid {
		raw = append(raw, breakpoint{t: t, gridIdx: []int{i}})
	}
	for _, d := range doses {
		if d.IsInfusion() {
			raw = append(raw, breakpoint{t: d.Time}, breakpoint{t: d.Time + d.Duration()})
		} else {
			raw = append(raw, breakpoint{t: d.Time, bolus: d.Amt})
		}
	}
	sort.SliceStable(raw, func(i, j int) bool { return raw[i].t < raw[j].t })

	merged := []breakpoint{raw[0]}
	for _, p := range raw[1:] {
		last := &merged[len(merged)-1]
		if sameTime(last.t, p.t) {
			last.bolus += p.bolus
			last.gridIdx = append(last.gridIdx, p.gridIdx...)
			continue
		}
		merged = append(merged, p)
	}
	return merged
}
