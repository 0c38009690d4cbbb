package sim

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownSolver is returned when a model card names a solver no package registered.
var ErrUnknownSolver = errors.New("unknown solver")

// Dose is a dosing event into the central compartment.
// Rate == 0 is a bolus; Rate > 0 is a zero-order infusion lasting Amt/Rate.
type Dose struct {
	Time float64 `yaml:"time"`
	Amt  float64 `yaml:"amt"`
	Rate float64 `yaml:"rate,omitempty"`
	II   float64 `yaml:"ii,omitempty"`   // interdose interval for additional doses
	Addl int     `yaml:"addl,omitempty"` // number of additional doses after the first
}

// IsInfusion reports whether the dose is delivered at a constant rate.
func (d Dose) IsInfusion() bool {
	return d.Rate > 0
}

// Duration returns the infusion duration, or 0 for a bolus.
func (d Dose) Duration() float64 {
	if !d.IsInfusion() {
		return 0
	}
	return d.Amt / d.Rate
}

// ExpandDoses unrolls Addl/II into individual events sorted by time.
// The returned doses all have Addl == 0 and II == 0.
func ExpandDoses(doses []Dose) []Dose {
	var out []Dose
	for _, d := range doses {
		for i := 0; i <= d.Addl; i++ {
			out = append(out, Dose{
				Time: d.Time + float64(i)*d.II,
				Amt:  d.Amt,
				Rate: d.Rate,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

// CompartmentState is the solver output at one grid time.
type CompartmentState struct {
	Time    float64
	Central float64 // amount in the central compartment
	CP      float64 // concentration output, Central / V
}

// Solver evolves the central compartment over a time grid.
//
// Contract: d(CENTRAL)/dt = -CL/V * CENTRAL + infusion input, CENTRAL(0) = 0
// before any dose. A dose at time td is visible in states at t >= td.
// The returned slice has one entry per grid time, in grid order.
type Solver interface {
	Solve(params IndividualParams, doses []Dose, grid []float64) ([]CompartmentState, error)
}

// SolverConfig selects and tunes a solver implementation.
type SolverConfig struct {
	Name    string  // "analytic" (default) or "rk4"
	MaxStep float64 // maximum RK4 step; 0 = implementation default
}

// NewSolverFunc is the factory for Solver implementations.
// Set by sim/pkode's init(); nil until that package is imported.
var NewSolverFunc func(cfg SolverConfig) (Solver, error)

// NewSolver builds a solver through the registered factory.
func NewSolver(cfg SolverConfig) (Solver, error) {
	if NewSolverFunc == nil {
		return nil, fmt.Errorf("%w %q: no solver implementations registered (import sim/pkode)", ErrUnknownSolver, cfg.Name)
	}
	return NewSolverFunc(cfg)
}
