// Package pkode provides compartment solvers for the one-compartment model.
//
// register.go wires the pkode constructor into the sim package's registration
// variable (NewSolverFunc). This init() runs when any package imports
// sim/pkode, breaking the import cycle between sim/ (interface owner) and
// sim/pkode/ (implementation). Test code in package sim uses
// solver_import_test.go for the blank import.
package pkode

import (
	"fmt"

	"github.com/inference-sim/pksim/sim"
)

func init() {
	sim.NewSolverFunc = NewSolver
}

// Solver names accepted by NewSolver.
const (
	SolverAnalytic = "analytic"
	SolverRK4      = "rk4"
)

// NewSolver builds the solver named by cfg. An empty name selects the closed form.
func NewSolver(cfg sim.SolverConfig) (sim.Solver, error) {
	switch cfg.Name {
	case SolverAnalytic, "":
		return NewAnalyticSolver(), nil
	case SolverRK4:
		return NewRK4Solver(cfg.MaxStep)
	default:
		return nil, fmt.Errorf("%w %q; valid: analytic, rk4", sim.ErrUnknownSolver, cfg.Name)
	}
}
