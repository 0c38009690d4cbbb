package sim_test

// Blank import triggers sim/pkode's init(), which registers NewSolverFunc.
// This allows package sim's internal test files to create solvers
// without directly importing sim/pkode (which would create an import cycle).
import _ "github.com/inference-sim/pksim/sim/pkode"
