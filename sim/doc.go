// Package sim provides the core of the one-compartment PK simulator.
//
// # Reading Guide
//
// Start with these files to understand the model:
//   - params.go: individual parameter derivation (CL, V) from THETA and ETAs
//   - observation.go: IPRED and Y, with the central-amount and concentration branches
//   - model.go: the model card (metadata, labels, captures, simulation control)
//   - simulator.go: the population loop tying the pieces together
//
// # Architecture
//
// The sim package defines the model functions, the model card and the Solver
// interface; implementations and data helpers live in sub-packages:
//   - sim/pkode/: compartment solvers (closed form, fixed-step RK4)
//   - sim/nmext/: NONMEM .ext estimate reader (THETA, OMEGA, SIGMA)
//   - sim/table/: output table, CSV writer and per-time summaries
//
// sim/pkode registers its constructor via an init() function that sets the
// package-level factory variable NewSolverFunc. Callers import sim/pkode
// (usually blank) to make solvers available.
//
// # Purity
//
// DeriveParameters and the observation functions are pure: they perform no
// validation, hold no state, and propagate NaN and Inf per IEEE-754.
// Validation belongs to the model card (ModelSpec.Validate).
package sim
