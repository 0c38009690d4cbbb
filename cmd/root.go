package cmd

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/inference-sim/pksim/sim"
	_ "github.com/inference-sim/pksim/sim/pkode" // registers solvers
	"github.com/inference-sim/pksim/sim/table"
)

var (
	// CLI flags for the run command
	seed          int64   // Seed for random-effect and residual-error draws
	numIndividual int     // Number of simulated individuals
	workers       int     // Concurrent individuals (0 = NumCPU)
	zeroRE        bool    // Zero all random effects (typical individual)
	logLevel      string  // Log verbosity level
	outPath       string  // Output table CSV path ("" = stdout)
	summaryPath   string  // Output summary YAML path ("" = none)
	deltaOverride float64 // Overrides set.delta when given
	endOverride   float64 // Overrides set.end when given
	solverName    string  // Overrides solver when given
	rk4MaxStep    float64 // Max RK4 step (0 = default)

	// Model card selection, shared by run and model subcommands
	modelPath  string // Path to YAML model card
	presetName string // Built-in model card name
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "pksim",
	Short: "One-compartment pharmacokinetic simulator",
}

// runCmd executes the simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate a population and write the capture table",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		spec := loadCard(modelPath, presetName)

		// Flag overrides apply only when explicitly set
		if cmd.Flags().Changed("delta") {
			spec.Set.Delta = deltaOverride
		}
		if cmd.Flags().Changed("end") {
			spec.Set.End = endOverride
		}
		if cmd.Flags().Changed("solver") {
			spec.Solver = solverName
		}
		if err := spec.Validate(); err != nil {
			logrus.Fatalf("Invalid model card %q: %v", spec.Run, err)
		}

		est, err := spec.ResolveEstimates()
		if err != nil {
			logrus.Fatalf("Could not resolve estimates: %v", err)
		}
		solver, err := sim.NewSolver(sim.SolverConfig{Name: spec.Solver, MaxStep: rk4MaxStep})
		if err != nil {
			logrus.Fatalf("Could not create solver: %v", err)
		}

		s, err := sim.NewSimulator(spec, est, solver, sim.SimulatorConfig{
			Seed:              seed,
			Workers:           workers,
			ZeroRandomEffects: zeroRE,
		})
		if err != nil {
			logrus.Fatalf("Could not create simulator: %v", err)
		}

		grid := s.Grid()
		logrus.Infof("Starting simulation of run %q: n=%d, seed=%d, THETA=%v, %d time points from %g to %g, solver=%s",
			spec.Run, numIndividual, seed, est.Theta[:2], len(grid), grid[0], grid[len(grid)-1], spec.Solver)
		startTime := time.Now()
		tbl, err := s.Run(context.Background(), numIndividual)
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}

		if outPath == "" {
			if err := table.WriteCSV(os.Stdout, tbl); err != nil {
				logrus.Fatalf("Writing table failed: %v", err)
			}
		} else if err := table.ExportCSV(tbl, outPath); err != nil {
			logrus.Fatalf("Writing table failed: %v", err)
		}
		if summaryPath != "" {
			if err := writeSummary(tbl, summaryPath); err != nil {
				logrus.Fatalf("Writing summary failed: %v", err)
			}
		}

		logrus.Infof("Simulation complete: %d rows in %v", len(tbl.Rows), time.Since(startTime))
	},
}

// setupLogging applies --log to the package-level logrus logger.
func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// writeSummary writes per-time capture statistics as YAML to path.
func writeSummary(tbl *table.Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := table.Summarize(tbl).WriteYAML(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().StringVar(&modelPath, "model", "", "Path to YAML model card")
	runCmd.Flags().StringVar(&presetName, "preset", "", "Built-in model card (r2, r2-cp)")
	runCmd.MarkFlagsMutuallyExclusive("model", "preset")
	runCmd.MarkFlagsOneRequired("model", "preset")

	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for random-effect and residual-error draws")
	runCmd.Flags().IntVar(&numIndividual, "n", 1, "Number of individuals to simulate")
	runCmd.Flags().IntVar(&workers, "workers", 0, "Individuals simulated concurrently (0 = number of CPUs)")
	runCmd.Flags().BoolVar(&zeroRE, "zero-re", false, "Set all random effects and residual errors to zero")

	// Simulation control overrides
	runCmd.Flags().Float64Var(&deltaOverride, "delta", 0.1, "Output time step (overrides set.delta)")
	runCmd.Flags().Float64Var(&endOverride, "end", 40, "Simulation end time (overrides set.end)")
	runCmd.Flags().StringVar(&solverName, "solver", "analytic", "Compartment solver: analytic, rk4 (overrides card)")
	runCmd.Flags().Float64Var(&rk4MaxStep, "rk4-max-step", 0, "Maximum RK4 step (0 = default)")

	// Outputs
	runCmd.Flags().StringVar(&outPath, "out", "", "Output CSV path (default stdout)")
	runCmd.Flags().StringVar(&summaryPath, "summary", "", "Write per-time summary YAML to this path")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
