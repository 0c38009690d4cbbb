package sim

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/inference-sim/pksim/sim/table"
)

// SimulatorConfig holds run-level settings that are not part of the model card.
type SimulatorConfig struct {
	Seed              int64 // master seed; same seed + card + N gives identical tables
	Workers           int   // concurrent individuals; <= 0 means runtime.NumCPU()
	ZeroRandomEffects bool  // force ECL = EV = PROP = 0 (typical-individual simulation)
}

// Simulator runs a model card for a population of individuals.
// It copies what it needs from the card and estimates, so later edits to
// either do not affect it. Safe for concurrent Run calls.
type Simulator struct {
	observation ObservationMode
	capture     []string
	theta1      float64 // typical CL
	theta2      float64 // typical V
	solver      Solver
	cfg         SimulatorConfig

	grid     []float64
	doses    []Dose
	eta      *EtaSampler
	residual *ResidualSampler
}

// NewSimulator validates the card and prepares the time grid, doses and samplers.
func NewSimulator(spec *ModelSpec, est *Estimates, solver Solver, cfg SimulatorConfig) (*Simulator, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model card: %w", err)
	}
	if est == nil || len(est.Theta) < 2 {
		return nil, fmt.Errorf("estimates must provide THETA1 and THETA2")
	}
	if solver == nil {
		return nil, fmt.Errorf("solver is required")
	}
	grid, err := TimeGrid(spec.Set.Delta, spec.Set.End)
	if err != nil {
		return nil, err
	}

	omega := est.Omega
	sigmaVar := 0.0
	if est.Sigma != nil && est.Sigma.SymmetricDim() > 0 {
		sigmaVar = est.Sigma.At(0, 0)
	}
	if omega == nil || cfg.ZeroRandomEffects {
		omega = mat.NewSymDense(len(spec.OLabels), nil)
	}
	if cfg.ZeroRandomEffects {
		sigmaVar = 0
	}
	if omega.SymmetricDim() != len(spec.OLabels) {
		return nil, fmt.Errorf("omega dimension %d does not match %d olabels", omega.SymmetricDim(), len(spec.OLabels))
	}
	eta, err := NewEtaSampler(omega)
	if err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	return &Simulator{
		observation: spec.Observation,
		capture:     append([]string(nil), spec.Capture...),
		theta1:      est.Theta[0],
		theta2:      est.Theta[1],
		solver:      solver,
		cfg:         cfg,
		grid:        grid,
		doses:       ExpandDoses(spec.Doses),
		eta:         eta,
		residual:    NewResidualSampler(sigmaVar),
	}, nil
}

// Grid returns the output time grid.
func (s *Simulator) Grid() []float64 {
	return append([]float64(nil), s.grid...)
}

// Run simulates individuals 1..n and returns their rows sorted by (ID, time).
// Individuals run concurrently; each draws from its own RNG stream derived
// from the seed and its ID, so the table does not depend on Workers.
func (s *Simulator) Run(ctx context.Context, n int) (*table.Table, error) {
	out := table.New(s.capture)
	if n <= 0 {
		return out, nil
	}

	// PartitionedRNG is single-goroutine; create every stream up front and
	// hand each to the one worker that simulates that individual.
	rng := NewPartitionedRNG(NewSimulationKey(s.cfg.Seed))
	srcs := make([]*rand.Rand, n)
	for i := range srcs {
		srcs[i] = rng.ForSubsystem(SubsystemIndividual(i + 1))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([][]table.Row, n)
	ids := make(chan int)
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	workers := min(s.cfg.Workers, n)
	logrus.Debugf("simulating %d individuals on %d workers (key %d, %d time points)", n, workers, rng.Key(), len(s.grid))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range ids {
				rows, err := s.SimulateIndividual(id, srcs[id-1])
				if err != nil {
					errOnce.Do(func() {
						firstErr = fmt.Errorf("individual %d: %w", id, err)
						cancel()
					})
					continue
				}
				results[id-1] = rows
			}
		}()
	}

feed:
	for id := 1; id <= n; id++ {
		select {
		case ids <- id:
		case <-ctx.Done():
			break feed
		}
	}
	close(ids)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, rows := range results {
		for _, r := range rows {
			if err := out.Append(r.ID, r.Time, r.Values); err != nil {
				return nil, fmt.Errorf("individual %d: %w", r.ID, err)
			}
		}
	}
	return out, nil
}

// SimulateIndividual draws ETAs, derives CL and V, solves the compartment
// over the grid and applies the observation model at every time point.
// Draw order: ETAs first, then one PROP per grid time in order.
func (s *Simulator) SimulateIndividual(id int, src rand.Source) ([]table.Row, error) {
	etas := s.eta.Sample(src)
	params := DeriveParameters(s.theta1, s.theta2, etas[0], etas[1])

	states, err := s.solver.Solve(params, s.doses, s.grid)
	if err != nil {
		return nil, fmt.Errorf("solving compartment: %w", err)
	}
	if len(states) != len(s.grid) {
		return nil, fmt.Errorf("solver returned %d states for %d grid times", len(states), len(s.grid))
	}

	rows := make([]table.Row, 0, len(states))
	for _, st := range states {
		prop := s.residual.Sample(src)
		obs, err := s.observation.Observe(st, params, prop)
		if err != nil {
			return nil, err
		}
		values := make([]float64, len(s.capture))
		for i, name := range s.capture {
			values[i] = captureValue(name, st, params, obs, prop)
		}
		rows = append(rows, table.Row{ID: id, Time: st.Time, Values: values})
	}
	return rows, nil
}

// captureValue resolves a capture name for one time point.
// F is the solver's concentration output, the same quantity as CP.
func captureValue(name string, st CompartmentState, p IndividualParams, obs Observation, prop float64) float64 {
	switch name {
	case CaptureCentral:
		return st.Central
	case CaptureCP, CaptureF:
		return st.CP
	case CaptureIPRED:
		return obs.IPRED
	case CaptureY:
		return obs.Y
	case CaptureCL:
		return p.CL
	case CaptureV:
		return p.V
	case CaptureECL:
		return p.ECL
	case CaptureEV:
		return p.EV
	case CapturePROP:
		return prop
	}
	panic(fmt.Sprintf("unvalidated capture %q", name))
}
