package pkode

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/pksim/sim"
)

func defaultGrid(t *testing.T) []float64 {
	t.Helper()
	grid, err := sim.TimeGrid(0.1, 40)
	require.NoError(t, err)
	return grid
}

// assertSolversAgree compares RK4 with the closed form to a relative tolerance.
func assertSolversAgree(t *testing.T, p sim.IndividualParams, doses []sim.Dose, grid []float64, rel float64) {
	t.Helper()
	rk4, err := NewRK4Solver(0)
	require.NoError(t, err)
	got, err := rk4.Solve(p, doses, grid)
	require.NoError(t, err)
	want, err := NewAnalyticSolver().Solve(p, doses, grid)
	require.NoError(t, err)

	require.Len(t, got, len(want))
	for i := range want {
		tol := rel * math.Max(1e-6, math.Abs(want[i].Central))
		if math.Abs(got[i].Central-want[i].Central) > tol {
			t.Fatalf("t=%g: rk4 CENTRAL %.12g, analytic %.12g", grid[i], got[i].Central, want[i].Central)
		}
		assert.Equal(t, grid[i], got[i].Time)
		assert.Equal(t, got[i].Central/p.V, got[i].CP)
	}
}

func TestRK4Solver_Bolus_MatchesAnalytic(t *testing.T) {
	assertSolversAgree(t, typical, []sim.Dose{{Time: 0, Amt: 100}}, defaultGrid(t), 1e-6)
}

func TestRK4Solver_RepeatedDosesAndInfusion_MatchAnalytic(t *testing.T) {
	doses := sim.ExpandDoses([]sim.Dose{
		{Time: 0, Amt: 100, II: 12, Addl: 2},
		{Time: 3.05, Amt: 40, Rate: 16},
	})
	assertSolversAgree(t, typical, doses, defaultGrid(t), 1e-6)
}

func TestRK4Solver_FastElimination_MatchesAnalytic(t *testing.T) {
	p := sim.IndividualParams{CL: 10, V: 5}
	assertSolversAgree(t, p, []sim.Dose{{Time: 0, Amt: 100}}, []float64{0, 0.1, 0.5, 1, 2}, 1e-6)
}

func TestRK4Solver_DoseAtGridTime_Visible(t *testing.T) {
	rk4, err := NewRK4Solver(0)
	require.NoError(t, err)
	states, err := rk4.Solve(typical, []sim.Dose{{Time: 1, Amt: 25}}, []float64{0, 0.5, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, states[0].Central)
	assert.Equal(t, 0.0, states[1].Central)
	assert.Equal(t, 25.0, states[2].Central)
}

func TestRK4Solver_EmptyGrid(t *testing.T) {
	rk4, err := NewRK4Solver(0)
	require.NoError(t, err)
	states, err := rk4.Solve(typical, []sim.Dose{{Amt: 1}}, nil)
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestNewRK4Solver_InvalidStep(t *testing.T) {
	for _, step := range []float64{-0.1, math.NaN(), math.Inf(1), 1e-300, math.SmallestNonzeroFloat64, MinMaxStep / 2} {
		_, err := NewRK4Solver(step)
		assert.Error(t, err, "step %v", step)
	}
	_, err := NewRK4Solver(MinMaxStep)
	assert.NoError(t, err)
}

func TestRK4Solver_IntervalTooLong_ReturnsError(t *testing.T) {
	// GIVEN the smallest allowed step and a gap between grid times far beyond the step budget
	rk4, err := NewRK4Solver(MinMaxStep)
	require.NoError(t, err)

	// WHEN solving across that gap
	_, err = rk4.Solve(typical, []sim.Dose{{Time: 0, Amt: 100}}, []float64{0, 1e12})

	// THEN an error is returned instead of looping or overflowing
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps")
}

func TestBreakpoints_MergesCoincidentTimes(t *testing.T) {
	points := breakpoints([]sim.Dose{{Time: 0, Amt: 5}, {Time: 0, Amt: 7}, {Time: 1, Amt: 2, Rate: 1}}, []float64{0, 1, 2, 3})
	require.Len(t, points, 4)
	assert.Equal(t, 12.0, points[0].bolus)
	assert.Equal(t, []int{0}, points[0].gridIdx)
	assert.Equal(t, 0.0, points[1].bolus, "infusion start is not a jump")
	assert.Equal(t, []int{3}, points[3].gridIdx)
}

func TestNewSolver_ByName(t *testing.T) {
	tests := []struct {
		name string
		want any
	}{
		{"", &AnalyticSolver{}},
		{SolverAnalytic, &AnalyticSolver{}},
		{SolverRK4, &RK4Solver{}},
	}
	for _, tt := range tests {
		s, err := NewSolver(sim.SolverConfig{Name: tt.name})
		require.NoError(t, err)
		assert.IsType(t, tt.want, s)
	}

	_, err := NewSolver(sim.SolverConfig{Name: "lsoda"})
	assert.True(t, errors.Is(err, sim.ErrUnknownSolver))
}

func TestRegistration_SetsSimFactory(t *testing.T) {
	s, err := sim.NewSolver(sim.SolverConfig{Name: SolverRK4, MaxStep: 0.05})
	require.NoError(t, err)
	rk4, ok := s.(*RK4Solver)
	require.True(t, ok)
	assert.Equal(t, 0.05, rk4.maxStep)
}
