package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveParameters_IdentityCase(t *testing.T) {
	// GIVEN unit typical values and zero random effects
	p := DeriveParameters(1, 1, 0, 0)

	// THEN CL and V equal the typical values exactly
	assert.Equal(t, 1.0, p.CL)
	assert.Equal(t, 1.0, p.V)
}

func TestDeriveParameters_ExponentialScaling(t *testing.T) {
	// GIVEN THETA1=2, THETA2=5, ECL=ln(2), EV=0
	p := DeriveParameters(2, 5, math.Ln2, 0)

	// THEN CL doubles and V is unchanged
	assert.InDelta(t, 4.0, p.CL, 1e-12)
	assert.Equal(t, 5.0, p.V)
	assert.Equal(t, math.Ln2, p.ECL)
	assert.Equal(t, 0.0, p.EV)
}

func TestDeriveParameters_PositiveForPositiveThetaAndFiniteEtas(t *testing.T) {
	thetas := []float64{1e-6, 0.5, 1, 12.5, 1e6}
	etas := []float64{-20, -3, -0.5, 0, 0.25, 2, 20}
	for _, th1 := range thetas {
		for _, th2 := range thetas {
			for _, ecl := range etas {
				for _, ev := range etas {
					p := DeriveParameters(th1, th2, ecl, ev)
					if !(p.CL > 0) || !(p.V > 0) {
						t.Fatalf("DeriveParameters(%g, %g, %g, %g) = CL %g, V %g; want both > 0",
							th1, th2, ecl, ev, p.CL, p.V)
					}
				}
			}
		}
	}
}

func TestDeriveParameters_NonFiniteInputsPropagate(t *testing.T) {
	tests := []struct {
		name           string
		theta1, theta2 float64
		ecl, ev        float64
		check          func(p IndividualParams) bool
	}{
		{"NaN theta", math.NaN(), 1, 0, 0, func(p IndividualParams) bool { return math.IsNaN(p.CL) && p.V == 1 }},
		{"NaN eta", 1, 1, 0, math.NaN(), func(p IndividualParams) bool { return p.CL == 1 && math.IsNaN(p.V) }},
		{"+Inf eta", 1, 1, math.Inf(1), 0, func(p IndividualParams) bool { return math.IsInf(p.CL, 1) }},
		{"-Inf eta", 1, 1, math.Inf(-1), 0, func(p IndividualParams) bool { return p.CL == 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DeriveParameters(tt.theta1, tt.theta2, tt.ecl, tt.ev)
			assert.True(t, tt.check(p), "unexpected result %+v", p)
		})
	}
}

func TestIndividualParams_K(t *testing.T) {
	p := DeriveParameters(2, 8, 0, 0)
	assert.Equal(t, 0.25, p.K())
}
