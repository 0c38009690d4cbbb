package sim

import "math"

// IndividualParams holds the derived PK parameters for one simulated individual.
// Both fields are strictly positive when THETA1, THETA2 > 0 and the ETAs are finite.
type IndividualParams struct {
	CL float64 // clearance
	V  float64 // central volume of distribution

	ECL float64 // random effect on CL that produced this CL
	EV  float64 // random effect on V that produced this V
}

// DeriveParameters computes CL = theta1*exp(ecl) and V = theta2*exp(ev).
// Called once per individual before any integration. No validation is done.
func DeriveParameters(theta1, theta2, ecl, ev float64) IndividualParams {
	tvcl := theta1
	tvv := theta2
	return IndividualParams{
		CL:  tvcl * math.Exp(ecl),
		V:   tvv * math.Exp(ev),
		ECL: ecl,
		EV:  ev,
	}
}

// K returns the first-order elimination rate constant CL/V.
func (p IndividualParams) K() float64 {
	return p.CL / p.V
}
