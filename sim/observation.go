package sim

import "fmt"

// ObservationMode selects how IPRED is obtained from the compartment state.
type ObservationMode string

const (
	// ObservationCentral computes IPRED = CENTRAL / V.
	ObservationCentral ObservationMode = "central"
	// ObservationConcentration passes the solver's concentration output F through as IPRED.
	ObservationConcentration ObservationMode = "concentration"
)

// validObservationModes maps accepted observation mode strings.
var validObservationModes = map[ObservationMode]bool{
	ObservationCentral:       true,
	ObservationConcentration: true,
}

// IsValidObservationMode returns true if the given string is a recognized observation mode.
func IsValidObservationMode(mode string) bool {
	return validObservationModes[ObservationMode(mode)]
}

// Observation is the model output at one time point.
type Observation struct {
	IPRED float64 // individual prediction, before residual error
	Y     float64 // observed response, IPRED * (1 + PROP)
}

// ObserveCentral derives the observation from the central compartment amount.
// V == 0 yields Inf or NaN; that is the caller's precondition to uphold.
func ObserveCentral(central, v, prop float64) Observation {
	ipred := central / v
	return Observation{IPRED: ipred, Y: ipred * (1 + prop)}
}

// ObserveConcentration derives the observation from a solver-provided concentration F.
func ObserveConcentration(f, prop float64) Observation {
	ipred := f
	return Observation{IPRED: ipred, Y: ipred * (1 + prop)}
}

// Observe dispatches on the observation mode.
// An empty mode is treated as ObservationCentral.
func (m ObservationMode) Observe(state CompartmentState, params IndividualParams, prop float64) (Observation, error) {
	switch m {
	case ObservationCentral, "":
		return ObserveCentral(state.Central, params.V, prop), nil
	case ObservationConcentration:
		return ObserveConcentration(state.CP, prop), nil
	default:
		return Observation{}, fmt.Errorf("unknown observation mode %q; valid: central, concentration", m)
	}
}
