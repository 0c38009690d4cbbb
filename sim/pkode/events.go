package pkode

import "math"

// timeTolerance is the relative distance within which a dose and a grid time
// are treated as simultaneous, so an observation at a dose time always sees
// the dose even when the grid time was rounded slightly below it.
const timeTolerance = 1e-9

// due reports whether a dose at doseTime has started by time t.
func due(doseTime, t float64) bool {
	return doseTime <= t+timeTolerance*math.Max(1, math.Abs(t))
}

// sameTime reports whether two times are equal within timeTolerance.
func sameTime(a, b float64) bool {
	return math.Abs(a-b) <= timeTolerance*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}
