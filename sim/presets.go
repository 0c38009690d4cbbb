package sim

import (
	"bytes"
	_ "embed"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/inference-sim/pksim/sim/nmext"
)

// r2Ext is the NONMEM estimation output for run r2, compiled in so presets
// resolve without a project directory on disk.
//
//go:embed cards/r2.ext
var r2Ext []byte

// Built-in model cards. Both describe run r2; they differ only in how IPRED
// is obtained and in what they capture:
//   - "r2":    IPRED = CENTRAL/V, captures IPRED and Y
//   - "r2-cp": IPRED = F (the solver's concentration), captures CP and Y
//
// The CP/IPRED capture asymmetry between the two is kept as-is.
var presets = map[string]func() *ModelSpec{
	"r2": func() *ModelSpec {
		s := r2Base()
		s.Observation = ObservationCentral
		s.Capture = []string{CaptureIPRED, CaptureY}
		return s
	},
	"r2-cp": func() *ModelSpec {
		s := r2Base()
		s.Observation = ObservationConcentration
		s.Capture = []string{CaptureCP, CaptureY}
		return s
	},
}

// r2Base returns the fields shared by both r2 cards. THETA, OMEGA and SIGMA
// are the final estimates of the embedded r2.ext, carried inline.
// The single 100-unit bolus stands in for the dataset the card is normally run against.
func r2Base() *ModelSpec {
	est, err := nmext.ParseExt(bytes.NewReader(r2Ext))
	if err != nil {
		panic(fmt.Sprintf("embedded r2.ext: %v", err))
	}
	return &ModelSpec{
		Run:     "r2",
		OLabels: []string{CaptureECL, CaptureEV},
		SLabels: []string{CapturePROP},
		PKModel: PKModelSpec{NCmt: 1, Depot: false},
		Cmt:     []string{CentralCompartment},
		Set:     SetSpec{Delta: 0.1, End: 40},
		Solver:  "analytic",
		Theta:   est.Theta,
		Omega:   symRows(est.Omega),
		Sigma:   symRows(est.Sigma),
		Doses:   []Dose{{Time: 0, Amt: 100}},
	}
}

// symRows expands a symmetric matrix into the card's row-list form.
func symRows(m *mat.SymDense) [][]float64 {
	if m == nil {
		return nil
	}
	n := m.SymmetricDim()
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
		for j := range rows[i] {
			rows[i][j] = m.At(i, j)
		}
	}
	return rows
}

// Preset returns a fresh copy of the named built-in card.
func Preset(name string) (*ModelSpec, error) {
	build, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q; valid: %v", name, PresetNames())
	}
	return build(), nil
}

// PresetNames lists the built-in cards in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
