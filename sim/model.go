package sim

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/pksim/sim/nmext"
)

// ErrDepotUnsupported is returned for cards that enable the absorption depot.
var ErrDepotUnsupported = errors.New("depot compartment is not supported; set pkmodel.depot to false")

// CentralCompartment is the only compartment a one-compartment card may declare.
const CentralCompartment = "CENTRAL"

// Capture column names.
const (
	CaptureCentral = "CENTRAL"
	CaptureCP      = "CP"
	CaptureF       = "F"
	CaptureIPRED   = "IPRED"
	CaptureY       = "Y"
	CaptureCL      = "CL"
	CaptureV       = "V"
	CaptureECL     = "ECL"
	CaptureEV      = "EV"
	CapturePROP    = "PROP"
)

var validCaptures = map[string]bool{
	CaptureCentral: true, CaptureCP: true, CaptureF: true, CaptureIPRED: true, CaptureY: true,
	CaptureCL: true, CaptureV: true, CaptureECL: true, CaptureEV: true, CapturePROP: true,
}

// ModelSpec is a one-compartment model card.
// Loaded from YAML via LoadModelSpec(path) or taken from Preset(name).
type ModelSpec struct {
	Run         string          `yaml:"run"`
	Project     string          `yaml:"project,omitempty"`
	OLabels     []string        `yaml:"olabels"`
	SLabels     []string        `yaml:"slabels"`
	PKModel     PKModelSpec     `yaml:"pkmodel"`
	Cmt         []string        `yaml:"cmt"`
	Observation ObservationMode `yaml:"observation"`
	Capture     []string        `yaml:"capture"`
	Set         SetSpec         `yaml:"set"`
	Solver      string          `yaml:"solver,omitempty"`
	Theta       []float64       `yaml:"theta,omitempty"`
	Omega       [][]float64     `yaml:"omega,omitempty"`
	Sigma       [][]float64     `yaml:"sigma,omitempty"`
	Doses       []Dose          `yaml:"doses,omitempty"`
}

// PKModelSpec declares the closed-form PK skeleton.
type PKModelSpec struct {
	NCmt  int  `yaml:"ncmt"`
	Depot bool `yaml:"depot"`
}

// SetSpec holds simulation control settings.
type SetSpec struct {
	Delta float64 `yaml:"delta"`
	End   float64 `yaml:"end"`
}

// Estimates are the population parameters a card is simulated with.
type Estimates struct {
	Theta []float64
	Omega *mat.SymDense // between-subject covariance, ordered as OLabels
	Sigma *mat.SymDense // residual covariance, ordered as SLabels

	Table string  // .ext TABLE NO. line the estimates came from; empty when inline
	OFV   float64 // objective function value; NaN when inline or absent
}

// LoadModelSpec reads and parses a YAML model card.
// Uses strict parsing: unrecognized keys (typos) are rejected.
// A relative project path is resolved against the card's directory.
func LoadModelSpec(path string) (*ModelSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model card: %w", err)
	}
	spec, err := ParseModelSpec(data)
	if err != nil {
		return nil, err
	}
	if spec.Project != "" && !filepath.IsAbs(spec.Project) {
		spec.Project = filepath.Join(filepath.Dir(path), spec.Project)
	}
	return spec, nil
}

// ParseModelSpec parses a YAML model card from memory with strict field checking.
func ParseModelSpec(data []byte) (*ModelSpec, error) {
	var spec ModelSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing model card: %w", err)
	}
	return &spec, nil
}

// Validate checks the structure of the card. Parameter values themselves
// (THETA signs, ETA magnitudes) are not validated.
func (s *ModelSpec) Validate() error {
	if s.PKModel.NCmt != 1 {
		return fmt.Errorf("pkmodel.ncmt must be 1, got %d", s.PKModel.NCmt)
	}
	if s.PKModel.Depot {
		return ErrDepotUnsupported
	}
	if len(s.Cmt) != 1 || s.Cmt[0] != CentralCompartment {
		return fmt.Errorf("cmt must be [%s], got %v", CentralCompartment, s.Cmt)
	}
	if s.Observation != "" && !IsValidObservationMode(string(s.Observation)) {
		return fmt.Errorf("unknown observation %q; valid: central, concentration", s.Observation)
	}
	if len(s.Capture) == 0 {
		return fmt.Errorf("capture must list at least one output")
	}
	for _, c := range s.Capture {
		if !validCaptures[c] {
			return fmt.Errorf("unknown capture %q; valid: CENTRAL, CP, F, IPRED, Y, CL, V, ECL, EV, PROP", c)
		}
	}
	if _, err := TimeGrid(s.Set.Delta, s.Set.End); err != nil {
		return fmt.Errorf("set: %w", err)
	}
	if len(s.OLabels) != 2 {
		return fmt.Errorf("olabels must name exactly 2 random effects (ECL, EV), got %v", s.OLabels)
	}
	if len(s.SLabels) != 1 {
		return fmt.Errorf("slabels must name exactly 1 residual error (PROP), got %v", s.SLabels)
	}
	if s.Omega != nil {
		if _, err := symFromRows("omega", s.Omega, len(s.OLabels)); err != nil {
			return err
		}
	}
	if s.Sigma != nil {
		if _, err := symFromRows("sigma", s.Sigma, len(s.SLabels)); err != nil {
			return err
		}
	}
	for i, d := range s.Doses {
		if err := validateDose(d, i); err != nil {
			return err
		}
	}
	return nil
}

func validateDose(d Dose, idx int) error {
	prefix := fmt.Sprintf("doses[%d]", idx)
	for name, val := range map[string]float64{"time": d.Time, "amt": d.Amt, "rate": d.Rate, "ii": d.II} {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("%s.%s must be a finite number, got %f", prefix, name, val)
		}
		if val < 0 {
			return fmt.Errorf("%s.%s must be non-negative, got %f", prefix, name, val)
		}
	}
	if d.Addl < 0 {
		return fmt.Errorf("%s.addl must be non-negative, got %d", prefix, d.Addl)
	}
	if d.Addl > 0 && d.II <= 0 {
		return fmt.Errorf("%s: ii must be positive when addl > 0", prefix)
	}
	return nil
}

// ExtPath returns the NONMEM .ext file the card refers to: <project>/<run>/<run>.ext.
func (s *ModelSpec) ExtPath() string {
	return filepath.Join(s.Project, s.Run, s.Run+".ext")
}

// ResolveEstimates returns inline THETA/OMEGA/SIGMA, or loads them from the
// .ext file under Project when the card carries no inline THETA.
// Inline omega/sigma override the file's; missing matrices default to zero.
func (s *ModelSpec) ResolveEstimates() (*Estimates, error) {
	est := &Estimates{OFV: math.NaN()}
	if len(s.Theta) == 0 {
		if s.Project == "" {
			return nil, fmt.Errorf("card %q has no inline theta and no project to load estimates from", s.Run)
		}
		ext, err := nmext.ReadExt(s.ExtPath())
		if err != nil {
			return nil, fmt.Errorf("loading estimates for %q: %w", s.Run, err)
		}
		logrus.Debugf("loaded %d THETA from %s", len(ext.Theta), s.ExtPath())
		est.Theta = ext.Theta
		est.Omega = ext.Omega
		est.Sigma = ext.Sigma
		est.Table = ext.Table
		est.OFV = ext.OFV
	} else {
		est.Theta = append([]float64(nil), s.Theta...)
	}
	if len(est.Theta) < 2 {
		return nil, fmt.Errorf("need THETA1 and THETA2, got %d theta values", len(est.Theta))
	}
	for i, th := range est.Theta[:2] {
		if th <= 0 {
			logrus.Warnf("THETA%d = %g is not positive; CL or V will not be positive", i+1, th)
		}
	}

	var err error
	if s.Omega != nil {
		if est.Omega, err = symFromRows("omega", s.Omega, len(s.OLabels)); err != nil {
			return nil, err
		}
	}
	if s.Sigma != nil {
		if est.Sigma, err = symFromRows("sigma", s.Sigma, len(s.SLabels)); err != nil {
			return nil, err
		}
	}
	if est.Omega, err = fitSym("omega", est.Omega, len(s.OLabels)); err != nil {
		return nil, err
	}
	if est.Sigma, err = fitSym("sigma", est.Sigma, len(s.SLabels)); err != nil {
		return nil, err
	}
	return est, nil
}

// fitSym returns m, or a zero matrix of dimension n when m is nil.
// A larger matrix (e.g. a full .ext OMEGA block) is truncated to its leading n×n block.
func fitSym(name string, m *mat.SymDense, n int) (*mat.SymDense, error) {
	if m == nil {
		return mat.NewSymDense(n, nil), nil
	}
	dim := m.SymmetricDim()
	switch {
	case dim == n:
		return m, nil
	case dim > n:
		logrus.Warnf("%s has dimension %d; using leading %d×%d block", name, dim, n, n)
		return m.SliceSym(0, n).(*mat.SymDense), nil
	default:
		return nil, fmt.Errorf("%s has dimension %d, need at least %d", name, dim, n)
	}
}

// symFromRows converts a YAML row list into a symmetric matrix of dimension n.
func symFromRows(name string, rows [][]float64, n int) (*mat.SymDense, error) {
	if len(rows) != n {
		return nil, fmt.Errorf("%s must be %d×%d, got %d rows", name, n, n, len(rows))
	}
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("%s row %d must have %d entries, got %d", name, i, n, len(row))
		}
	}
	m := mat.NewSymDense(n, nil)
	for i, row := range rows {
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%s[%d][%d] must be a finite number, got %f", name, i, j, v)
			}
			if math.Abs(v-rows[j][i]) > 1e-12 {
				return nil, fmt.Errorf("%s must be symmetric: [%d][%d]=%g, [%d][%d]=%g", name, i, j, v, j, i, rows[j][i])
			}
			if j >= i {
				m.SetSym(i, j, v)
			}
		}
		if row[i] < 0 {
			return nil, fmt.Errorf("%s[%d][%d] is a variance and must be non-negative, got %g", name, i, i, row[i])
		}
	}
	return m, nil
}
