// Package testutil provides shared test infrastructure for the PK solvers.
// It loads the closed-form reference dataset and holds assertion helpers
// used across sim/ test packages. It has no dependencies on sim/.
package testutil

import (
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"gopkg.in/yaml.v3"
)

// ReferenceDataset represents the structure of testdata/pk_reference.yaml.
type ReferenceDataset struct {
	Cases []ReferenceCase `yaml:"cases"`
}

// ReferenceCase is one dosing scenario with its expected CENTRAL amounts.
type ReferenceCase struct {
	Name    string          `yaml:"name"`
	CL      float64         `yaml:"cl"`
	V       float64         `yaml:"v"`
	Doses   []ReferenceDose `yaml:"doses"`
	Times   []float64       `yaml:"times"`
	Central []float64       `yaml:"central"` // expected amount at each of Times
}

// ReferenceDose mirrors a dosing record in the dataset.
type ReferenceDose struct {
	Time float64 `yaml:"time"`
	Amt  float64 `yaml:"amt"`
	Rate float64 `yaml:"rate"`
	II   float64 `yaml:"ii"`
	Addl int     `yaml:"addl"`
}

// LoadReferenceDataset loads the reference dataset from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func LoadReferenceDataset(t *testing.T) *ReferenceDataset {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "pk_reference.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read reference dataset: %v", err)
	}

	var dataset ReferenceDataset
	if err := yaml.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse reference dataset: %v", err)
	}
	for _, c := range dataset.Cases {
		if len(c.Times) != len(c.Central) {
			t.Fatalf("reference case %q: %d times but %d expected values", c.Name, len(c.Times), len(c.Central))
		}
	}
	return &dataset
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
