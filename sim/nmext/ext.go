// Package nmext reads parameter estimates from NONMEM .ext files.
// This package has no dependencies on sim/ and returns pure data types.
package nmext

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// FinalEstimateIteration marks the row holding final parameter estimates.
const FinalEstimateIteration = -1000000000

// ErrNoFinalEstimates is returned when the last table has no final-estimate row.
var ErrNoFinalEstimates = errors.New("no final estimate row (ITERATION=-1000000000)")

// Estimates holds the final THETA, OMEGA and SIGMA of one estimation table.
type Estimates struct {
	Table string    // the TABLE NO. line the estimates came from
	Theta []float64 // THETA1..THETAn
	Omega *mat.SymDense
	Sigma *mat.SymDense
	OFV   float64 // objective function value (OBJ column), NaN if absent
}

var matrixColumn = regexp.MustCompile(`^(OMEGA|SIGMA)\((\d+),(\d+)\)$`)

// ReadExt reads the final estimates from the .ext file at path.
func ReadExt(path string) (*Estimates, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening ext file: %w", err)
	}
	defer func() { _ = f.Close() }()
	est, err := ParseExt(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return est, nil
}

// table is one TABLE NO. block: its title, header columns and final row.
type table struct {
	title   string
	columns []string
	final   []float64
}

// ParseExt parses an .ext stream and returns the final estimates of its last table.
func ParseExt(r io.Reader) (*Estimates, error) {
	var tables []*table
	var cur *table

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "TABLE NO."):
			cur = &table{title: line}
			tables = append(tables, cur)
		case strings.HasPrefix(line, "ITERATION"):
			if cur == nil {
				cur = &table{}
				tables = append(tables, cur)
			}
			cur.columns = strings.Fields(line)
		default:
			if cur == nil || cur.columns == nil {
				return nil, fmt.Errorf("line %d: data row before header", lineNo)
			}
			fields := strings.Fields(line)
			if len(fields) != len(cur.columns) {
				return nil, fmt.Errorf("line %d: %d values for %d columns", lineNo, len(fields), len(cur.columns))
			}
			iter, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: ITERATION %q: %w", lineNo, fields[0], err)
			}
			if int64(iter) != FinalEstimateIteration {
				continue
			}
			row := make([]float64, len(fields))
			for i, fv := range fields {
				if row[i], err = strconv.ParseFloat(fv, 64); err != nil {
					return nil, fmt.Errorf("line %d: column %s value %q: %w", lineNo, cur.columns[i], fv, err)
				}
			}
			cur.final = row
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ext: %w", err)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("no estimation tables found")
	}
	last := tables[len(tables)-1]
	if last.final == nil {
		return nil, ErrNoFinalEstimates
	}
	return last.estimates()
}

// estimates converts the final row into THETA, OMEGA and SIGMA.
func (t *table) estimates() (*Estimates, error) {
	est := &Estimates{Table: t.title, OFV: math.NaN()}
	thetas := map[int]float64{}
	omega := map[[2]int]float64{}
	sigma := map[[2]int]float64{}
	omegaDim, sigmaDim, thetaDim := 0, 0, 0

	for i, col := range t.columns {
		val := t.final[i]
		switch {
		case col == "ITERATION":
		case col == "OBJ":
			est.OFV = val
		case strings.HasPrefix(col, "THETA"):
			idx, err := strconv.Atoi(strings.TrimPrefix(col, "THETA"))
			if err != nil || idx < 1 {
				return nil, fmt.Errorf("bad THETA column %q", col)
			}
			thetas[idx] = val
			thetaDim = max(thetaDim, idx)
		default:
			m := matrixColumn.FindStringSubmatch(col)
			if m == nil {
				continue
			}
			i, _ := strconv.Atoi(m[2])
			j, _ := strconv.Atoi(m[3])
			if i < 1 || j < 1 {
				return nil, fmt.Errorf("bad matrix column %q", col)
			}
			key := [2]int{i - 1, j - 1}
			if m[1] == "OMEGA" {
				omega[key] = val
				omegaDim = max(omegaDim, i, j)
			} else {
				sigma[key] = val
				sigmaDim = max(sigmaDim, i, j)
			}
		}
	}

	est.Theta = make([]float64, thetaDim)
	for idx, v := range thetas {
		est.Theta[idx-1] = v
	}
	est.Omega = buildSym(omegaDim, omega)
	est.Sigma = buildSym(sigmaDim, sigma)
	return est, nil
}

// buildSym fills a symmetric matrix from (row, col) entries of either triangle.
// Returns nil for dimension 0.
func buildSym(n int, entries map[[2]int]float64) *mat.SymDense {
	if n == 0 {
		return nil
	}
	m := mat.NewSymDense(n, nil)
	for k, v := range entries {
		m.SetSym(k[0], k[1], v)
	}
	return m
}
