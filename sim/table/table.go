// Package table holds simulation output: one row per (individual, time) pair
// with the captured columns. This package has no dependencies on sim/.
package table

import "fmt"

// Fixed leading columns of every table.
const (
	ColumnID   = "ID"
	ColumnTime = "time"
)

// Row is one output record.
type Row struct {
	ID     int
	Time   float64
	Values []float64 // same order as Table.Columns
}

// Table is the simulation output for a population.
type Table struct {
	Columns []string // captured column names, excluding ID and time
	Rows    []Row
}

// New creates an empty table with the given capture columns.
func New(columns []string) *Table {
	return &Table{
		Columns: append([]string(nil), columns...),
		Rows:    make([]Row, 0),
	}
}

// Append adds a row; len(values) must match the column count.
func (t *Table) Append(id int, time float64, values []float64) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("row for ID %d at time %g has %d values, want %d", id, time, len(values), len(t.Columns))
	}
	t.Rows = append(t.Rows, Row{ID: id, Time: time, Values: values})
	return nil
}

// ColumnIndex returns the index of name within Columns, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns every value of the named capture column in row order.
func (t *Table) Column(name string) ([]float64, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("unknown column %q; have %v", name, t.Columns)
	}
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Values[idx]
	}
	return out, nil
}

// Individual returns the rows belonging to one ID, in table order.
func (t *Table) Individual(id int) []Row {
	var out []Row
	for _, r := range t.Rows {
		if r.ID == id {
			out = append(out, r)
		}
	}
	return out
}

// Header returns the full column list including ID and time.
func (t *Table) Header() []string {
	return append([]string{ColumnID, ColumnTime}, t.Columns...)
}
