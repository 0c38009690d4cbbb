package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// WriteCSV writes the header row then one line per Row.
// Floats use the shortest representation that round-trips.
func WriteCSV(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(t.Header()); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	record := make([]string, 2+len(t.Columns))
	for _, r := range t.Rows {
		record[0] = strconv.Itoa(r.ID)
		record[1] = formatFloat(r.Time)
		for i, v := range r.Values {
			record[2+i] = formatFloat(v)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("writing CSV row for ID %d: %w", r.ID, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}

// ExportCSV writes the table to path, overwriting any existing file.
func ExportCSV(t *Table, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating table file: %w", err)
	}
	if err := WriteCSV(file, t); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
