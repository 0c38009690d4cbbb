package table

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleTable(t *testing.T) *Table {
	t.Helper()
	tbl := New([]string{"IPRED", "Y"})
	require.NoError(t, tbl.Append(1, 0, []float64{8, 8.4}))
	require.NoError(t, tbl.Append(1, 0.1, []float64{7.5, 7}))
	require.NoError(t, tbl.Append(2, 0, []float64{10, 9}))
	require.NoError(t, tbl.Append(2, 0.1, []float64{9.25, 10.5}))
	return tbl
}

func TestTable_AppendRejectsWrongWidth(t *testing.T) {
	tbl := New([]string{"CP", "Y"})
	err := tbl.Append(1, 0, []float64{1})
	assert.Error(t, err)
	assert.Empty(t, tbl.Rows)
}

func TestTable_NewCopiesColumns(t *testing.T) {
	cols := []string{"CP", "Y"}
	tbl := New(cols)
	cols[0] = "IPRED"
	assert.Equal(t, []string{"CP", "Y"}, tbl.Columns)
}

func TestTable_ColumnAndIndividual(t *testing.T) {
	tbl := sampleTable(t)

	y, err := tbl.Column("Y")
	require.NoError(t, err)
	assert.Equal(t, []float64{8.4, 7, 9, 10.5}, y)

	_, err = tbl.Column("CP")
	assert.Error(t, err)

	rows := tbl.Individual(2)
	require.Len(t, rows, 2)
	assert.Equal(t, 0.1, rows[1].Time)
	assert.Nil(t, tbl.Individual(3))

	assert.Equal(t, []string{"ID", "time", "IPRED", "Y"}, tbl.Header())
}

func TestWriteCSV_HeaderAndRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTable(t)))

	want := "ID,time,IPRED,Y\n" +
		"1,0,8,8.4\n" +
		"1,0.1,7.5,7\n" +
		"2,0,10,9\n" +
		"2,0.1,9.25,10.5\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCSV_EmptyTable_HeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, New([]string{"CP", "Y"})))
	assert.Equal(t, "ID,time,CP,Y\n", buf.String())
}

func TestWriteCSV_FullPrecision(t *testing.T) {
	step, third := 0.1, 1.0
	tbl := New([]string{"CP"})
	require.NoError(t, tbl.Append(1, step*3, []float64{third / 3}))
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, tbl))
	assert.Contains(t, buf.String(), "0.30000000000000004,0.3333333333333333")
}

func TestExportCSV_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, ExportCSV(sampleTable(t), path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "ID,time,IPRED,Y\n"))
	assert.Equal(t, 5, strings.Count(string(data), "\n"))
}

func TestSummarize_NilAndEmpty(t *testing.T) {
	for _, tbl := range []*Table{nil, New([]string{"Y"})} {
		s := Summarize(tbl)
		require.NotNil(t, s)
		assert.Equal(t, 0, s.Individuals)
		assert.Equal(t, 0, s.Rows)
		assert.Empty(t, s.Columns)
	}
}

func TestSummarize_PerTimeStatistics(t *testing.T) {
	s := Summarize(sampleTable(t))

	assert.Equal(t, 2, s.Individuals)
	assert.Equal(t, 4, s.Rows)
	require.Len(t, s.Columns["IPRED"], 2)

	first := s.Columns["IPRED"][0]
	assert.Equal(t, 0.0, first.Time)
	assert.Equal(t, 2, first.N)
	assert.Equal(t, 9.0, first.Mean)
	assert.Equal(t, 8.0, first.P05)
	assert.Equal(t, 8.0, first.Median, "empirical quantile picks an observed value")
	assert.Equal(t, 10.0, first.P95)

	second := s.Columns["Y"][1]
	assert.Equal(t, 0.1, second.Time)
	assert.Equal(t, 8.75, second.Mean)
}

func TestSummarize_ExcludesNaN(t *testing.T) {
	tbl := New([]string{"Y"})
	require.NoError(t, tbl.Append(1, 0, []float64{math.NaN()}))
	require.NoError(t, tbl.Append(2, 0, []float64{4}))
	require.NoError(t, tbl.Append(1, 1, []float64{math.NaN()}))

	s := Summarize(tbl)
	assert.Equal(t, 1, s.Columns["Y"][0].N)
	assert.Equal(t, 4.0, s.Columns["Y"][0].Mean)
	assert.Equal(t, 0, s.Columns["Y"][1].N)
	assert.True(t, math.IsNaN(s.Columns["Y"][1].Mean))
}

func TestSummary_WriteYAML(t *testing.T) {
	tbl := New([]string{"Y"})
	require.NoError(t, tbl.Append(1, 0, []float64{math.NaN()}))
	require.NoError(t, tbl.Append(1, 1, []float64{2}))

	var buf bytes.Buffer
	require.NoError(t, Summarize(tbl).WriteYAML(&buf))
	assert.Contains(t, buf.String(), ".nan")

	var decoded Summary
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 1, decoded.Individuals)
	require.Len(t, decoded.Columns["Y"], 2)
	assert.Equal(t, 2.0, decoded.Columns["Y"][1].P95)
}
