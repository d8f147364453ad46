// internal/datamatrix/reader.go
package datamatrix

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ErrEmptyInput is returned when the ratio file has no data rows.
var ErrEmptyInput = errors.New("datamatrix: empty input")

// Filter transforms a matrix during factory construction. Filters run in
// the order they were registered.
type Filter func(*DataMatrix) (*DataMatrix, error)

// Factory builds normalized matrices from delimited ratio files.
type Factory struct {
	Sep     rune // field separator, default '\t'
	Filters []Filter
}

// NewFactory returns a factory applying the given filters in order.
func NewFactory(filters ...Filter) *Factory {
	return &Factory{Sep: '\t', Filters: filters}
}

// CreateFromFile reads a delimited ratio file (gzip transparent) and applies
// the factory's filters.
func (f *Factory) CreateFromFile(path string) (*DataMatrix, error) {
	rc, err := OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("datamatrix: open %s: %w", path, err)
	}
	defer func() { _ = rc.Close() }()
	m, err := f.Create(rc)
	if err != nil {
		return nil, fmt.Errorf("datamatrix: read %s: %w", path, err)
	}
	return m, nil
}

// Create reads a delimited table with a header line of condition names and
// one row per gene, applying the factory's filters.
func (f *Factory) Create(r io.Reader) (*DataMatrix, error) {
	sep := f.Sep
	if sep == 0 {
		sep = '\t'
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var colNames []string
	var rowNames []string
	var rows [][]float64
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r\n")
		if line == "" {
			continue
		}
		fields := splitUnquote(line, sep)
		if colNames == nil {
			// Header: first field is the row-name column label.
			if len(fields) < 2 {
				return nil, fmt.Errorf("datamatrix: header needs at least one condition, got %q", line)
			}
			colNames = fields[1:]
			continue
		}
		if len(fields) != len(colNames)+1 {
			return nil, fmt.Errorf("datamatrix: row %q has %d fields, want %d", fields[0], len(fields), len(colNames)+1)
		}
		vals := make([]float64, len(colNames))
		for i, fv := range fields[1:] {
			vals[i] = parseValue(fv)
		}
		rowNames = append(rowNames, fields[0])
		rows = append(rows, vals)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}

	m, err := New(rowNames, colNames)
	if err != nil {
		return nil, err
	}
	for r0, vals := range rows {
		for c, v := range vals {
			_ = m.Set(r0, c, v)
		}
	}
	for _, filter := range f.Filters {
		if m, err = filter(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func parseValue(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "NA" || s == "NaN" || s == "null" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// splitUnquote splits on sep and strips surrounding double quotes per field.
func splitUnquote(line string, sep rune) []string {
	fields := strings.Split(line, string(sep))
	for i, f := range fields {
		f = strings.TrimSpace(f)
		if len(f) >= 2 && f[0] == '"' && f[len(f)-1] == '"' {
			f = f[1 : len(f)-1]
		}
		fields[i] = f
	}
	return fields
}

// NoChangeFilter drops rows whose finite values barely deviate from the row
// mean, plus rows that are mostly missing. Flat rows carry no clustering
// signal and inflate the background model.
func NoChangeFilter(m *DataMatrix) (*DataMatrix, error) {
	const minSpread = 1e-9
	cols := m.NumColumns()
	var keep []string
	for r, name := range m.rowNames {
		mean, n := m.RowMean(r)
		if n < cols/2 || n < 2 {
			continue
		}
		spread := 0.0
		for c := 0; c < cols; c++ {
			v := m.data[r*cols+c]
			if math.IsNaN(v) {
				continue
			}
			if d := math.Abs(v - mean); d > spread {
				spread = d
			}
		}
		if spread > minSpread {
			keep = append(keep, name)
		}
	}
	if len(keep) == 0 {
		return nil, ErrEmptyInput
	}
	return m.selectRows(keep)
}

// CenterScaleFilter centers each row at zero and scales it to unit standard
// deviation. Rows with zero variance survive NoChangeFilter only in
// pathological inputs and are centered without scaling.
func CenterScaleFilter(m *DataMatrix) (*DataMatrix, error) {
	cols := m.NumColumns()
	for r := range m.rowNames {
		mean, n := m.RowMean(r)
		if n == 0 {
			continue
		}
		variance := 0.0
		for c := 0; c < cols; c++ {
			v := m.data[r*cols+c]
			if !math.IsNaN(v) {
				d := v - mean
				variance += d * d
			}
		}
		variance /= float64(n)
		sd := math.Sqrt(variance)
		for c := 0; c < cols; c++ {
			v := m.data[r*cols+c]
			if math.IsNaN(v) {
				continue
			}
			if sd > 0 {
				m.data[r*cols+c] = (v - mean) / sd
			} else {
				m.data[r*cols+c] = v - mean
			}
		}
	}
	return m, nil
}

func (m *DataMatrix) selectRows(names []string) (*DataMatrix, error) {
	out, err := New(names, m.colNames)
	if err != nil {
		return nil, err
	}
	cols := len(m.colNames)
	for newRow, name := range names {
		oldRow, ok := m.rowIndex[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrOutOfRange, name)
		}
		copy(out.data[newRow*cols:(newRow+1)*cols], m.data[oldRow*cols:(oldRow+1)*cols])
	}
	return out, nil
}
