// internal/datamatrix/matrix.go
// Package datamatrix holds the gene-expression matrix consumed by the
// scoring functions: rows are genes, columns are measurement conditions,
// values are normalized expression levels.
package datamatrix

import (
	"errors"
	"math"
	"sort"
)

var (
	// ErrBadShape is returned when a matrix is created with no rows or columns.
	ErrBadShape = errors.New("datamatrix: invalid shape")
	// ErrOutOfRange indicates a row or column index outside valid bounds.
	ErrOutOfRange = errors.New("datamatrix: index out of range")
	// ErrDuplicateRow indicates a duplicate gene name among the row names.
	ErrDuplicateRow = errors.New("datamatrix: duplicate row name")
)

// DataMatrix is a dense row-major expression matrix with named rows (genes)
// and named columns (conditions). Values may be NaN for missing measurements.
type DataMatrix struct {
	rowNames []string
	colNames []string
	rowIndex map[string]int
	data     []float64 // len == rows*cols
}

// New creates a matrix of the given row/column names initialized to NaN.
func New(rowNames, colNames []string) (*DataMatrix, error) {
	if len(rowNames) == 0 || len(colNames) == 0 {
		return nil, ErrBadShape
	}
	idx := make(map[string]int, len(rowNames))
	for i, name := range rowNames {
		if _, dup := idx[name]; dup {
			return nil, ErrDuplicateRow
		}
		idx[name] = i
	}
	data := make([]float64, len(rowNames)*len(colNames))
	for i := range data {
		data[i] = math.NaN()
	}
	return &DataMatrix{
		rowNames: append([]string(nil), rowNames...),
		colNames: append([]string(nil), colNames...),
		rowIndex: idx,
		data:     data,
	}, nil
}

// NumRows returns the number of genes.
func (m *DataMatrix) NumRows() int { return len(m.rowNames) }

// NumColumns returns the number of conditions.
func (m *DataMatrix) NumColumns() int { return len(m.colNames) }

// RowNames returns the gene names in row order.
func (m *DataMatrix) RowNames() []string { return append([]string(nil), m.rowNames...) }

// ColumnNames returns the condition names in column order.
func (m *DataMatrix) ColumnNames() []string { return append([]string(nil), m.colNames...) }

// RowIndex returns the row position of a gene name.
func (m *DataMatrix) RowIndex(name string) (int, bool) {
	i, ok := m.rowIndex[name]
	return i, ok
}

// At returns the value at (row, col).
func (m *DataMatrix) At(row, col int) (float64, error) {
	if row < 0 || row >= len(m.rowNames) || col < 0 || col >= len(m.colNames) {
		return 0, ErrOutOfRange
	}
	return m.data[row*len(m.colNames)+col], nil
}

// Set stores a value at (row, col).
func (m *DataMatrix) Set(row, col int, v float64) error {
	if row < 0 || row >= len(m.rowNames) || col < 0 || col >= len(m.colNames) {
		return ErrOutOfRange
	}
	m.data[row*len(m.colNames)+col] = v
	return nil
}

// Value returns the value for a named gene at the given column, with ok=false
// when the gene is absent.
func (m *DataMatrix) Value(gene string, col int) (float64, bool) {
	row, ok := m.rowIndex[gene]
	if !ok || col < 0 || col >= len(m.colNames) {
		return 0, false
	}
	return m.data[row*len(m.colNames)+col], true
}

// SortedByRowName returns a copy of the matrix with rows sorted by gene name.
// Downstream membership seeding depends on this order being stable.
func (m *DataMatrix) SortedByRowName() *DataMatrix {
	order := make([]int, len(m.rowNames))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return m.rowNames[order[a]] < m.rowNames[order[b]]
	})

	cols := len(m.colNames)
	out := &DataMatrix{
		rowNames: make([]string, len(m.rowNames)),
		colNames: append([]string(nil), m.colNames...),
		rowIndex: make(map[string]int, len(m.rowNames)),
		data:     make([]float64, len(m.data)),
	}
	for newRow, oldRow := range order {
		out.rowNames[newRow] = m.rowNames[oldRow]
		out.rowIndex[out.rowNames[newRow]] = newRow
		copy(out.data[newRow*cols:(newRow+1)*cols], m.data[oldRow*cols:(oldRow+1)*cols])
	}
	return out
}

// RowMean returns the mean of the finite values in a row, and the count of
// finite values seen.
func (m *DataMatrix) RowMean(row int) (mean float64, n int) {
	cols := len(m.colNames)
	for c := 0; c < cols; c++ {
		v := m.data[row*cols+c]
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			mean += v
			n++
		}
	}
	if n > 0 {
		mean /= float64(n)
	}
	return mean, n
}
