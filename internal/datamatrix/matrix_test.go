package datamatrix

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ratioTSV = "GENE\tc1\tc2\tc3\n" +
	"gB\t1.0\t2.0\t3.0\n" +
	"gA\t-1.0\t0.0\t1.0\n" +
	"gC\t5.0\tNA\t5.0\n"

func TestCreate_ParsesHeaderAndRows(t *testing.T) {
	f := NewFactory()
	m, err := f.Create(strings.NewReader(ratioTSV))
	require.NoError(t, err)

	assert.Equal(t, 3, m.NumRows())
	assert.Equal(t, 3, m.NumColumns())
	assert.Equal(t, []string{"gB", "gA", "gC"}, m.RowNames())
	assert.Equal(t, []string{"c1", "c2", "c3"}, m.ColumnNames())

	v, ok := m.Value("gA", 2)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	na, ok := m.Value("gC", 1)
	require.True(t, ok)
	assert.True(t, math.IsNaN(na))
}

func TestCreate_BadRowWidth(t *testing.T) {
	f := NewFactory()
	_, err := f.Create(strings.NewReader("GENE\tc1\tc2\ng1\t1.0\n"))
	require.Error(t, err)
}

func TestSortedByRowName(t *testing.T) {
	f := NewFactory()
	m, err := f.Create(strings.NewReader(ratioTSV))
	require.NoError(t, err)

	s := m.SortedByRowName()
	assert.Equal(t, []string{"gA", "gB", "gC"}, s.RowNames())

	// Values follow their rows.
	v, ok := s.Value("gB", 0)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	// Original untouched.
	assert.Equal(t, []string{"gB", "gA", "gC"}, m.RowNames())
}

func TestNoChangeFilter_DropsFlatRows(t *testing.T) {
	in := "GENE\tc1\tc2\tc3\n" +
		"flat\t2.0\t2.0\t2.0\n" +
		"live\t1.0\t2.0\t3.0\n" +
		"mostlyNA\t1.0\tNA\tNA\n"
	f := NewFactory(NoChangeFilter)
	m, err := f.Create(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"live"}, m.RowNames())
}

func TestCenterScaleFilter(t *testing.T) {
	f := NewFactory(CenterScaleFilter)
	m, err := f.Create(strings.NewReader("GENE\tc1\tc2\tc3\ng1\t1.0\t2.0\t3.0\n"))
	require.NoError(t, err)

	mean, n := m.RowMean(0)
	assert.Equal(t, 3, n)
	assert.InDelta(t, 0.0, mean, 1e-12)

	// Unit standard deviation after scaling.
	var ss float64
	for c := 0; c < 3; c++ {
		v, err := m.At(0, c)
		require.NoError(t, err)
		ss += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(ss/3.0), 1e-12)
}

func TestNew_RejectsDuplicateRows(t *testing.T) {
	_, err := New([]string{"g1", "g1"}, []string{"c1"})
	assert.ErrorIs(t, err, ErrDuplicateRow)
}
