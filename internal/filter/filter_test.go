// Project: Latent Health Discretization and Filtration

package filter

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"latenthealth/internal/apperr"
	"latenthealth/internal/discretize"
)

// threeNode builds a discretization on nodes [-1, 0, 1] over three ages with
// survival 1 everywhere, the given transition at every age, one emission
// matrix per type and a uniform initial distribution.
func threeNode(trans *mat.Dense, typePrbs []float64, emission ...*mat.Dense) *discretize.Result {
	res := &discretize.Result{
		Grid:           discretize.NewHealthGrid(-1.5, 1.5, 3),
		Ages:           []float64{23, 24, 25},
		CategoryCounts: []int{2},
		TypePrbs:       typePrbs,
		ReportStds:     make([]float64, len(typePrbs)),
		Emission:       emission,
	}
	for s := 0; s < discretize.Sexes; s++ {
		for range res.Ages {
			res.Survival[s] = append(res.Survival[s], []float64{1, 1, 1})
			res.Transition[s] = append(res.Transition[s], trans)
			res.Initial[s] = append(res.Initial[s], []float64{1. / 3, 1. / 3, 1. / 3})
		}
	}
	return res
}

func identity() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
}

func sticky() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0.8, 0.1, 0.1,
		0.1, 0.8, 0.1,
		0.1, 0.1, 0.8,
	})
}

// category 1 below node 0, category 2 at or above it
func sharpEmission() *mat.Dense {
	return mat.NewDense(2, 3, []float64{
		1, 0, 0,
		0, 1, 1,
	})
}

func newEngine(res *discretize.Result, waveLength int) *Engine {
	return NewEngine(res, waveLength, 2, zap.NewNop().Sugar())
}

func TestFilterSingleObservation(t *testing.T) {
	res := threeNode(identity(), []float64{1}, sharpEmission())
	e := newEngine(res, 1)

	row, ok, err := e.Filter(0, 0, []int{2})
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, []float64{1}, row.TypePrbs)
	assert.InDelta(t, 0.5, row.Mean, 1e-12)
	assert.InDelta(t, 0.5, row.Stdev, 1e-12)
	assert.InDelta(t, 0., row.Skew, 1e-12)
	assert.InDelta(t, 1., row.Kurt, 1e-12)

	state := NewExpandedState(res, 0, 0)
	require.NoError(t, state.Observe(res, 1))
	assert.InDeltaSlice(t, []float64{0, 0.5, 0.5}, state.HealthMarginal(), 1e-12)
}

func TestFilterBoundary(t *testing.T) {
	res := threeNode(identity(), []float64{1}, sharpEmission())
	e := newEngine(res, 1)

	// nothing observed: the unconditional distribution at the first age
	row, ok, err := e.Filter(1, 0, []int{Missing, Missing})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 23., row.Age)
	assert.InDelta(t, 0., row.Mean, 1e-12)

	// a single report in the last wave needs no earlier ages
	_, ok, err = e.Filter(0, 0, []int{Missing, 2})
	require.NoError(t, err)
	assert.True(t, ok)

	// a report one wave before the first age is skipped, not an error
	_, ok, err = e.Filter(0, 0, []int{2, 2})
	require.NoError(t, err)
	assert.False(t, ok)

	// with two periods per wave the same history needs two earlier ages
	e2 := newEngine(res, 2)
	_, ok, err = e2.Filter(0, 1, []int{2, 2})
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = e2.Filter(0, 2, []int{2, 2})
	require.NoError(t, err)
	assert.True(t, ok)
}

// each period moves half of the mass one node up
func shiftUp() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0.5, 0.5, 0,
		0, 0.5, 0.5,
		0, 0, 1,
	})
}

func softEmission() *mat.Dense {
	return mat.NewDense(2, 3, []float64{
		0.9, 0.5, 0.1,
		0.1, 0.5, 0.9,
	})
}

func TestFilterMultiPeriodWaves(t *testing.T) {
	res := threeNode(shiftUp(), []float64{1}, softEmission())
	for s := 0; s < discretize.Sexes; s++ {
		for j := range res.Survival[s] {
			res.Survival[s][j] = []float64{0.5, 1, 1}
		}
	}

	// report 1 at age index 0, then two survive-and-advance periods to a
	// missing wave at age index 2: posterior (3/50, 47/150, 47/75)
	row, ok, err := newEngine(res, 2).Filter(0, 2, []int{1, Missing})
	require.NoError(t, err)
	require.True(t, ok)

	mean := 47./75 - 3./50
	assert.InDelta(t, 17./30, mean, 1e-15)
	assert.InDelta(t, mean, row.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(3./50+47./75-mean*mean), row.Stdev, 1e-12)
	assert.Equal(t, 25., row.Age)
}

func TestFilterInteriorMissing(t *testing.T) {
	res := threeNode(shiftUp(), []float64{1}, softEmission())

	// the middle wave updates nothing; posterior (9/376, 115/376, 252/376)
	row, ok, err := newEngine(res, 1).Filter(1, 2, []int{1, Missing, 2})
	require.NoError(t, err)
	require.True(t, ok)

	want := []float64{9. / 376, 115. / 376, 252. / 376}
	mean, stdev, skew, kurt := Moments(res.Grid.Nodes, want)
	assert.InDelta(t, 243./376, row.Mean, 1e-12)
	assert.InDelta(t, mean, row.Mean, 1e-12)
	assert.InDelta(t, stdev, row.Stdev, 1e-12)
	assert.InDelta(t, skew, row.Skew, 1e-10)
	assert.InDelta(t, kurt, row.Kurt, 1e-10)

	// observing the middle wave as well changes the answer
	both, _, err := newEngine(res, 1).Filter(1, 2, []int{1, 1, 2})
	require.NoError(t, err)
	assert.Less(t, both.Mean, row.Mean)
}

func TestFilterPointMass(t *testing.T) {
	res := threeNode(identity(), []float64{1}, sharpEmission())

	row, ok, err := newEngine(res, 1).Filter(0, 0, []int{1})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, -1., row.Mean)
	assert.Zero(t, row.Stdev)
	assert.Zero(t, row.Skew)
	assert.Zero(t, row.Kurt)

	var buf bytes.Buffer
	require.NoError(t, WriteTSV(&buf, []Row{row}, 1, 1))
	assert.NotContains(t, buf.String(), "NaN")
}

func TestFilterZeroPosterior(t *testing.T) {
	res := threeNode(identity(), []float64{1}, sharpEmission())
	e := newEngine(res, 1)

	// category 1 pins health at -1, and identity transitions never leave it
	_, _, err := e.Filter(0, 1, []int{1, 2})
	assert.ErrorIs(t, err, apperr.ErrNumericalDomain)

	_, err = e.Run(2)
	assert.ErrorIs(t, err, apperr.ErrNumericalDomain)
}

func TestFilterReportOutOfRange(t *testing.T) {
	res := threeNode(identity(), []float64{1}, sharpEmission())
	_, _, err := newEngine(res, 1).Filter(0, 0, []int{3})
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}

func TestRunTwoTypes(t *testing.T) {
	em1 := mat.NewDense(2, 3, []float64{
		0.9, 0.5, 0.1,
		0.1, 0.5, 0.9,
	})
	em2 := mat.NewDense(2, 3, []float64{
		0.6, 0.5, 0.4,
		0.4, 0.5, 0.6,
	})
	res := threeNode(sticky(), []float64{0.3, 0.7}, em1, em2)

	rows, err := newEngine(res, 1).Run(2)
	require.NoError(t, err)

	// 9 histories per cell; at the first age only the 3 starting with a gap survive
	require.Len(t, rows, discretize.Sexes*(3+9+9))

	for i, row := range rows {
		assert.InDelta(t, 1., floats.Sum(row.TypePrbs), 1e-12, "row %d", i)
		if i > 0 {
			prev := rows[i-1]
			ordered := prev.Sex < row.Sex || (prev.Sex == row.Sex && prev.Age <= row.Age)
			assert.True(t, ordered, "row %d out of order", i)
		}
	}
	assert.Equal(t, 0, rows[0].Sex)
	assert.Equal(t, 23., rows[0].Age)
	assert.Equal(t, []int{Missing, Missing}, rows[0].Sequence)
	assert.InDeltaSlice(t, []float64{0.3, 0.7}, rows[0].TypePrbs, 1e-12)

	// an informative report moves weight toward the type that explains it
	row, ok, err := newEngine(res, 1).Filter(0, 1, []int{2, 2})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Greater(t, row.Mean, 0.)
	assert.Greater(t, row.TypePrbs[0], 0.3)
}

func TestRunRejectsBadLength(t *testing.T) {
	res := threeNode(sticky(), []float64{1}, sharpEmission())
	_, err := newEngine(res, 1).Run(0)
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
	_, err = newEngine(res, 0).Run(2)
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}

func TestSequences(t *testing.T) {
	seqs := Sequences(2, 2)
	assert.Equal(t, [][]int{
		{Missing, Missing}, {Missing, 1}, {Missing, 2},
		{1, Missing}, {1, 1}, {1, 2},
		{2, Missing}, {2, 1}, {2, 2},
	}, seqs)

	assert.Len(t, Sequences(3, 5), 216)
}

func TestSpanOf(t *testing.T) {
	tests := []struct {
		seq  []int
		wave int
		want span
	}{
		{[]int{Missing, Missing, Missing}, 2, span{leadingMissing: 3, periods: 0}},
		{[]int{Missing, Missing, 4}, 2, span{leadingMissing: 2, periods: 0}},
		{[]int{Missing, 3, 4}, 2, span{leadingMissing: 1, periods: 2}},
		{[]int{1, Missing, 4}, 2, span{leadingMissing: 0, periods: 4}},
		{[]int{1, Missing, Missing}, 1, span{leadingMissing: 0, periods: 2}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, spanOf(tt.seq, tt.wave), "%v", tt.seq)
	}
}

func TestMoments(t *testing.T) {
	mean, stdev, skew, kurt := Moments([]float64{-1, 0, 1}, []float64{0.25, 0.5, 0.25})
	assert.InDelta(t, 0., mean, 1e-12)
	assert.InDelta(t, 0.7071067811865476, stdev, 1e-12)
	assert.InDelta(t, 0., skew, 1e-12)
	assert.InDelta(t, 2., kurt, 1e-12)
}

func TestMomentsPointMass(t *testing.T) {
	mean, stdev, skew, kurt := Moments([]float64{-1, 0, 1}, []float64{1, 0, 0})
	assert.Equal(t, -1., mean)
	assert.Zero(t, stdev)
	assert.Zero(t, skew)
	assert.Zero(t, kurt)
}

func TestHeader(t *testing.T) {
	assert.Equal(t, []string{
		"sex", "age", "SRHStm2", "SRHStm1", "SRHSt",
		"typeprob1", "typeprob2",
		"healthmean", "healthstdev", "healthskew", "healthkurt",
	}, Header(3, 2))
}

func TestWriteTSV(t *testing.T) {
	rows := []Row{{
		Sex: 1, Age: 50, Sequence: []int{Missing, 3},
		TypePrbs: []float64{1}, Mean: 0.5, Stdev: 0.25, Skew: 0, Kurt: 3,
	}}
	var buf bytes.Buffer
	require.NoError(t, WriteTSV(&buf, rows, 2, 1))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "sex\tage\tSRHStm1\tSRHSt\ttypeprob1\thealthmean\thealthstdev\thealthskew\thealthkurt", lines[0])
	assert.Equal(t, "1\t50\t-1\t3\t1\t0.5\t0.25\t0\t3", lines[1])
}

func TestWriteFileFormats(t *testing.T) {
	res := threeNode(sticky(), []float64{1}, mat.NewDense(2, 3, []float64{0.7, 0.5, 0.3, 0.3, 0.5, 0.7}))
	rows, err := newEngine(res, 1).Run(1)
	require.NoError(t, err)
	require.Len(t, rows, discretize.Sexes*3*3)

	dir := t.TempDir()

	tsv := filepath.Join(dir, "ConditionalHealthDstn.txt")
	require.NoError(t, WriteFile(tsv, rows, 1, 1))

	xlsx := filepath.Join(dir, "ConditionalHealthDstn.xlsx")
	require.NoError(t, WriteFile(xlsx, rows, 1, 1))

	f, err := excelize.OpenFile(xlsx)
	require.NoError(t, err)
	defer f.Close()
	got, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, got, len(rows)+1)
	assert.Equal(t, Header(1, 1), got[0])
}
