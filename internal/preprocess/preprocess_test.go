package preprocess

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/filialcluster/internal/frame"
	"github.com/KaramelBytes/filialcluster/internal/schema"
	"github.com/KaramelBytes/filialcluster/internal/synth"
)

func toFrame(t *testing.T, cols []string, rows [][]any) *frame.Frame {
	t.Helper()
	series := make([]*frame.Series, len(cols))
	for j, name := range cols {
		if _, isText := rows[0][j].(string); isText {
			vals := make([]string, len(rows))
			null := make([]bool, len(rows))
			for i, r := range rows {
				if r[j] == nil {
					null[i] = true
					continue
				}
				vals[i] = r[j].(string)
			}
			series[j] = frame.NewText(name, vals, null)
			continue
		}
		vals := make([]float64, len(rows))
		for i, r := range rows {
			switch x := r[j].(type) {
			case nil:
				vals[i] = math.NaN()
			case int64:
				vals[i] = float64(x)
			case float64:
				vals[i] = x
			}
		}
		series[j] = frame.NewNumeric(name, vals)
	}
	f, err := frame.New(series...)
	require.NoError(t, err)
	return f
}

func defaultOptions() Options {
	return Options{IndexColumn: schema.ColBranch, LabelColumn: schema.ColRegion, DropColumns: schema.DropColumns}
}

func TestRunShapesFeatureTable(t *testing.T) {
	cols, rows := synth.Branches(50, 3, 1)
	in := toFrame(t, cols, rows)

	res, err := Run(in, defaultOptions(), nil)
	require.NoError(t, err)

	r, c := res.Frame.Shape()
	require.Equal(t, 50, r)
	require.Equal(t, 13, c) // 19 - 5 dropped - index
	require.Equal(t, 50, res.Features.Rows())
	require.Len(t, res.Features.Names, 12)
	xr, xc := res.Features.X.Dims()
	require.Equal(t, 50, xr)
	require.Equal(t, 12, xc)
	require.Empty(t, res.Missing)
	require.Empty(t, res.Filled)
	require.Equal(t, "1", res.Features.Keys[0])
	require.Equal(t, synth.Regions[1], res.Features.Labels[1])
}

func TestRunDropsExactlyTheConfiguredColumns(t *testing.T) {
	cols, rows := synth.Branches(10, 2, 1)
	in := toFrame(t, cols, rows)

	res, err := Run(in, defaultOptions(), nil)
	require.NoError(t, err)

	kept := map[string]bool{}
	for _, n := range res.Frame.Names() {
		kept[n] = true
	}
	for _, d := range schema.DropColumns {
		require.False(t, kept[d], d)
	}
	for _, n := range in.Names() {
		if n == schema.ColBranch || contains(schema.DropColumns, n) {
			continue
		}
		require.True(t, kept[n], "column %q removed", n)
	}
	require.NotContains(t, res.Features.Names, schema.ColRegion)
}

func TestRunFillsMissingWithColumnMeans(t *testing.T) {
	cols, rows := synth.Branches(6, 2, 3)
	revIdx := indexOf(cols, schema.ColRevenue)
	regIdx := indexOf(cols, schema.ColRegion)
	var sum float64
	for i, r := range rows {
		if i == 2 {
			continue
		}
		sum += r[revIdx].(float64)
	}
	rows[2][revIdx] = nil
	rows[4][regIdx] = nil
	in := toFrame(t, cols, rows)

	res, err := Run(in, defaultOptions(), nil)
	require.NoError(t, err)
	require.Len(t, res.Missing, 2)
	require.Equal(t, "3", res.Missing[0].Key)
	require.Equal(t, []string{schema.ColRevenue}, res.Missing[0].Columns)

	require.Len(t, res.Filled, 1)
	fill := res.Filled[0]
	require.Equal(t, schema.ColRevenue, fill.Column)
	require.Equal(t, 1, fill.Count)
	require.InDelta(t, sum/5, fill.Value, 1e-6)
	require.False(t, fill.Fallback)

	j := indexOf(res.Features.Names, schema.ColRevenue)
	require.InDelta(t, sum/5, res.Features.X.At(2, j), 1e-6)
	require.Equal(t, UnknownLabel, res.Features.Labels[4])
	require.Empty(t, res.Frame.RowsWithMissing())
}

func TestRunFillsNumericRegionCodes(t *testing.T) {
	cols, rows := synth.Branches(5, 2, 3)
	regIdx := indexOf(cols, schema.ColRegion)
	for i, r := range rows {
		r[regIdx] = int64(i%2 + 1)
	}
	rows[3][regIdx] = nil
	in := toFrame(t, cols, rows)

	res, err := Run(in, defaultOptions(), nil)
	require.NoError(t, err)
	require.Len(t, res.Missing, 1)
	require.Equal(t, []string{"1", "2", "1", UnknownLabel, "1"}, res.Features.Labels)
	require.Empty(t, res.Frame.RowsWithMissing())
	s, ok := res.Frame.Column(schema.ColRegion)
	require.True(t, ok)
	require.Equal(t, frame.Text, s.Kind)
	require.Equal(t, UnknownLabel, s.Value(3))
}

func TestRunFallsBackToZeroForEmptyColumn(t *testing.T) {
	cols, rows := synth.Branches(4, 2, 3)
	k := indexOf(cols, "Anteil Feinkost")
	for _, r := range rows {
		r[k] = nil
	}
	res, err := Run(toFrame(t, cols, rows), defaultOptions(), nil)
	require.NoError(t, err)
	require.Len(t, res.Filled, 1)
	require.True(t, res.Filled[0].Fallback)
	require.Equal(t, 4, res.Filled[0].Count)
	j := indexOf(res.Features.Names, "Anteil Feinkost")
	for i := 0; i < 4; i++ {
		require.Equal(t, 0.0, res.Features.X.At(i, j))
	}
}

func TestRunRejectsDuplicateBranchIDs(t *testing.T) {
	cols, rows := synth.Branches(5, 2, 3)
	rows[3][0] = int64(2)
	_, err := Run(toFrame(t, cols, rows), defaultOptions(), nil)
	var dup *frame.DuplicateKeyError
	require.True(t, errors.As(err, &dup))
	require.Equal(t, []string{"2"}, dup.Keys)
}

func TestRunRejectsTextFeature(t *testing.T) {
	cols, rows := synth.Branches(3, 1, 3)
	k := indexOf(cols, schema.ColSalesArea)
	for _, r := range rows {
		r[k] = "groß"
	}
	_, err := Run(toFrame(t, cols, rows), defaultOptions(), nil)
	var te *schema.ColumnTypeError
	require.True(t, errors.As(err, &te))
	require.Equal(t, schema.ColSalesArea, te.Column)
}

func TestSubsetKeepsOrder(t *testing.T) {
	cols, rows := synth.Branches(5, 2, 3)
	res, err := Run(toFrame(t, cols, rows), defaultOptions(), nil)
	require.NoError(t, err)

	sub := res.Features.Subset([]int{4, 0})
	require.Equal(t, []string{"5", "1"}, sub.Keys)
	require.Equal(t, res.Features.X.At(4, 1), sub.X.At(0, 1))
	require.Equal(t, res.Features.Labels[0], sub.Labels[1])
}

func indexOf(xs []string, s string) int {
	for i, x := range xs {
		if x == s {
			return i
		}
	}
	return -1
}

func contains(xs []string, s string) bool { return indexOf(xs, s) >= 0 }
