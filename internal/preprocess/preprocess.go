// Package preprocess turns the loaded branch table into a clean numeric
// feature matrix keyed by branch id.
package preprocess

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/KaramelBytes/filialcluster/internal/frame"
	"github.com/KaramelBytes/filialcluster/internal/schema"
)

// UnknownLabel replaces a missing region label.
const UnknownLabel = "unknown"

// Options names the columns the preprocessor works with.
type Options struct {
	IndexColumn string
	LabelColumn string
	DropColumns []string
}

// Fill records one imputation applied to a column.
type Fill struct {
	Column string
	Count  int
	Value  float64
	// Fallback is set when the column had no value to average over.
	Fallback bool
}

// Result is the output of Run.
type Result struct {
	// Frame is the cleaned table, indexed by branch id, label column included.
	Frame    *frame.Frame
	Features *Features
	Missing  []frame.MissingRow
	Filled   []Fill
}

// Features is the numeric matrix fed to the reducer.
type Features struct {
	Keys   []string
	Labels []string
	Names  []string
	X      *mat.Dense
}

// Rows returns the number of feature rows.
func (f *Features) Rows() int { return len(f.Keys) }

// Subset returns the rows at idx, in the order given.
func (f *Features) Subset(idx []int) *Features {
	out := &Features{
		Keys:   make([]string, len(idx)),
		Labels: make([]string, len(idx)),
		Names:  f.Names,
	}
	if len(idx) == 0 {
		return out
	}
	_, c := f.X.Dims()
	out.X = mat.NewDense(len(idx), c, nil)
	for i, r := range idx {
		out.Keys[i] = f.Keys[r]
		out.Labels[i] = f.Labels[r]
		out.X.SetRow(i, f.X.RawRowView(r))
	}
	return out
}

// Run drops the excluded columns, indexes rows by branch id, fills missing
// values with column means and builds the feature matrix.
func Run(in *frame.Frame, opt Options, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dropped, err := in.Drop(opt.DropColumns...)
	if err != nil {
		return nil, fmt.Errorf("drop columns: %w", err)
	}
	indexed, err := dropped.SetIndex(opt.IndexColumn)
	if err != nil {
		return nil, err
	}
	if !indexed.Has(opt.LabelColumn) {
		return nil, &schema.SchemaError{Missing: []string{opt.LabelColumn}}
	}
	// Region codes are categories even when stored as numbers.
	if err := indexed.AsText(opt.LabelColumn); err != nil {
		return nil, err
	}

	var names []string
	for _, n := range indexed.Names() {
		if n == opt.LabelColumn {
			continue
		}
		s, _ := indexed.Column(n)
		if s.Kind != frame.Numeric {
			return nil, &schema.ColumnTypeError{Column: n, Want: schema.Numeric, Got: s.Kind}
		}
		names = append(names, n)
	}

	res := &Result{Frame: indexed, Missing: indexed.RowsWithMissing()}
	if len(res.Missing) > 0 {
		for _, m := range res.Missing {
			log.Info("row has missing values",
				zap.String(indexed.IndexName(), m.Key),
				zap.Strings("columns", m.Columns))
		}
		res.Filled = fillMeans(indexed, names, opt.LabelColumn, log)
	}

	labels, err := regionLabels(indexed, opt.LabelColumn)
	if err != nil {
		return nil, err
	}
	rows, _ := indexed.Shape()
	res.Features = &Features{
		Keys:   append([]string(nil), indexed.Index()...),
		Labels: labels,
		Names:  names,
	}
	if rows > 0 && len(names) > 0 {
		x := mat.NewDense(rows, len(names), nil)
		for j, n := range names {
			s, _ := indexed.Column(n)
			for i, v := range s.Num {
				if math.IsNaN(v) {
					return nil, fmt.Errorf("column %q row %s still missing after fill", n, indexed.Key(i))
				}
				x.Set(i, j, v)
			}
		}
		res.Features.X = x
	}
	return res, nil
}

// fillMeans fills feature columns with their mean over all rows. Columns
// without any value fall back to zero.
func fillMeans(f *frame.Frame, names []string, label string, log *zap.Logger) []Fill {
	means := f.ColumnMeans()
	fallback := map[string]bool{}
	values := make(map[string]float64, len(names))
	for _, n := range names {
		m := means[n]
		if math.IsNaN(m) {
			m = 0
			fallback[n] = true
		}
		values[n] = m
	}
	counts := f.FillMissing(values)

	var fills []Fill
	for _, n := range names {
		if counts[n] == 0 {
			continue
		}
		fl := Fill{Column: n, Count: counts[n], Value: values[n], Fallback: fallback[n]}
		fills = append(fills, fl)
		if fl.Fallback {
			log.Warn("column has no values, filled with zero", zap.String("column", n), zap.Int("count", fl.Count))
		} else {
			log.Info("filled missing values with column mean",
				zap.String("column", n), zap.Int("count", fl.Count), zap.Float64("mean", fl.Value))
		}
	}
	if n, err := f.FillText(label, UnknownLabel); err == nil && n > 0 {
		log.Warn("missing region labels replaced", zap.String("column", label), zap.Int("count", n), zap.String("value", UnknownLabel))
	}
	return fills
}

func regionLabels(f *frame.Frame, label string) ([]string, error) {
	s, ok := f.Column(label)
	if !ok {
		return nil, &schema.SchemaError{Missing: []string{label}}
	}
	rows, _ := f.Shape()
	out := make([]string, rows)
	for i := range out {
		if s.IsMissing(i) {
			out[i] = UnknownLabel
			continue
		}
		out[i] = s.Value(i)
	}
	return out, nil
}
