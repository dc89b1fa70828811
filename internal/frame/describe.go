package frame

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ColumnSummary captures per-column statistics of a frame.
type ColumnSummary struct {
	Name    string
	Kind    Kind
	NonNull int
	Missing int
	Unique  int
	// Numeric stats
	Min  float64
	Max  float64
	Mean float64
	Std  float64
	// Outliers (robust Z via MAD)
	OutliersCount   int
	OutliersMaxAbsZ float64
	// Text top values
	TopValues []CategoryCount
}

type CategoryCount struct {
	Value string
	Count int
}

// OutlierThreshold is the robust |z| above which a value counts as an outlier.
const OutlierThreshold = 3.5

// Describe computes a summary per column, in column order.
func (f *Frame) Describe() []ColumnSummary {
	out := make([]ColumnSummary, 0, len(f.names))
	for _, n := range f.names {
		s := f.cols[n]
		cs := ColumnSummary{Name: n, Kind: s.Kind}
		switch s.Kind {
		case Numeric:
			describeNumeric(s, &cs)
		case Text:
			describeText(s, &cs)
		}
		out = append(out, cs)
	}
	return out
}

func describeNumeric(s *Series, cs *ColumnSummary) {
	vals := s.present()
	cs.NonNull = len(vals)
	cs.Missing = len(s.Num) - len(vals)
	uniq := make(map[float64]struct{}, len(vals))
	for _, x := range vals {
		uniq[x] = struct{}{}
	}
	cs.Unique = len(uniq)
	if len(vals) == 0 {
		cs.Min, cs.Max = math.NaN(), math.NaN()
		cs.Mean, cs.Std = math.NaN(), math.NaN()
		return
	}
	cs.Min, cs.Max = floats.Min(vals), floats.Max(vals)
	if len(vals) > 1 {
		cs.Mean, cs.Std = stat.MeanStdDev(vals, nil)
	} else {
		cs.Mean = vals[0]
	}
	if len(vals) >= 8 {
		median, mad := medianMAD(vals)
		if mad > 0 {
			for _, v := range vals {
				az := math.Abs(0.6745 * (v - median) / mad)
				if az > OutlierThreshold {
					cs.OutliersCount++
				}
				if az > cs.OutliersMaxAbsZ {
					cs.OutliersMaxAbsZ = az
				}
			}
		}
	}
}

func describeText(s *Series, cs *ColumnSummary) {
	cats := make(map[string]int)
	for i, v := range s.Str {
		if s.Null[i] {
			cs.Missing++
			continue
		}
		cs.NonNull++
		cats[v]++
	}
	cs.Unique = len(cats)
	tops := make([]CategoryCount, 0, len(cats))
	for k, v := range cats {
		tops = append(tops, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > 8 {
		tops = tops[:8]
	}
	cs.TopValues = tops
}

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	median = stat.Quantile(0.5, stat.LinInterp, sorted, nil)
	dev := make([]float64, len(sorted))
	for i, v := range sorted {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = stat.Quantile(0.5, stat.LinInterp, dev, nil)
	return median, mad
}

// Markdown renders a compact profile of the frame.
func (f *Frame) Markdown(name string) string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if name != "" {
		b.WriteString(fmt.Sprintf("Table: %s\n", name))
	}
	rows, cols := f.Shape()
	b.WriteString(fmt.Sprintf("Rows: %d\n", rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n", cols))
	if f.indexName != "" {
		b.WriteString(fmt.Sprintf("Index: %s\n", f.indexName))
	}
	b.WriteString("\n[SCHEMA]\n")
	for _, c := range f.Describe() {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", safeVal(c.Name), c.Kind, c.NonNull, missPct))
		switch c.Kind {
		case Numeric:
			if c.NonNull > 0 {
				b.WriteString(fmt.Sprintf(" — min %.4g, max %.4g, mean %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Std))
			}
			if c.OutliersCount > 0 {
				b.WriteString(fmt.Sprintf("; outliers: %d above |z|>%.1f (max |z|≈%.2f)", c.OutliersCount, OutlierThreshold, c.OutliersMaxAbsZ))
			}
		case Text:
			if len(c.TopValues) > 0 {
				b.WriteString(" — top: ")
				for i, kv := range c.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
				}
				if c.Unique > len(c.TopValues) {
					b.WriteString(fmt.Sprintf("; unique=%d", c.Unique))
				}
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
