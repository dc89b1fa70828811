package frame

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Kind is the storage kind of a Series.
type Kind int

const (
	// Numeric series hold float64 values; NaN marks a missing value.
	Numeric Kind = iota
	// Text series hold strings with a separate null mask.
	Text
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Text:
		return "text"
	default:
		return "unknown"
	}
}

// Series is a single named, typed column.
type Series struct {
	Name string
	Kind Kind
	Num  []float64
	Str  []string
	Null []bool
}

// NewNumeric builds a numeric series. NaN values are treated as missing.
func NewNumeric(name string, vals []float64) *Series {
	return &Series{Name: name, Kind: Numeric, Num: vals}
}

// NewText builds a text series. A nil null mask means no value is missing.
func NewText(name string, vals []string, null []bool) *Series {
	if null == nil {
		null = make([]bool, len(vals))
	}
	return &Series{Name: name, Kind: Text, Str: vals, Null: null}
}

// Len returns the number of rows in the series.
func (s *Series) Len() int {
	if s.Kind == Numeric {
		return len(s.Num)
	}
	return len(s.Str)
}

// IsMissing reports whether row i holds no value.
func (s *Series) IsMissing(i int) bool {
	if s.Kind == Numeric {
		return math.IsNaN(s.Num[i])
	}
	return s.Null[i]
}

// Value renders row i as a string; missing values render as "".
func (s *Series) Value(i int) string {
	if s.IsMissing(i) {
		return ""
	}
	if s.Kind == Numeric {
		return strconv.FormatFloat(s.Num[i], 'f', -1, 64)
	}
	return s.Str[i]
}

// Clone deep copies the series.
func (s *Series) Clone() *Series {
	c := &Series{Name: s.Name, Kind: s.Kind}
	if s.Num != nil {
		c.Num = append([]float64(nil), s.Num...)
	}
	if s.Str != nil {
		c.Str = append([]string(nil), s.Str...)
	}
	if s.Null != nil {
		c.Null = append([]bool(nil), s.Null...)
	}
	return c
}

// Frame is an in-memory columnar table with ordered column names and an
// optional unique row index.
type Frame struct {
	names     []string
	cols      map[string]*Series
	rows      int
	index     []string
	indexName string
}

// DuplicateKeyError is returned by SetIndex when row keys collide.
type DuplicateKeyError struct {
	Column string
	Keys   []string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate values in index column %q: %s", e.Column, strings.Join(e.Keys, ", "))
}

// ErrUnknownColumn is wrapped by operations addressing a column that does not exist.
var ErrUnknownColumn = errors.New("unknown column")

// New assembles a frame from series of equal length. Column names must be unique.
func New(cols ...*Series) (*Frame, error) {
	f := &Frame{cols: make(map[string]*Series, len(cols))}
	for i, c := range cols {
		if c == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if _, dup := f.cols[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", c.Name)
		}
		if i == 0 {
			f.rows = c.Len()
		} else if c.Len() != f.rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name, c.Len(), f.rows)
		}
		f.names = append(f.names, c.Name)
		f.cols[c.Name] = c
	}
	return f, nil
}

// Shape returns the row and column counts. The index column is not counted.
func (f *Frame) Shape() (rows, cols int) { return f.rows, len(f.names) }

// Names returns the column names in order.
func (f *Frame) Names() []string { return append([]string(nil), f.names...) }

// Has reports whether a column with the exact name exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Column returns the named series.
func (f *Frame) Column(name string) (*Series, bool) {
	s, ok := f.cols[name]
	return s, ok
}

// Index returns the row keys, or nil when no index has been set.
func (f *Frame) Index() []string { return f.index }

// IndexName returns the name of the column used as index.
func (f *Frame) IndexName() string { return f.indexName }

// Key returns the index key of row i, or its position when unindexed.
func (f *Frame) Key(i int) string {
	if f.index != nil {
		return f.index[i]
	}
	return strconv.Itoa(i)
}

// Drop returns a copy of the frame without the named columns.
func (f *Frame) Drop(names ...string) (*Frame, error) {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		if !f.Has(n) {
			return nil, fmt.Errorf("drop %q: %w", n, ErrUnknownColumn)
		}
		skip[n] = true
	}
	out := &Frame{cols: make(map[string]*Series), rows: f.rows, indexName: f.indexName}
	if f.index != nil {
		out.index = append([]string(nil), f.index...)
	}
	for _, n := range f.names {
		if skip[n] {
			continue
		}
		out.names = append(out.names, n)
		out.cols[n] = f.cols[n].Clone()
	}
	return out, nil
}

// SetIndex moves the named column out of the data columns and uses its values
// as row keys. Keys must be present and unique.
func (f *Frame) SetIndex(name string) (*Frame, error) {
	s, ok := f.cols[name]
	if !ok {
		return nil, fmt.Errorf("set index %q: %w", name, ErrUnknownColumn)
	}
	keys := make([]string, f.rows)
	seen := make(map[string]int, f.rows)
	var dups []string
	for i := 0; i < f.rows; i++ {
		if s.IsMissing(i) {
			return nil, fmt.Errorf("set index %q: row %d has no value", name, i)
		}
		k := s.Value(i)
		keys[i] = k
		seen[k]++
		if seen[k] == 2 {
			dups = append(dups, k)
		}
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		return nil, &DuplicateKeyError{Column: name, Keys: dups}
	}
	out, err := f.Drop(name)
	if err != nil {
		return nil, err
	}
	out.index = keys
	out.indexName = name
	return out, nil
}

// MissingRow describes a row holding at least one missing value.
type MissingRow struct {
	Row     int
	Key     string
	Columns []string
}

// RowsWithMissing lists every row with a missing value in any column.
func (f *Frame) RowsWithMissing() []MissingRow {
	var out []MissingRow
	for i := 0; i < f.rows; i++ {
		var cols []string
		for _, n := range f.names {
			if f.cols[n].IsMissing(i) {
				cols = append(cols, n)
			}
		}
		if len(cols) > 0 {
			out = append(out, MissingRow{Row: i, Key: f.Key(i), Columns: cols})
		}
	}
	return out
}

// ColumnMeans returns the mean of every numeric column over its non-missing
// values. Columns without any value map to NaN.
func (f *Frame) ColumnMeans() map[string]float64 {
	means := make(map[string]float64)
	for _, n := range f.names {
		s := f.cols[n]
		if s.Kind != Numeric {
			continue
		}
		vals := s.present()
		if len(vals) == 0 {
			means[n] = math.NaN()
			continue
		}
		means[n] = stat.Mean(vals, nil)
	}
	return means
}

// present returns the non-missing values of a numeric series.
func (s *Series) present() []float64 {
	out := make([]float64, 0, len(s.Num))
	for _, v := range s.Num {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// FillMissing replaces missing values of numeric columns in place with the
// given per-column value and returns how many cells were filled per column.
// Columns absent from values, and NaN fill values, are left untouched.
func (f *Frame) FillMissing(values map[string]float64) map[string]int {
	filled := make(map[string]int)
	for _, n := range f.names {
		s := f.cols[n]
		v, ok := values[n]
		if s.Kind != Numeric || !ok || math.IsNaN(v) {
			continue
		}
		for i, x := range s.Num {
			if math.IsNaN(x) {
				s.Num[i] = v
				filled[n]++
			}
		}
	}
	return filled
}

// FillText replaces missing values of a text column in place.
func (f *Frame) FillText(name, value string) (int, error) {
	s, ok := f.cols[name]
	if !ok {
		return 0, fmt.Errorf("fill %q: %w", name, ErrUnknownColumn)
	}
	if s.Kind != Text {
		return 0, fmt.Errorf("fill %q: column is %s, not text", name, s.Kind)
	}
	var n int
	for i, null := range s.Null {
		if null {
			s.Str[i] = value
			s.Null[i] = false
			n++
		}
	}
	return n, nil
}

// AsText converts a numeric column to text in place. Missing values stay
// missing. Text columns are left as they are.
func (f *Frame) AsText(name string) error {
	s, ok := f.cols[name]
	if !ok {
		return fmt.Errorf("convert %q: %w", name, ErrUnknownColumn)
	}
	if s.Kind == Text {
		return nil
	}
	str := make([]string, len(s.Num))
	null := make([]bool, len(s.Num))
	for i := range s.Num {
		str[i], null[i] = s.Value(i), s.IsMissing(i)
	}
	f.cols[name] = NewText(name, str, null)
	return nil
}
