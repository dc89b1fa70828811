// Package schema describes the branch dataset's columns and validates loaded
// tables against them.
package schema

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/filialcluster/internal/frame"
)

// Kind is the semantic type of a column.
type Kind string

const (
	Identifier Kind = "identifier"
	Category   Kind = "category"
	Numeric    Kind = "numeric"
)

// Column names one column of the branch table and its semantic type.
type Column struct {
	Name string `mapstructure:"name" yaml:"name"`
	Kind Kind   `mapstructure:"kind" yaml:"kind"`
}

// Branch column names.
const (
	ColBranch       = "FILIALE"
	ColRegion       = "B_LAND"
	ColSalesArea    = "VERKAUFS_M2"
	ColRevenue      = "Umsatz"
	ColCustomers    = "Kund. Anz."
	ColPromoShare   = "Aktionsanteil"
	ColHypermarkets = "ANZAHL_Verbrauchermärkte_im Umkreis von 20min"
	ColDiscounters  = "ANZAHL_Diskonter_im Umkreis von 20min"
	ColPowerDrug    = "KaufKraft_Drogeriefachhandel_KOPF"
	ColPowerFood    = "KaufKraft_Lebensmittelhandel_KOPF"
	ColPowerTotal   = "Kaufkraft_KOPF"
)

// Branch is the full column set of the branch table, identifier first.
var Branch = []Column{
	{ColBranch, Identifier},
	{ColRegion, Category},
	{ColSalesArea, Numeric},
	{ColRevenue, Numeric},
	{ColCustomers, Numeric},
	{ColPromoShare, Numeric},
	{"Anteil Clever", Numeric},
	{"Anteil Ja!Natürlich", Numeric},
	{"Anteil Feinkost", Numeric},
	{"Anteil Obst&Gemüse", Numeric},
	{"Anteil BILLA Marke", Numeric},
	{"Anteil BILLA Corso", Numeric},
	{"Anteil Getränke ohne Alkohol", Numeric},
	{"Anteil Alkohol", Numeric},
	{ColHypermarkets, Numeric},
	{ColDiscounters, Numeric},
	{ColPowerDrug, Numeric},
	{ColPowerFood, Numeric},
	{ColPowerTotal, Numeric},
}

// DropColumns are the market-density and purchasing-power covariates that
// must be present in the table but are excluded from clustering features.
var DropColumns = []string{ColPowerFood, ColPowerDrug, ColPowerTotal, ColHypermarkets, ColDiscounters}

// RequiredColumns returns the names of the columns the pipeline requires,
// excluding the identifier.
func RequiredColumns() []string {
	var out []string
	for _, c := range Branch {
		if c.Kind != Identifier {
			out = append(out, c.Name)
		}
	}
	return out
}

// SchemaError reports required columns absent from a table.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	quoted := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		quoted[i] = fmt.Sprintf("%q", m)
	}
	return fmt.Sprintf("missing required columns: %s", strings.Join(quoted, ", "))
}

// ColumnTypeError reports a column whose stored values do not match its
// semantic kind.
type ColumnTypeError struct {
	Column string
	Want   Kind
	Got    frame.Kind
}

func (e *ColumnTypeError) Error() string {
	return fmt.Sprintf("column %q should be %s but holds %s values", e.Column, e.Want, e.Got)
}

// Validate checks that every required name is a column of f. Matching is
// exact and order-insensitive; all missing names are reported in the order
// they were required.
func Validate(f *frame.Frame, required []string) error {
	var missing []string
	for _, name := range required {
		if !f.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}

// CheckKinds verifies numeric columns of the schema hold numeric series.
// Columns not present in f are skipped; Validate reports those.
func CheckKinds(f *frame.Frame, cols []Column) error {
	for _, c := range cols {
		if c.Kind != Numeric {
			continue
		}
		s, ok := f.Column(c.Name)
		if !ok {
			continue
		}
		if s.Kind != frame.Numeric {
			return &ColumnTypeError{Column: c.Name, Want: c.Kind, Got: s.Kind}
		}
	}
	return nil
}

// Names returns the names of cols in order.
func Names(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}
