// Package synth generates synthetic branch tables with the full branch
// schema, for demos and tests.
package synth

import (
	"math/rand"

	"github.com/KaramelBytes/filialcluster/internal/schema"
)

// Regions used for the region label, in assignment order.
var Regions = []string{"Wien", "Niederösterreich", "Steiermark", "Tirol", "Kärnten", "Salzburg", "Oberösterreich", "Burgenland", "Vorarlberg"}

// Branches returns the branch schema's column names and n rows. Rows cycle
// through the first `regions` region labels; each region shifts the numeric
// attributes so that regions form separable groups. Branch ids are 1..n.
func Branches(n, regions int, seed int64) ([]string, [][]any) {
	if regions < 1 {
		regions = 1
	}
	if regions > len(Regions) {
		regions = len(Regions)
	}
	rng := rand.New(rand.NewSource(seed))
	cols := schema.Names(schema.Branch)
	rows := make([][]any, n)
	for i := 0; i < n; i++ {
		g := i % regions
		shift := float64(g)
		row := make([]any, len(cols))
		for j, c := range schema.Branch {
			switch c.Kind {
			case schema.Identifier:
				row[j] = int64(i + 1)
			case schema.Category:
				row[j] = Regions[g]
			default:
				row[j] = value(c.Name, shift, rng)
			}
		}
		rows[i] = row
	}
	return cols, rows
}

func value(col string, shift float64, rng *rand.Rand) any {
	noise := rng.NormFloat64()
	switch col {
	case schema.ColSalesArea:
		return 600 + 300*shift + 40*noise
	case schema.ColRevenue:
		return 2.5e6 + 1.5e6*shift + 1e5*noise
	case schema.ColCustomers:
		return int64(1500 + 900*shift + 80*noise)
	case schema.ColHypermarkets, schema.ColDiscounters:
		return int64(2 + rng.Intn(8))
	case schema.ColPowerDrug, schema.ColPowerFood, schema.ColPowerTotal:
		return 4000 + 500*rng.Float64()
	default:
		// share fractions
		v := 0.1 + 0.08*shift + 0.01*noise
		if v < 0 {
			v = 0
		}
		return v
	}
}
