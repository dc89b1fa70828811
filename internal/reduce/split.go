package reduce

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Split partitions row positions 0..n-1 into a training and a held-out set
// using a seeded random permutation. The training set holds
// floor(trainSize*n) rows; the sets are disjoint and together cover all rows.
func Split(n int, trainSize float64, seed int64) (train, test []int, err error) {
	if !(trainSize > 0 && trainSize < 1) {
		return nil, nil, fmt.Errorf("train size must be in (0, 1), got %v", trainSize)
	}
	nTrain := int(math.Floor(trainSize * float64(n)))
	if n > 0 && nTrain == 0 {
		return nil, nil, fmt.Errorf("train size %v leaves no training rows out of %d", trainSize, n)
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[:nTrain], perm[nTrain:], nil
}

// MinMaxScale rescales every column of x to [0, 1] in place. Constant
// columns become zero.
func MinMaxScale(x *mat.Dense) {
	r, c := x.Dims()
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		lo, hi := floats.Min(col), floats.Max(col)
		span := hi - lo
		for i := 0; i < r; i++ {
			if span == 0 {
				x.Set(i, j, 0)
				continue
			}
			x.Set(i, j, (col[i]-lo)/span)
		}
	}
}
