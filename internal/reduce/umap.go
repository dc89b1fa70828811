// Package reduce projects the branch feature matrix to two dimensions.
package reduce

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// ErrTooFewRows is returned when there are not enough rows to embed.
var ErrTooFewRows = errors.New("umap: need at least 2 rows")

const (
	outDims        = 2
	smoothKTol     = 1e-5
	minKDistScale  = 1e-3
	smoothKIters   = 64
	gradClip       = 4.0
	repulsionDelta = 0.001
)

// UMAP is a uniform manifold approximation and projection to two
// dimensions. Neighbors are computed exactly, so it suits tables with up to a
// few thousand rows.
type UMAP struct {
	// NNeighbors is the size of the local neighborhood, the point itself included.
	NNeighbors int
	MinDist    float64
	Spread     float64
	// Epochs of layout optimization; 0 picks 500 for small inputs and 200 otherwise.
	Epochs             int
	NegativeSampleRate int
	LearningRate       float64
	Seed               int64
}

// NewUMAP returns a projector with the usual defaults.
func NewUMAP(seed int64) *UMAP {
	return &UMAP{
		NNeighbors:         15,
		MinDist:            0.1,
		Spread:             1.0,
		NegativeSampleRate: 5,
		LearningRate:       1.0,
		Seed:               seed,
	}
}

type edge struct {
	head, tail int
	weight     float64
}

// FitTransform embeds the rows of x and returns an n×2 matrix in row order.
func (u *UMAP) FitTransform(x *mat.Dense) (*mat.Dense, error) {
	if x == nil {
		return nil, ErrTooFewRows
	}
	n, _ := x.Dims()
	if n < 2 {
		return nil, ErrTooFewRows
	}
	if u.NNeighbors < 2 {
		return nil, fmt.Errorf("umap: n_neighbors must be at least 2, got %d", u.NNeighbors)
	}
	spread := u.Spread
	if spread <= 0 {
		spread = 1
	}
	a, b, err := CurveParams(spread, u.MinDist)
	if err != nil {
		return nil, err
	}

	k := u.NNeighbors
	if k > n {
		k = n
	}
	knnIdx, knnDist := nearestNeighbors(x, k)
	graph := fuzzySimplicialSet(knnIdx, knnDist, n)

	epochs := u.Epochs
	if epochs <= 0 {
		epochs = 500
		if n > 10000 {
			epochs = 200
		}
	}
	edges := graphEdges(graph, n, epochs)

	rng := rand.New(rand.NewSource(u.Seed))
	emb := spectralLayout(graph, n, rng)
	if emb == nil {
		emb = randomLayout(n, rng)
	}
	normalizeLayout(emb, rng)

	negRate := u.NegativeSampleRate
	if negRate <= 0 {
		negRate = 5
	}
	lr := u.LearningRate
	if lr <= 0 {
		lr = 1
	}
	optimizeLayout(emb, edges, a, b, epochs, negRate, lr, rng)

	out := mat.NewDense(n, outDims, nil)
	for i, p := range emb {
		out.SetRow(i, p)
	}
	return out, nil
}

// CurveParams fits a and b of the low-dimensional similarity
// 1/(1+a·d^(2b)) to the offset exponential given by spread and minDist.
func CurveParams(spread, minDist float64) (a, b float64, err error) {
	const samples = 300
	xs := make([]float64, samples)
	ys := make([]float64, samples)
	floats.Span(xs, 0, spread*3)
	for i, x := range xs {
		if x < minDist {
			ys[i] = 1
		} else {
			ys[i] = math.Exp(-(x - minDist) / spread)
		}
	}
	problem := optimize.Problem{
		Func: func(p []float64) float64 {
			if p[0] <= 0 || p[1] <= 0 {
				return math.Inf(1)
			}
			var sse float64
			for i, x := range xs {
				d := 1/(1+p[0]*math.Pow(x, 2*p[1])) - ys[i]
				sse += d * d
			}
			return sse
		},
	}
	res, err := optimize.Minimize(problem, []float64{1, 1}, nil, &optimize.NelderMead{})
	if err != nil {
		return 0, 0, fmt.Errorf("umap: fit curve parameters: %w", err)
	}
	return res.X[0], res.X[1], nil
}

// nearestNeighbors returns, per row, the k closest rows (the row itself
// first) and their Euclidean distances in ascending order.
func nearestNeighbors(x *mat.Dense, k int) ([][]int, [][]float64) {
	n, _ := x.Dims()
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := floats.Distance(x.RawRowView(i), x.RawRowView(j), 2)
			dist[i][j], dist[j][i] = d, d
		}
	}
	idx := make([][]int, n)
	ds := make([][]float64, n)
	order := make([]int, 0, n-1)
	for i := 0; i < n; i++ {
		order = order[:0]
		for j := 0; j < n; j++ {
			if j != i {
				order = append(order, j)
			}
		}
		row := dist[i]
		sort.SliceStable(order, func(p, q int) bool { return row[order[p]] < row[order[q]] })
		idx[i] = make([]int, k)
		ds[i] = make([]float64, k)
		idx[i][0] = i
		for m := 1; m < k; m++ {
			idx[i][m] = order[m-1]
			ds[i][m] = row[order[m-1]]
		}
	}
	return idx, ds
}

// smoothKNN finds per-row rho (distance to the nearest distinct neighbor)
// and sigma such that the row's membership strengths sum to log2(k).
func smoothKNN(ds [][]float64) (sigmas, rhos []float64) {
	n := len(ds)
	sigmas = make([]float64, n)
	rhos = make([]float64, n)
	var total float64
	var count int
	for _, row := range ds {
		for _, d := range row {
			total += d
			count++
		}
	}
	meanAll := total / float64(count)

	for i, row := range ds {
		k := len(row)
		target := math.Log2(float64(k))
		for _, d := range row[1:] {
			if d > 0 {
				rhos[i] = d
				break
			}
		}
		lo, hi, mid := 0.0, math.Inf(1), 1.0
		for it := 0; it < smoothKIters; it++ {
			var psum float64
			for _, d := range row[1:] {
				dd := d - rhos[i]
				if dd > 0 {
					psum += math.Exp(-dd / mid)
				} else {
					psum++
				}
			}
			if math.Abs(psum-target) < smoothKTol {
				break
			}
			if psum > target {
				hi = mid
				mid = (lo + hi) / 2
			} else {
				lo = mid
				if math.IsInf(hi, 1) {
					mid *= 2
				} else {
					mid = (lo + hi) / 2
				}
			}
		}
		sigmas[i] = mid
		if rhos[i] > 0 {
			if m := floats.Sum(row) / float64(k); sigmas[i] < minKDistScale*m {
				sigmas[i] = minKDistScale * m
			}
		} else if sigmas[i] < minKDistScale*meanAll {
			sigmas[i] = minKDistScale * meanAll
		}
	}
	return sigmas, rhos
}

// fuzzySimplicialSet builds the symmetric membership graph as a dense
// matrix using the fuzzy union w = p + pᵀ - p∘pᵀ.
func fuzzySimplicialSet(idx [][]int, ds [][]float64, n int) *mat.SymDense {
	sigmas, rhos := smoothKNN(ds)
	p := mat.NewDense(n, n, nil)
	for i := range idx {
		for m := 1; m < len(idx[i]); m++ {
			j := idx[i][m]
			var w float64
			if d := ds[i][m] - rhos[i]; d <= 0 || sigmas[i] == 0 {
				w = 1
			} else {
				w = math.Exp(-d / sigmas[i])
			}
			p.Set(i, j, w)
		}
	}
	g := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			a, b := p.At(i, j), p.At(j, i)
			g.SetSym(i, j, a+b-a*b)
		}
	}
	return g
}

// graphEdges lists both directions of every edge, dropping edges too weak
// to be sampled within the epoch budget.
func graphEdges(g *mat.SymDense, n, epochs int) []edge {
	var maxW float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if w := g.At(i, j); w > maxW {
				maxW = w
			}
		}
	}
	var edges []edge
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			w := g.At(i, j)
			if i == j || w <= 0 || w < maxW/float64(epochs) {
				continue
			}
			edges = append(edges, edge{head: i, tail: j, weight: w})
		}
	}
	return edges
}

// spectralLayout initializes the embedding from the eigenvectors of the
// normalized graph Laplacian belonging to the smallest non-trivial
// eigenvalues. It returns nil when no such layout exists.
func spectralLayout(g *mat.SymDense, n int, rng *rand.Rand) [][]float64 {
	if n <= outDims+1 {
		return nil
	}
	inv := make([]float64, n)
	for i := 0; i < n; i++ {
		var deg float64
		for j := 0; j < n; j++ {
			deg += g.At(i, j)
		}
		if deg > 0 {
			inv[i] = 1 / math.Sqrt(deg)
		}
	}
	lap := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := -g.At(i, j) * inv[i] * inv[j]
			if i == j {
				v++
			}
			lap.SetSym(i, j, v)
		}
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(lap, true); !ok {
		return nil
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	// eigenvalues are ascending; skip the trivial first vector
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, outDims)
		for d := 0; d < outDims; d++ {
			v := vecs.At(i, d+1)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil
			}
			out[i][d] = v
		}
	}
	var maxAbs float64
	for _, p := range out {
		for _, v := range p {
			maxAbs = math.Max(maxAbs, math.Abs(v))
		}
	}
	if maxAbs == 0 {
		return nil
	}
	expansion := 10 / maxAbs
	for _, p := range out {
		for d := range p {
			p[d] = p[d]*expansion + rng.NormFloat64()*1e-4
		}
	}
	return out
}

func randomLayout(n int, rng *rand.Rand) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, outDims)
		for d := range out[i] {
			out[i][d] = rng.Float64()*20 - 10
		}
	}
	return out
}

// normalizeLayout rescales every dimension to [0, 10].
func normalizeLayout(emb [][]float64, rng *rand.Rand) {
	for d := 0; d < outDims; d++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, p := range emb {
			lo = math.Min(lo, p[d])
			hi = math.Max(hi, p[d])
		}
		span := hi - lo
		for _, p := range emb {
			if span == 0 {
				p[d] = rng.Float64() * 10
				continue
			}
			p[d] = 10 * (p[d] - lo) / span
		}
	}
}

// optimizeLayout runs stochastic gradient descent on the cross entropy
// between the graph and the embedding, sampling each edge in proportion to
// its weight and pushing random points apart.
func optimizeLayout(emb [][]float64, edges []edge, a, b float64, epochs, negRate int, lr float64, rng *rand.Rand) {
	if len(edges) == 0 {
		return
	}
	n := len(emb)
	var maxW float64
	for _, e := range edges {
		maxW = math.Max(maxW, e.weight)
	}
	perSample := make([]float64, len(edges))
	nextSample := make([]float64, len(edges))
	perNeg := make([]float64, len(edges))
	nextNeg := make([]float64, len(edges))
	for i, e := range edges {
		perSample[i] = maxW / e.weight
		nextSample[i] = perSample[i]
		perNeg[i] = perSample[i] / float64(negRate)
		nextNeg[i] = perNeg[i]
	}

	for epoch := 0; epoch < epochs; epoch++ {
		alpha := lr * (1 - float64(epoch)/float64(epochs))
		fe := float64(epoch)
		for i, e := range edges {
			if nextSample[i] > fe {
				continue
			}
			cur, other := emb[e.head], emb[e.tail]
			dist2 := sqDist(cur, other)
			var coeff float64
			if dist2 > 0 {
				coeff = -2 * a * b * math.Pow(dist2, b-1) / (a*math.Pow(dist2, b) + 1)
			}
			for d := 0; d < outDims; d++ {
				g := clip(coeff * (cur[d] - other[d]))
				cur[d] += g * alpha
				other[d] -= g * alpha
			}
			nextSample[i] += perSample[i]

			nNeg := int((fe - nextNeg[i]) / perNeg[i])
			for p := 0; p < nNeg; p++ {
				k := rng.Intn(n)
				if k == e.head {
					continue
				}
				other := emb[k]
				dist2 := sqDist(cur, other)
				if dist2 > 0 {
					coeff = 2 * b / ((repulsionDelta + dist2) * (a*math.Pow(dist2, b) + 1))
				} else {
					coeff = 0
				}
				for d := 0; d < outDims; d++ {
					g := gradClip
					if coeff > 0 {
						g = clip(coeff * (cur[d] - other[d]))
					}
					cur[d] += g * alpha
				}
			}
			if nNeg > 0 {
				nextNeg[i] += float64(nNeg) * perNeg[i]
			}
		}
	}
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func clip(v float64) float64 {
	if v > gradClip {
		return gradClip
	}
	if v < -gradClip {
		return -gradClip
	}
	return v
}
