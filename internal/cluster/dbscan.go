// Package cluster assigns density-based cluster labels to embedded points.
package cluster

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Noise is the label of points that belong to no cluster.
const Noise = -1

// DBSCAN groups points that are densely packed. A point is a core point
// when at least MinSamples points (itself included) lie within Eps of it.
type DBSCAN struct {
	Eps        float64
	MinSamples int
}

// Validate reports invalid parameters.
func (d DBSCAN) Validate() error {
	if !(d.Eps > 0) {
		return fmt.Errorf("eps must be positive, got %v", d.Eps)
	}
	if d.MinSamples < 1 {
		return fmt.Errorf("min_samples must be at least 1, got %d", d.MinSamples)
	}
	return nil
}

// Fit returns one label per row of x. Clusters are numbered from 0 in the
// order their first core point appears; unreachable points get Noise.
// Labels depend only on the input order.
func (d DBSCAN) Fit(x *mat.Dense) ([]int, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if x == nil {
		return nil, nil
	}
	n, _ := x.Dims()
	neighbors := make([][]int, n)
	for i := 0; i < n; i++ {
		pi := x.RawRowView(i)
		for j := 0; j < n; j++ {
			if floats.Distance(pi, x.RawRowView(j), 2) <= d.Eps {
				neighbors[i] = append(neighbors[i], j)
			}
		}
	}
	core := make([]bool, n)
	for i, nb := range neighbors {
		core[i] = len(nb) >= d.MinSamples
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}
	next := 0
	for i := 0; i < n; i++ {
		if labels[i] != Noise || !core[i] {
			continue
		}
		labels[i] = next
		stack := []int{i}
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !core[p] {
				continue
			}
			for _, q := range neighbors[p] {
				if labels[q] != Noise {
					continue
				}
				labels[q] = next
				stack = append(stack, q)
			}
		}
		next++
	}
	return labels, nil
}

// Summary counts points per label.
type Summary struct {
	Clusters int
	Noise    int
	Sizes    map[int]int
}

// Summarize counts the clusters and noise points in labels.
func Summarize(labels []int) Summary {
	s := Summary{Sizes: map[int]int{}}
	for _, l := range labels {
		if l == Noise {
			s.Noise++
			continue
		}
		s.Sizes[l]++
	}
	s.Clusters = len(s.Sizes)
	return s
}

// Labels returns the distinct labels in ascending order, Noise first.
func (s Summary) Labels() []int {
	out := make([]int, 0, len(s.Sizes)+1)
	if s.Noise > 0 {
		out = append(out, Noise)
	}
	for l := range s.Sizes {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}
