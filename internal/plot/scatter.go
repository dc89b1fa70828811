// Package plot renders labelled 2-D scatter plots as PNG images.
package plot

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"
	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// NoiseLabel is drawn in gray and listed first in the legend.
const NoiseLabel = "-1"

var noiseColor = color.RGBA{R: 160, G: 160, B: 160, A: 255}

// Figure is a scatter plot ready to be rendered to a file.
type Figure struct {
	Path   string
	Title  string
	Groups []string
	plot   *gplot.Plot
}

// Scatter builds a scatter plot of the rows of points (n×2), one colored
// group per distinct label.
func Scatter(points *mat.Dense, labels []string, title string) (*Figure, error) {
	if points == nil {
		return nil, errors.New("scatter: no points")
	}
	n, c := points.Dims()
	if c != 2 {
		return nil, fmt.Errorf("scatter: want 2 columns, got %d", c)
	}
	if len(labels) != n {
		return nil, fmt.Errorf("scatter: %d labels for %d points", len(labels), n)
	}

	byLabel := map[string]plotter.XYs{}
	for i, l := range labels {
		byLabel[l] = append(byLabel[l], plotter.XY{X: points.At(i, 0), Y: points.At(i, 1)})
	}
	groups := make([]string, 0, len(byLabel))
	for l := range byLabel {
		groups = append(groups, l)
	}
	sortLabels(groups)

	p := gplot.New()
	p.Title.Text = title
	p.X.Label.Text = "component 1"
	p.Y.Label.Text = "component 2"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	clustered := len(groups)
	if _, ok := byLabel[NoiseLabel]; ok {
		clustered--
	}
	colors := groupColors(clustered)
	colorIdx := 0
	for _, g := range groups {
		s, err := plotter.NewScatter(byLabel[g])
		if err != nil {
			return nil, fmt.Errorf("scatter group %q: %w", g, err)
		}
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Radius = vg.Points(3)
		if g == NoiseLabel {
			s.GlyphStyle.Color = noiseColor
		} else {
			s.GlyphStyle.Color = colors[colorIdx]
			colorIdx++
		}
		p.Add(s)
		p.Legend.Add(g, s)
	}
	return &Figure{Title: title, Groups: groups, plot: p}, nil
}

// groupColors returns n distinct colors. Small counts use the soft default
// set; larger ones spread evenly over the hue circle.
func groupColors(n int) []color.Color {
	if n <= len(plotutil.DefaultColors) {
		out := make([]color.Color, n)
		for i := range out {
			out[i] = plotutil.Color(i)
		}
		return out
	}
	return palette.Rainbow(n, palette.Red, palette.Magenta, 1, 0.85, 1).Colors()
}

// Render draws the figure as PNG bytes at the given size in inches.
func (f *Figure) Render(widthIn, heightIn float64) ([]byte, error) {
	wt, err := f.plot.WriterTo(vg.Length(widthIn)*vg.Inch, vg.Length(heightIn)*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("render %q: %w", f.Title, err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render %q: %w", f.Title, err)
	}
	return buf.Bytes(), nil
}

// sortLabels orders labels numerically when all of them are integers and
// lexically otherwise. NoiseLabel always comes first.
func sortLabels(ls []string) {
	numeric := true
	for _, l := range ls {
		if _, err := strconv.Atoi(l); err != nil {
			numeric = false
			break
		}
	}
	sort.Slice(ls, func(i, j int) bool {
		if ls[i] == NoiseLabel || ls[j] == NoiseLabel {
			return ls[i] == NoiseLabel && ls[j] != NoiseLabel
		}
		if numeric {
			a, _ := strconv.Atoi(ls[i])
			b, _ := strconv.Atoi(ls[j])
			return a < b
		}
		return ls[i] < ls[j]
	})
}

// IntLabels formats cluster ids as legend labels.
func IntLabels(ids []int) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.Itoa(id)
	}
	return out
}
