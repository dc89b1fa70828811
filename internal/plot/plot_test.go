package plot

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func sample() *mat.Dense {
	return mat.NewDense(4, 2, []float64{0, 0, 1, 1, 5, 5, 6, 6})
}

func TestScatterGroupsSorted(t *testing.T) {
	f, err := Scatter(sample(), []string{"1", "-1", "10", "1"}, "clusters")
	require.NoError(t, err)
	require.Equal(t, []string{"-1", "1", "10"}, f.Groups)

	f, err = Scatter(sample(), []string{"Wien", "Tirol", "Wien", "Kärnten"}, "regions")
	require.NoError(t, err)
	require.Equal(t, []string{"Kärnten", "Tirol", "Wien"}, f.Groups)
}

func TestScatterRejectsBadInput(t *testing.T) {
	_, err := Scatter(sample(), []string{"a"}, "x")
	require.Error(t, err)
	_, err = Scatter(mat.NewDense(2, 3, nil), []string{"a", "b"}, "x")
	require.Error(t, err)
	_, err = Scatter(nil, nil, "x")
	require.Error(t, err)
}

func TestRenderProducesPNG(t *testing.T) {
	f, err := Scatter(sample(), IntLabels([]int{0, 0, 1, -1}), "DBSCAN")
	require.NoError(t, err)
	b, err := f.Render(4, 3)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(b, pngMagic))
}

func TestWriteAllWritesEveryFigure(t *testing.T) {
	dir := t.TempDir()
	a, err := Scatter(sample(), []string{"a", "a", "b", "b"}, "A")
	require.NoError(t, err)
	b, err := Scatter(sample(), []string{"0", "0", "1", "1"}, "B")
	require.NoError(t, err)
	a.Path = filepath.Join(dir, "a.png")
	b.Path = filepath.Join(dir, "b.png")

	written, err := WriteAll(4, 3, a, b)
	require.NoError(t, err)
	require.Equal(t, []string{a.Path, b.Path}, written)
	for _, p := range written {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		require.True(t, bytes.HasPrefix(data, pngMagic))
	}
}

func TestWriteAllKeepsPreviousImagesOnFailure(t *testing.T) {
	dir := t.TempDir()
	a, err := Scatter(sample(), []string{"a", "a", "b", "b"}, "A")
	require.NoError(t, err)
	b, err := Scatter(sample(), []string{"a", "a", "b", "b"}, "B")
	require.NoError(t, err)
	a.Path = filepath.Join(dir, "a.png")
	b.Path = filepath.Join(dir, "missing", "b.png")
	require.NoError(t, os.WriteFile(a.Path, []byte("old"), 0o644))

	written, err := WriteAll(4, 3, a, b)
	require.Empty(t, written)
	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	require.Equal(t, b.Path, ioErr.Path)

	got, err := os.ReadFile(a.Path)
	require.NoError(t, err)
	require.Equal(t, "old", string(got))
	tmps, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	require.Empty(t, tmps)
}

func TestGroupColorsDistinct(t *testing.T) {
	for _, n := range []int{1, 3, 7, 9, 24} {
		cs := groupColors(n)
		require.Len(t, cs, n)
		seen := map[[4]uint32]bool{}
		for _, c := range cs {
			r, g, b, a := c.RGBA()
			seen[[4]uint32{r, g, b, a}] = true
		}
		require.Len(t, seen, n, "groups: %d", n)
	}
}

func TestScatterManyClusters(t *testing.T) {
	x := mat.NewDense(10, 2, nil)
	labels := make([]int, 10)
	for i := range labels {
		x.Set(i, 0, float64(i))
		labels[i] = i - 1
	}
	fig, err := Scatter(x, IntLabels(labels), "DBSCAN")
	require.NoError(t, err)
	require.Len(t, fig.Groups, 10)
	b, err := fig.Render(4, 3)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(b, pngMagic))
}

func TestIntLabels(t *testing.T) {
	require.Equal(t, []string{"-1", "0", "12"}, IntLabels([]int{-1, 0, 12}))
}
