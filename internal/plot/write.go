package plot

import (
	"errors"
	"fmt"
	"os"

	"github.com/KaramelBytes/filialcluster/internal/utils"
)

// IOError reports an image that could not be written.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("write image %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// WriteAll renders every figure and writes each to its Path. All images
// are staged as temp files first and only renamed into place once every
// one of them was written, so a failure leaves existing images untouched.
func WriteAll(widthIn, heightIn float64, figs ...*Figure) ([]string, error) {
	data := make([][]byte, len(figs))
	for i, f := range figs {
		if f.Path == "" {
			return nil, &IOError{Path: f.Title, Err: errors.New("no output path")}
		}
		b, err := f.Render(widthIn, heightIn)
		if err != nil {
			return nil, &IOError{Path: f.Path, Err: err}
		}
		data[i] = b
	}

	tmps := make([]string, 0, len(figs))
	discard := func(from int) {
		for _, t := range tmps[from:] {
			_ = os.Remove(t)
		}
	}
	for i, f := range figs {
		tmp, err := utils.WriteTemp(f.Path, data[i])
		if err != nil {
			discard(0)
			return nil, &IOError{Path: f.Path, Err: err}
		}
		tmps = append(tmps, tmp)
	}

	written := make([]string, 0, len(figs))
	for i, f := range figs {
		if err := utils.CommitTemp(tmps[i], f.Path); err != nil {
			discard(i + 1)
			return written, &IOError{Path: f.Path, Err: err}
		}
		written = append(written, f.Path)
	}
	return written, nil
}
