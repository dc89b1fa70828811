package cmd

import (
	"errors"
	"fmt"

	cfgpkg "github.com/KaramelBytes/filialcluster/internal/config"
	"github.com/KaramelBytes/filialcluster/internal/frame"
	"github.com/KaramelBytes/filialcluster/internal/plot"
	"github.com/KaramelBytes/filialcluster/internal/schema"
	"github.com/KaramelBytes/filialcluster/internal/storage"
)

// Process exit codes.
const (
	exitOK      = 0
	exitFailure = 1 // connection, query and any unclassified failure
	exitData    = 2
	exitOutput  = 3
	exitUsage   = 4
)

// usageError marks bad arguments, flags or configuration.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var (
		ue  *usageError
		ce  *storage.ConnectionError
		qe  *storage.QueryError
		se  *schema.SchemaError
		te  *schema.ColumnTypeError
		de  *frame.DuplicateKeyError
		ioe *plot.IOError
	)
	switch {
	case errors.As(err, &ue), errors.Is(err, cfgpkg.ErrInvalid):
		return exitUsage
	case errors.As(err, &ce), errors.As(err, &qe):
		return exitFailure
	case errors.As(err, &se), errors.As(err, &te), errors.As(err, &de):
		return exitData
	case errors.As(err, &ioe):
		return exitOutput
	}
	return exitFailure
}
