package storage

import "fmt"

// ConnectionError indicates the SQLite store could not be opened.
type ConnectionError struct {
	Path string
	Err  error
}

func (e *ConnectionError) Error() string {
	if e == nil {
		return "connection failed"
	}
	return fmt.Sprintf("cannot open database %s: %v", e.Path, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError indicates a table could not be read, typically because it does
// not exist.
type QueryError struct {
	Table string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("cannot load table %q: %v", e.Table, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
