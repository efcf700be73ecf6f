package pipeline

import (
	"errors"
	"fmt"

	"github.com/chazu/rungen/diag"
)

// ErrNoResult is the absent result of an asynchronous compile that failed.
// Errors returned by Future.Await for such compiles satisfy errors.Is with
// it and also wrap the underlying failure.
var ErrNoResult = errors.New("pipeline: no result")

// CompileError reports a compile that produced no usable descriptor:
// compiler diagnostics, a load failure or a failed construction.
type CompileError struct {
	Name        string
	Diagnostics []diag.Diagnostic
	Err         error
}

func (e *CompileError) Error() string {
	if len(e.Diagnostics) > 0 {
		return fmt.Sprintf("pipeline: compiling %s failed:\n%s", e.Name, diag.Join(e.Diagnostics))
	}
	if e.Err != nil {
		return fmt.Sprintf("pipeline: compiling %s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("pipeline: compiling %s failed", e.Name)
}

func (e *CompileError) Unwrap() error { return e.Err }

// InstantiationError reports a constructor that is missing, has the wrong
// shape, returned an error or panicked.
type InstantiationError struct {
	Name string
	Err  error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("pipeline: instantiating %s: %v", e.Name, e.Err)
}

func (e *InstantiationError) Unwrap() error { return e.Err }
