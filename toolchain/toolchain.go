// Package toolchain defines the host compiler service the pipeline drives
// and ships the in-process Go implementation of it.
package toolchain

import (
	"context"
	"reflect"

	"github.com/chazu/rungen/artifact"
	"github.com/chazu/rungen/diag"
)

// Toolchain compiles source units into compiled units.
//
// Compile reports success. On success it has written exactly one object per
// unit into the sink Output routes that unit's name to, and sealed it. On
// failure the reasons are in Diagnostics and sinks may be left empty.
type Toolchain interface {
	Compile(ctx context.Context, task *Task) bool
}

// Task is one compile request.
type Task struct {
	// Package is the package clause every unit must declare. Empty accepts
	// any package name.
	Package string

	Units []*artifact.SourceUnit

	// Symbols are host exports visible to the units, keyed by
	// "importpath/pkgname".
	Symbols map[string]map[string]reflect.Value

	Output      *artifact.Router
	Diagnostics *diag.Collector
}

// Func adapts an ordinary function to the Toolchain interface.
type Func func(ctx context.Context, task *Task) bool

func (f Func) Compile(ctx context.Context, task *Task) bool { return f(ctx, task) }
