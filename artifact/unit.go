// Package artifact holds the in-memory source and compiled units that stand
// in for files during a compile. Units are private to one compile call.
package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrSealed is returned when writing to a compiled unit that has already
	// received its output.
	ErrSealed = errors.New("artifact: compiled unit is sealed")

	// ErrNoOutput is returned by a Router asked for a name it has no sink for.
	ErrNoOutput = errors.New("artifact: no output registered")
)

// SourceUnit is a named, immutable piece of source text.
type SourceUnit struct {
	name string
	text string
}

// NewSourceUnit creates a source unit.
func NewSourceUnit(name, text string) *SourceUnit {
	return &SourceUnit{name: name, text: text}
}

// Name returns the unit's qualified name.
func (u *SourceUnit) Name() string { return u.name }

// Text returns the source text.
func (u *SourceUnit) Text() string { return u.text }

// Filename is the name diagnostics use to point into this unit.
func (u *SourceUnit) Filename() string { return u.name + ".go" }

// CompiledUnit is a growable byte sink that receives the output of exactly
// one compile. The toolchain appends to it and seals it; the loader reads it
// afterwards.
type CompiledUnit struct {
	name string

	mu     sync.Mutex
	buf    bytes.Buffer
	sealed bool
}

// NewCompiledUnit creates an empty, open compiled unit.
func NewCompiledUnit(name string) *CompiledUnit {
	return &CompiledUnit{name: name}
}

// Name returns the unit's qualified name.
func (u *CompiledUnit) Name() string { return u.name }

// Write appends p. It fails with ErrSealed once the unit has been sealed.
func (u *CompiledUnit) Write(p []byte) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.sealed {
		return 0, fmt.Errorf("%w: %s", ErrSealed, u.name)
	}
	return u.buf.Write(p)
}

// Seal closes the unit for writing.
func (u *CompiledUnit) Seal() {
	u.mu.Lock()
	u.sealed = true
	u.mu.Unlock()
}

// Sealed reports whether the unit has received its output.
func (u *CompiledUnit) Sealed() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.sealed
}

// Len returns the number of bytes written so far.
func (u *CompiledUnit) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.buf.Len()
}

// Bytes returns a copy of the unit's contents.
func (u *CompiledUnit) Bytes() []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	return bytes.Clone(u.buf.Bytes())
}

// Router redirects "output for name X" to the compiled unit registered for X
// instead of a file on disk.
type Router struct {
	units map[string]*CompiledUnit
}

// NewRouter returns a router over the given units.
func NewRouter(units ...*CompiledUnit) *Router {
	r := &Router{units: make(map[string]*CompiledUnit, len(units))}
	for _, u := range units {
		r.units[u.Name()] = u
	}
	return r
}

// Output returns the sink registered for name.
func (r *Router) Output(name string) (*CompiledUnit, error) {
	u, ok := r.units[name]
	if !ok {
		return nil, fmt.Errorf("%w for %q", ErrNoOutput, name)
	}
	return u, nil
}
