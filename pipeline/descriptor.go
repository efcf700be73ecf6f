package pipeline

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/chazu/rungen/artifact"
	"github.com/chazu/rungen/loader"
	"github.com/chazu/rungen/synth"
)

// Descriptor is a loaded, not yet constructed declaration. Every compile
// returns a new descriptor with its own loader, even for identical text.
type Descriptor struct {
	name   string
	obj    *artifact.Object
	loader *loader.Loader
	p      *Pipeline
}

// Name returns the declaration the descriptor was loaded for.
func (d *Descriptor) Name() string { return d.name }

// Package returns the package clause of the compiled unit.
func (d *Descriptor) Package() string { return d.obj.Package }

// Loader returns the loader that defined the unit.
func (d *Descriptor) Loader() *loader.Loader { return d.loader }

// Object returns the compiled unit's payload.
func (d *Descriptor) Object() *artifact.Object { return d.obj }

// Lookup returns the value of another package-level declaration of the
// same unit.
func (d *Descriptor) Lookup(name string) (reflect.Value, error) {
	return d.loader.Lookup(name)
}

// Construct is shorthand for ConstructInstance on the owning pipeline.
func (d *Descriptor) Construct() (any, error) {
	return d.p.ConstructInstance(d)
}

var errorType = reflect.TypeFor[error]()

func (d *Descriptor) construct() (v any, err error) {
	ctor := synth.Constructor(d.name)
	fn, err := d.loader.Lookup(ctor)
	if err != nil {
		var lerr *loader.LookupError
		if errors.As(err, &lerr) {
			return nil, fmt.Errorf("no constructor %s", ctor)
		}
		return nil, err
	}
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is a %s, not a function", ctor, fn.Kind())
	}
	t := fn.Type()
	if t.NumIn() != 0 || t.NumOut() < 1 || t.NumOut() > 2 || (t.NumOut() == 2 && t.Out(1) != errorType) {
		return nil, fmt.Errorf("%s has type %s, want func() T or func() (T, error)", ctor, t)
	}

	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("%s panicked: %v", ctor, r)
		}
	}()
	out := fn.Call(nil)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}
