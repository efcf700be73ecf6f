// Package loader defines compiled units into the running process. Every
// Loader owns a fresh interpreter and accepts exactly one unit, so two
// loads of the same text never share definitions or types.
package loader

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/chazu/rungen/artifact"
)

// ErrAlreadyDefined is returned when a second unit is defined into a loader.
var ErrAlreadyDefined = errors.New("loader: unit already defined")

// ErrNotDefined is returned when resolving names before Define.
var ErrNotDefined = errors.New("loader: no unit defined")

// LookupError reports a name the defined unit does not provide.
type LookupError struct {
	Unit string
	Name string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("loader: unit %q does not define %q", e.Unit, e.Name)
}

// Options configures a Loader.
type Options struct {
	// Symbols are the host exports made visible to loaded code, keyed by
	// "importpath/pkgname".
	Symbols map[string]map[string]reflect.Value

	// Stdout and Stderr receive output printed by loaded code.
	// Nil means the process's own streams.
	Stdout io.Writer
	Stderr io.Writer
}

// Loader defines one compiled unit and resolves names from it.
type Loader struct {
	opts Options

	mu  sync.Mutex
	in  *interp.Interpreter
	obj *artifact.Object
}

// New creates an empty loader.
func New(opts Options) *Loader {
	return &Loader{opts: opts}
}

// Define decodes unit and evaluates it in a fresh interpreter.
func (l *Loader) Define(unit *artifact.CompiledUnit) error {
	obj, err := artifact.DecodeObject(unit.Bytes())
	if err != nil {
		return err
	}
	return l.define(obj)
}

// Load defines unit and checks that it provides name.
func (l *Loader) Load(unit *artifact.CompiledUnit, name string) (*artifact.Object, error) {
	obj, err := artifact.DecodeObject(unit.Bytes())
	if err != nil {
		return nil, err
	}
	if obj.Name != name {
		return nil, &LookupError{Unit: obj.Name, Name: name}
	}
	if _, ok := obj.Declares(name); !ok {
		return nil, &LookupError{Unit: obj.Name, Name: name}
	}
	if err := l.define(obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func (l *Loader) define(obj *artifact.Object) (err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.obj != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyDefined, l.obj.Name)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loader: defining %s: panic: %v", obj.Name, r)
		}
	}()

	in := interp.New(interp.Options{
		Stdout: l.opts.Stdout,
		Stderr: l.opts.Stderr,
	})
	if err := in.Use(stdlib.Symbols); err != nil {
		return fmt.Errorf("loader: stdlib symbols: %w", err)
	}
	if len(l.opts.Symbols) > 0 {
		if err := in.Use(l.opts.Symbols); err != nil {
			return fmt.Errorf("loader: host symbols: %w", err)
		}
	}
	if _, err := in.Eval(string(obj.Source)); err != nil {
		return fmt.Errorf("loader: defining %s: %w", obj.Name, err)
	}

	l.in = in
	l.obj = obj
	return nil
}

// Object returns the defined object, or nil.
func (l *Loader) Object() *artifact.Object {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.obj
}

// Resolve returns the declaration of name in the defined unit.
func (l *Loader) Resolve(name string) (artifact.Decl, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.obj == nil {
		return artifact.Decl{}, ErrNotDefined
	}
	d, ok := l.obj.Declares(name)
	if !ok {
		return artifact.Decl{}, &LookupError{Unit: l.obj.Name, Name: name}
	}
	return d, nil
}

// Lookup returns the value of the package-level function, variable or
// constant name. Types have no value and cannot be looked up.
func (l *Loader) Lookup(name string) (v reflect.Value, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.obj == nil {
		return reflect.Value{}, ErrNotDefined
	}
	d, ok := l.obj.Declares(name)
	if !ok || d.Kind == artifact.DeclType {
		return reflect.Value{}, &LookupError{Unit: l.obj.Name, Name: name}
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loader: resolving %s.%s: panic: %v", l.obj.Package, name, r)
		}
	}()
	v, err = l.in.Eval(l.obj.Package + "." + name)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("loader: resolving %s.%s: %w", l.obj.Package, name, err)
	}
	return v, nil
}
