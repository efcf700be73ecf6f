// Package synth turns type descriptions and body text into Go source for
// generated callables. It is pure: nothing here compiles or loads code.
package synth

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// TypeDesc describes a Go type well enough to write it in generated source.
//
// Named types carry Name, PkgPath and PkgName. Predeclared types carry only
// Name. Composite types carry their Kind and element descriptions.
type TypeDesc struct {
	Name    string
	PkgPath string
	PkgName string
	Kind    reflect.Kind

	Elem *TypeDesc // pointer, slice, array, chan, map value
	Key  *TypeDesc // map key
	Len  int       // array length
	Dir  reflect.ChanDir

	// Func types.
	Params   []TypeDesc
	Results  []TypeDesc
	Variadic bool

	// Reflect is the host type this description was built from, when known.
	// Generated code can only import named types that have one.
	Reflect reflect.Type
}

var (
	// Any describes the empty interface.
	Any = TypeDesc{Name: "any", Kind: reflect.Interface, Reflect: reflect.TypeFor[any]()}

	// Error describes the predeclared error interface.
	Error = TypeDesc{Name: "error", Kind: reflect.Interface, Reflect: reflect.TypeFor[error]()}
)

// Describe builds the description of t. Unexported, generic, anonymous
// struct and anonymous non-empty interface types cannot be named from
// generated code and are rejected.
func Describe(t reflect.Type) (TypeDesc, error) {
	if t == nil {
		return TypeDesc{}, fmt.Errorf("synth: nil type")
	}

	if t.Name() != "" {
		if t.PkgPath() == "" {
			return TypeDesc{Name: t.Name(), Kind: t.Kind(), Reflect: t}, nil
		}
		if strings.ContainsRune(t.Name(), '[') {
			return TypeDesc{}, fmt.Errorf("synth: generic type %s cannot be named", t)
		}
		if !IsExported(t.Name()) {
			return TypeDesc{}, fmt.Errorf("synth: type %s is not exported", t)
		}
		pkgName, _, _ := strings.Cut(t.String(), ".")
		return TypeDesc{
			Name:    t.Name(),
			PkgPath: t.PkgPath(),
			PkgName: pkgName,
			Kind:    t.Kind(),
			Reflect: t,
		}, nil
	}

	d := TypeDesc{Kind: t.Kind(), Reflect: t}
	var err error
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice:
		d.Elem, err = describeRef(t.Elem())
	case reflect.Array:
		d.Len = t.Len()
		d.Elem, err = describeRef(t.Elem())
	case reflect.Chan:
		d.Dir = t.ChanDir()
		d.Elem, err = describeRef(t.Elem())
	case reflect.Map:
		if d.Key, err = describeRef(t.Key()); err == nil {
			d.Elem, err = describeRef(t.Elem())
		}
	case reflect.Func:
		d.Variadic = t.IsVariadic()
		for i := range t.NumIn() {
			p, perr := Describe(t.In(i))
			if perr != nil {
				return TypeDesc{}, perr
			}
			d.Params = append(d.Params, p)
		}
		for i := range t.NumOut() {
			r, rerr := Describe(t.Out(i))
			if rerr != nil {
				return TypeDesc{}, rerr
			}
			d.Results = append(d.Results, r)
		}
	case reflect.Interface:
		if t.NumMethod() != 0 {
			return TypeDesc{}, fmt.Errorf("synth: anonymous interface %s cannot be named", t)
		}
		return Any, nil
	case reflect.Struct:
		if t.NumField() != 0 {
			return TypeDesc{}, fmt.Errorf("synth: anonymous struct %s cannot be named", t)
		}
	default:
		return TypeDesc{}, fmt.Errorf("synth: unsupported type %s", t)
	}
	if err != nil {
		return TypeDesc{}, err
	}
	return d, nil
}

// MustDescribe is like Describe but panics on error.
func MustDescribe(t reflect.Type) TypeDesc {
	d, err := Describe(t)
	if err != nil {
		panic(err)
	}
	return d
}

func describeRef(t reflect.Type) (*TypeDesc, error) {
	d, err := Describe(t)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// IsNamed reports whether d is a named type declared in some package.
func (d TypeDesc) IsNamed() bool { return d.Name != "" && d.PkgPath != "" }

// IsPrimitive reports whether d is predeclared: bool, string, the numeric
// types, error or any.
func (d TypeDesc) IsPrimitive() bool { return d.Name != "" && d.PkgPath == "" }

// IsError reports whether d is the predeclared error type.
func (d TypeDesc) IsError() bool { return d.IsPrimitive() && d.Name == "error" }

// Boxed returns the type d's values take in an untyped contract slot such
// as a method caller's receiver and result. Every value travels as any.
func (d TypeDesc) Boxed() TypeDesc { return Any }

// Walk calls fn for d and every type nested in it.
func (d TypeDesc) Walk(fn func(TypeDesc)) {
	fn(d)
	if d.IsNamed() || d.IsPrimitive() {
		return
	}
	if d.Key != nil {
		d.Key.Walk(fn)
	}
	if d.Elem != nil {
		d.Elem.Walk(fn)
	}
	for _, p := range d.Params {
		p.Walk(fn)
	}
	for _, r := range d.Results {
		r.Walk(fn)
	}
}

// String renders d qualified by package name.
func (d TypeDesc) String() string {
	return d.render(func(pkgPath, pkgName string) string { return pkgName })
}

// qualifier returns the local name a package is referred to by.
type qualifier func(pkgPath, pkgName string) string

func (d TypeDesc) render(q qualifier) string {
	if d.IsPrimitive() {
		return d.Name
	}
	if d.IsNamed() {
		return q(d.PkgPath, d.PkgName) + "." + d.Name
	}
	switch d.Kind {
	case reflect.Pointer:
		return "*" + d.Elem.render(q)
	case reflect.Slice:
		return "[]" + d.Elem.render(q)
	case reflect.Array:
		return "[" + strconv.Itoa(d.Len) + "]" + d.Elem.render(q)
	case reflect.Map:
		return "map[" + d.Key.render(q) + "]" + d.Elem.render(q)
	case reflect.Chan:
		elem := d.Elem.render(q)
		switch d.Dir {
		case reflect.RecvDir:
			return "<-chan " + elem
		case reflect.SendDir:
			return "chan<- " + elem
		}
		if d.Elem.Kind == reflect.Chan && d.Elem.Dir == reflect.RecvDir && !d.Elem.IsNamed() {
			elem = "(" + elem + ")"
		}
		return "chan " + elem
	case reflect.Func:
		return "func" + signature(d.Params, d.Results, d.Variadic, q)
	case reflect.Struct:
		return "struct{}"
	case reflect.Interface:
		return "any"
	}
	return "invalid"
}

func signature(params, results []TypeDesc, variadic bool, q qualifier) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		if variadic && i == len(params)-1 {
			b.WriteString("..." + p.Elem.render(q))
			continue
		}
		b.WriteString(p.render(q))
	}
	b.WriteByte(')')
	switch len(results) {
	case 0:
	case 1:
		b.WriteString(" " + results[0].render(q))
	default:
		b.WriteString(" (")
		for i, r := range results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.render(q))
		}
		b.WriteByte(')')
	}
	return b.String()
}
