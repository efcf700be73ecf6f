package synth

import (
	"fmt"
	"reflect"
)

// Method describes a method that a method caller dispatches to.
type Method struct {
	Recv       TypeDesc
	Name       string
	Params     []TypeDesc
	Results    []TypeDesc // including a trailing error
	Variadic   bool
	ReturnsErr bool // last result is error

	// RecvType and Func are set when the method was taken from a host type.
	// Func is the method expression (receiver first) and is invalid for
	// interface receivers.
	RecvType reflect.Type
	Func     reflect.Value
}

// MethodOf describes the method name of recv.
func MethodOf(recv reflect.Type, name string) (Method, error) {
	if recv == nil {
		return Method{}, fmt.Errorf("synth: nil receiver type")
	}
	mt, ok := recv.MethodByName(name)
	if !ok {
		return Method{}, fmt.Errorf("synth: %s has no method %s", recv, name)
	}
	rd, err := Describe(recv)
	if err != nil {
		return Method{}, err
	}

	m := Method{
		Recv:     rd,
		Name:     name,
		RecvType: recv,
		Variadic: mt.Type.IsVariadic(),
	}
	first := 1
	if recv.Kind() == reflect.Interface {
		first = 0
	} else {
		m.Func = mt.Func
	}

	ft := mt.Type
	for i := first; i < ft.NumIn(); i++ {
		p, err := Describe(ft.In(i))
		if err != nil {
			return Method{}, fmt.Errorf("synth: %s.%s parameter %d: %w", recv, name, i-first, err)
		}
		m.Params = append(m.Params, p)
	}
	for i := range ft.NumOut() {
		r, err := Describe(ft.Out(i))
		if err != nil {
			return Method{}, fmt.Errorf("synth: %s.%s result %d: %w", recv, name, i, err)
		}
		m.Results = append(m.Results, r)
	}
	if n := len(m.Results); n > 0 && m.Results[n-1].IsError() {
		m.ReturnsErr = true
	}
	return m, nil
}

// Values returns the results other than a trailing error.
func (m Method) Values() []TypeDesc {
	if m.ReturnsErr {
		return m.Results[:len(m.Results)-1]
	}
	return m.Results
}

// String renders the method as (Recv).Name(params) results.
func (m Method) String() string {
	q := func(pkgPath, pkgName string) string { return pkgName }
	return "(" + m.Recv.render(q) + ")." + m.Name + signature(m.Params, m.Results, m.Variadic, q)
}
