package introspect

import (
	"fmt"
	"go/types"
	"reflect"

	"github.com/chazu/rungen/synth"
)

// FromTypes describes a go/types type. The result carries no reflect.Type,
// so named types outside the standard library must also be registered with
// the loader before generated code can use them.
func FromTypes(t types.Type) (synth.TypeDesc, error) {
	t = types.Unalias(t)

	switch tt := t.(type) {
	case *types.Basic:
		k, ok := basicKinds[tt.Kind()]
		if !ok {
			return synth.TypeDesc{}, fmt.Errorf("unsupported basic type %s", tt)
		}
		return synth.TypeDesc{Name: tt.Name(), Kind: k}, nil

	case *types.Named:
		obj := tt.Obj()
		if obj.Pkg() == nil {
			if obj.Name() == "error" {
				return synth.Error, nil
			}
			return synth.TypeDesc{}, fmt.Errorf("unsupported predeclared type %s", obj.Name())
		}
		if tt.TypeParams().Len() > 0 || tt.TypeArgs().Len() > 0 {
			return synth.TypeDesc{}, fmt.Errorf("generic type %s cannot be named", tt)
		}
		if !obj.Exported() {
			return synth.TypeDesc{}, fmt.Errorf("type %s is not exported", tt)
		}
		return synth.TypeDesc{
			Name:    obj.Name(),
			PkgPath: obj.Pkg().Path(),
			PkgName: obj.Pkg().Name(),
			Kind:    kindOf(tt.Underlying()),
		}, nil

	case *types.Pointer:
		return composite(reflect.Pointer, tt.Elem())

	case *types.Slice:
		return composite(reflect.Slice, tt.Elem())

	case *types.Array:
		d, err := composite(reflect.Array, tt.Elem())
		d.Len = int(tt.Len())
		return d, err

	case *types.Chan:
		d, err := composite(reflect.Chan, tt.Elem())
		switch tt.Dir() {
		case types.SendOnly:
			d.Dir = reflect.SendDir
		case types.RecvOnly:
			d.Dir = reflect.RecvDir
		default:
			d.Dir = reflect.BothDir
		}
		return d, err

	case *types.Map:
		key, err := FromTypes(tt.Key())
		if err != nil {
			return synth.TypeDesc{}, err
		}
		d, err := composite(reflect.Map, tt.Elem())
		d.Key = &key
		return d, err

	case *types.Signature:
		if tt.TypeParams().Len() > 0 {
			return synth.TypeDesc{}, fmt.Errorf("generic function type %s", tt)
		}
		params, results, err := signatureTypes(tt)
		if err != nil {
			return synth.TypeDesc{}, err
		}
		return synth.TypeDesc{
			Kind:     reflect.Func,
			Params:   params,
			Results:  results,
			Variadic: tt.Variadic(),
		}, nil

	case *types.Interface:
		if tt.Empty() {
			return synth.Any, nil
		}
		return synth.TypeDesc{}, fmt.Errorf("anonymous interface %s cannot be named", tt)

	case *types.Struct:
		if tt.NumFields() == 0 {
			return synth.TypeDesc{Kind: reflect.Struct}, nil
		}
		return synth.TypeDesc{}, fmt.Errorf("anonymous struct %s cannot be named", tt)
	}
	return synth.TypeDesc{}, fmt.Errorf("unsupported type %s", t)
}

func composite(kind reflect.Kind, elem types.Type) (synth.TypeDesc, error) {
	e, err := FromTypes(elem)
	if err != nil {
		return synth.TypeDesc{}, err
	}
	return synth.TypeDesc{Kind: kind, Elem: &e}, nil
}

var basicKinds = map[types.BasicKind]reflect.Kind{
	types.Bool:       reflect.Bool,
	types.Int:        reflect.Int,
	types.Int8:       reflect.Int8,
	types.Int16:      reflect.Int16,
	types.Int32:      reflect.Int32,
	types.Int64:      reflect.Int64,
	types.Uint:       reflect.Uint,
	types.Uint8:      reflect.Uint8,
	types.Uint16:     reflect.Uint16,
	types.Uint32:     reflect.Uint32,
	types.Uint64:     reflect.Uint64,
	types.Uintptr:    reflect.Uintptr,
	types.Float32:    reflect.Float32,
	types.Float64:    reflect.Float64,
	types.Complex64:  reflect.Complex64,
	types.Complex128: reflect.Complex128,
	types.String:     reflect.String,
}

func kindOf(u types.Type) reflect.Kind {
	switch u := u.(type) {
	case *types.Basic:
		return basicKinds[u.Kind()]
	case *types.Pointer:
		return reflect.Pointer
	case *types.Slice:
		return reflect.Slice
	case *types.Array:
		return reflect.Array
	case *types.Map:
		return reflect.Map
	case *types.Chan:
		return reflect.Chan
	case *types.Signature:
		return reflect.Func
	case *types.Interface:
		return reflect.Interface
	case *types.Struct:
		return reflect.Struct
	}
	return reflect.Invalid
}
