// Package callable defines the shapes of generated callables. Generated
// method callers import this package for the no-result sentinel, so its
// symbols are exported to every loader.
package callable

import "reflect"

// ImportPath is the path generated code uses to import this package.
const ImportPath = "github.com/chazu/rungen/callable"

// Transform is a one-argument generated callable.
type Transform[A, R any] func(A) R

// BiTransform is a two-argument generated callable.
type BiTransform[A, B, R any] func(A, B) R

// MethodCaller invokes one method on recv with positional arguments. The
// first result is the method's boxed result: NoResult when the method has no
// non-error results, the value itself for one, and a []any for several. The
// second result is the method's trailing error, if it declares one.
type MethodCaller func(recv any, args []any) (any, error)

// Void is the type of NoResult.
type Void struct{}

func (Void) String() string { return "<no result>" }

// NoResult is returned by method callers for methods without a non-error
// result.
var NoResult = Void{}

// Symbols returns this package's exports in the layout loaders consume.
func Symbols() map[string]map[string]reflect.Value {
	return map[string]map[string]reflect.Value{
		ImportPath + "/callable": {
			"Void":         reflect.ValueOf((*Void)(nil)),
			"NoResult":     reflect.ValueOf(&NoResult).Elem(),
			"MethodCaller": reflect.ValueOf((*MethodCaller)(nil)),
		},
	}
}
