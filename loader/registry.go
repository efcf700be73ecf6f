package loader

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/chazu/rungen/callable"
)

// ---------------------------------------------------------------------------
// Registry: host types visible to loaded code
// ---------------------------------------------------------------------------

// Symbol describes a registered host type.
type Symbol struct {
	ImportPath string
	PkgName    string
	Ident      string
	Type       reflect.Type
}

// Registry maps host Go types to the symbols generated code imports them by.
// Loaders are built from a snapshot of its exports. Thread-safe for
// concurrent registration and lookup.
type Registry struct {
	mu       sync.RWMutex
	byType   map[reflect.Type]Symbol
	pkgNames map[string]string // import path -> package name
	exports  map[string]map[string]reflect.Value
}

// NewRegistry creates a registry preloaded with the callable package.
func NewRegistry() *Registry {
	r := &Registry{
		byType:   make(map[reflect.Type]Symbol),
		pkgNames: make(map[string]string),
		exports:  make(map[string]map[string]reflect.Value),
	}
	for key, syms := range callable.Symbols() {
		r.pkgNames[callable.ImportPath] = "callable"
		r.exports[key] = syms
	}
	return r
}

// Register makes the named type t importable as pkgName.Ident from its
// package path. Registering a type twice returns the existing symbol.
func (r *Registry) Register(t reflect.Type, pkgName string) (Symbol, error) {
	if t.PkgPath() == "" || t.Name() == "" {
		return Symbol{}, fmt.Errorf("loader: %s is not a named type", t)
	}
	if strings.ContainsRune(t.Name(), '[') {
		return Symbol{}, fmt.Errorf("loader: generic type %s cannot be registered", t)
	}
	if !isExported(t.Name()) {
		return Symbol{}, fmt.Errorf("loader: type %s is not exported", t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if sym, ok := r.byType[t]; ok {
		return sym, nil
	}
	if prev, ok := r.pkgNames[t.PkgPath()]; ok && prev != pkgName {
		return Symbol{}, fmt.Errorf("loader: package %s already registered as %s, not %s", t.PkgPath(), prev, pkgName)
	}

	sym := Symbol{
		ImportPath: t.PkgPath(),
		PkgName:    pkgName,
		Ident:      t.Name(),
		Type:       t,
	}
	key := t.PkgPath() + "/" + pkgName
	if r.exports[key] == nil {
		r.exports[key] = make(map[string]reflect.Value)
	}
	r.exports[key][t.Name()] = reflect.Zero(reflect.PointerTo(t))
	r.pkgNames[t.PkgPath()] = pkgName
	r.byType[t] = sym
	return sym, nil
}

// Lookup returns the symbol registered for t.
func (r *Registry) Lookup(t reflect.Type) (Symbol, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sym, ok := r.byType[t]
	return sym, ok
}

// Len returns the number of registered host types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byType)
}

// Exports returns a snapshot of the registry keyed by "importpath/pkgname".
func (r *Registry) Exports() map[string]map[string]reflect.Value {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]map[string]reflect.Value, len(r.exports))
	for key, syms := range r.exports {
		m := make(map[string]reflect.Value, len(syms))
		for name, v := range syms {
			m[name] = v
		}
		out[key] = m
	}
	return out
}

func isExported(name string) bool {
	ch, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(ch)
}
