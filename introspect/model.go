// Package introspect loads Go packages with go/types and describes their
// exported API in the form the synthesizer consumes.
package introspect

import "github.com/chazu/rungen/synth"

// PackageModel is the exported API of a Go package.
type PackageModel struct {
	ImportPath string
	Name       string // short package name (e.g., "json")
	Functions  []FunctionModel
	Types      []TypeModel

	// Skipped lists declarations that cannot be named from generated code,
	// as "Name: reason".
	Skipped []string
}

// TypeModel is an exported named type and the methods of its pointer
// method set (or the interface's own methods).
type TypeModel struct {
	Name    string
	Desc    synth.TypeDesc
	Methods []synth.Method
}

// FunctionModel is an exported package-level function.
type FunctionModel struct {
	Name       string
	Params     []synth.TypeDesc
	Results    []synth.TypeDesc
	Variadic   bool
	ReturnsErr bool // last result is error
}

// Type returns the type called name, if the model has it.
func (m *PackageModel) Type(name string) (TypeModel, bool) {
	for _, t := range m.Types {
		if t.Name == name {
			return t, true
		}
	}
	return TypeModel{}, false
}

// Method returns the method called name, if the type has it.
func (t TypeModel) Method(name string) (synth.Method, bool) {
	for _, m := range t.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return synth.Method{}, false
}
