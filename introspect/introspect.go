package introspect

import (
	"fmt"
	"go/types"
	"reflect"

	"golang.org/x/tools/go/packages"

	"github.com/chazu/rungen/synth"
)

// Package loads a Go package by import path and returns its API model.
// The include filter, if non-nil, restricts which exported names are
// included.
func Package(importPath string, include map[string]bool) (*PackageModel, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedTypes,
	}

	pkgs, err := packages.Load(cfg, importPath)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", importPath, err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found for %s", importPath)
	}
	if len(pkgs[0].Errors) > 0 {
		return nil, fmt.Errorf("package errors: %v", pkgs[0].Errors)
	}

	pkg := pkgs[0]
	if pkg.Types == nil {
		return nil, fmt.Errorf("type information not available for %s", importPath)
	}

	model := &PackageModel{
		ImportPath: importPath,
		Name:       pkg.Name,
	}
	skip := func(name string, err error) {
		model.Skipped = append(model.Skipped, fmt.Sprintf("%s: %v", name, err))
	}

	scope := pkg.Types.Scope()
	for _, name := range scope.Names() {
		if include != nil && !include[name] {
			continue
		}
		obj := scope.Lookup(name)
		if !obj.Exported() {
			continue
		}

		switch o := obj.(type) {
		case *types.Func:
			fm, err := functionModel(o)
			if err != nil {
				skip(name, err)
				continue
			}
			model.Functions = append(model.Functions, fm)

		case *types.TypeName:
			if o.IsAlias() {
				continue
			}
			tm, err := typeModel(o, skip)
			if err != nil {
				skip(name, err)
				continue
			}
			model.Types = append(model.Types, tm)
		}
	}

	return model, nil
}

func functionModel(fn *types.Func) (FunctionModel, error) {
	sig := fn.Type().(*types.Signature)
	if sig.TypeParams().Len() > 0 {
		return FunctionModel{}, fmt.Errorf("generic function")
	}
	params, results, err := signatureTypes(sig)
	if err != nil {
		return FunctionModel{}, err
	}
	fm := FunctionModel{
		Name:     fn.Name(),
		Params:   params,
		Results:  results,
		Variadic: sig.Variadic(),
	}
	if n := len(results); n > 0 && results[n-1].IsError() {
		fm.ReturnsErr = true
	}
	return fm, nil
}

func typeModel(tn *types.TypeName, skip func(string, error)) (TypeModel, error) {
	named, ok := tn.Type().(*types.Named)
	if !ok {
		return TypeModel{}, fmt.Errorf("not a named type")
	}
	desc, err := FromTypes(named)
	if err != nil {
		return TypeModel{}, err
	}
	tm := TypeModel{Name: tn.Name(), Desc: desc}

	// Interfaces dispatch through themselves, everything else through a
	// pointer so the full method set is reachable.
	recvType := types.Type(named)
	recv := desc
	if !types.IsInterface(named) {
		recvType = types.NewPointer(named)
		recv = synth.TypeDesc{Kind: reflect.Pointer, Elem: &desc}
	}

	mset := types.NewMethodSet(recvType)
	for i := 0; i < mset.Len(); i++ {
		sel := mset.At(i)
		fn, ok := sel.Obj().(*types.Func)
		if !ok || !fn.Exported() {
			continue
		}
		// Only methods declared on this type, not promoted ones.
		if len(sel.Index()) > 1 {
			continue
		}
		m, err := methodModel(recv, fn)
		if err != nil {
			skip(tn.Name()+"."+fn.Name(), err)
			continue
		}
		tm.Methods = append(tm.Methods, m)
	}
	return tm, nil
}

func methodModel(recv synth.TypeDesc, fn *types.Func) (synth.Method, error) {
	sig := fn.Type().(*types.Signature)
	params, results, err := signatureTypes(sig)
	if err != nil {
		return synth.Method{}, err
	}
	m := synth.Method{
		Recv:     recv,
		Name:     fn.Name(),
		Params:   params,
		Results:  results,
		Variadic: sig.Variadic(),
	}
	if n := len(results); n > 0 && results[n-1].IsError() {
		m.ReturnsErr = true
	}
	return m, nil
}

func signatureTypes(sig *types.Signature) (params, results []synth.TypeDesc, err error) {
	for i := 0; i < sig.Params().Len(); i++ {
		d, err := FromTypes(sig.Params().At(i).Type())
		if err != nil {
			return nil, nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		params = append(params, d)
	}
	for i := 0; i < sig.Results().Len(); i++ {
		d, err := FromTypes(sig.Results().At(i).Type())
		if err != nil {
			return nil, nil, fmt.Errorf("result %d: %w", i, err)
		}
		results = append(results, d)
	}
	return params, results, nil
}
