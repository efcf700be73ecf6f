package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/scanner"
	"go/token"
	"io"
	"regexp"
	"strconv"

	"github.com/tliron/commonlog"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/chazu/rungen/artifact"
	"github.com/chazu/rungen/diag"
)

var log = commonlog.GetLogger("rungen.toolchain")

// ---------------------------------------------------------------------------
// Go: parse, check, format, emit
// ---------------------------------------------------------------------------

// Go is the in-process Go toolchain. Each unit goes through two phases:
// a syntax pass with go/parser, then a semantic pass that compiles the unit
// in a scratch interpreter without running it. Units that pass both are
// formatted and emitted as encoded artifact objects.
type Go struct{}

// NewGo returns the Go toolchain.
func NewGo() *Go { return &Go{} }

// Compile implements Toolchain.
func (g *Go) Compile(ctx context.Context, task *Task) bool {
	diags := task.Diagnostics
	if diags == nil {
		diags = diag.NewCollector()
	}
	if task.Output == nil {
		diags.Errorf(diag.Location{}, "no output router")
		return false
	}

	ok := true
	for _, unit := range task.Units {
		if err := ctx.Err(); err != nil {
			diags.Errorf(diag.Location{File: unit.Filename()}, "compile abandoned: %v", err)
			return false
		}
		if !g.compileUnit(task, unit, diags) {
			ok = false
		}
	}
	return ok
}

func (g *Go) compileUnit(task *Task, unit *artifact.SourceUnit, diags *diag.Collector) bool {
	log.Debugf("compiling unit %s", unit.Name())

	// Phase 1: syntax
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, unit.Filename(), unit.Text(), parser.AllErrors|parser.ParseComments)
	if err != nil {
		reportParseError(diags, unit, err)
		return false
	}
	if task.Package != "" && file.Name.Name != task.Package {
		diags.Errorf(locationOf(fset, file.Name.Pos()),
			"package %s, expected %s", file.Name.Name, task.Package)
		return false
	}

	// Phase 2: semantics
	if err := check(task, unit); err != nil {
		reportCheckError(diags, unit, err)
		return false
	}

	var src bytes.Buffer
	if err := format.Node(&src, fset, file); err != nil {
		diags.Errorf(diag.Location{File: unit.Filename()}, "format: %v", err)
		return false
	}

	data, err := artifact.EncodeObject(&artifact.Object{
		Name:    unit.Name(),
		Package: file.Name.Name,
		Decls:   declsOf(file),
		Source:  src.Bytes(),
	})
	if err != nil {
		diags.Errorf(diag.Location{File: unit.Filename()}, "encode: %v", err)
		return false
	}

	out, err := task.Output.Output(unit.Name())
	if err != nil {
		diags.Errorf(diag.Location{File: unit.Filename()}, "%v", err)
		return false
	}
	if _, err := out.Write(data); err != nil {
		diags.Errorf(diag.Location{File: unit.Filename()}, "%v", err)
		return false
	}
	out.Seal()
	log.Debugf("unit %s: %d bytes", unit.Name(), len(data))
	return true
}

// check compiles unit in a throwaway interpreter.
func check(task *Task, unit *artifact.SourceUnit) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal compiler error: %v", r)
		}
	}()

	in := interp.New(interp.Options{Stdout: io.Discard, Stderr: io.Discard})
	if err := in.Use(stdlib.Symbols); err != nil {
		return err
	}
	if len(task.Symbols) > 0 {
		if err := in.Use(task.Symbols); err != nil {
			return err
		}
	}
	_, err = in.Compile(unit.Text())
	return err
}

func locationOf(fset *token.FileSet, pos token.Pos) diag.Location {
	p := fset.Position(pos)
	return diag.Location{File: p.Filename, Line: p.Line, Column: p.Column}
}

func reportParseError(diags *diag.Collector, unit *artifact.SourceUnit, err error) {
	var list scanner.ErrorList
	if errors.As(err, &list) {
		for _, e := range list {
			diags.Errorf(diag.Location{File: unit.Filename(), Line: e.Pos.Line, Column: e.Pos.Column}, "%s", e.Msg)
		}
		return
	}
	diags.Errorf(diag.Location{File: unit.Filename()}, "%v", err)
}

// checkErrRe matches the "[file:]line:col: message" lines the interpreter
// reports.
var checkErrRe = regexp.MustCompile(`^(?:(.*?):)?(\d+):(\d+): (.*)$`)

func reportCheckError(diags *diag.Collector, unit *artifact.SourceUnit, err error) {
	var list scanner.ErrorList
	if errors.As(err, &list) {
		reportParseError(diags, unit, list)
		return
	}
	loc := diag.Location{File: unit.Filename()}
	msg := err.Error()
	if m := checkErrRe.FindStringSubmatch(msg); m != nil {
		loc.Line, _ = strconv.Atoi(m[2])
		loc.Column, _ = strconv.Atoi(m[3])
		msg = m[4]
	}
	diags.Errorf(loc, "%s", msg)
}

// declsOf indexes the package-level declarations of file.
func declsOf(file *ast.File) []artifact.Decl {
	var decls []artifact.Decl
	add := func(id *ast.Ident, kind artifact.DeclKind) {
		if id.Name == "_" || id.Name == "init" {
			return
		}
		decls = append(decls, artifact.Decl{Name: id.Name, Kind: kind})
	}
	for _, d := range file.Decls {
		switch d := d.(type) {
		case *ast.FuncDecl:
			if d.Recv == nil {
				add(d.Name, artifact.DeclFunc)
			}
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					add(s.Name, artifact.DeclType)
				case *ast.ValueSpec:
					kind := artifact.DeclVar
					if d.Tok == token.CONST {
						kind = artifact.DeclConst
					}
					for _, id := range s.Names {
						add(id, kind)
					}
				}
			}
		}
	}
	return decls
}
