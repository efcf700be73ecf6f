package loader

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/chazu/rungen/artifact"
)

// Point is a host type used by loaded test code.
type Point struct {
	X, Y int
}

func (p *Point) Sum() int { return p.X + p.Y }

func objectUnit(t *testing.T, name, pkg, src string, decls ...artifact.Decl) *artifact.CompiledUnit {
	t.Helper()
	data, err := artifact.EncodeObject(&artifact.Object{
		Name:    name,
		Package: pkg,
		Decls:   decls,
		Source:  []byte(src),
	})
	if err != nil {
		t.Fatalf("EncodeObject: %v", err)
	}
	u := artifact.NewCompiledUnit(name)
	if _, err := u.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	u.Seal()
	return u
}

const greeterSrc = `package gen

func Greeting() string { return "hello" }

var Answer = 42
`

func TestDefineAndLookup(t *testing.T) {
	u := objectUnit(t, "Greeting", "gen", greeterSrc,
		artifact.Decl{Name: "Greeting", Kind: artifact.DeclFunc},
		artifact.Decl{Name: "Answer", Kind: artifact.DeclVar},
	)
	l := New(Options{})
	obj, err := l.Load(u, "Greeting")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if obj.Package != "gen" {
		t.Errorf("package = %q, want gen", obj.Package)
	}

	v, err := l.Lookup("Greeting")
	if err != nil {
		t.Fatalf("Lookup(Greeting): %v", err)
	}
	fn, ok := v.Interface().(func() string)
	if !ok {
		t.Fatalf("Greeting has type %s", v.Type())
	}
	if got := fn(); got != "hello" {
		t.Errorf("Greeting() = %q, want hello", got)
	}

	d, err := l.Resolve("Answer")
	if err != nil {
		t.Fatalf("Resolve(Answer): %v", err)
	}
	if d.Kind != artifact.DeclVar {
		t.Errorf("Answer kind = %s, want var", d.Kind)
	}
}

func TestLoadUnknownName(t *testing.T) {
	u := objectUnit(t, "Greeting", "gen", greeterSrc,
		artifact.Decl{Name: "Greeting", Kind: artifact.DeclFunc},
	)

	_, err := New(Options{}).Load(u, "Other")
	var lerr *LookupError
	if !errors.As(err, &lerr) {
		t.Fatalf("Load(Other) = %v, want LookupError", err)
	}
	if lerr.Name != "Other" {
		t.Errorf("LookupError.Name = %q, want Other", lerr.Name)
	}
}

func TestLoadUndeclaredName(t *testing.T) {
	// The object is named Missing but declares nothing by that name.
	u := objectUnit(t, "Missing", "gen", greeterSrc,
		artifact.Decl{Name: "Greeting", Kind: artifact.DeclFunc},
	)
	_, err := New(Options{}).Load(u, "Missing")
	var lerr *LookupError
	if !errors.As(err, &lerr) {
		t.Fatalf("Load(Missing) = %v, want LookupError", err)
	}
}

func TestLoadCorruptBytes(t *testing.T) {
	u := artifact.NewCompiledUnit("Broken")
	u.Write([]byte{0xff, 0x00, 0x13})
	u.Seal()

	_, err := New(Options{}).Load(u, "Broken")
	if !errors.Is(err, artifact.ErrCorruptObject) {
		t.Fatalf("Load = %v, want ErrCorruptObject", err)
	}
}

func TestDefineTwice(t *testing.T) {
	u := objectUnit(t, "Greeting", "gen", greeterSrc,
		artifact.Decl{Name: "Greeting", Kind: artifact.DeclFunc},
	)
	l := New(Options{})
	if err := l.Define(u); err != nil {
		t.Fatalf("Define: %v", err)
	}
	if err := l.Define(u); !errors.Is(err, ErrAlreadyDefined) {
		t.Errorf("second Define = %v, want ErrAlreadyDefined", err)
	}
}

func TestLookupBeforeDefine(t *testing.T) {
	l := New(Options{})
	if _, err := l.Lookup("Greeting"); !errors.Is(err, ErrNotDefined) {
		t.Errorf("Lookup = %v, want ErrNotDefined", err)
	}
	if _, err := l.Resolve("Greeting"); !errors.Is(err, ErrNotDefined) {
		t.Errorf("Resolve = %v, want ErrNotDefined", err)
	}
}

func TestLookupTypeHasNoValue(t *testing.T) {
	src := "package gen\n\ntype Box struct{ N int }\n"
	u := objectUnit(t, "Box", "gen", src, artifact.Decl{Name: "Box", Kind: artifact.DeclType})
	l := New(Options{})
	if _, err := l.Load(u, "Box"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	var lerr *LookupError
	if _, err := l.Lookup("Box"); !errors.As(err, &lerr) {
		t.Errorf("Lookup(Box) = %v, want LookupError", err)
	}
}

func TestFreshLoadersAreIndependent(t *testing.T) {
	src := `package gen

var calls int

func Bump() int {
	calls++
	return calls
}
`
	decls := []artifact.Decl{{Name: "Bump", Kind: artifact.DeclFunc}}

	bump := func(l *Loader) func() int {
		t.Helper()
		if _, err := l.Load(objectUnit(t, "Bump", "gen", src, decls...), "Bump"); err != nil {
			t.Fatalf("Load: %v", err)
		}
		v, err := l.Lookup("Bump")
		if err != nil {
			t.Fatalf("Lookup: %v", err)
		}
		return v.Interface().(func() int)
	}

	a := bump(New(Options{}))
	b := bump(New(Options{}))

	a()
	a()
	if got := b(); got != 1 {
		t.Errorf("second loader saw state from the first: Bump() = %d, want 1", got)
	}
}

func TestLoadedCodeUsesHostTypes(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Register(reflect.TypeFor[Point](), "loader"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	src := `package gen

import loader "github.com/chazu/rungen/loader"

func Total(p *loader.Point) int { return p.Sum() * 2 }
`
	u := objectUnit(t, "Total", "gen", src, artifact.Decl{Name: "Total", Kind: artifact.DeclFunc})
	l := New(Options{Symbols: reg.Exports()})
	if _, err := l.Load(u, "Total"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	v, err := l.Lookup("Total")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	total := v.Interface().(func(*Point) int)
	if got := total(&Point{X: 2, Y: 3}); got != 10 {
		t.Errorf("Total = %d, want 10", got)
	}
}

func TestLoadedCodePrintsToConfiguredStdout(t *testing.T) {
	src := `package gen

import "fmt"

func Hello() { fmt.Println("hello from gen") }
`
	var out bytes.Buffer
	l := New(Options{Stdout: &out})
	u := objectUnit(t, "Hello", "gen", src, artifact.Decl{Name: "Hello", Kind: artifact.DeclFunc})
	if _, err := l.Load(u, "Hello"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	v, err := l.Lookup("Hello")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	v.Interface().(func())()
	if out.String() != "hello from gen\n" {
		t.Errorf("stdout = %q", out.String())
	}
}
