package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/chazu/rungen/config"
	"github.com/chazu/rungen/diag"
	"github.com/chazu/rungen/loader"
	"github.com/chazu/rungen/synth"
	"github.com/chazu/rungen/toolchain"
	"github.com/tliron/commonlog"
)

// Tally is a host type generated callers dispatch to.
type Tally struct {
	mu sync.Mutex
	n  int
}

func (t *Tally) Add(delta int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n += delta
	return t.n
}

// gate queues submitted tasks until release.
type gate struct {
	mu    sync.Mutex
	tasks []func()
}

func (g *gate) Submit(task func()) error {
	g.mu.Lock()
	g.tasks = append(g.tasks, task)
	g.mu.Unlock()
	return nil
}

func (g *gate) release() {
	g.mu.Lock()
	tasks := g.tasks
	g.tasks = nil
	g.mu.Unlock()
	for _, task := range tasks {
		task()
	}
}

const hexBody = `n, err := strconv.ParseInt(arg, 16, 64)
if err != nil {
	return -1
}
return int(n)`

func TestCompileRunnable(t *testing.T) {
	src := `package gen

import "fmt"

type Test struct{}

func (Test) Run() { fmt.Println("Hello, World!") }

func NewTest() func() {
	var t Test
	return func() { t.Run() }
}
`
	var out bytes.Buffer
	p := New(Options{Executor: Inline, Stdout: &out})

	d, err := p.Compile(context.Background(), "Test", src)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if d.Name() != "Test" || d.Package() != "gen" {
		t.Errorf("descriptor = %s.%s", d.Package(), d.Name())
	}
	v, err := d.Construct()
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	run, ok := v.(func())
	if !ok {
		t.Fatalf("constructed %T, want func()", v)
	}
	run()
	if out.String() != "Hello, World!\n" {
		t.Errorf("stdout = %q, want one greeting", out.String())
	}
}

func TestCompileTransformHex(t *testing.T) {
	p := New(Options{Executor: Inline})
	parse, err := CompileTransform[string, int](context.Background(), p, hexBody, "strconv")
	if err != nil {
		t.Fatalf("CompileTransform: %v", err)
	}
	if got := parse("F"); got != 15 {
		t.Errorf("parse(F) = %d, want 15", got)
	}
}

func TestTransformMatchesDirectEvaluation(t *testing.T) {
	p := New(Options{Executor: Inline})
	parse, err := CompileTransform[string, int](context.Background(), p, hexBody, "strconv")
	if err != nil {
		t.Fatalf("CompileTransform: %v", err)
	}
	direct := func(arg string) int {
		n, err := strconv.ParseInt(arg, 16, 64)
		if err != nil {
			return -1
		}
		return int(n)
	}
	for _, in := range []string{"0", "ff", "10", "7fffffff", "zz", ""} {
		if got, want := parse(in), direct(in); got != want {
			t.Errorf("parse(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestCompileBiTransform(t *testing.T) {
	p := New(Options{Executor: Inline})
	repeat, err := CompileBiTransform[string, int, string](context.Background(), p,
		"return strings.Repeat(arg1, arg2)", "strings")
	if err != nil {
		t.Fatalf("CompileBiTransform: %v", err)
	}
	if got := repeat("ab", 3); got != "ababab" {
		t.Errorf("repeat = %q", got)
	}
}

func TestCompileTransformHostType(t *testing.T) {
	p := New(Options{Executor: Inline})
	add, err := CompileTransform[*Tally, int](context.Background(), p, "return arg.Add(2)")
	if err != nil {
		t.Fatalf("CompileTransform: %v", err)
	}
	tally := &Tally{}
	add(tally)
	if got := add(tally); got != 4 {
		t.Errorf("add = %d, want 4", got)
	}
	if _, ok := p.Registry().Lookup(reflect.TypeFor[Tally]()); !ok {
		t.Error("Tally should have been registered")
	}
}

func TestCompileTransformSyntaxError(t *testing.T) {
	p := New(Options{Executor: Inline})
	f, err := CompileTransform[int, int](context.Background(), p, "return arg +")
	if f != nil {
		t.Error("no callable expected")
	}
	var cerr *CompileError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want *CompileError", err)
	}
	if len(cerr.Diagnostics) == 0 {
		t.Fatal("expected diagnostics")
	}
	if cerr.Diagnostics[0].Location.Line == 0 {
		t.Errorf("diagnostic without a line: %s", cerr.Diagnostics[0])
	}
	if !strings.Contains(err.Error(), cerr.Diagnostics[0].Location.String()) {
		t.Errorf("error text lacks the location:\n%s", err)
	}
}

func TestCompileVerbatimSyntaxError(t *testing.T) {
	p := New(Options{Executor: Inline})
	d, err := p.Compile(context.Background(), "Bad", "package gen\n\nfunc (\n")
	if d != nil {
		t.Error("no descriptor expected")
	}
	var cerr *CompileError
	if !errors.As(err, &cerr) || len(cerr.Diagnostics) == 0 {
		t.Fatalf("err = %v, want *CompileError with diagnostics", err)
	}
	if got := p.Stats().Failures; got != 1 {
		t.Errorf("failures = %d, want 1", got)
	}
}

func TestCompileNameMismatch(t *testing.T) {
	p := New(Options{Executor: Inline})
	_, err := p.Compile(context.Background(), "Missing", "package gen\n\nfunc Other() {}\n")
	var lerr *loader.LookupError
	if !errors.As(err, &lerr) {
		t.Fatalf("err = %v, want wrapped *loader.LookupError", err)
	}
	var cerr *CompileError
	if !errors.As(err, &cerr) {
		t.Errorf("err = %v, want *CompileError", err)
	}
}

func TestToolchainDiagnosticsSurface(t *testing.T) {
	tc := toolchain.Func(func(ctx context.Context, task *toolchain.Task) bool {
		task.Diagnostics.Errorf(diag.Location{File: "A.go", Line: 3, Column: 7}, "first")
		task.Diagnostics.Warningf(diag.Location{File: "A.go", Line: 9}, "second")
		return false
	})
	p := New(Options{Executor: Inline, Toolchain: tc})
	_, err := p.Compile(context.Background(), "A", "package gen")
	var cerr *CompileError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v", err)
	}
	if len(cerr.Diagnostics) != 2 {
		t.Fatalf("diagnostics = %d, want 2", len(cerr.Diagnostics))
	}
	msg := err.Error()
	first := strings.Index(msg, "A.go:3:7: first")
	second := strings.Index(msg, "A.go:9: second")
	if first < 0 || second < 0 || first > second {
		t.Errorf("diagnostics out of order or missing:\n%s", msg)
	}
}

func TestConstructFailures(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{"NoCtor", "package gen\n\ntype NoCtor struct{}\n", "no constructor NewNoCtor"},
		{"Shape", "package gen\n\ntype Shape struct{}\n\nfunc NewShape(x int) int { return x }\n", "want func() T"},
		{"Boom", "package gen\n\nimport \"errors\"\n\ntype Boom struct{}\n\nfunc NewBoom() (any, error) { return nil, errors.New(\"boom\") }\n", "boom"},
		{"Panic", "package gen\n\ntype Panic struct{}\n\nfunc NewPanic() any { panic(\"nope\") }\n", "panicked"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(Options{Executor: Inline})
			d, err := p.Compile(context.Background(), tt.name, tt.src)
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			v, err := p.ConstructInstance(d)
			if v != nil {
				t.Errorf("constructed %v", v)
			}
			var ierr *InstantiationError
			if !errors.As(err, &ierr) {
				t.Fatalf("err = %v, want *InstantiationError", err)
			}
			var cerr *CompileError
			if !errors.As(err, &cerr) || cerr.Name != tt.name {
				t.Errorf("err = %v, want *CompileError naming %s", err, tt.name)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %q, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestCompileTwiceGivesDistinctDescriptors(t *testing.T) {
	src := "package gen\n\ntype Seven struct{}\n\nfunc NewSeven() func() int { return func() int { return 7 } }\n"
	p := New(Options{Executor: Inline})

	d1, err := p.Compile(context.Background(), "Seven", src)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := p.Compile(context.Background(), "Seven", src)
	if err != nil {
		t.Fatal(err)
	}
	if d1 == d2 || d1.Loader() == d2.Loader() {
		t.Fatal("compiles should not share descriptors or loaders")
	}
	for _, d := range []*Descriptor{d1, d2} {
		v, err := d.Construct()
		if err != nil {
			t.Fatal(err)
		}
		if got := v.(func() int)(); got != 7 {
			t.Errorf("got %d, want 7", got)
		}
	}
}

func TestSequentialCompilesSameName(t *testing.T) {
	p := New(Options{Executor: Inline})
	for _, want := range []int{1, 2} {
		src := "package gen\n\ntype Value struct{}\n\nfunc NewValue() func() int { return func() int { return " +
			strconv.Itoa(want) + " } }\n"
		d, err := p.Compile(context.Background(), "Value", src)
		if err != nil {
			t.Fatal(err)
		}
		v, err := d.Construct()
		if err != nil {
			t.Fatal(err)
		}
		if got := v.(func() int)(); got != want {
			t.Errorf("compile %d returned %d", want, got)
		}
	}
}

func TestCompileMethodCaller(t *testing.T) {
	p := New(Options{Executor: Inline})
	m, err := synth.MethodOf(reflect.TypeFor[*Tally](), "Add")
	if err != nil {
		t.Fatal(err)
	}
	call, err := p.CompileMethodCaller(context.Background(), m)
	if err != nil {
		t.Fatalf("CompileMethodCaller: %v", err)
	}

	tally := &Tally{}
	got, err := call(tally, []any{5})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if got != 5 {
		t.Errorf("call = %v, want 5", got)
	}
	if _, err := call(tally, nil); err == nil {
		t.Error("wrong arity should fail")
	}
}

func TestCompileAsync(t *testing.T) {
	g := &gate{}
	p := New(Options{Executor: g})
	src := "package gen\n\ntype Later struct{}\n\nfunc NewLater() func() string { return func() string { return \"later\" } }\n"

	f := p.CompileAsync("Later", src)
	if _, done, _ := f.Poll(); done {
		t.Fatal("future resolved before the executor ran")
	}
	g.release()

	d, err := f.Await(context.Background())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	v, err := d.Construct()
	if err != nil {
		t.Fatal(err)
	}
	if got := v.(func() string)(); got != "later" {
		t.Errorf("got %q", got)
	}
}

func TestCompileAsyncFailureIsAbsent(t *testing.T) {
	p := New(Options{Executor: Inline})
	f := p.CompileAsync("Bad", "package gen\n\nfunc (\n")

	d, err := f.Await(context.Background())
	if d != nil {
		t.Error("no descriptor expected")
	}
	if !errors.Is(err, ErrNoResult) {
		t.Errorf("err = %v, want ErrNoResult", err)
	}
	var cerr *CompileError
	if !errors.As(err, &cerr) {
		t.Errorf("err = %v, want the underlying *CompileError", err)
	}
}

func TestCompileAsyncPanicIsAbsent(t *testing.T) {
	tc := toolchain.Func(func(ctx context.Context, task *toolchain.Task) bool {
		panic("toolchain crashed")
	})
	p := New(Options{Executor: Inline, Toolchain: tc})
	_, err := CompileTransformAsync[int, int](p, "return arg").Await(context.Background())
	if !errors.Is(err, ErrNoResult) {
		t.Errorf("err = %v, want ErrNoResult", err)
	}
}

func TestCompileAsyncClosedPool(t *testing.T) {
	pool := NewPool(0)
	pool.Close()
	p := New(Options{Executor: pool})
	_, err := p.CompileAsync("X", "package gen").Await(context.Background())
	if !errors.Is(err, ErrNoResult) || !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrNoResult wrapping ErrClosed", err)
	}
}

func TestConcurrentAsyncTransforms(t *testing.T) {
	pool := NewPool(4)
	p := New(Options{Executor: pool})

	var futures []*Future[func(int, int) int]
	for range 8 {
		futures = append(futures, CompileBiTransformAsync[int, int, int](p, "return arg1*arg2"))
	}
	for i, f := range futures {
		mul, err := f.Await(context.Background())
		if err != nil {
			t.Fatalf("future %d: %v", i, err)
		}
		if got := mul(i, 3); got != i*3 {
			t.Errorf("mul(%d, 3) = %d", i, got)
		}
	}
	pool.Close()
	pool.Wait()

	if s := p.Stats(); s.Compiles != 8 || s.Constructs != 8 || s.Failures != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.Package = "dyn"
	cfg.Pipeline.Workers = 1
	p := FromConfig(cfg)
	if p.Package() != "dyn" {
		t.Errorf("package = %q", p.Package())
	}

	neg, err := CompileTransform[int, int](context.Background(), p, "return -arg")
	if err != nil {
		t.Fatalf("CompileTransform: %v", err)
	}
	if neg(4) != -4 {
		t.Error("neg(4) != -4")
	}

	if FromConfig(nil).Package() != synth.DefaultPackage {
		t.Error("nil config should use defaults")
	}
}

func TestFromConfigConfiguresLogging(t *testing.T) {
	t.Cleanup(func() { config.Default().ConfigureLogging() })

	cfg := config.Default()
	cfg.Dir = t.TempDir()
	cfg.Log.Verbosity = 1
	cfg.Log.File = "pipeline.log"
	FromConfig(cfg)

	if _, err := os.Stat(filepath.Join(cfg.Dir, "pipeline.log")); err != nil {
		t.Errorf("log file not created: %v", err)
	}
	if !commonlog.AllowLevel(commonlog.Info) || commonlog.AllowLevel(commonlog.Debug) {
		t.Errorf("max level = %v, want info", commonlog.GetMaxLevel())
	}
}

func TestRejectsUnnameableTypes(t *testing.T) {
	type local struct{}
	p := New(Options{Executor: Inline})
	_, err := CompileTransform[local, int](context.Background(), p, "return 0")
	var cerr *CompileError
	if !errors.As(err, &cerr) {
		t.Errorf("err = %v, want *CompileError", err)
	}
}
