// Package pipeline compiles source text into live callables: synthesize,
// compile against private in-memory units, load into a fresh loader,
// construct. Compiles run either on the caller's goroutine or on a shared
// executor that resolves futures.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/tliron/commonlog"
	"github.com/traefik/yaegi/stdlib"

	"github.com/chazu/rungen/artifact"
	"github.com/chazu/rungen/callable"
	"github.com/chazu/rungen/config"
	"github.com/chazu/rungen/diag"
	"github.com/chazu/rungen/loader"
	"github.com/chazu/rungen/synth"
	"github.com/chazu/rungen/toolchain"
)

// Options configures a Pipeline. Zero fields take defaults.
type Options struct {
	Executor  Executor            // default: an unbounded Pool
	Toolchain toolchain.Toolchain // default: toolchain.NewGo()
	Registry  *loader.Registry    // default: a fresh registry
	Logger    commonlog.Logger    // default: "rungen.pipeline"

	// Stdout and Stderr receive output printed by loaded code.
	Stdout io.Writer
	Stderr io.Writer

	// Package is the package clause of synthesized units.
	Package string
}

// Pipeline compiles and loads generated code.
type Pipeline struct {
	exec      Executor
	toolchain toolchain.Toolchain
	registry  *loader.Registry
	log       commonlog.Logger
	stdout    io.Writer
	stderr    io.Writer
	pkg       string

	compiles     atomic.Uint64
	failures     atomic.Uint64
	loads        atomic.Uint64
	constructs   atomic.Uint64
	compileNanos atomic.Int64
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		exec:      opts.Executor,
		toolchain: opts.Toolchain,
		registry:  opts.Registry,
		log:       opts.Logger,
		stdout:    opts.Stdout,
		stderr:    opts.Stderr,
		pkg:       opts.Package,
	}
	if p.exec == nil {
		p.exec = NewPool(0)
	}
	if p.toolchain == nil {
		p.toolchain = toolchain.NewGo()
	}
	if p.registry == nil {
		p.registry = loader.NewRegistry()
	}
	if p.log == nil {
		p.log = commonlog.GetLogger("rungen.pipeline")
	}
	if p.pkg == "" {
		p.pkg = synth.DefaultPackage
	}
	return p
}

// FromConfig creates a pipeline from the [pipeline] section of cfg and
// applies its [log] section to the process-wide log backend.
func FromConfig(cfg *config.Config) *Pipeline {
	if cfg == nil {
		cfg = config.Default()
	}
	cfg.ConfigureLogging()
	return New(Options{
		Executor: NewPool(cfg.Pipeline.Workers),
		Package:  cfg.Pipeline.Package,
	})
}

// Executor returns the executor async compiles are submitted to.
func (p *Pipeline) Executor() Executor { return p.exec }

// Registry returns the host types visible to generated code.
func (p *Pipeline) Registry() *loader.Registry { return p.registry }

// Package returns the package clause of synthesized units.
func (p *Pipeline) Package() string { return p.pkg }

func (p *Pipeline) stage(name string, s Stage) {
	p.log.Debugf("%s: %s", name, s)
}

// Compile compiles source verbatim and loads the declaration called name.
func (p *Pipeline) Compile(ctx context.Context, name, source string) (*Descriptor, error) {
	return p.compile(ctx, name, source, "")
}

func (p *Pipeline) compile(ctx context.Context, name, source, pkg string) (*Descriptor, error) {
	p.compiles.Add(1)
	p.stage(name, Compiling)

	out := artifact.NewCompiledUnit(name)
	diags := diag.NewCollector()
	task := &toolchain.Task{
		Package:     pkg,
		Units:       []*artifact.SourceUnit{artifact.NewSourceUnit(name, source)},
		Symbols:     p.registry.Exports(),
		Output:      artifact.NewRouter(out),
		Diagnostics: diags,
	}

	start := time.Now()
	ok := p.toolchain.Compile(ctx, task)
	p.compileNanos.Add(int64(time.Since(start)))
	if !ok {
		return nil, p.fail(&CompileError{Name: name, Diagnostics: diags.Items()})
	}
	p.stage(name, Succeeded)

	ld := loader.New(loader.Options{
		Symbols: task.Symbols,
		Stdout:  p.stdout,
		Stderr:  p.stderr,
	})
	obj, err := ld.Load(out, name)
	if err != nil {
		return nil, p.fail(&CompileError{Name: name, Err: err})
	}
	p.loads.Add(1)

	return &Descriptor{name: name, obj: obj, loader: ld, p: p}, nil
}

func (p *Pipeline) fail(err *CompileError) error {
	p.failures.Add(1)
	p.stage(err.Name, Failed)
	return err
}

// ConstructInstance calls the descriptor's no-arg constructor New<Name>.
func (p *Pipeline) ConstructInstance(d *Descriptor) (any, error) {
	p.stage(d.name, Instantiating)
	v, err := d.construct()
	if err != nil {
		return nil, p.fail(&CompileError{
			Name: d.name,
			Err:  &InstantiationError{Name: d.name, Err: err},
		})
	}
	p.constructs.Add(1)
	p.stage(d.name, Ready)
	return v, nil
}

// register makes the named host types of req importable by generated code.
func (p *Pipeline) register(req synth.Request) error {
	var types []synth.TypeDesc
	types = append(types, req.Params...)
	types = append(types, req.Result)
	if m := req.Method; m != nil {
		types = append(types, m.Recv)
		types = append(types, m.Params...)
		types = append(types, m.Results...)
	}

	var err error
	for _, t := range types {
		t.Walk(func(d synth.TypeDesc) {
			if err != nil || !d.IsNamed() || d.Reflect == nil {
				return
			}
			if _, std := stdlib.Symbols[d.PkgPath+"/"+d.PkgName]; std {
				return
			}
			_, err = p.registry.Register(d.Reflect, d.PkgName)
		})
	}
	return err
}

// construct synthesizes, compiles and constructs req, and checks that the
// constructed value is an F.
func construct[F any](ctx context.Context, p *Pipeline, req synth.Request) (F, error) {
	var zero F
	req.Package = p.pkg

	p.stage(req.Name, Synthesizing)
	if err := p.register(req); err != nil {
		return zero, p.fail(&CompileError{Name: req.Name, Err: err})
	}
	src, err := synth.Generate(req)
	if err != nil {
		return zero, p.fail(&CompileError{Name: req.Name, Err: err})
	}

	d, err := p.compile(ctx, req.Name, src, req.Package)
	if err != nil {
		return zero, err
	}
	v, err := p.ConstructInstance(d)
	if err != nil {
		return zero, err
	}
	f, ok := v.(F)
	if !ok {
		return zero, p.fail(&CompileError{
			Name: req.Name,
			Err: &InstantiationError{
				Name: req.Name,
				Err:  fmt.Errorf("constructor returned %T, want %T", v, zero),
			},
		})
	}
	return f, nil
}

func describe[T any]() (synth.TypeDesc, error) {
	return synth.Describe(reflect.TypeFor[T]())
}

// CompileTransform compiles body as the body of a func(arg A) R and returns
// the live function.
func CompileTransform[A, R any](ctx context.Context, p *Pipeline, body string, imports ...string) (func(A) R, error) {
	req, err := transformRequest[A, R](body, imports)
	if err != nil {
		return nil, p.fail(&CompileError{Name: req.Name, Err: err})
	}
	return construct[func(A) R](ctx, p, req)
}

// CompileBiTransform compiles body as the body of a func(arg1 A, arg2 B) R
// and returns the live function.
func CompileBiTransform[A, B, R any](ctx context.Context, p *Pipeline, body string, imports ...string) (func(A, B) R, error) {
	req, err := biTransformRequest[A, B, R](body, imports)
	if err != nil {
		return nil, p.fail(&CompileError{Name: req.Name, Err: err})
	}
	return construct[func(A, B) R](ctx, p, req)
}

// CompileMethodCaller compiles a specialized caller for m.
func (p *Pipeline) CompileMethodCaller(ctx context.Context, m synth.Method) (callable.MethodCaller, error) {
	f, err := construct[func(any, []any) (any, error)](ctx, p, methodCallerRequest(m))
	if err != nil {
		return nil, err
	}
	return callable.MethodCaller(f), nil
}

func transformRequest[A, R any](body string, imports []string) (synth.Request, error) {
	req := synth.Request{
		Capability: synth.Transform,
		Name:       synth.RandomName("Transform"),
		Body:       body,
		Imports:    imports,
	}
	a, err := describe[A]()
	if err != nil {
		return req, err
	}
	r, err := describe[R]()
	if err != nil {
		return req, err
	}
	req.Params = []synth.TypeDesc{a}
	req.Result = r
	return req, nil
}

func biTransformRequest[A, B, R any](body string, imports []string) (synth.Request, error) {
	req := synth.Request{
		Capability: synth.BiTransform,
		Name:       synth.RandomName("BiTransform"),
		Body:       body,
		Imports:    imports,
	}
	a, err := describe[A]()
	if err != nil {
		return req, err
	}
	b, err := describe[B]()
	if err != nil {
		return req, err
	}
	r, err := describe[R]()
	if err != nil {
		return req, err
	}
	req.Params = []synth.TypeDesc{a, b}
	req.Result = r
	return req, nil
}

func methodCallerRequest(m synth.Method) synth.Request {
	return synth.Request{
		Capability: synth.MethodCaller,
		Name:       synth.RandomName("Caller"),
		Method:     &m,
	}
}
