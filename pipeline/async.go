package pipeline

import (
	"context"
	"fmt"

	"github.com/chazu/rungen/callable"
	"github.com/chazu/rungen/synth"
)

// submit runs fn on the executor. Failures, panics included, never escape
// the task: they are logged and the future resolves to ErrNoResult.
func submit[T any](p *Pipeline, name string, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	var zero T

	err := p.exec.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				p.log.Errorf("async compile %s panicked: %v", name, r)
				f.resolve(zero, fmt.Errorf("%w: %s panicked: %v", ErrNoResult, name, r))
			}
		}()
		v, err := fn(context.Background())
		if err != nil {
			p.log.Warningf("async compile %s failed: %v", name, err)
			f.resolve(zero, fmt.Errorf("%w: %w", ErrNoResult, err))
			return
		}
		f.resolve(v, nil)
	})
	if err != nil {
		p.log.Warningf("async compile %s not started: %v", name, err)
		return Resolved(zero, fmt.Errorf("%w: %w", ErrNoResult, err))
	}
	return f
}

// CompileAsync is Compile on the pipeline's executor.
func (p *Pipeline) CompileAsync(name, source string) *Future[*Descriptor] {
	return submit(p, name, func(ctx context.Context) (*Descriptor, error) {
		return p.Compile(ctx, name, source)
	})
}

// CompileMethodCallerAsync is CompileMethodCaller on the pipeline's executor.
func (p *Pipeline) CompileMethodCallerAsync(m synth.Method) *Future[callable.MethodCaller] {
	return submit(p, m.String(), func(ctx context.Context) (callable.MethodCaller, error) {
		return p.CompileMethodCaller(ctx, m)
	})
}

// CompileTransformAsync is CompileTransform on the pipeline's executor.
func CompileTransformAsync[A, R any](p *Pipeline, body string, imports ...string) *Future[func(A) R] {
	return submit(p, "transform", func(ctx context.Context) (func(A) R, error) {
		return CompileTransform[A, R](ctx, p, body, imports...)
	})
}

// CompileBiTransformAsync is CompileBiTransform on the pipeline's executor.
func CompileBiTransformAsync[A, B, R any](p *Pipeline, body string, imports ...string) *Future[func(A, B) R] {
	return submit(p, "bitransform", func(ctx context.Context) (func(A, B) R, error) {
		return CompileBiTransform[A, B, R](ctx, p, body, imports...)
	})
}
