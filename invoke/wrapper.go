// Package invoke provides a tiered method dispatcher.
package invoke

// Tiered dispatch
//
// A Wrapper starts on the reflective tier: reflect.Value.Call, slow but
// correct for any receiver. Construction kicks off a background compile of
// a specialized method caller. The first Invoke that finds the compile
// finished publishes the caller, and every later Invoke goes straight to it.
//
//	Reflective --(compile done)--> Compiled
//
// The switch is one-way. A failed compile is reported to the invoking call
// rather than hidden behind the reflective tier.
//
// The compiled caller runs inside the yaegi interpreter that loaded it, so
// per call it is slower than the reflective tier (about 10x for a small
// method). It is specialized in shape, not in speed.

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/tliron/commonlog"

	"github.com/chazu/rungen/callable"
	"github.com/chazu/rungen/pipeline"
	"github.com/chazu/rungen/synth"
)

var log = commonlog.GetLogger("rungen.invoke")

// Tier identifies the path a call took.
type Tier uint8

const (
	Reflective Tier = iota // reflect.Value.Call
	Compiled               // generated method caller
)

func (t Tier) String() string {
	switch t {
	case Reflective:
		return "reflective"
	case Compiled:
		return "compiled"
	default:
		return fmt.Sprintf("Tier(%d)", t)
	}
}

// InvocationError reports a call that could not be made: wrong arity,
// a receiver or argument of the wrong type, a panic, or a failed compile.
// Errors returned by the target method itself are never wrapped.
type InvocationError struct {
	Method string
	Tier   Tier
	Err    error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoke: %s (%s): %v", e.Method, e.Tier, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// Stats counts calls per tier.
type Stats struct {
	Reflective uint64
	Compiled   uint64
}

// Wrapper dispatches calls to one method.
type Wrapper struct {
	m    synth.Method
	name string

	pending *pipeline.Future[callable.MethodCaller]
	caller  atomic.Pointer[callable.MethodCaller]

	reflectiveCalls atomic.Uint64
	compiledCalls   atomic.Uint64
}

// New creates a wrapper for m and submits the compile of its caller to p's
// executor.
func New(p *pipeline.Pipeline, m synth.Method) (*Wrapper, error) {
	if !synth.ValidIdent(m.Name) || !synth.IsExported(m.Name) {
		return nil, fmt.Errorf("invoke: %q is not an exported method name", m.Name)
	}
	w := &Wrapper{m: m, name: m.String()}
	w.pending = p.CompileMethodCallerAsync(m)
	return w, nil
}

// ForMethod creates a wrapper for the method name of recvType.
func ForMethod(p *pipeline.Pipeline, recvType reflect.Type, name string) (*Wrapper, error) {
	m, err := synth.MethodOf(recvType, name)
	if err != nil {
		return nil, err
	}
	return New(p, m)
}

// Method returns the wrapped method.
func (w *Wrapper) Method() synth.Method { return w.m }

// Tier returns the tier the next call will use, as far as is known.
func (w *Wrapper) Tier() Tier {
	if w.caller.Load() != nil {
		return Compiled
	}
	return Reflective
}

// Stats returns per-tier call counts.
func (w *Wrapper) Stats() Stats {
	return Stats{
		Reflective: w.reflectiveCalls.Load(),
		Compiled:   w.compiledCalls.Load(),
	}
}

// Invoke calls the method on recv with args. It never blocks on the
// compile.
func (w *Wrapper) Invoke(recv any, args []any) (any, error) {
	if c := w.caller.Load(); c != nil {
		return w.callCompiled(*c, recv, args)
	}

	select {
	case <-w.pending.Done():
		c, _, err := w.pending.Poll()
		if err != nil {
			return nil, &InvocationError{Method: w.name, Tier: Compiled, Err: err}
		}
		return w.callCompiled(w.publish(c), recv, args)
	default:
	}
	return w.callReflective(recv, args)
}

// ForceCompilation waits for the compile and switches to the compiled tier.
func (w *Wrapper) ForceCompilation(ctx context.Context) error {
	if w.caller.Load() != nil {
		return nil
	}
	c, err := w.pending.Await(ctx)
	if err != nil {
		return fmt.Errorf("invoke: compiling caller for %s: %w", w.name, err)
	}
	w.publish(c)
	return nil
}

// publish installs c unless another caller won, and returns the installed
// caller.
func (w *Wrapper) publish(c callable.MethodCaller) callable.MethodCaller {
	if w.caller.CompareAndSwap(nil, &c) {
		log.Debugf("%s: switched to compiled tier", w.name)
		return c
	}
	return *w.caller.Load()
}

func (w *Wrapper) checkArity(tier Tier, args []any) error {
	if len(args) != len(w.m.Params) {
		return &InvocationError{
			Method: w.name,
			Tier:   tier,
			Err:    fmt.Errorf("want %d arguments, got %d", len(w.m.Params), len(args)),
		}
	}
	return nil
}

func (w *Wrapper) callCompiled(c callable.MethodCaller, recv any, args []any) (v any, err error) {
	w.compiledCalls.Add(1)
	if err := w.checkArity(Compiled, args); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, &InvocationError{Method: w.name, Tier: Compiled, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return c(recv, args)
}

func (w *Wrapper) callReflective(recv any, args []any) (v any, err error) {
	w.reflectiveCalls.Add(1)
	if err := w.checkArity(Reflective, args); err != nil {
		return nil, err
	}
	fail := func(format string, a ...any) (any, error) {
		return nil, &InvocationError{Method: w.name, Tier: Reflective, Err: fmt.Errorf(format, a...)}
	}
	defer func() {
		if r := recover(); r != nil {
			v, err = fail("panic: %v", r)
		}
	}()

	rv := reflect.ValueOf(recv)
	if !rv.IsValid() {
		return fail("nil receiver")
	}

	var fn reflect.Value
	var in []reflect.Value
	if w.m.Func.IsValid() {
		if !rv.Type().AssignableTo(w.m.RecvType) {
			return fail("receiver is %T, want %s", recv, w.m.RecvType)
		}
		fn = w.m.Func
		in = append(in, rv)
	} else {
		fn = rv.MethodByName(w.m.Name)
		if !fn.IsValid() {
			return fail("%T has no method %s", recv, w.m.Name)
		}
	}

	ft := fn.Type()
	offset := len(in)
	for i, a := range args {
		pt := ft.In(offset + i)
		if a == nil {
			in = append(in, reflect.Zero(pt))
			continue
		}
		av := reflect.ValueOf(a)
		if !av.Type().AssignableTo(pt) {
			return fail("argument %d is %T, want %s", i, a, pt)
		}
		in = append(in, av)
	}

	var out []reflect.Value
	if ft.IsVariadic() {
		out = fn.CallSlice(in)
	} else {
		out = fn.Call(in)
	}
	return pack(out, w.m.ReturnsErr)
}

// pack shapes reflective results the way generated callers return them.
func pack(out []reflect.Value, returnsErr bool) (any, error) {
	var err error
	if returnsErr {
		last := out[len(out)-1]
		if !last.IsNil() {
			err = last.Interface().(error)
		}
		out = out[:len(out)-1]
	}
	switch len(out) {
	case 0:
		return callable.NoResult, err
	case 1:
		return out[0].Interface(), err
	}
	vals := make([]any, len(out))
	for i, o := range out {
		vals[i] = o.Interface()
	}
	return vals, err
}
