package handle

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"

	"github.com/PaperStrike/wrightplay/internal/log"
	"github.com/PaperStrike/wrightplay/internal/wire"
)

// EvaluationError wraps a failure raised by the callable evaluate invokes,
// carrying the thrown value pre-serialized to wire form so a caller across
// the bridge sees the actual value a test's evaluate callback threw
// (§7's "user-code fault"), not just a Go error string. Only constructed
// when the underlying failure was a genuine JS throw whose value could be
// serialized; other evaluate failures (compile errors, host-call errors)
// stay plain errors.
type EvaluationError struct {
	Node wire.Node
	err  error
}

func (e *EvaluationError) Error() string { return e.err.Error() }
func (e *EvaluationError) Unwrap() error { return e.err }

// Evaluator runs the host side of the handle protocol: it owns the goja
// runtime the host embeds to run evaluate expressions against Go-side
// automation objects, and the target vector those expressions and their
// results are addressed through.
//
// This plays the role that ExecutionContext.eval/Eval/EvalHandle play in
// common/execution_context.go, except the "execution context" here is a
// goja.Runtime the host runs itself, rather than a CDP session into the
// browser's own V8 isolate.
type Evaluator struct {
	rt       *goja.Runtime
	registry *Registry
	logger   *log.Logger
}

// NewEvaluator wires a fresh goja runtime to registry.
func NewEvaluator(registry *Registry, logger *log.Logger) *Evaluator {
	return &Evaluator{rt: goja.New(), registry: registry, logger: logger}
}

// Evaluate runs exprSrc against the handle at targetID with the given
// argument and awaits the result if it's thenable (§4.2). If asHandle is
// true, the result is registered as a new handle and the returned Node
// carries only that handle's id; otherwise the result is serialized with
// a null fallback, so an unencodable value (e.g. a function) round-trips
// as null instead of failing the whole call.
func (e *Evaluator) Evaluate(targetID int, exprSrc string, argNode wire.Node, asHandle bool) (wire.Node, error) {
	target, ok := e.registry.Get(targetID)
	if !ok {
		return wire.Node{}, fmt.Errorf("evaluate: handle %d not present in target vector", targetID)
	}

	arg, err := wire.Parse(argNode, e.registry.Get)
	if err != nil {
		return wire.Node{}, fmt.Errorf("evaluate: decoding argument: %w", err)
	}

	fn, err := e.compileCallable(exprSrc)
	if err != nil {
		return wire.Node{}, fmt.Errorf("evaluate: %w", err)
	}

	if e.logger != nil {
		e.logger.Debugf("evaluate", "target=%d expr=%q", targetID, exprSrc)
	}

	result, err := fn(goja.Undefined(), e.rt.ToValue(target), toGoja(e.rt, arg))
	if err != nil {
		return wire.Node{}, e.wrapThrow(err)
	}

	result, err = e.await(result)
	if err != nil {
		return wire.Node{}, e.wrapThrow(err)
	}

	if asHandle {
		id := e.registry.Add(result)
		return wire.Node{Handle: &id}, nil
	}

	v, err := fromGoja(e.rt, result, make(map[goja.Value]any))
	if err != nil {
		return wire.Node{}, fmt.Errorf("evaluate: serializing result: %w", err)
	}
	return wire.SerializeWithFallback(v, nil)
}

// wrapThrow classifies a failure from calling or awaiting the compiled
// callable: if it's a genuine JS throw (*goja.Exception), the thrown
// value is serialized into an EvaluationError so it survives the trip
// back across the bridge intact; anything else (a host-side goja error)
// is left as a plain error, wrapped with the evaluate: prefix.
func (e *Evaluator) wrapThrow(err error) error {
	var exc *goja.Exception
	if errors.As(err, &exc) {
		v, convErr := fromGoja(e.rt, exc.Value(), make(map[goja.Value]any))
		if convErr == nil {
			node, serErr := wire.SerializeWithFallback(v, wire.Undefined{})
			if serErr == nil {
				return &EvaluationError{Node: node, err: fmt.Errorf("evaluate: %w", err)}
			}
		}
	}
	return fmt.Errorf("evaluate: %w", err)
}

// JSONValue serializes the value at handleID for transport, replacing any
// nested function with undefined rather than failing the whole call (§4.2).
func (e *Evaluator) JSONValue(handleID int) (wire.Node, error) {
	target, ok := e.registry.Get(handleID)
	if !ok {
		return wire.Node{}, fmt.Errorf("jsonValue: handle %d not present in target vector", handleID)
	}
	v, err := e.toWireValue(target)
	if err != nil {
		return wire.Node{}, fmt.Errorf("jsonValue: %w", err)
	}
	return wire.SerializeWithFallback(v, wire.Undefined{})
}

// GetProperty resolves a single named property of handleID and registers
// it as a new handle.
func (e *Evaluator) GetProperty(handleID int, key string) (int, error) {
	target, ok := e.registry.Get(handleID)
	if !ok {
		return 0, fmt.Errorf("getProperty: handle %d not present in target vector", handleID)
	}
	obj := e.rt.ToValue(target).ToObject(e.rt)
	prop := obj.Get(key)
	return e.registry.Add(prop), nil
}

// PropertyHandle is one entry of GetProperties' result: an own-enumerable
// property name paired with the new handle id registered for its value.
type PropertyHandle struct {
	Key    string
	Handle int
}

// GetProperties enumerates the own-enumerable properties of handleID and
// registers each value as its own handle.
func (e *Evaluator) GetProperties(handleID int) ([]PropertyHandle, error) {
	target, ok := e.registry.Get(handleID)
	if !ok {
		return nil, fmt.Errorf("getProperties: handle %d not present in target vector", handleID)
	}
	obj := e.rt.ToValue(target).ToObject(e.rt)
	keys := obj.Keys()
	out := make([]PropertyHandle, len(keys))
	for i, key := range keys {
		out[i] = PropertyHandle{Key: key, Handle: e.registry.Add(obj.Get(key))}
	}
	return out, nil
}

// Dispose releases handleID.
func (e *Evaluator) Dispose(handleID int) error {
	return e.registry.Dispose(handleID)
}

func (e *Evaluator) toWireValue(target any) (any, error) {
	if gv, ok := target.(goja.Value); ok {
		return fromGoja(e.rt, gv, make(map[goja.Value]any))
	}
	// A non-goja Go value (e.g. the browsing context or page adapter
	// registered at handle 0/1) round-trips through ToValue first so plain
	// struct fields/methods get the same treatment as any other object.
	return fromGoja(e.rt, e.rt.ToValue(target), make(map[goja.Value]any))
}

// compileCallable runs the ParseExpression factory and asserts the result
// is callable.
func (e *Evaluator) compileCallable(exprSrc string) (goja.Callable, error) {
	factorySrc, err := ParseExpression(exprSrc)
	if err != nil {
		return nil, err
	}
	prog, err := goja.Compile("", factorySrc, true)
	if err != nil {
		return nil, fmt.Errorf("compiling: %w", err)
	}
	factoryVal, err := e.rt.RunProgram(prog)
	if err != nil {
		return nil, fmt.Errorf("preparing factory: %w", err)
	}
	factory, ok := goja.AssertFunction(factoryVal)
	if !ok {
		return nil, fmt.Errorf("internal error: factory did not compile to a function")
	}
	inner, err := factory(goja.Undefined())
	if err != nil {
		return nil, fmt.Errorf("running factory: %w", err)
	}
	fn, ok := goja.AssertFunction(inner)
	if !ok {
		return nil, fmt.Errorf("%s: does not evaluate to a function", exprSrc)
	}
	return fn, nil
}

// await drains result if it exposes a callable .then, blocking until one of
// the two callbacks it's handed is invoked. This is a duck-typed substitute
// for depending on goja's own (unexported-heavy, pruned-from-the-retrieved
// snapshot) Promise type: any thenable, whether produced by native
// async/await or handed back by user code directly, is handled the same
// way. It relies on goja settling reactions synchronously within the call
// to then; a function that awaits another not-yet-settled promise across a
// host callback boundary is out of scope here.
func (e *Evaluator) await(result goja.Value) (goja.Value, error) {
	obj, ok := result.(*goja.Object)
	if !ok {
		return result, nil
	}
	then, ok := goja.AssertFunction(obj.Get("then"))
	if !ok {
		return result, nil
	}

	type outcome struct {
		value goja.Value
		err   error
	}
	done := make(chan outcome, 1)

	resolve := e.rt.ToValue(func(call goja.FunctionCall) goja.Value {
		done <- outcome{value: call.Argument(0)}
		return goja.Undefined()
	})
	reject := e.rt.ToValue(func(call goja.FunctionCall) goja.Value {
		done <- outcome{err: fmt.Errorf("promise rejected: %s", call.Argument(0).String())}
		return goja.Undefined()
	})

	if _, err := then(obj, resolve, reject); err != nil {
		return nil, err
	}

	out := <-done
	return out.value, out.err
}
