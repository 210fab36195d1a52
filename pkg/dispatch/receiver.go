package dispatch

import (
	"context"
	"reflect"
	"runtime"
	"sync/atomic"
	"weak"
)

// Args carries the named arguments of an event. Receivers share one Args
// value per dispatch and must treat it as read-only.
type Args map[string]any

// Event is handed to every receiver when a signal fires.
type Event struct {
	Signal *Signal
	Sender any
	Args   Args
}

// Arg returns the named argument.
func (e *Event) Arg(name string) (any, bool) {
	v, ok := e.Args[name]
	return v, ok
}

// Receiver is a synchronous receiver. Synchronous receivers of one
// dispatch run one after another.
type Receiver interface {
	Receive(ctx context.Context, ev *Event) (any, error)
}

// AsyncReceiver is an asynchronous receiver. Every asynchronous receiver
// of a dispatch runs on its own goroutine. A value implementing both
// interfaces is treated as asynchronous.
type AsyncReceiver interface {
	ReceiveAsync(ctx context.Context, ev *Event) (any, error)
}

// Func adapts a function to a synchronous Receiver. Functions cannot be
// held weakly; connect them with Strong. Every closure is a receiver of
// its own, even when several come from the same literal, while a top-level
// function connected twice is the same receiver.
type Func func(ctx context.Context, ev *Event) (any, error)

// Receive calls f.
func (f Func) Receive(ctx context.Context, ev *Event) (any, error) {
	return f(ctx, ev)
}

// AsyncFunc adapts a function to an AsyncReceiver.
type AsyncFunc func(ctx context.Context, ev *Event) (any, error)

// ReceiveAsync calls f.
func (f AsyncFunc) ReceiveAsync(ctx context.Context, ev *Event) (any, error) {
	return f(ctx, ev)
}

// MethodFunc is a method expression such as (*Cache).OnSaved.
type MethodFunc[T any] func(self *T, ctx context.Context, ev *Event) (any, error)

// Method binds fn to owner. The binding is identified by (owner, fn) and,
// when connected weakly, only the owner is tracked: the registration dies
// with the owner. owner must be heap allocated.
func Method[T any](owner *T, fn MethodFunc[T]) Receiver {
	return boundMethod[T]{binding[T]{self: owner, fn: fn}}
}

// AsyncMethod is the asynchronous variant of Method.
func AsyncMethod[T any](owner *T, fn MethodFunc[T]) AsyncReceiver {
	return asyncBoundMethod[T]{binding[T]{self: owner, fn: fn}}
}

type boundReceiver interface {
	owner() any
	funcPC() uintptr
	weaken(stale *atomic.Bool) (reference, func(), error)
}

type binding[T any] struct {
	self *T
	fn   MethodFunc[T]
}

func (b binding[T]) owner() any { return b.self }

func (b binding[T]) funcPC() uintptr { return reflect.ValueOf(b.fn).Pointer() }

// QualifiedName returns the name of the bound method.
func (b binding[T]) QualifiedName() string { return funcName(b.funcPC()) }

func (b binding[T]) call(ctx context.Context, ev *Event) (any, error) {
	return b.fn(b.self, ctx, ev)
}

func (b binding[T]) weakBinding(async bool, stale *atomic.Bool) (reference, func(), error) {
	if b.self == nil || b.fn == nil || !weakable(reflect.TypeFor[T]()) {
		return nil, nil, unsupported(b.self)
	}
	c := runtime.AddCleanup(b.self, markStale, stale)
	return weakMethodRef[T]{self: weak.Make(b.self), fn: b.fn, async: async}, c.Stop, nil
}

type boundMethod[T any] struct{ binding[T] }

func (m boundMethod[T]) Receive(ctx context.Context, ev *Event) (any, error) {
	return m.call(ctx, ev)
}

func (m boundMethod[T]) weaken(stale *atomic.Bool) (reference, func(), error) {
	return m.weakBinding(false, stale)
}

type asyncBoundMethod[T any] struct{ binding[T] }

func (m asyncBoundMethod[T]) ReceiveAsync(ctx context.Context, ev *Event) (any, error) {
	return m.call(ctx, ev)
}

func (m asyncBoundMethod[T]) weaken(stale *atomic.Bool) (reference, func(), error) {
	return m.weakBinding(true, stale)
}

// isAsync reports the calling convention of r.
func isAsync(r any) (bool, error) {
	switch r.(type) {
	case AsyncReceiver:
		return true, nil
	case Receiver:
		return false, nil
	}
	return false, invalidReceiver(r)
}
