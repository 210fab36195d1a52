package dispatch

import (
	"reflect"
	"runtime"
	"sync/atomic"
	"unsafe"
	"weak"
)

// reference is how a registration holds its receiver.
type reference interface {
	// resolve returns the receiver, or false once a weak referent is gone.
	resolve() (any, bool)
	weak() bool
}

type strongRef struct{ receiver any }

func (r strongRef) resolve() (any, bool) { return r.receiver, true }
func (r strongRef) weak() bool           { return false }

// weakPointerRef tracks a pointer receiver without keeping it alive. The
// pointer is stored untyped and rebuilt with its original type on resolve.
type weakPointerRef struct {
	ptr weak.Pointer[byte]
	typ reflect.Type
}

func (r weakPointerRef) resolve() (any, bool) {
	p := r.ptr.Value()
	if p == nil {
		return nil, false
	}
	return reflect.NewAt(r.typ.Elem(), unsafe.Pointer(p)).Interface(), true
}

func (r weakPointerRef) weak() bool { return true }

type weakMethodRef[T any] struct {
	self  weak.Pointer[T]
	fn    MethodFunc[T]
	async bool
}

func (r weakMethodRef[T]) resolve() (any, bool) {
	self := r.self.Value()
	if self == nil {
		return nil, false
	}
	b := binding[T]{self: self, fn: r.fn}
	if r.async {
		return asyncBoundMethod[T]{b}, true
	}
	return boundMethod[T]{b}, true
}

func (r weakMethodRef[T]) weak() bool { return true }

// newReference wraps receiver. For weak references it also arranges for
// stale to be set once the referent is collected; release cancels that.
func newReference(receiver any, useWeak bool, stale *atomic.Bool) (ref reference, release func(), err error) {
	if !useWeak {
		return strongRef{receiver: receiver}, func() {}, nil
	}
	if b, ok := receiver.(boundReceiver); ok {
		return b.weaken(stale)
	}
	rv := reflect.ValueOf(receiver)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || !weakable(rv.Type().Elem()) {
		return nil, nil, unsupported(receiver)
	}
	p := (*byte)(rv.UnsafePointer())
	c := runtime.AddCleanup(p, markStale, stale)
	return weakPointerRef{ptr: weak.Make(p), typ: rv.Type()}, c.Stop, nil
}

// tinyAllocMax is the runtime's tiny allocator block size. Pointer-free
// objects smaller than this share a block and are never cleaned up on
// their own, so a weak registration on one would never drop.
const tinyAllocMax = 16

// weakable reports whether values of t can back a weak registration.
func weakable(t reflect.Type) bool {
	if t.Size() == 0 {
		return false
	}
	return t.Size() >= tinyAllocMax || hasPointers(t)
}

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Chan,
		reflect.Func, reflect.Slice, reflect.String, reflect.Interface:
		return true
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}

// markStale runs from the runtime cleanup goroutine, possibly while the
// registry lock is held elsewhere, so it only flips the flag.
func markStale(stale *atomic.Bool) {
	stale.Store(true)
}

func alive(r reference) bool {
	if !r.weak() {
		return true
	}
	_, ok := r.resolve()
	return ok
}
