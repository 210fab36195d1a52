package dispatch

import (
	"fmt"
	"reflect"
	"runtime"
	"unsafe"
)

// Identity is a comparable token standing for a receiver or sender value.
// Reference-like values (pointers, maps, chans) are identified by address,
// funcs by their closure, other comparable values by themselves. Values
// that are neither are identified by type and %#v rendering, so two equal
// structs holding slices or maps share an identity.
type Identity struct {
	owner any
	fn    any
}

// AnySender is the sender key of receivers connected without a sender.
// It is also the identity of nil.
var AnySender = Identity{}

type pointerToken struct {
	typ  reflect.Type
	addr uintptr
}

type sliceToken struct {
	typ  reflect.Type
	addr uintptr
	len  int
}

type valueToken struct {
	typ  reflect.Type
	repr string
}

// IdentityOf returns the identity of v. Bound methods (see Method) are
// identified by their owner and method, so two bindings of the same method
// on the same owner share an identity. Each closure is its own identity,
// while a top-level function always yields the same one. Non-comparable
// values such as structs with slice fields are compared structurally: they
// are keyed by type and their %#v rendering, so equal contents collide.
func IdentityOf(v any) Identity {
	if v == nil {
		return AnySender
	}
	if b, ok := v.(boundReceiver); ok {
		return Identity{owner: tokenOf(b.owner()), fn: b.funcPC()}
	}
	tok := tokenOf(v)
	return Identity{owner: tok, fn: tok}
}

// String renders the identity for logs.
func (id Identity) String() string {
	if id == AnySender {
		return "any"
	}
	return fmt.Sprintf("%v/%v", id.owner, id.fn)
}

func tokenOf(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Invalid:
		return nil
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Chan:
		return pointerToken{typ: rv.Type(), addr: rv.Pointer()}
	case reflect.Func:
		return pointerToken{typ: rv.Type(), addr: uintptr(closureOf(v))}
	case reflect.Slice:
		return sliceToken{typ: rv.Type(), addr: rv.Pointer(), len: rv.Len()}
	}
	if rv.Comparable() {
		return v
	}
	return valueToken{typ: rv.Type(), repr: fmt.Sprintf("%#v", v)}
}

// closureOf returns the data word of a func held in an interface, the
// closure object. rv.Pointer would give the code pointer, which every
// closure of one literal shares.
func closureOf(v any) unsafe.Pointer {
	return (*[2]unsafe.Pointer)(unsafe.Pointer(&v))[1]
}

// LookupKey identifies one registration on a Signal.
type LookupKey struct {
	// Receiver is an Identity, a caller supplied tag or a qualified name.
	Receiver any
	// Sender is the sender identity, or AnySender.
	Sender Identity
}

type qualifiedNameTag struct{}

// UseQualifiedName, passed as a tag, keys a receiver by its qualified name
// instead of its identity. Receivers without a name keep their identity.
var UseQualifiedName any = qualifiedNameTag{}

// QualifiedNamer is implemented by receivers that expose a qualified name.
type QualifiedNamer interface {
	QualifiedName() string
}

// NewLookupKey builds the registration key for receiver, sender and tag.
// A nil tag keys by receiver identity. It never fails: tags that are not
// comparable are reduced to their identity.
func NewLookupKey(receiver, sender, tag any) LookupKey {
	var rkey any = IdentityOf(receiver)
	switch {
	case tag == UseQualifiedName:
		if name, ok := qualifiedName(receiver); ok {
			rkey = name
		}
	case tag != nil:
		rkey = tokenOf(tag)
	}
	return LookupKey{Receiver: rkey, Sender: IdentityOf(sender)}
}

func qualifiedName(r any) (string, bool) {
	if n, ok := r.(QualifiedNamer); ok {
		return n.QualifiedName(), true
	}
	rv := reflect.ValueOf(r)
	if rv.Kind() == reflect.Func && !rv.IsNil() {
		return funcName(rv.Pointer()), true
	}
	return "", false
}

func funcName(pc uintptr) string {
	if fn := runtime.FuncForPC(pc); fn != nil {
		return fn.Name()
	}
	return fmt.Sprintf("func@%#x", pc)
}

// Describe renders a receiver for logs and errors without calling it.
func Describe(r any) string {
	if name, ok := qualifiedName(r); ok {
		return name
	}
	return fmt.Sprintf("%T", r)
}
