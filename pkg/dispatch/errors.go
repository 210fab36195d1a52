package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedReferenceKind is returned by Connect when a weak
	// reference is requested for a value that cannot be held weakly.
	ErrUnsupportedReferenceKind = errors.New("receiver cannot be held by weak reference")

	// ErrInvalidReceiver is returned by Connect for values that implement
	// neither Receiver nor AsyncReceiver.
	ErrInvalidReceiver = errors.New("value is not a receiver")
)

func unsupported(v any) error {
	return fmt.Errorf("%w: %T", ErrUnsupportedReferenceKind, v)
}

func invalidReceiver(v any) error {
	return fmt.Errorf("%w: %T", ErrInvalidReceiver, v)
}

// ReceiverError is returned by the fail-fast protocols when a receiver
// fails. It wraps the receiver's own error.
type ReceiverError struct {
	Receiver any
	Err      error
}

func (e *ReceiverError) Error() string {
	return fmt.Sprintf("receiver %s failed: %v", Describe(e.Receiver), e.Err)
}

func (e *ReceiverError) Unwrap() error {
	return e.Err
}

// PanicError is the failure recorded for a receiver that panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("receiver panicked: %v", e.Value)
}

// failureKind labels err for metrics.
func failureKind(err error) string {
	var p *PanicError
	if errors.As(err, &p) {
		return "panic"
	}
	return "error"
}
