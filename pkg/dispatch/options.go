package dispatch

import (
	"github.com/goclaw/dispatch/pkg/logger"
)

// Option configures a Signal.
type Option func(*Signal)

// WithName names the signal in logs, metrics and traces.
func WithName(name string) Option {
	return func(s *Signal) {
		if name != "" {
			s.name = name
		}
	}
}

// WithFailureHandler sets the hook the robust protocols call for every
// receiver failure. It may be called from several goroutines at once.
func WithFailureHandler(h FailureHandler) Option {
	return func(s *Signal) {
		s.onFailure = h
	}
}

// WithMaxConcurrency bounds how many asynchronous receivers of one
// dispatch run at the same time. Zero or less means unbounded.
func WithMaxConcurrency(n int) Option {
	return func(s *Signal) {
		s.maxConcurrency = n
	}
}

// WithLogger sets the logger used for registry events.
func WithLogger(log logger.Logger) Option {
	return func(s *Signal) {
		if log != nil {
			s.log = log
		}
	}
}

// WithDefaultWeak sets whether Connect holds receivers weakly when no
// Strong or Weak option is given. The default is true.
func WithDefaultWeak(weak bool) Option {
	return func(s *Signal) {
		s.defaultWeak = weak
	}
}

// ConnectOption configures Connect and Disconnect.
type ConnectOption func(*connectOptions)

type connectOptions struct {
	sender any
	tag    any
	weak   *bool
}

// WithSender restricts the registration to events fired by sender.
func WithSender(sender any) ConnectOption {
	return func(o *connectOptions) {
		o.sender = sender
	}
}

// WithTag keys the registration by tag instead of receiver identity.
func WithTag(tag any) ConnectOption {
	return func(o *connectOptions) {
		o.tag = tag
	}
}

// ByQualifiedName keys the registration by the receiver's qualified name.
func ByQualifiedName() ConnectOption {
	return WithTag(UseQualifiedName)
}

// Weak chooses between a weak and a strong reference. Disconnect ignores it.
// A weak receiver must be a pointer, or a Method owner, whose target either
// holds pointers or is at least 16 bytes. Smaller pointer-free values live
// in the runtime's tiny allocator where they are never collected on their
// own, so they are rejected with ErrUnsupportedReferenceKind.
func Weak(weak bool) ConnectOption {
	return func(o *connectOptions) {
		o.weak = &weak
	}
}

// Strong is Weak(false).
func Strong() ConnectOption {
	return Weak(false)
}
