package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var errBoom = errors.New("boom")

// recorder is a synchronous pointer receiver.
type recorder struct {
	name  string
	value any
	err   error
	panic any
	calls atomic.Int32
}

func newRecorder(name string) *recorder {
	return &recorder{name: name, value: name}
}

func (r *recorder) Receive(_ context.Context, _ *Event) (any, error) {
	r.calls.Add(1)
	if r.panic != nil {
		panic(r.panic)
	}
	return r.value, r.err
}

// asyncRecorder is an asynchronous pointer receiver.
type asyncRecorder struct {
	name  string
	value any
	err   error
	delay time.Duration
	calls atomic.Int32
}

func newAsyncRecorder(name string) *asyncRecorder {
	return &asyncRecorder{name: name, value: name}
}

func (r *asyncRecorder) ReceiveAsync(ctx context.Context, _ *Event) (any, error) {
	r.calls.Add(1)
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.value, r.err
}

// listener exercises bound methods.
type listener struct {
	name  string
	calls atomic.Int32
}

func (l *listener) OnEvent(_ context.Context, _ *Event) (any, error) {
	l.calls.Add(1)
	return l.name, nil
}

func (l *listener) OnOther(_ context.Context, _ *Event) (any, error) {
	return "other:" + l.name, nil
}

// stateless has no fields and cannot be held weakly.
type stateless struct{}

func (stateless) Receive(context.Context, *Event) (any, error) { return "stateless", nil }

func namedReceiver(_ context.Context, _ *Event) (any, error) {
	return "named", nil
}

// failureLog collects failure handler calls.
type failureLog struct {
	mu       sync.Mutex
	failures []error
}

func (f *failureLog) handler(_ context.Context, _ any, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, err)
}

func (f *failureLog) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.failures)
}
