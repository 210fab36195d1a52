package dispatch

import (
	"context"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

// invoke calls receiver with its registered calling convention. A panic
// is returned as a *PanicError.
func invoke(ctx context.Context, receiver any, async bool, ev *Event) (value any, err error) {
	defer func() {
		if p := recover(); p != nil {
			value = nil
			err = &PanicError{Value: p, Stack: debug.Stack()}
		}
	}()
	if async {
		return receiver.(AsyncReceiver).ReceiveAsync(ctx, ev)
	}
	return receiver.(Receiver).Receive(ctx, ev)
}

// concurrently runs tasks on their own goroutines, at most limit at a
// time when limit > 0. It waits for every task and returns the first
// error. Nothing is cancelled when a task fails.
func concurrently(limit int, tasks ...func() error) error {
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, task := range tasks {
		g.Go(task)
	}
	return g.Wait()
}

// Call is a dispatch running in the background, returned by SendAsync and
// SendRobustAsync.
type Call struct {
	done      chan struct{}
	responses Responses
	err       error
}

func newCall() *Call {
	return &Call{done: make(chan struct{})}
}

func (c *Call) finish(responses Responses, err error) {
	c.responses = responses
	c.err = err
	close(c.done)
}

// Done is closed once every receiver of the dispatch has returned.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the dispatch completes.
func (c *Call) Wait() (Responses, error) {
	<-c.done
	return c.responses, c.err
}

// Await is Wait bounded by ctx. Giving up on a call does not stop its
// receivers.
func (c *Call) Await(ctx context.Context) (Responses, error) {
	select {
	case <-c.done:
		return c.responses, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
