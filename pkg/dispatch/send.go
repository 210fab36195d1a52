package dispatch

import (
	"context"
	"time"
)

type mode string

const (
	modeSend            mode = "send"
	modeSendAsync       mode = "send_async"
	modeSendRobust      mode = "send_robust"
	modeSendRobustAsync mode = "send_robust_async"
)

func (m mode) robust() bool {
	return m == modeSendRobust || m == modeSendRobustAsync
}

// Response pairs a receiver with its outcome. Err is only set by the
// robust protocols.
type Response struct {
	Receiver any
	Value    any
	Err      error
}

// Responses lists synchronous receivers first, then asynchronous ones.
type Responses []Response

// Failures counts responses carrying an error.
func (r Responses) Failures() int {
	n := 0
	for _, resp := range r {
		if resp.Err != nil {
			n++
		}
	}
	return n
}

// Values returns the values of successful responses in order.
func (r Responses) Values() []any {
	values := make([]any, 0, len(r))
	for _, resp := range r {
		if resp.Err == nil {
			values = append(values, resp.Value)
		}
	}
	return values
}

// Send fires the signal for sender. Synchronous receivers run in order on
// the calling goroutine, then asynchronous receivers run concurrently. The
// first failure aborts the dispatch and is returned as a *ReceiverError;
// receivers after a failing synchronous one are not called.
func (s *Signal) Send(ctx context.Context, sender any, args Args) (Responses, error) {
	return s.send(ctx, modeSend, sender, args)
}

// SendRobust fires the signal like Send but never fails: every receiver
// runs and failures are recorded in the responses and reported to the
// failure handler.
func (s *Signal) SendRobust(ctx context.Context, sender any, args Args) Responses {
	responses, _ := s.send(ctx, modeSendRobust, sender, args)
	return responses
}

// SendAsync fires the signal in the background. Synchronous receivers run
// in order on one goroutine while asynchronous receivers run concurrently
// with them. Both groups start before any failure is known and always run
// to completion; the call fails with the first failure.
func (s *Signal) SendAsync(ctx context.Context, sender any, args Args) *Call {
	return s.sendAsync(ctx, modeSendAsync, sender, args)
}

// SendRobustAsync combines the scheduling of SendAsync with the failure
// isolation of SendRobust. The returned call never fails.
func (s *Signal) SendRobustAsync(ctx context.Context, sender any, args Args) *Call {
	return s.sendAsync(ctx, modeSendRobustAsync, sender, args)
}

func (s *Signal) send(ctx context.Context, m mode, sender any, args Args) (Responses, error) {
	syncs, asyncs := s.liveReceivers(sender)
	if len(syncs) == 0 && len(asyncs) == 0 {
		return Responses{}, nil
	}
	ctx, span := s.startSpan(ctx, m, len(syncs), len(asyncs))
	start := time.Now()
	ev := &Event{Signal: s, Sender: sender, Args: args}

	responses, err := s.runSync(ctx, m, syncs, ev)
	if err == nil && len(asyncs) > 0 {
		var more Responses
		more, err = s.runAsync(ctx, m, asyncs, ev)
		responses = append(responses, more...)
	}
	if err != nil {
		responses = nil
	}
	s.observe(m, start, len(syncs)+len(asyncs), responses, err)
	endSpan(span, responses, err)
	return responses, err
}

func (s *Signal) sendAsync(ctx context.Context, m mode, sender any, args Args) *Call {
	call := newCall()
	syncs, asyncs := s.liveReceivers(sender)
	if len(syncs) == 0 && len(asyncs) == 0 {
		call.finish(Responses{}, nil)
		return call
	}
	ctx, span := s.startSpan(ctx, m, len(syncs), len(asyncs))
	start := time.Now()
	ev := &Event{Signal: s, Sender: sender, Args: args}

	go func() {
		var syncOut, asyncOut Responses
		err := concurrently(0,
			func() (err error) {
				syncOut, err = s.runSync(ctx, m, syncs, ev)
				return err
			},
			func() (err error) {
				asyncOut, err = s.runAsync(ctx, m, asyncs, ev)
				return err
			},
		)
		var responses Responses
		if err == nil {
			responses = append(syncOut, asyncOut...)
		}
		s.observe(m, start, len(syncs)+len(asyncs), responses, err)
		endSpan(span, responses, err)
		call.finish(responses, err)
	}()
	return call
}

// runSync calls receivers one after another.
func (s *Signal) runSync(ctx context.Context, m mode, receivers []any, ev *Event) (Responses, error) {
	out := make(Responses, 0, len(receivers))
	for _, r := range receivers {
		value, err := invoke(ctx, r, false, ev)
		if err != nil {
			s.reportFailure(ctx, m, r, err)
			if !m.robust() {
				return nil, &ReceiverError{Receiver: r, Err: err}
			}
			out = append(out, Response{Receiver: r, Err: err})
			continue
		}
		out = append(out, Response{Receiver: r, Value: value})
	}
	return out, nil
}

// runAsync calls every receiver on its own goroutine and keeps the
// responses in registration order.
func (s *Signal) runAsync(ctx context.Context, m mode, receivers []any, ev *Event) (Responses, error) {
	if len(receivers) == 0 {
		return nil, nil
	}
	out := make(Responses, len(receivers))
	tasks := make([]func() error, len(receivers))
	for i, r := range receivers {
		tasks[i] = func() error {
			value, err := invoke(ctx, r, true, ev)
			if err == nil {
				out[i] = Response{Receiver: r, Value: value}
				return nil
			}
			s.reportFailure(ctx, m, r, err)
			out[i] = Response{Receiver: r, Err: err}
			if m.robust() {
				return nil
			}
			return &ReceiverError{Receiver: r, Err: err}
		}
	}
	if err := concurrently(s.maxConcurrency, tasks...); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Signal) observe(m mode, start time.Time, receivers int, responses Responses, err error) {
	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case responses.Failures() > 0:
		status = "partial"
	}
	metricsRecorder().RecordDispatch(s.name, string(m), status, receivers, time.Since(start))
}
