package dispatch

import (
	"context"
	"errors"

	"github.com/goclaw/dispatch/pkg/logger"
	"golang.org/x/time/rate"
)

// FailureHandler is told about every receiver failure caught by
// SendRobust and SendRobustAsync.
type FailureHandler func(ctx context.Context, receiver any, err error)

// reportFailure records a receiver failure. Only the robust protocols
// hand it to the failure handler; the fail-fast ones return it instead.
// A panicking handler is ignored.
func (s *Signal) reportFailure(ctx context.Context, m mode, receiver any, err error) {
	metricsRecorder().RecordReceiverFailure(s.name, string(m), failureKind(err))
	recordFailureEvent(ctx, receiver, err)
	if !m.robust() || s.onFailure == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	s.onFailure(ctx, receiver, err)
}

// LogFailures returns a FailureHandler that logs failures at error level.
// With a limiter, failures beyond its rate are dropped.
func LogFailures(log logger.Logger, limiter *rate.Limiter) FailureHandler {
	if log == nil {
		log = logger.Global()
	}
	return func(ctx context.Context, receiver any, err error) {
		if limiter != nil && !limiter.Allow() {
			return
		}
		args := []any{"receiver", Describe(receiver), "error", err}
		var p *PanicError
		if errors.As(err, &p) {
			args = append(args, "stack", string(p.Stack))
		}
		log.ErrorContext(ctx, "receiver failed during robust dispatch", args...)
	}
}
