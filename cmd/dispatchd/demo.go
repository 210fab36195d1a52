package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goclaw/dispatch/pkg/dispatch"
	"github.com/goclaw/dispatch/pkg/logger"
)

// Demo signal names.
const (
	signalUserSaved   = "user.saved"
	signalOrderPlaced = "order.placed"
)

// sessionTTL is the number of ticks the demo keeps its session tracker
// alive before dropping it, which lets the weak registration go stale.
const sessionTTL = 3

var errFraud = errors.New("order flagged as fraudulent")

// userCache is invalidated through a weakly held bound method. It tracks
// a version per user id.
type userCache struct {
	mu       sync.Mutex
	versions map[string]int
}

func (c *userCache) invalidate(_ context.Context, ev *dispatch.Event) (any, error) {
	id, _ := ev.Arg("id")
	c.mu.Lock()
	defer c.mu.Unlock()
	key := fmt.Sprint(id)
	c.versions[key]++
	return c.versions[key], nil
}

// mailer sends welcome mail asynchronously.
type mailer struct {
	from string
	sent atomic.Int64
}

func (m *mailer) welcome(ctx context.Context, ev *dispatch.Event) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Millisecond):
	}
	return fmt.Sprintf("%s #%d", m.from, m.sent.Add(1)), nil
}

// fraudCheck rejects large orders from the checkout sender.
type fraudCheck struct {
	currency string
	limit    float64
}

func (f *fraudCheck) Receive(_ context.Context, ev *dispatch.Event) (any, error) {
	amount, _ := ev.Arg("amount")
	if v, ok := amount.(float64); ok && v > f.limit {
		return nil, errFraud
	}
	return "clear " + f.currency, nil
}

// sessionTracker counts activity for one session until the demo lets it
// go.
type sessionTracker struct {
	id   string
	seen atomic.Int64
}

func (s *sessionTracker) Receive(context.Context, *dispatch.Event) (any, error) {
	return s.seen.Add(1), nil
}

// demo fires a few signals on a timer, cycling through the protocols.
type demo struct {
	hub *dispatch.Hub
	log logger.Logger

	cache   *userCache
	mailer  *mailer
	fraud   *fraudCheck
	session *sessionTracker
	tick    int
}

func newDemo(hub *dispatch.Hub, log logger.Logger) *demo {
	return &demo{
		hub:     hub,
		log:     log.With("component", "demo"),
		cache:   &userCache{versions: make(map[string]int)},
		mailer:  &mailer{from: "welcome@example.com"},
		fraud:   &fraudCheck{currency: "EUR", limit: 500},
		session: &sessionTracker{id: "demo"},
	}
}

// wire connects the demo receivers.
func (d *demo) wire() error {
	userSaved := d.hub.Signal(signalUserSaved)
	orderPlaced := d.hub.Signal(signalOrderPlaced)

	audit := dispatch.Func(func(ctx context.Context, ev *dispatch.Event) (any, error) {
		d.log.DebugContext(ctx, "audit", "signal", ev.Signal.Name(), "sender", fmt.Sprint(ev.Sender))
		return nil, nil
	})
	if err := dispatch.ConnectAll(audit, []*dispatch.Signal{userSaved, orderPlaced}, dispatch.WithTag("audit"), dispatch.Strong()); err != nil {
		return err
	}

	if err := userSaved.Connect(dispatch.Method(d.cache, (*userCache).invalidate), dispatch.Weak(true)); err != nil {
		return err
	}
	if err := userSaved.Connect(dispatch.AsyncMethod(d.mailer, (*mailer).welcome), dispatch.Weak(true)); err != nil {
		return err
	}
	if err := userSaved.Connect(d.session, dispatch.Weak(true)); err != nil {
		return err
	}
	return orderPlaced.Connect(d.fraud, dispatch.WithSender("checkout"), dispatch.Weak(true))
}

// run fires the demo signals every interval until ctx is done.
func (d *demo) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.fire(ctx)
		}
	}
}

func (d *demo) fire(ctx context.Context) {
	d.tick++
	if d.tick == sessionTTL {
		d.session = nil
	}

	args := dispatch.Args{"id": d.tick % 5}
	order := dispatch.Args{"amount": float64(d.tick * 150)}
	userSaved := d.hub.Signal(signalUserSaved)
	orderPlaced := d.hub.Signal(signalOrderPlaced)

	var (
		responses dispatch.Responses
		err       error
		mode      string
	)
	switch d.tick % 4 {
	case 0:
		mode = "send"
		responses, err = userSaved.Send(ctx, "api", args)
	case 1:
		mode = "send_robust"
		responses = userSaved.SendRobust(ctx, "api", args)
	case 2:
		mode = "send_async"
		responses, err = userSaved.SendAsync(ctx, "api", args).Await(ctx)
	default:
		mode = "send_robust_async"
		responses, err = userSaved.SendRobustAsync(ctx, "api", args).Await(ctx)
	}
	d.report(ctx, signalUserSaved, mode, responses, err)

	// Orders always go through the robust protocol so a flagged order
	// does not stop the audit receiver.
	d.report(ctx, signalOrderPlaced, "send_robust", orderPlaced.SendRobust(ctx, "checkout", order), nil)
}

func (d *demo) report(ctx context.Context, signal, mode string, responses dispatch.Responses, err error) {
	if err != nil {
		d.log.WarnContext(ctx, "demo dispatch failed", "signal", signal, "mode", mode, "error", err)
		return
	}
	d.log.InfoContext(ctx, "demo dispatch",
		"signal", signal,
		"mode", mode,
		"receivers", len(responses),
		"failures", responses.Failures(),
	)
}
