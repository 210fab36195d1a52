package dispatch

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/goclaw/dispatch/pkg/logger"
	"github.com/google/uuid"
)

// registration is one connected receiver. Registrations are replaced,
// never modified.
type registration struct {
	key     LookupKey
	ref     reference
	async   bool
	release func()
}

// Signal is one event channel with its own receiver registry.
type Signal struct {
	id             string
	name           string
	defaultWeak    bool
	maxConcurrency int
	onFailure      FailureHandler
	log            logger.Logger

	mu        sync.Mutex
	receivers []registration
	// stale is set by runtime cleanups when a weak referent is collected.
	// It lives outside the struct so cleanups do not pin the Signal.
	stale *atomic.Bool
}

// New creates a Signal.
func New(opts ...Option) *Signal {
	id := uuid.NewString()
	s := &Signal{
		id:          id,
		name:        "signal-" + id[:8],
		defaultWeak: true,
		log:         logger.Global(),
		stale:       new(atomic.Bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("signal", s.name)
	return s
}

// ID returns the signal's unique id.
func (s *Signal) ID() string { return s.id }

// Name returns the signal's name.
func (s *Signal) Name() string { return s.name }

// Connect registers receiver. Connecting a receiver whose lookup key is
// already registered does nothing. Receivers are held weakly unless
// Strong is given or the signal was built WithDefaultWeak(false). Weak
// connects of funcs, non-pointers and small pointer-free targets (see Weak)
// fail with ErrUnsupportedReferenceKind.
func (s *Signal) Connect(receiver any, opts ...ConnectOption) error {
	o := s.connectOptions(opts)
	async, err := isAsync(receiver)
	if err != nil {
		return err
	}
	key := NewLookupKey(receiver, o.sender, o.tag)
	weak := s.defaultWeak
	if o.weak != nil {
		weak = *o.weak
	}
	ref, release, err := newReference(receiver, weak, s.stale)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.purgeLocked()
	if s.indexLocked(key) >= 0 {
		s.mu.Unlock()
		release()
		metricsRecorder().RecordRegistryOp(s.name, "duplicate")
		return nil
	}
	s.receivers = append(s.receivers, registration{
		key:     key,
		ref:     ref,
		async:   async,
		release: release,
	})
	s.mu.Unlock()

	metricsRecorder().RecordRegistryOp(s.name, "connect")
	s.log.Debug("receiver connected",
		"receiver", Describe(receiver),
		"sender", key.Sender.String(),
		"weak", weak,
		"async", async,
	)
	return nil
}

// Disconnect removes the registration matching receiver and the sender
// and tag options, reporting whether one was removed. With a tag the
// receiver may be nil.
func (s *Signal) Disconnect(receiver any, opts ...ConnectOption) bool {
	o := s.connectOptions(opts)
	key := NewLookupKey(receiver, o.sender, o.tag)

	s.mu.Lock()
	s.purgeLocked()
	i := s.indexLocked(key)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	reg := s.receivers[i]
	s.receivers = slices.Delete(s.receivers, i, i+1)
	s.mu.Unlock()

	reg.release()
	metricsRecorder().RecordRegistryOp(s.name, "disconnect")
	s.log.Debug("receiver disconnected", "receiver", Describe(receiver), "sender", key.Sender.String())
	return true
}

// HasListeners reports whether firing the signal for sender would reach
// at least one live receiver.
func (s *Signal) HasListeners(sender any) bool {
	syncs, asyncs := s.liveReceivers(sender)
	return len(syncs) > 0 || len(asyncs) > 0
}

// Len returns the number of registrations, including weak ones whose
// referent is gone but not yet purged.
func (s *Signal) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.receivers)
}

func (s *Signal) connectOptions(opts []ConnectOption) connectOptions {
	var o connectOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// indexLocked returns the index of the live registration stored under key,
// or -1. Dead registrations under the same key are dropped on the way so a
// recycled address cannot shadow a new receiver.
func (s *Signal) indexLocked(key LookupKey) int {
	for i := 0; i < len(s.receivers); {
		r := s.receivers[i]
		if r.key != key {
			i++
			continue
		}
		if alive(r.ref) {
			return i
		}
		s.receivers = slices.Delete(s.receivers, i, i+1)
	}
	return -1
}

// purgeLocked drops weak registrations whose referent was collected. It
// only scans when a cleanup has flagged the registry.
func (s *Signal) purgeLocked() {
	if !s.stale.CompareAndSwap(true, false) {
		return
	}
	live := s.receivers[:0]
	for _, r := range s.receivers {
		if alive(r.ref) {
			live = append(live, r)
		}
	}
	purged := len(s.receivers) - len(live)
	clear(s.receivers[len(live):])
	s.receivers = live
	if purged > 0 {
		metricsRecorder().RecordStalePurge(s.name, purged)
	}
}

// liveReceivers snapshots the receivers that apply to sender, split by
// calling convention, each group in registration order.
func (s *Signal) liveReceivers(sender any) (syncs, asyncs []any) {
	senderKey := IdentityOf(sender)

	s.mu.Lock()
	s.purgeLocked()
	if len(s.receivers) == 0 {
		s.mu.Unlock()
		return nil, nil
	}
	matched := make([]registration, 0, len(s.receivers))
	for _, r := range s.receivers {
		if r.key.Sender == AnySender || r.key.Sender == senderKey {
			matched = append(matched, r)
		}
	}
	s.mu.Unlock()

	for _, r := range matched {
		receiver, ok := r.ref.resolve()
		if !ok {
			continue
		}
		if r.async {
			asyncs = append(asyncs, receiver)
		} else {
			syncs = append(syncs, receiver)
		}
	}
	return syncs, asyncs
}

// Stats describes a signal's registry.
type Stats struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Registrations int    `json:"registrations"`
	Weak          int    `json:"weak"`
	Async         int    `json:"async"`
	Stale         int    `json:"stale"`
}

// Stats reports the registry without purging it.
func (s *Signal) Stats() Stats {
	s.mu.Lock()
	regs := slices.Clone(s.receivers)
	s.mu.Unlock()

	st := Stats{ID: s.id, Name: s.name, Registrations: len(regs)}
	for _, r := range regs {
		if r.async {
			st.Async++
		}
		if r.ref.weak() {
			st.Weak++
			if !alive(r.ref) {
				st.Stale++
			}
		}
	}
	return st
}

// ConnectAll connects receiver to every signal, stopping at the first error.
func ConnectAll(receiver any, signals []*Signal, opts ...ConnectOption) error {
	for _, s := range signals {
		if err := s.Connect(receiver, opts...); err != nil {
			return err
		}
	}
	return nil
}
