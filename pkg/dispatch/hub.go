package dispatch

import (
	"slices"
	"sync"
)

// Hub is a set of named signals sharing the same options.
type Hub struct {
	mu      sync.RWMutex
	signals map[string]*Signal
	opts    []Option
}

// NewHub creates a Hub whose signals are built with opts.
func NewHub(opts ...Option) *Hub {
	return &Hub{
		signals: make(map[string]*Signal),
		opts:    opts,
	}
}

// Signal returns the signal called name, creating it on first use.
func (h *Hub) Signal(name string) *Signal {
	h.mu.RLock()
	s, ok := h.signals[name]
	h.mu.RUnlock()
	if ok {
		return s
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.signals[name]; ok {
		return s
	}
	opts := append(slices.Clone(h.opts), WithName(name))
	s = New(opts...)
	h.signals[name] = s
	return s
}

// Lookup returns the signal called name if it exists.
func (h *Hub) Lookup(name string) (*Signal, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.signals[name]
	return s, ok
}

// Names returns the signal names in sorted order.
func (h *Hub) Names() []string {
	h.mu.RLock()
	names := make([]string, 0, len(h.signals))
	for name := range h.signals {
		names = append(names, name)
	}
	h.mu.RUnlock()
	slices.Sort(names)
	return names
}

// Stats returns the stats of every signal, sorted by name.
func (h *Hub) Stats() []Stats {
	names := h.Names()
	stats := make([]Stats, 0, len(names))
	for _, name := range names {
		if s, ok := h.Lookup(name); ok {
			stats = append(stats, s.Stats())
		}
	}
	return stats
}
