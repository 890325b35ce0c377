package orchestrator

import (
	"context"
	"sync"
)

// Factory builds a per-user orchestrator with its collaborators wired.
type Factory func(ctx context.Context, userID string) *Orchestrator

// Hub hands out one orchestrator per user session, created lazily. Queue
// state stays owned by the session instead of living in ambient globals.
type Hub struct {
	mu       sync.Mutex
	ctx      context.Context
	factory  Factory
	sessions map[string]*Orchestrator
}

func NewHub(ctx context.Context, factory Factory) *Hub {
	return &Hub{
		ctx:      ctx,
		factory:  factory,
		sessions: make(map[string]*Orchestrator),
	}
}

// ForUser returns the user's orchestrator, creating it on first use.
func (h *Hub) ForUser(userID string) *Orchestrator {
	h.mu.Lock()
	defer h.mu.Unlock()

	if o, ok := h.sessions[userID]; ok {
		return o
	}
	o := h.factory(h.ctx, userID)
	h.sessions[userID] = o
	return o
}

// Close tears down every session.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, o := range h.sessions {
		o.Close()
	}
	h.sessions = make(map[string]*Orchestrator)
}
