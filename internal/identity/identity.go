// Package identity broadcasts sign-in and sign-out events from the identity
// providers (GitHub OAuth, local accounts) to the rest of the application.
//
// Providers only know how to authenticate. What happens after a user signs
// in (creating their profile, seeding default preferences) or signs out
// (abandoning their in-flight assistant requests) is up to the subscribers.
package identity

import (
	"context"
	"sync"
)

// Identity is what a provider knows about an authenticated user.
type Identity struct {
	UID         string // provider-scoped, e.g. "github:42" or "local:cp1k..."
	DisplayName string
	Email       string
	PhotoURL    string
}

// Event is either SignedIn or SignedOut.
type Event interface {
	isEvent()
}

// SignedIn is published after a provider authenticated a user and before
// a session is issued. The account subscriber creates or refreshes the
// user's profile from it.
type SignedIn struct {
	Identity Identity
}

// SignedOut is published when a session ends.
type SignedOut struct {
	UserID string
}

func (SignedIn) isEvent()  {}
func (SignedOut) isEvent() {}

// Handler receives events synchronously, in subscription order. A handler
// returning an error aborts delivery to later handlers and the error is
// returned to the publisher.
type Handler func(ctx context.Context, e Event) error

// Hub fans events out to subscribers. The zero value is ready to use.
type Hub struct {
	mu    sync.RWMutex
	next  int
	subs  map[int]Handler
	order []int
}

// Subscribe registers h and returns a function that removes it.
// Calling the returned function more than once is harmless.
func (h *Hub) Subscribe(fn Handler) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[int]Handler)
	}
	id := h.next
	h.next++
	h.subs[id] = fn
	h.order = append(h.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			for i, v := range h.order {
				if v == id {
					h.order = append(h.order[:i], h.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers e to every current subscriber.
func (h *Hub) Publish(ctx context.Context, e Event) error {
	h.mu.RLock()
	handlers := make([]Handler, 0, len(h.order))
	for _, id := range h.order {
		handlers = append(handlers, h.subs[id])
	}
	h.mu.RUnlock()

	for _, fn := range handlers {
		if err := fn(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Subscribers reports how many handlers are registered.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
