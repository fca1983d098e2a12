package gateway

import (
	"strings"
	"sync"
)

// Tracker hands out request tokens so a slow answer cannot overwrite a
// newer one. Each surface (a user's chat window, a podcast modal) has a key;
// Begin issues a fresh token for it and Current reports whether a token is
// still the latest.
//
//	tok := tracker.Begin(key)
//	out := gw.ContinueChat(ctx, ...)
//	if !tracker.Current(key, tok) {
//	    return // superseded, drop it
//	}
type Tracker struct {
	mu     sync.Mutex
	tokens map[string]uint64
	next   uint64
}

func NewTracker() *Tracker {
	return &Tracker{tokens: make(map[string]uint64)}
}

// Begin starts a new request on key, superseding any earlier one.
func (t *Tracker) Begin(key string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.tokens[key] = t.next
	return t.next
}

// Current reports whether token is the latest issued for key.
func (t *Tracker) Current(key string, token uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tokens[key] == token
}

// Finish forgets key if token is still current.
func (t *Tracker) Finish(key string, token uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tokens[key] == token {
		delete(t.tokens, key)
	}
}

// Forget drops every token whose key starts with prefix, so any in-flight
// answer for those surfaces is discarded. Used on sign-out.
func (t *Tracker) Forget(prefix string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.tokens {
		if strings.HasPrefix(k, prefix) {
			delete(t.tokens, k)
		}
	}
}
