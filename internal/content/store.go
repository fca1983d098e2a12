// Package content holds the portal's curated collections in memory.
//
// The store is seeded once from an embedded JSON fixture and afterwards only
// grows: the admin form and the feed ingester prepend new items, nothing is
// ever edited or removed. Items are values, so a List result can be handed to
// callers without exposing the store's own slices.
package content

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/nexusmena/internal/apperror"
	"github.com/sakif/nexusmena/internal/model"
)

// Store is safe for concurrent use by HTTP handlers and background jobs.
type Store struct {
	mu        sync.RWMutex
	items     map[model.Kind][]model.Item
	resources []model.Resource

	now   func() time.Time
	newID func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for default dates on added items.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDs overrides the id generator (tests).
func WithIDs(next func() string) Option {
	return func(s *Store) { s.newID = next }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		items: make(map[model.Kind][]model.Item, len(model.Kinds)),
		now:   time.Now,
		newID: func() string { return xid.New().String() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// List returns a copy of one collection, newest additions first.
// Unknown kinds yield an empty slice.
func (s *Store) List(kind model.Kind) []model.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.items[kind]
	out := make([]model.Item, len(src))
	copy(out, src)
	return out
}

// Get finds an item by id within one collection.
func (s *Store) Get(kind model.Kind, id string) (model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.items[kind] {
		if it.ID == id {
			return it, nil
		}
	}
	return model.Item{}, apperror.NotFound(string(kind), id)
}

// Find looks an id up across every collection, in resolution order.
func (s *Store) Find(id string) (model.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range model.Kinds {
		for _, it := range s.items[k] {
			if it.ID == id {
				return it, true
			}
		}
	}
	return model.Item{}, false
}

// Resolve returns the items whose ids are in ids, scanning collections in
// model.Kinds order and each collection in stored order. Unknown ids are
// skipped. Classification comes from Item.Kind, never from which fields
// are populated.
func (s *Store) Resolve(ids []string) []model.Item {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Item, 0, len(ids))
	for _, k := range model.Kinds {
		for _, it := range s.items[k] {
			if _, ok := want[it.ID]; ok {
				out = append(out, it)
			}
		}
	}
	return out
}

// ContainsURL reports whether a collection already holds an item linking to url.
// Comparison ignores a trailing slash and letter case.
func (s *Store) ContainsURL(kind model.Kind, url string) bool {
	key := normalizeURL(url)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.items[kind] {
		if normalizeURL(it.URL) == key {
			return true
		}
	}
	return false
}

// Resources returns a copy of the resource directory.
func (s *Store) Resources() []model.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Resource, len(s.resources))
	copy(out, s.resources)
	return out
}

// AddResource validates r and prepends it to the directory.
// A missing id is generated; a missing type becomes Other.
func (s *Store) AddResource(r model.Resource) (model.Resource, error) {
	r.Name = strings.TrimSpace(r.Name)
	r.URL = strings.TrimSpace(r.URL)
	if r.Name == "" {
		return model.Resource{}, apperror.ValidationFailed("name", "name is required")
	}
	if err := validateURL("url", r.URL); err != nil {
		return model.Resource{}, err
	}
	if r.Type == "" {
		r.Type = model.ResourceOther
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = s.newID()
	}
	s.resources = append([]model.Resource{r}, s.resources...)
	return r, nil
}

// insert places it at the head of its collection. Caller holds mu.
func (s *Store) insert(it model.Item) {
	s.items[it.Kind] = append([]model.Item{it}, s.items[it.Kind]...)
}

// Counts reports the size of every collection (health and startup logs).
func (s *Store) Counts() map[model.Kind]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.Kind]int, len(model.Kinds))
	for _, k := range model.Kinds {
		out[k] = len(s.items[k])
	}
	return out
}

func normalizeURL(u string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(u), "/"))
}
