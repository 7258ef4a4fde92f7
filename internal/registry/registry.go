// Package registry holds the process-wide collection of events.
package registry

import (
	"errors"
	"sync"

	"github.com/scuffedwrldwide/ems/internal/seat"
)

// ErrDuplicateID is returned by Insert when the id is already registered.
var ErrDuplicateID = errors.New("duplicate event id")

// Registry is an insertion-ordered collection of events keyed by id,
// append-only with one rwlock guarding the spine. Find looks ids up in a
// map; the slice keeps insertion order for Each. Never removing entries
// means a *seat.Event returned by Find stays valid for the registry's whole
// life - no refcounting, no use-after-free to guard against.
//
// mu guards only the collection shape (membership and order), never an
// individual event's seats: that is seat.Event's own lock, acquired only
// after this lock has been released. Registry lock ordering: always fully
// released before any event lock is taken.
type Registry struct {
	mu     sync.RWMutex
	events []*seat.Event
	byID   map[uint32]*seat.Event
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{byID: make(map[uint32]*seat.Event)}
}

// Insert adds ev to the registry. Fails with ErrDuplicateID if an event
// with the same id is already present. The duplicate check and the
// insertion happen under a single held write lock, so two concurrent
// Inserts for the same id can never both succeed.
func (r *Registry) Insert(ev *seat.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[ev.ID()]; exists {
		return ErrDuplicateID
	}

	r.byID[ev.ID()] = ev
	r.events = append(r.events, ev)

	return nil
}

// Find looks up an event by id. The returned pointer stays valid for the
// registry's lifetime: events are never removed.
func (r *Registry) Find(id uint32) (*seat.Event, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ev, ok := r.byID[id]

	return ev, ok
}

// Each calls fn once per event in insertion order, holding the registry's
// read lock across the whole traversal so a concurrent Insert cannot
// corrupt it (it can only be observed to happen entirely before or
// entirely after this call, never mid-iteration).
func (r *Registry) Each(fn func(ev *seat.Event)) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ev := range r.events {
		fn(ev)
	}
}

// Len reports how many events are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.events)
}
