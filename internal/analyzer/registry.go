package analyzer

import (
	"sort"
	"time"
)

// Registry owns one StreamState per stream identifier. It is not safe for
// concurrent use; the Service serializes access to it.
type Registry struct {
	store Store
	now   func() time.Time
}

// NewRegistry constructs a registry with a default in-memory store.
func NewRegistry() *Registry {
	return NewRegistryWithStore(NewInMemoryStore())
}

// NewRegistryWithStore constructs a registry that uses the given Store.
func NewRegistryWithStore(store Store) *Registry {
	return &Registry{store: store, now: time.Now}
}

// resolve returns the state for id, creating it from cfg when absent.
func (r *Registry) resolve(id StreamID, cfg Config) *StreamState {
	if st, ok := r.store.GetStream(id); ok {
		return st
	}
	st := newStreamState(id, cfg, r.now().UTC())
	r.store.SetStream(st)
	return st
}

// lookup returns the state for id without creating it.
func (r *Registry) lookup(id StreamID) (*StreamState, bool) {
	return r.store.GetStream(id)
}

// remove discards all state for id. Removing an absent id is a no-op.
func (r *Registry) remove(id StreamID) bool {
	if _, ok := r.store.GetStream(id); !ok {
		return false
	}
	r.store.DeleteStream(id)
	return true
}

// ids returns the registered stream identifiers in sorted order.
func (r *Registry) ids() []StreamID {
	ids := r.store.ListStreamIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of registered streams.
func (r *Registry) Len() int {
	return len(r.store.ListStreamIDs())
}
