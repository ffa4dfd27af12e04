package runtime

import (
	"chat-client/contract"
	"sort"
	"sync"
)

// Registry holds the subscribers of the session, keyed by subscriber id.
// It is read by the fanout goroutine and written by whoever opens or closes
// a view, hence the lock.
type Registry struct {
	mu          sync.RWMutex
	subscribers map[string]contract.EventSink
}

func NewRegistry() *Registry {
	return &Registry{subscribers: make(map[string]contract.EventSink)}
}

// Subscribe registers or replaces the sink of subscriberID.
func (r *Registry) Subscribe(subscriberID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers[subscriberID] = sink
}

func (r *Registry) Unsubscribe(subscriberID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subscribers, subscriberID)
}

// Sinks returns the current subscribers ordered by id so that delivery order
// is stable between events.
func (r *Registry) Sinks() []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.subscribers))
	for id := range r.subscribers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	sinks := make([]contract.EventSink, 0, len(ids))
	for _, id := range ids {
		sinks = append(sinks, r.subscribers[id])
	}
	return sinks
}
