package eio

import "sync"

// Listener receives the arguments passed to Emitter.Fire.
type Listener func(args ...any)

type listenerEntry struct {
	fn   Listener
	once bool
}

var _ EventEmitter = (*Emitter)(nil)

// EventEmitter is the listener registry embedded by connection level types.
type EventEmitter interface {
	On(topic string, l Listener) func()
	Once(topic string, l Listener) func()
	Off(topics ...string)
	Fire(topic string, args ...any)
	Listeners(topic string) []Listener
	HasListeners(topic string) bool
}

// Emitter keeps an ordered list of listeners per topic.
// Fire dispatches to a snapshot, so listeners may subscribe or
// unsubscribe while a dispatch is running.
type Emitter struct {
	mu        sync.RWMutex
	listeners map[string][]*listenerEntry
}

func NewEmitter() *Emitter {
	return &Emitter{
		listeners: make(map[string][]*listenerEntry),
	}
}

// On appends l to topic and returns a func that removes exactly this subscription.
func (e *Emitter) On(topic string, l Listener) func() {
	return e.add(topic, &listenerEntry{fn: l})
}

// Once is like On but the listener is removed before its first call.
func (e *Emitter) Once(topic string, l Listener) func() {
	return e.add(topic, &listenerEntry{fn: l, once: true})
}

// Off removes every listener of the given topics, or of all topics when none is given.
func (e *Emitter) Off(topics ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(topics) == 0 {
		e.listeners = make(map[string][]*listenerEntry)
		return
	}
	for _, topic := range topics {
		delete(e.listeners, topic)
	}
}

// Fire calls the listeners of topic in subscription order.
func (e *Emitter) Fire(topic string, args ...any) {
	e.mu.RLock()
	snapshot := make([]*listenerEntry, len(e.listeners[topic]))
	copy(snapshot, e.listeners[topic])
	e.mu.RUnlock()

	for _, entry := range snapshot {
		if entry.once && !e.remove(topic, entry) {
			continue
		}
		entry.fn(args...)
	}
}

// Listeners returns a snapshot of the listeners registered for topic.
func (e *Emitter) Listeners(topic string) []Listener {
	e.mu.RLock()
	defer e.mu.RUnlock()

	data := make([]Listener, 0, len(e.listeners[topic]))
	for _, entry := range e.listeners[topic] {
		data = append(data, entry.fn)
	}
	return data
}

func (e *Emitter) HasListeners(topic string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.listeners[topic]) > 0
}

func (e *Emitter) add(topic string, entry *listenerEntry) func() {
	e.mu.Lock()
	e.listeners[topic] = append(e.listeners[topic], entry)
	e.mu.Unlock()

	return func() {
		e.remove(topic, entry)
	}
}

// remove reports whether entry was still subscribed.
func (e *Emitter) remove(topic string, entry *listenerEntry) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries := e.listeners[topic]
	for i, item := range entries {
		if item == entry {
			rest := make([]*listenerEntry, 0, len(entries)-1)
			rest = append(rest, entries[:i]...)
			rest = append(rest, entries[i+1:]...)
			if len(rest) == 0 {
				delete(e.listeners, topic)
			} else {
				e.listeners[topic] = rest
			}
			return true
		}
	}
	return false
}
