package analyzer

import (
	"log/slog"
	"sync"
)

// EventType discriminates outbound notifications.
type EventType string

const (
	EventWindowClosed         EventType = "window.closed"
	EventSpikeDetected        EventType = "spike.detected"
	EventKeywordSpikeDetected EventType = "keyword_spike.detected"
	EventSpikeAnnotated       EventType = "spike.annotated"
	EventStreamEnded          EventType = "stream.ended"
	EventStreamCleared        EventType = "stream.cleared"
	EventStreamRestored       EventType = "stream.restored"
)

// Event is a notification emitted after engine state has been committed.
// Window is set for window and spike events; Spike for spike events.
type Event struct {
	Type     EventType    `json:"type"`
	StreamID StreamID     `json:"stream_id"`
	Mode     Mode         `json:"mode"`
	Keyword  string       `json:"keyword,omitempty"`
	Window   ClosedWindow `json:"window"`
	Spike    *SpikeRecord `json:"spike,omitempty"`
}

// Listener receives events. Listeners must not block and must not call back
// into the Service synchronously: anything slow (I/O, network, snapshots)
// belongs on the listener's own goroutine.
type Listener func(Event)

type listenerEntry struct {
	id uint64
	fn Listener
}

// Emitter is a synchronous observer list. A panicking listener is logged and
// skipped; it never reaches the caller.
type Emitter struct {
	mu        sync.RWMutex
	listeners []listenerEntry
	nextID    uint64
	log       *slog.Logger
	onFailure func()
}

// NewEmitter returns an Emitter that logs listener panics to log.
func NewEmitter(log *slog.Logger) *Emitter {
	return &Emitter{log: log}
}

// Subscribe registers l and returns a function that removes it.
func (e *Emitter) Subscribe(l Listener) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners = append(e.listeners, listenerEntry{id: id, fn: l})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, le := range e.listeners {
			if le.id == id {
				e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
				return
			}
		}
	}
}

// OnFailure sets a hook invoked whenever a listener panics.
func (e *Emitter) OnFailure(fn func()) {
	e.mu.Lock()
	e.onFailure = fn
	e.mu.Unlock()
}

// Publish delivers events in order to every listener.
func (e *Emitter) Publish(events ...Event) {
	if len(events) == 0 {
		return
	}
	e.mu.RLock()
	ls := make([]listenerEntry, len(e.listeners))
	copy(ls, e.listeners)
	onFailure := e.onFailure
	e.mu.RUnlock()

	for _, ev := range events {
		for _, le := range ls {
			e.safeCall(le.fn, ev, onFailure)
		}
	}
}

func (e *Emitter) safeCall(fn Listener, ev Event, onFailure func()) {
	defer func() {
		if r := recover(); r != nil {
			if e.log != nil {
				e.log.Error("event listener panicked",
					slog.String("type", string(ev.Type)),
					slog.String("stream_id", string(ev.StreamID)),
					slog.Any("panic", r))
			}
			if onFailure != nil {
				onFailure()
			}
		}
	}()
	fn(ev)
}
