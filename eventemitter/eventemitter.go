// Package eventemitter dispatches typed events to registered listeners.
//
// Listeners are called synchronously, in registration order, on the emitting
// goroutine. A listener that must not block should start its own goroutine.
//
// Example:
//
//	e := eventemitter.New[string]()
//	token := e.AddListener("greet", func(name string) { fmt.Println("hello", name) })
//	e.Emit("greet", "gopher") // Output: hello gopher
//	e.RemoveListener("greet", token)
package eventemitter

import (
	"slices"
	"sync"
)

// ListenerToken identifies a registered listener. The zero token is never
// issued.
type ListenerToken uint64

// Listener handles one event payload.
type Listener[E any] func(E)

type eventListener[E any] struct {
	token   ListenerToken
	handler Listener[E]
}

// EventEmitter holds listeners for any number of named events carrying a
// payload of type E. It is safe for concurrent use.
type EventEmitter[E any] struct {
	mu        sync.RWMutex
	lastToken ListenerToken
	events    map[string][]eventListener[E]
}

// New creates a new EventEmitter.
func New[E any]() *EventEmitter[E] {
	return &EventEmitter[E]{
		events: make(map[string][]eventListener[E]),
	}
}

// AddListener adds a listener to the named event.
func (e *EventEmitter[E]) AddListener(eventName string, listener Listener[E]) ListenerToken {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastToken++
	e.events[eventName] = append(e.events[eventName], eventListener[E]{
		token:   e.lastToken,
		handler: listener,
	})
	return e.lastToken
}

// RemoveListener removes a listener by token from the named event.
func (e *EventEmitter[E]) RemoveListener(eventName string, token ListenerToken) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	listeners := e.events[eventName]
	i := slices.IndexFunc(listeners, func(l eventListener[E]) bool { return l.token == token })
	if i < 0 {
		return false
	}
	// Emit may be iterating over the old slice.
	e.events[eventName] = slices.Delete(slices.Clone(listeners), i, i+1)
	return true
}

// RemoveAllListeners removes all listeners of the named event.
func (e *EventEmitter[E]) RemoveAllListeners(eventName string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.events[eventName]) == 0 {
		return false
	}
	delete(e.events, eventName)
	return true
}

// ListenerCount returns the number of listeners of the named event.
func (e *EventEmitter[E]) ListenerCount(eventName string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.events[eventName])
}

// Emit calls each listener of the named event with payload and reports
// whether there were any. Listeners may add or remove listeners.
func (e *EventEmitter[E]) Emit(eventName string, payload E) bool {
	e.mu.RLock()
	listeners := e.events[eventName]
	e.mu.RUnlock()

	for _, l := range listeners {
		l.handler(payload)
	}
	return len(listeners) > 0
}

// Target returns an EventTarget bound to the named event of e.
func (e *EventEmitter[E]) Target(eventName string) *EventTarget[E] {
	return &EventTarget[E]{emitter: e, eventName: eventName}
}

// EventTarget is a view of a single named event.
type EventTarget[E any] struct {
	emitter   *EventEmitter[E]
	eventName string
}

// NewEventTarget returns a target backed by its own emitter.
func NewEventTarget[E any](eventName string) *EventTarget[E] {
	return New[E]().Target(eventName)
}

func (et *EventTarget[E]) EventName() string {
	return et.eventName
}

func (et *EventTarget[E]) AddListener(listener Listener[E]) ListenerToken {
	return et.emitter.AddListener(et.eventName, listener)
}

func (et *EventTarget[E]) RemoveListener(token ListenerToken) bool {
	return et.emitter.RemoveListener(et.eventName, token)
}

func (et *EventTarget[E]) RemoveAllListeners() bool {
	return et.emitter.RemoveAllListeners(et.eventName)
}

func (et *EventTarget[E]) ListenerCount() int {
	return et.emitter.ListenerCount(et.eventName)
}

func (et *EventTarget[E]) Emit(payload E) bool {
	return et.emitter.Emit(et.eventName, payload)
}
