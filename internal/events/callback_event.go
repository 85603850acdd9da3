// Package events provides small typed pub/sub primitives used to fan engine
// state out to collaborators without coupling them to the engine loops.
package events

import (
	"slices"
	"sync"
)

type callbackListener[T any] struct {
	id uint64
	fn func(T)
}

// CallbackEvent calls registered listeners synchronously, in registration
// order, on the notifying goroutine. Listeners must not block.
type CallbackEvent[T any] struct {
	mu                    sync.RWMutex
	listeners             []callbackListener[T]
	nextID                uint64
	sendLastEventOnListen bool
	lastEvent             T
	hasNotified           bool
}

// NewCallbackEvent creates a CallbackEvent. With sendLastEventOnListen set,
// a listener registered after the first Notify is called immediately with
// the most recent value.
func NewCallbackEvent[T any](sendLastEventOnListen bool) *CallbackEvent[T] {
	return &CallbackEvent[T]{sendLastEventOnListen: sendLastEventOnListen}
}

// Listen registers callback and returns its deregistration function.
func (e *CallbackEvent[T]) Listen(callback func(T)) func() {
	if callback == nil {
		panic("callback cannot be nil")
	}

	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners = append(e.listeners, callbackListener[T]{id: id, fn: callback})
	sendLast := e.sendLastEventOnListen && e.hasNotified
	last := e.lastEvent
	e.mu.Unlock()

	// outside the lock so the callback may call back into the event
	if sendLast {
		callback(last)
	}

	return func() {
		e.mu.Lock()
		e.listeners = slices.DeleteFunc(e.listeners, func(l callbackListener[T]) bool { return l.id == id })
		e.mu.Unlock()
	}
}

// Notify calls every listener with value.
func (e *CallbackEvent[T]) Notify(value T) {
	e.mu.Lock()
	if e.sendLastEventOnListen {
		e.lastEvent = value
		e.hasNotified = true
	}
	listeners := slices.Clone(e.listeners)
	e.mu.Unlock()

	for _, l := range listeners {
		l.fn(value)
	}
}

// ListenerCount returns the current number of registered listeners
func (e *CallbackEvent[T]) ListenerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners)
}
