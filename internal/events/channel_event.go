package events

import (
	"sync"
)

// ChannelEvent provides pub/sub behavior using channels.
// Delivery never blocks the notifier: when a listener's buffer is full the
// oldest queued value is dropped to make room, so a slow listener always
// sees the most recent value next.
type ChannelEvent[T any] struct {
	mu                    sync.RWMutex
	channels              map[uint64]chan T
	nextID                uint64
	sendLastEventOnListen bool
	lastEvent             *T
	hasNotified           bool
	dropped               uint64
}

// NewChannelEvent creates a new ChannelEvent instance
// sendLastEventOnListen: if true, the ChannelEvent will remember the last Notify parameter
// and send it to new listeners immediately if Notify has been called at least once
func NewChannelEvent[T any](sendLastEventOnListen bool) *ChannelEvent[T] {
	return &ChannelEvent[T]{
		channels:              make(map[uint64]chan T),
		sendLastEventOnListen: sendLastEventOnListen,
	}
}

// Listen registers a channel to receive values when Notify is invoked.
// The channel must be buffered; an unbuffered channel only receives values
// while its reader is already waiting.
// Returns a deregistration function that can be called to remove the listener
func (e *ChannelEvent[T]) Listen(ch chan T) func() {
	if ch == nil {
		panic("channel cannot be nil")
	}

	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.channels[id] = ch
	var last T
	sendLast := e.sendLastEventOnListen && e.hasNotified && e.lastEvent != nil
	if sendLast {
		last = *e.lastEvent
	}
	e.mu.Unlock()

	if sendLast {
		e.deliver(ch, last)
	}

	return func() {
		e.mu.Lock()
		delete(e.channels, id)
		e.mu.Unlock()
	}
}

// Notify sends the provided value to all registered channels without blocking.
func (e *ChannelEvent[T]) Notify(value T) {
	e.mu.Lock()
	if e.sendLastEventOnListen {
		if e.lastEvent == nil {
			e.lastEvent = new(T)
		}
		*e.lastEvent = value
		e.hasNotified = true
	}
	channels := make([]chan T, 0, len(e.channels))
	for _, ch := range e.channels {
		channels = append(channels, ch)
	}
	e.mu.Unlock()

	for _, ch := range channels {
		e.deliver(ch, value)
	}
}

// deliver pushes value, evicting one stale value when the buffer is full.
// If a concurrent notifier refills the slot first the value is dropped.
func (e *ChannelEvent[T]) deliver(ch chan T, value T) {
	select {
	case ch <- value:
		return
	default:
	}

	select {
	case <-ch:
		e.countDrop()
	default:
	}

	select {
	case ch <- value:
	default:
		e.countDrop()
	}
}

func (e *ChannelEvent[T]) countDrop() {
	e.mu.Lock()
	e.dropped++
	e.mu.Unlock()
}

// Dropped returns how many values were discarded to keep listeners current.
func (e *ChannelEvent[T]) Dropped() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dropped
}

// ListenerCount returns the current number of registered listeners
// This is useful for testing and debugging
func (e *ChannelEvent[T]) ListenerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.channels)
}
