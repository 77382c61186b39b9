package engine

import (
	"log"
	"sync/atomic"
	"time"
)

// emitGrace is how long a full buffer may stall emission before the
// event is dropped.
const emitGrace = 100 * time.Millisecond

// EventEmitter fans engine lifecycle events out to a single consumer
// over a buffered channel. Emission never blocks the stage loop for
// longer than the grace window: when the consumer cannot drain in time
// the event is dropped and counted instead.
type EventEmitter struct {
	ch      chan EngineEvent
	dropped atomic.Uint64
}

// NewEventEmitter creates an emitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	return &EventEmitter{ch: make(chan EngineEvent, bufferSize)}
}

// Emit delivers an event to the consumer. Nil-safe so call sites emit
// unconditionally.
func (e *EventEmitter) Emit(ev EngineEvent) {
	if e == nil {
		return
	}
	select {
	case e.ch <- ev:
		return
	default:
	}

	// Buffer full: give the consumer one grace window to drain.
	t := time.NewTimer(emitGrace)
	defer t.Stop()
	select {
	case e.ch <- ev:
	case <-t.C:
		if n := e.dropped.Add(1); n == 1 || n%25 == 0 {
			log.Printf("engine: event buffer full, dropped %s (%d dropped so far)", ev.Type, n)
		}
	}
}

// DroppedCount reports how many events were dropped since creation.
func (e *EventEmitter) DroppedCount() uint64 {
	if e == nil {
		return 0
	}
	return e.dropped.Load()
}

// Events is the consumer side of the emitter.
func (e *EventEmitter) Events() <-chan EngineEvent {
	return e.ch
}

// Close ends the stream. No Emit may follow a Close.
func (e *EventEmitter) Close() {
	if e == nil {
		return
	}
	close(e.ch)
}
