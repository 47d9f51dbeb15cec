package engine

import "sync/atomic"

// eventQueue is the single crossing point between the real-time producers
// and the recording consumer: a bounded FIFO of pooled recording events. Both
// the queue and the pool are pre-allocated buffered channels, so get/push/
// ret are bounded-wait and allocation-free; a full pool or queue drops the
// cycle's notification instead of stalling the audio path, counting the
// drop.
type eventQueue struct {
	events  chan *RecordingEvent
	pool    chan *RecordingEvent
	dropped atomic.Uint64
}

// defaults carried over from the reference configuration: 200 pooled events,
// consumer woken every 12 ms.
const (
	defaultPoolSize = 200
)

func newEventQueue(size, blockLength int) *eventQueue {
	q := &eventQueue{
		events: make(chan *RecordingEvent, size),
		pool:   make(chan *RecordingEvent, size),
	}
	for i := 0; i < size; i++ {
		q.pool <- &RecordingEvent{
			L: make([]float32, 0, blockLength),
			R: make([]float32, 0, blockLength),
		}
	}
	return q
}

// get takes an event from the pool, or nil if the pool is exhausted.
func (q *eventQueue) get() *RecordingEvent {
	select {
	case ev := <-q.pool:
		return ev
	default:
		q.dropped.Add(1)
		return nil
	}
}

// push enqueues the event without blocking. If the queue is full the event
// goes straight back to the pool and the drop is counted.
func (q *eventQueue) push(ev *RecordingEvent) bool {
	select {
	case q.events <- ev:
		return true
	default:
		q.dropped.Add(1)
		q.ret(ev)
		return false
	}
}

// pop dequeues the next event in arrival order, without blocking.
func (q *eventQueue) pop() (*RecordingEvent, bool) {
	select {
	case ev := <-q.events:
		return ev, true
	default:
		return nil, false
	}
}

// ret resets the event and returns it to the pool.
func (q *eventQueue) ret(ev *RecordingEvent) {
	ev.reset()
	select {
	case q.pool <- ev:
	default:
		// pool full means the event was not taken from this pool; drop it
	}
}

// Dropped returns how many notifications have been lost to pool or queue
// exhaustion since start.
func (q *eventQueue) Dropped() uint64 { return q.dropped.Load() }
