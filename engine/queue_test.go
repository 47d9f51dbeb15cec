package engine

import (
	"sync"
	"testing"
)

func TestQueuePoolExhaustion(t *testing.T) {
	q := newEventQueue(2, 4)
	a := q.get()
	b := q.get()
	if a == nil || b == nil {
		t.Fatal("pool of 2 should serve 2 events")
	}
	if c := q.get(); c != nil {
		t.Fatal("exhausted pool should return nil")
	}
	if q.Dropped() != 1 {
		t.Fatalf("dropped should be 1, got %d", q.Dropped())
	}
	q.ret(a)
	if c := q.get(); c == nil {
		t.Fatal("returned event should be available again")
	}
}

func TestQueueFIFO(t *testing.T) {
	q := newEventQueue(8, 4)
	for i := 0; i < 5; i++ {
		ev := q.get()
		ev.GStartFrame = int64(i)
		if !q.push(ev) {
			t.Fatalf("push %d failed", i)
		}
	}
	for i := 0; i < 5; i++ {
		ev, ok := q.pop()
		if !ok {
			t.Fatalf("pop %d failed", i)
		}
		if ev.GStartFrame != int64(i) {
			t.Fatalf("pop %d: got frame %d", i, ev.GStartFrame)
		}
		q.ret(ev)
	}
	if _, ok := q.pop(); ok {
		t.Fatal("queue should be empty")
	}
	if q.Dropped() != 0 {
		t.Fatalf("no drops expected, got %d", q.Dropped())
	}
}

func TestQueueEventsResetOnReturn(t *testing.T) {
	q := newEventQueue(1, 4)
	ev := q.get()
	ev.Kind = RecEventAudio
	ev.Track = 3
	ev.L = append(ev.L, 1, 2, 3)
	q.ret(ev)
	ev = q.get()
	if ev.Kind != 0 || ev.Track != 0 || len(ev.L) != 0 {
		t.Fatalf("event not reset: %+v", ev)
	}
	if cap(ev.L) != 4 {
		t.Fatalf("payload capacity should survive reuse, got %d", cap(ev.L))
	}
}

func TestQueueConcurrentProducersKeepOrder(t *testing.T) {
	const perProducer = 500
	q := newEventQueue(64, 4)
	var wg sync.WaitGroup
	for producer := 0; producer < 2; producer++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				var ev *RecordingEvent
				for ev == nil {
					ev = q.get()
				}
				ev.Track = id
				ev.GStartFrame = int64(i)
				for !q.push(ev) {
					// the failed push returned the event to the pool
					ev = nil
					for ev == nil {
						ev = q.get()
					}
					ev.Track = id
					ev.GStartFrame = int64(i)
				}
			}
		}(producer)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		last := map[int]int64{0: -1, 1: -1}
		seen := 0
		for seen < 2*perProducer {
			ev, ok := q.pop()
			if !ok {
				continue
			}
			if ev.GStartFrame <= last[ev.Track] {
				t.Errorf("producer %d: frame %d arrived after %d", ev.Track, ev.GStartFrame, last[ev.Track])
				q.ret(ev)
				return
			}
			last[ev.Track] = ev.GStartFrame
			q.ret(ev)
			seen++
		}
	}()
	wg.Wait()
	<-done
}
