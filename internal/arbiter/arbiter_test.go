package arbiter

import (
	"fmt"
	"sync"
	"testing"
)

func TestAcquirePreemptsPreviousHolder(t *testing.T) {
	a := New(nil)

	var order []string
	a.Acquire("A", func() { order = append(order, "stop A") })
	a.Acquire("B", func() { order = append(order, "stop B") })
	order = append(order, "B acquired")

	if len(order) != 2 || order[0] != "stop A" || order[1] != "B acquired" {
		t.Fatalf("order = %v, want A stopped before Acquire returned", order)
	}
	if id, ok := a.Holder(); !ok || id != "B" {
		t.Errorf("Holder() = %q, %v", id, ok)
	}
}

func TestAcquireSameIDReplacesCallback(t *testing.T) {
	a := New(nil)

	stopped := 0
	a.Acquire("A", func() { stopped++ })
	a.Acquire("A", func() { stopped += 10 })
	if stopped != 0 {
		t.Fatalf("re-acquire stopped the holder (%d)", stopped)
	}

	a.Acquire("B", func() {})
	if stopped != 10 {
		t.Errorf("pre-emption ran the old callback (stopped = %d)", stopped)
	}
}

func TestReleaseOnlyByHolder(t *testing.T) {
	a := New(nil)

	a.Acquire("A", func() {})
	if a.Release("B") {
		t.Error("Release by a non-holder succeeded")
	}
	if id, _ := a.Holder(); id != "A" {
		t.Fatalf("stale release cleared the slot, holder = %q", id)
	}
	if !a.Release("A") {
		t.Error("Release by the holder failed")
	}
	if _, ok := a.Holder(); ok {
		t.Error("slot still held after Release")
	}
	if a.Release("A") {
		t.Error("second Release reported success")
	}
}

func TestStopCallbackMayRelease(t *testing.T) {
	a := New(nil)

	a.Acquire("A", func() {
		// A session tearing down releases itself from inside stop.
		a.Release("A")
	})
	a.Acquire("B", func() {})

	if id, _ := a.Holder(); id != "B" {
		t.Errorf("holder = %q, want B", id)
	}
}

func TestStopAll(t *testing.T) {
	a := New(nil)
	stopped := false
	a.Acquire("A", func() { stopped = true })

	a.StopAll()
	if !stopped {
		t.Error("StopAll did not stop the holder")
	}
	if _, ok := a.Holder(); ok {
		t.Error("slot still held after StopAll")
	}
}

func TestConcurrentAcquireStopsEveryReplacedHolder(t *testing.T) {
	a := New(nil)

	const workers, rounds = 8, 50
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		stops = map[string]int{}
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				id := fmt.Sprintf("%d-%d", w, i)
				a.Acquire(id, func() {
					mu.Lock()
					stops[id]++
					mu.Unlock()
				})
			}
		}(w)
	}
	wg.Wait()

	holder, ok := a.Holder()
	if !ok {
		t.Fatal("no holder after concurrent acquisitions")
	}
	if len(stops) != workers*rounds-1 {
		t.Errorf("%d sessions stopped, want %d", len(stops), workers*rounds-1)
	}
	for id, n := range stops {
		if n != 1 {
			t.Errorf("%s stopped %d times", id, n)
		}
	}
	if stops[holder] != 0 {
		t.Errorf("current holder %s was stopped", holder)
	}
}
