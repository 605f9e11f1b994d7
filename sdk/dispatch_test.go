package sdk

import (
	"sync"
	"testing"
)

func TestDispatchCallSerializesWork(t *testing.T) {
	d := newDispatcher(8)
	defer d.close()

	// Unsynchronized counter: only safe if the dispatcher really runs
	// everything on a single goroutine.
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := dispatchCall(d, func() (int, error) {
				counter++
				return counter, nil
			})
			if err != nil {
				t.Errorf("dispatchCall: %v", err)
			}
		}()
	}
	wg.Wait()

	final, err := dispatchCall(d, func() (int, error) { return counter, nil })
	if err != nil {
		t.Fatalf("dispatchCall: %v", err)
	}
	if final != 50 {
		t.Fatalf("counter = %d, want 50", final)
	}
}

func TestDispatchCallPropagatesError(t *testing.T) {
	d := newDispatcher(1)
	defer d.close()

	_, err := dispatchCall(d, func() (struct{}, error) {
		return struct{}{}, errBoom
	})
	if err != errBoom {
		t.Fatalf("err = %v, want errBoom", err)
	}
}

func TestDispatchCallNilDispatcher(t *testing.T) {
	var d *dispatcher
	if _, err := dispatchCall(d, func() (int, error) { return 1, nil }); err == nil {
		t.Fatal("expected error for nil dispatcher")
	}
}

func TestDispatcherCloseIdempotent(t *testing.T) {
	d := newDispatcher(1)
	d.close()
	d.close()
}
