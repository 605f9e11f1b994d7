package sdk

import (
	"fmt"
	"sync"
)

// dispatcher serializes work onto a single goroutine.
//
// gomobile can invoke exported Go methods from any host thread; funneling
// every call through one goroutine keeps session state, persistence and the
// request pipeline free of cross-thread surprises without per-field locking.
type dispatcher struct {
	q         chan func()
	closeOnce sync.Once
}

func newDispatcher(queueSize int) *dispatcher {
	if queueSize <= 0 {
		queueSize = defaultDispatcherQueueSize
	}
	d := &dispatcher{q: make(chan func(), queueSize)}
	go d.loop()
	return d
}

func (d *dispatcher) loop() {
	for fn := range d.q {
		if fn != nil {
			fn()
		}
	}
}

// do enqueues fn without waiting for it.
func (d *dispatcher) do(fn func()) {
	if d == nil || fn == nil {
		return
	}
	d.q <- fn
}

// close stops the dispatch goroutine once the queue drains.
func (d *dispatcher) close() {
	d.closeOnce.Do(func() {
		close(d.q)
	})
}

// dispatchCall runs fn on the dispatch goroutine and waits for its result.
func dispatchCall[T any](d *dispatcher, fn func() (T, error)) (T, error) {
	var zero T
	if d == nil {
		return zero, fmt.Errorf("dispatcher not initialized")
	}

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	d.q <- func() {
		value, err := fn()
		done <- result{value: value, err: err}
	}
	res := <-done
	return res.value, res.err
}
