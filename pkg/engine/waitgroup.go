package engine

import (
	"sync"
)

// WaitGroup is the barrier handle returned for a set of submitted tasks.
// A panic inside any task is captured and re-raised by Wait on the
// caller's goroutine.
type WaitGroup struct {
	wg       sync.WaitGroup
	mu       sync.Mutex
	panicked any
}

func newWaitGroup(count int) *WaitGroup {
	w := &WaitGroup{}
	w.wg.Add(count)
	return w
}

// ZeroGroup returns a handle that is already complete.
func ZeroGroup() *WaitGroup {
	return &WaitGroup{}
}

func (w *WaitGroup) done(recovered any) {
	if recovered != nil {
		w.mu.Lock()
		if w.panicked == nil {
			w.panicked = recovered
		}
		w.mu.Unlock()
	}
	w.wg.Done()
}

// Wait blocks until every task of the group ran to completion.
func (w *WaitGroup) Wait() {
	w.wg.Wait()

	w.mu.Lock()
	p := w.panicked
	w.mu.Unlock()
	if p != nil {
		panic(p)
	}
}
