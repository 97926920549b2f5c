package operator

import (
	"context"
	"sync"
)

// dispatchQueue runs operations one at a time, in submission order, on a
// single lane goroutine.
type dispatchQueue struct {
	name string

	mu        sync.Mutex
	cond      *sync.Cond
	pending   []*operation
	current   *operation
	suspended bool
	closed    bool
	stopped   chan struct{}
}

func newDispatchQueue(name string) *dispatchQueue {
	q := &dispatchQueue{name: name, stopped: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// submit enqueues op and returns immediately. On a closed queue op is
// cancelled and finished on its own goroutine.
func (q *dispatchQueue) submit(op *operation) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		op.markCancelled()
		go op.start()
		return
	}
	q.pending = append(q.pending, op)
	q.mu.Unlock()

	// wake a suspended lane when the unit gets cancelled from outside
	context.AfterFunc(op.ctx, q.wake)
	q.cond.Signal()
}

func (q *dispatchQueue) wake() {
	q.mu.Lock()
	q.cond.Broadcast()
	q.mu.Unlock()
}

func (q *dispatchQueue) run() {
	defer close(q.stopped)
	for {
		op, ok := q.next()
		if !ok {
			return
		}
		op.start()

		q.mu.Lock()
		q.current = nil
		q.mu.Unlock()
	}
}

// next blocks until a unit may start. It returns false once the queue is
// closed and drained.
func (q *dispatchQueue) next() (*operation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.runnable()
	for !q.closed && i < 0 {
		q.cond.Wait()
		i = q.runnable()
	}
	if len(q.pending) == 0 {
		return nil, false
	}
	if i < 0 {
		i = 0
	}

	op := q.pending[i]
	copy(q.pending[i:], q.pending[i+1:])
	q.pending[len(q.pending)-1] = nil
	q.pending = q.pending[:len(q.pending)-1]
	q.current = op
	return op, true
}

// runnable returns the index of the unit that may start next, or -1. Running
// normally that is the head. While suspended it is the first cancelled unit
// wherever it sits, so cancelled units drain past live ones that wait for
// resume. Callers hold q.mu.
func (q *dispatchQueue) runnable() int {
	if len(q.pending) == 0 {
		return -1
	}
	if !q.suspended {
		return 0
	}
	for i, op := range q.pending {
		if op.isCancelled() {
			return i
		}
	}
	return -1
}

// cancelAll cancels every unit that has not finished, including the one
// currently running.
func (q *dispatchQueue) cancelAll() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, op := range q.pending {
		op.markCancelled()
		n++
	}
	if q.current != nil {
		q.current.markCancelled()
		n++
	}
	q.cond.Broadcast()
	return n
}

func (q *dispatchQueue) suspend() {
	q.mu.Lock()
	q.suspended = true
	q.mu.Unlock()
}

func (q *dispatchQueue) resume() {
	q.mu.Lock()
	q.suspended = false
	q.cond.Broadcast()
	q.mu.Unlock()
}

func (q *dispatchQueue) isSuspended() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.suspended
}

// len returns the number of units waiting to start.
func (q *dispatchQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// close cancels everything, lets the lane drain the cancelled units and
// waits for it to stop.
func (q *dispatchQueue) close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		for _, op := range q.pending {
			op.markCancelled()
		}
		if q.current != nil {
			q.current.markCancelled()
		}
		q.cond.Broadcast()
	}
	q.mu.Unlock()
	<-q.stopped
}
