package operator

import (
	"context"
	"sync/atomic"
)

// opState is the lifecycle of a unit of work. Transitions only move forward.
type opState int32

const (
	statePending opState = iota
	stateExecuting
	stateFinished
)

func (s opState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateExecuting:
		return "executing"
	case stateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// operation tracks one RequestItem through the dispatch queue.
type operation struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	state     atomic.Int32
	cancelled atomic.Bool
	done      chan struct{}

	action  func(ctx context.Context) ([]byte, *NetworkError)
	deliver func(body []byte, nerr *NetworkError)
	// onState observes every transition; used by tests and the queue
	onState func(opState)
}

func newOperation(ctx context.Context, id string, action func(context.Context) ([]byte, *NetworkError), deliver func([]byte, *NetworkError)) *operation {
	ctx, cancel := context.WithCancel(ctx)
	return &operation{
		id:      id,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		action:  action,
		deliver: deliver,
	}
}

func (o *operation) State() opState {
	return opState(o.state.Load())
}

// Done is closed once the operation has finished and delivered its result.
func (o *operation) Done() <-chan struct{} {
	return o.done
}

func (o *operation) isCancelled() bool {
	return o.cancelled.Load() || o.ctx.Err() != nil
}

// markCancelled flags the unit and cancels its context. A running action
// observes it at its next suspension point.
func (o *operation) markCancelled() {
	o.cancelled.Store(true)
	o.cancel()
}

// start runs the action, or finishes straight away when already cancelled.
// Only the first call has any effect.
func (o *operation) start() {
	if !o.transition(statePending, stateExecuting) {
		return
	}
	if o.isCancelled() {
		o.finish(nil, newCancelledError(context.Cause(o.ctx)))
		return
	}
	o.finish(o.action(o.ctx))
}

// finish delivers the result and closes Done. It is idempotent.
func (o *operation) finish(body []byte, nerr *NetworkError) {
	if !o.transition(stateExecuting, stateFinished) {
		return
	}
	defer close(o.done)
	defer o.cancel()
	o.deliver(body, nerr)
}

func (o *operation) transition(from, to opState) bool {
	if !o.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	if o.onState != nil {
		o.onState(to)
	}
	return true
}
