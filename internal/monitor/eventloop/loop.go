// Package eventloop provides the single cooperative scheduler that owns all monitor state.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/guardvision/guardvision/pkg/log"
)

// ErrStopped is returned by Call once the loop has exited.
var ErrStopped = errors.New("event loop stopped")

// Loop runs posted events one at a time in FIFO order.
type Loop struct {
	log log.Logger

	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	done    chan struct{}
	stopped bool
}

// New returns an idle loop; call Run to start processing.
func New(logger log.Logger) *Loop {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Loop{
		log:  logger.WithName("eventloop"),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post enqueues fn. It never blocks. Events posted after the loop stopped are discarded.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

const (
	callPending int32 = iota
	callRunning
	callAbandoned
)

// Call runs fn on the loop and waits for its result.
// It must not be called from inside an event.
// If ctx is done before fn starts, fn is never run and ctx.Err() is returned;
// once fn has started, Call waits for it.
func (l *Loop) Call(ctx context.Context, fn func() error) error {
	var state atomic.Int32
	result := make(chan error, 1)
	l.Post(func() {
		if !state.CompareAndSwap(callPending, callRunning) {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("event panicked: %v", r)
				panic(r)
			}
		}()
		result <- fn()
	})

	select {
	case err := <-result:
		return err
	case <-l.done:
		// The event may have run just before the loop exited.
		select {
		case err := <-result:
			return err
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		if state.CompareAndSwap(callPending, callAbandoned) {
			return ctx.Err()
		}
		select {
		case err := <-result:
			return err
		case <-l.done:
			return ErrStopped
		}
	}
}

// Run processes events until ctx is done. Pending events are dropped on exit.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Debug("event loop started")
	defer func() {
		l.mu.Lock()
		l.stopped = true
		dropped := len(l.queue)
		l.queue = nil
		l.mu.Unlock()
		close(l.done)
		l.log.Debug("event loop stopped", "droppedEvents", dropped)
	}()

	for {
		l.RunPending()

		select {
		case <-l.wake:
		case <-ctx.Done():
			return nil
		}
	}
}

// RunPending executes every queued event, including events queued while draining,
// and returns how many ran. Tests use it to step the loop deterministically;
// it must not be used while Run is active.
func (l *Loop) RunPending() int {
	n := 0
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return n
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.exec(fn)
		n++
	}
}

// Done is closed after Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error(fmt.Errorf("panic: %v", r), "event panicked; loop continues")
		}
	}()
	fn()
}
