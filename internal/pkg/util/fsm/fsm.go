// Package fsm holds small adapters between error-returning functions and looplab/fsm callbacks.
package fsm

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// WrapEvent adapts fn to a callback that records a returned error on the event.
// Use it for enter_/after_ side effects.
func WrapEvent(fn func(ctx context.Context, event *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, event *fsm.Event) {
		if err := fn(ctx, event); err != nil {
			event.Err = err
		}
	}
}

// Guard adapts fn to a before_ callback that cancels the transition when fn fails.
// Event then returns fsm.CanceledError carrying the error.
func Guard(fn func(ctx context.Context, event *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, event *fsm.Event) {
		if err := fn(ctx, event); err != nil {
			event.Cancel(err)
		}
	}
}

// IsSelfTransition reports whether err only says that the event left the state unchanged.
func IsSelfTransition(err error) bool {
	var noTransition fsm.NoTransitionError
	return errors.As(err, &noTransition) && noTransition.Err == nil
}

// Cause extracts the error a guard cancelled with, or returns err unchanged.
func Cause(err error) error {
	var canceled fsm.CanceledError
	if errors.As(err, &canceled) && canceled.Err != nil {
		return canceled.Err
	}
	return err
}
