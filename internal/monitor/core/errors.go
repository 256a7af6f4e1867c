package core

import (
	"errors"
	"fmt"

	"github.com/mdobak/go-xerrors"

	"github.com/guardvision/guardvision/internal/monitor/model"
)

var (
	// ErrAuthenticationRejected is returned when the verifier refuses the credentials.
	ErrAuthenticationRejected = errors.New("authentication rejected")

	// ErrSubscriptionLost marks a broken store subscription or a failed read.
	ErrSubscriptionLost = errors.New("subscription lost")

	// ErrInvalidTransition matches every *InvalidTransitionError.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrNoActiveFeed is returned by refresh when no feed is open.
	ErrNoActiveFeed = errors.New("no active feed")
)

// MalformedRecordError describes a record dropped by the normalizer.
type MalformedRecordError struct {
	CameraID string
	PushKey  string
	Reason   string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record %s/%s: %s", e.CameraID, e.PushKey, e.Reason)
}

// InvalidTransitionError reports a navigation event that is not allowed on the current screen.
// It indicates that a caller and the navigation state have diverged.
type InvalidTransitionError struct {
	Event  string
	Screen model.Screen
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("invalid transition: %q not allowed on screen %s", e.Event, e.Screen)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// NewInvalidTransition returns an *InvalidTransitionError annotated with the caller's stack.
func NewInvalidTransition(event string, screen model.Screen, reason string) error {
	return xerrors.New(&InvalidTransitionError{Event: event, Screen: screen, Reason: reason})
}

// SubscriptionLost wraps a transport failure for path.
func SubscriptionLost(path string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrSubscriptionLost, path)
	}
	return fmt.Errorf("%w: %s: %w", ErrSubscriptionLost, path, cause)
}
