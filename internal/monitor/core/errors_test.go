package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/guardvision/guardvision/internal/monitor/model"
)

func TestInvalidTransitionMatching(t *testing.T) {
	err := NewInvalidTransition("select_camera", model.ScreenHome, "")

	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("errors.Is(%v, ErrInvalidTransition) = false", err)
	}
	var ite *InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("errors.As failed for %T", err)
	}
	if ite.Event != "select_camera" || ite.Screen != model.ScreenHome {
		t.Errorf("unexpected fields %+v", ite)
	}

	wrapped := fmt.Errorf("navigator: %w", err)
	if !errors.Is(wrapped, ErrInvalidTransition) {
		t.Error("wrapping must preserve the match")
	}
}

func TestSubscriptionLost(t *testing.T) {
	cause := errors.New("connection reset")
	err := SubscriptionLost("latest_faces/3", cause)

	if !errors.Is(err, ErrSubscriptionLost) || !errors.Is(err, cause) {
		t.Fatalf("%v should match both sentinel and cause", err)
	}
	if !errors.Is(SubscriptionLost("x", nil), ErrSubscriptionLost) {
		t.Error("nil cause should still match the sentinel")
	}
}

func TestMalformedRecordError(t *testing.T) {
	err := &MalformedRecordError{CameraID: "3", PushKey: "k2", Reason: "missing field \"weapon\""}
	want := `malformed record 3/k2: missing field "weapon"`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
