package fsm

import (
	"context"
	"errors"
	"testing"

	"github.com/looplab/fsm"
)

func TestGuardCancelsWithCause(t *testing.T) {
	denied := errors.New("denied")
	m := fsm.NewFSM("a",
		fsm.Events{{Name: "go", Src: []string{"a"}, Dst: "b"}},
		fsm.Callbacks{
			"before_go": Guard(func(context.Context, *fsm.Event) error { return denied }),
		},
	)

	err := m.Event(context.Background(), "go")
	if !errors.Is(Cause(err), denied) {
		t.Fatalf("Cause(%v) should be %v", err, denied)
	}
	if m.Current() != "a" {
		t.Errorf("state moved to %s", m.Current())
	}
}

func TestWrapEventReportsError(t *testing.T) {
	failed := errors.New("side effect failed")
	m := fsm.NewFSM("a",
		fsm.Events{{Name: "go", Src: []string{"a"}, Dst: "b"}},
		fsm.Callbacks{
			"enter_b": WrapEvent(func(context.Context, *fsm.Event) error { return failed }),
		},
	)

	if err := m.Event(context.Background(), "go"); !errors.Is(err, failed) {
		t.Fatalf("Event = %v, want %v", err, failed)
	}
}

func TestIsSelfTransition(t *testing.T) {
	m := fsm.NewFSM("a", fsm.Events{{Name: "stay", Src: []string{"a"}, Dst: "a"}}, nil)
	err := m.Event(context.Background(), "stay")
	if !IsSelfTransition(err) {
		t.Errorf("IsSelfTransition(%v) = false", err)
	}
	if IsSelfTransition(errors.New("other")) {
		t.Error("unrelated error matched")
	}
}
