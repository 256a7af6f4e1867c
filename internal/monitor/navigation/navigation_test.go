package navigation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/guardvision/guardvision/internal/monitor/core"
	"github.com/guardvision/guardvision/internal/monitor/model"
)

var (
	atLogin  = model.InitialSession()
	atHome   = model.SessionState{Authenticated: true, Screen: model.ScreenHome, Operator: "op"}
	atList   = model.SessionState{Authenticated: true, Screen: model.ScreenCameraList, Operator: "op"}
	atDetail = model.SessionState{Authenticated: true, Screen: model.ScreenCameraDetail, SelectedCameraID: "3", Operator: "op"}
)

func TestTransitions(t *testing.T) {
	tests := []struct {
		name string
		from model.SessionState
		ev   Event
		want model.SessionState
	}{
		{"login", atLogin, Login("op"), atHome},
		{"open list", atHome, OpenCameraList(), atList},
		{"select camera", atList, SelectCamera("3"), atDetail},
		{"back from detail", atDetail, Back(), atList},
		{"back from list", atList, Back(), atHome},
		{"logout from detail", atDetail, Logout(), atLogin},
		{"logout from home", atHome, Logout(), atLogin},
		{"logout from login", atLogin, Logout(), atLogin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(context.Background(), tt.from, tt.ev)
			if err != nil {
				t.Fatalf("Transition: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("state mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		from model.SessionState
		ev   Event
	}{
		{"select from home", atHome, SelectCamera("3")},
		{"back from home", atHome, Back()},
		{"back from login", atLogin, Back()},
		{"open list from login", atLogin, OpenCameraList()},
		{"open list from list", atList, OpenCameraList()},
		{"login twice", atHome, Login("op")},
		{"empty camera id", atList, SelectCamera("")},
		{"unknown event", atHome, Event{Name: "teleport"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(context.Background(), tt.from, tt.ev)
			if !errors.Is(err, core.ErrInvalidTransition) {
				t.Fatalf("err = %v, want ErrInvalidTransition", err)
			}
			var ite *core.InvalidTransitionError
			if !errors.As(err, &ite) || ite.Screen != tt.from.Screen || ite.Event != string(tt.ev.Name) {
				t.Errorf("unexpected error detail %+v", ite)
			}
			if diff := cmp.Diff(tt.from, got); diff != "" {
				t.Errorf("state changed on invalid transition (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHomeAllowsOnlyListAndLogout(t *testing.T) {
	want := []EventName{EventOpenCameraList, EventLogout}
	if diff := cmp.Diff(want, Allowed(model.ScreenHome)); diff != "" {
		t.Errorf("Allowed(Home) mismatch (-want +got):\n%s", diff)
	}
}

func TestBackFromDetailKeepsAuthentication(t *testing.T) {
	got, err := Transition(context.Background(), atDetail, Back())
	if err != nil {
		t.Fatal(err)
	}
	if !got.Authenticated || got.SelectedCameraID != "" || got.Screen != model.ScreenCameraList {
		t.Errorf("got %+v", got)
	}
}

func TestSelectedCameraInvariant(t *testing.T) {
	// Walk every reachable path and check the selected camera is set exactly on CameraDetail.
	walk := []Event{Login("a"), OpenCameraList(), SelectCamera("9"), Back(), SelectCamera("1"), Logout()}
	s := atLogin
	for _, ev := range walk {
		var err error
		s, err = Transition(context.Background(), s, ev)
		if err != nil {
			t.Fatalf("%s: %v", ev.Name, err)
		}
		if (s.SelectedCameraID != "") != (s.Screen == model.ScreenCameraDetail) {
			t.Fatalf("after %s: invariant broken in %+v", ev.Name, s)
		}
	}
}
