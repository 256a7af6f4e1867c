// Package navigation defines the screen state machine as a pure transition function.
//
//	Login --login--> Home --open_camera_list--> CameraList --select_camera--> CameraDetail
//	CameraDetail --back--> CameraList --back--> Home
//	any --logout--> Login
package navigation

import (
	"context"
	"errors"

	"github.com/looplab/fsm"

	"github.com/guardvision/guardvision/internal/monitor/core"
	"github.com/guardvision/guardvision/internal/monitor/model"
	fsmutil "github.com/guardvision/guardvision/internal/pkg/util/fsm"
)

// EventName identifies a navigation event.
type EventName string

const (
	EventLogin          EventName = "login"
	EventOpenCameraList EventName = "open_camera_list"
	EventSelectCamera   EventName = "select_camera"
	EventBack           EventName = "back"
	EventLogout         EventName = "logout"
)

// Event is one navigation request together with its arguments.
type Event struct {
	Name EventName
	// CameraID is required by select_camera.
	CameraID string
	// Operator is recorded by login.
	Operator string
}

func Login(operator string) Event { return Event{Name: EventLogin, Operator: operator} }

func OpenCameraList() Event { return Event{Name: EventOpenCameraList} }

func SelectCamera(cameraID string) Event { return Event{Name: EventSelectCamera, CameraID: cameraID} }

func Back() Event { return Event{Name: EventBack} }

func Logout() Event { return Event{Name: EventLogout} }

var (
	login        = string(model.ScreenLogin)
	home         = string(model.ScreenHome)
	cameraList   = string(model.ScreenCameraList)
	cameraDetail = string(model.ScreenCameraDetail)
)

var events = fsm.Events{
	{Name: string(EventLogin), Src: []string{login}, Dst: home},
	{Name: string(EventOpenCameraList), Src: []string{home}, Dst: cameraList},
	{Name: string(EventSelectCamera), Src: []string{cameraList}, Dst: cameraDetail},
	{Name: string(EventBack), Src: []string{cameraDetail}, Dst: cameraList},
	{Name: string(EventBack), Src: []string{cameraList}, Dst: home},
	{Name: string(EventLogout), Src: []string{login, home, cameraList, cameraDetail}, Dst: login},
}

// Transition applies ev to s and returns the resulting state.
// A disallowed event yields an error matching core.ErrInvalidTransition and s is returned unchanged.
func Transition(ctx context.Context, s model.SessionState, ev Event) (model.SessionState, error) {
	next := s
	m := newMachine(s.Screen, &next)

	err := m.Event(ctx, string(ev.Name), ev)
	switch {
	case err == nil, fsmutil.IsSelfTransition(err):
	default:
		return s, translate(err, s.Screen, ev)
	}

	next.Screen = model.Screen(m.Current())
	return next, nil
}

// Allowed lists the events valid on screen, in declaration order.
func Allowed(screen model.Screen) []EventName {
	m := fsm.NewFSM(string(screen), events, nil)
	var out []EventName
	seen := map[string]bool{}
	for _, e := range events {
		if !seen[e.Name] && m.Can(e.Name) {
			seen[e.Name] = true
			out = append(out, EventName(e.Name))
		}
	}
	return out
}

// newMachine builds a machine positioned at screen whose side effects write into next.
func newMachine(screen model.Screen, next *model.SessionState) *fsm.FSM {
	callbacks := fsm.Callbacks{
		"before_" + string(EventSelectCamera): fsmutil.Guard(guardCameraID),
		"before_" + string(EventLogout): fsmutil.WrapEvent(func(_ context.Context, _ *fsm.Event) error {
			*next = model.SessionState{Screen: model.ScreenLogin}
			return nil
		}),

		"enter_" + home: fsmutil.WrapEvent(func(_ context.Context, e *fsm.Event) error {
			if e.Event == string(EventLogin) {
				next.Authenticated = true
				next.Operator = eventArg(e).Operator
			}
			next.SelectedCameraID = ""
			return nil
		}),
		"enter_" + cameraList: fsmutil.WrapEvent(func(_ context.Context, _ *fsm.Event) error {
			next.SelectedCameraID = ""
			return nil
		}),
		"enter_" + cameraDetail: fsmutil.WrapEvent(func(_ context.Context, e *fsm.Event) error {
			next.SelectedCameraID = eventArg(e).CameraID
			return nil
		}),
	}
	return fsm.NewFSM(string(screen), events, callbacks)
}

func guardCameraID(_ context.Context, e *fsm.Event) error {
	if eventArg(e).CameraID == "" {
		return core.NewInvalidTransition(e.Event, model.Screen(e.Src), "camera id must not be empty")
	}
	return nil
}

func eventArg(e *fsm.Event) Event {
	if len(e.Args) > 0 {
		if ev, ok := e.Args[0].(Event); ok {
			return ev
		}
	}
	return Event{}
}

func translate(err error, screen model.Screen, ev Event) error {
	err = fsmutil.Cause(err)
	if errors.Is(err, core.ErrInvalidTransition) {
		return err
	}

	var (
		invalid fsm.InvalidEventError
		unknown fsm.UnknownEventError
	)
	switch {
	case errors.As(err, &invalid):
		return core.NewInvalidTransition(string(ev.Name), screen, "")
	case errors.As(err, &unknown):
		return core.NewInvalidTransition(string(ev.Name), screen, "unknown event")
	}
	return err
}
