package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/guardvision/guardvision/internal/monitor/core"
	"github.com/guardvision/guardvision/internal/monitor/model"
	"github.com/guardvision/guardvision/pkg/options"
)

// fakeNavigator accepts "op"/"secret" and follows the happy path of the screen graph.
type fakeNavigator struct {
	mu    sync.Mutex
	frame model.Frame
}

func newFakeNavigator() *fakeNavigator {
	return &fakeNavigator{frame: model.Frame{Session: model.InitialSession()}}
}

func (f *fakeNavigator) Frame() model.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frame
}

func (f *fakeNavigator) move(from, to model.Screen, camera string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.frame.Session.Screen != from {
		return core.NewInvalidTransition("test", f.frame.Session.Screen, "")
	}
	f.frame.Session.Screen = to
	f.frame.Session.SelectedCameraID = camera
	f.frame.Message = ""
	return nil
}

func (f *fakeNavigator) Login(_ context.Context, id, secret string) error {
	if secret != "secret" {
		f.mu.Lock()
		f.frame.Message = "Invalid credentials. Access denied."
		f.mu.Unlock()
		return fmt.Errorf("login %q: %w", id, core.ErrAuthenticationRejected)
	}
	if err := f.move(model.ScreenLogin, model.ScreenHome, ""); err != nil {
		return err
	}
	f.mu.Lock()
	f.frame.Session.Authenticated = true
	f.frame.Session.Operator = id
	f.mu.Unlock()
	return nil
}

func (f *fakeNavigator) OpenCameraList(context.Context) error {
	return f.move(model.ScreenHome, model.ScreenCameraList, "")
}

func (f *fakeNavigator) SelectCamera(_ context.Context, id string) error {
	return f.move(model.ScreenCameraList, model.ScreenCameraDetail, id)
}

func (f *fakeNavigator) Back(context.Context) error {
	return f.move(model.ScreenCameraDetail, model.ScreenCameraList, "")
}

func (f *fakeNavigator) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frame = model.Frame{Session: model.InitialSession()}
	return nil
}

func (f *fakeNavigator) Refresh(context.Context) error {
	if f.Frame().Session.Screen == model.ScreenLogin {
		return core.ErrNoActiveFeed
	}
	return nil
}

func newTestServer(nav Navigator, ready func() bool) *Server {
	return NewServer(Config{Options: options.NewHttpOptions(), Navigator: nav, Ready: ready})
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return rec, out
}

func screenOf(t *testing.T, body map[string]any) string {
	t.Helper()
	session, ok := body["session"].(map[string]any)
	if !ok {
		t.Fatalf("no session in %v", body)
	}
	return session["screen"].(string)
}

func TestNavigationRoutes(t *testing.T) {
	h := newTestServer(newFakeNavigator(), nil).Handler()

	rec, body := do(t, h, http.MethodPost, "/api/v1/session/login", `{"identifier":"op","secret":"secret"}`)
	if rec.Code != http.StatusOK || screenOf(t, body) != "Home" {
		t.Fatalf("login: %d %v", rec.Code, body)
	}

	rec, body = do(t, h, http.MethodPost, "/api/v1/cameras", "")
	if rec.Code != http.StatusOK || screenOf(t, body) != "CameraList" {
		t.Fatalf("open list: %d %v", rec.Code, body)
	}

	rec, body = do(t, h, http.MethodPost, "/api/v1/cameras/3", "")
	if rec.Code != http.StatusOK || screenOf(t, body) != "CameraDetail" {
		t.Fatalf("select: %d %v", rec.Code, body)
	}
	if id := body["session"].(map[string]any)["selectedCameraId"]; id != "3" {
		t.Errorf("selectedCameraId = %v", id)
	}

	rec, body = do(t, h, http.MethodPost, "/api/v1/back", "")
	if rec.Code != http.StatusOK || screenOf(t, body) != "CameraList" {
		t.Fatalf("back: %d %v", rec.Code, body)
	}

	rec, body = do(t, h, http.MethodPost, "/api/v1/session/logout", "")
	if rec.Code != http.StatusOK || screenOf(t, body) != "Login" {
		t.Fatalf("logout: %d %v", rec.Code, body)
	}

	rec, body = do(t, h, http.MethodGet, "/api/v1/frame", "")
	if rec.Code != http.StatusOK || screenOf(t, body) != "Login" {
		t.Fatalf("frame: %d %v", rec.Code, body)
	}
}

func TestErrorMapping(t *testing.T) {
	h := newTestServer(newFakeNavigator(), nil).Handler()

	tests := []struct {
		name, method, path, body string
		want                     int
	}{
		{"bad json", http.MethodPost, "/api/v1/session/login", `{`, http.StatusBadRequest},
		{"rejected", http.MethodPost, "/api/v1/session/login", `{"identifier":"op","secret":"nope"}`, http.StatusUnauthorized},
		{"invalid transition", http.MethodPost, "/api/v1/cameras/3", "", http.StatusConflict},
		{"no active feed", http.MethodPost, "/api/v1/refresh", "", http.StatusConflict},
		{"export disabled", http.MethodPost, "/api/v1/records/k1/export", "", http.StatusServiceUnavailable},
		{"wrong method", http.MethodGet, "/api/v1/back", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := do(t, h, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestRejectedLoginCarriesMessage(t *testing.T) {
	h := newTestServer(newFakeNavigator(), nil).Handler()

	_, body := do(t, h, http.MethodPost, "/api/v1/session/login", `{"identifier":"op","secret":"nope"}`)
	if body["message"] != "Invalid credentials. Access denied." {
		t.Errorf("message = %v", body["message"])
	}
}

func TestProbes(t *testing.T) {
	var up bool
	h := newTestServer(newFakeNavigator(), func() bool { return up }).Handler()

	if rec, _ := do(t, h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}
	if rec, _ := do(t, h, http.MethodGet, "/readyz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz while down = %d", rec.Code)
	}
	up = true
	if rec, _ := do(t, h, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Errorf("readyz while up = %d", rec.Code)
	}

	rec, _ := do(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "guardvision_") {
		t.Errorf("metrics = %d", rec.Code)
	}
}

func TestFrameStream(t *testing.T) {
	nav := newFakeNavigator()
	s := newTestServer(nav, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first model.Frame
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial frame: %v", err)
	}
	if first.Session.Screen != model.ScreenLogin {
		t.Errorf("initial screen = %s", first.Session.Screen)
	}

	// Reading the initial frame implies the client is registered for pushes.
	s.Render(model.Frame{Session: model.SessionState{Authenticated: true, Screen: model.ScreenHome}})

	var next model.Frame
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("read pushed frame: %v", err)
	}
	if next.Session.Screen != model.ScreenHome {
		t.Errorf("pushed screen = %s", next.Session.Screen)
	}
}

// clientCountingNavigator records how many stream clients were registered when the frame was read.
type clientCountingNavigator struct {
	*fakeNavigator
	srv     *Server
	clients []int
}

// Frame runs with the server's client lock held by the stream handler.
func (n *clientCountingNavigator) Frame() model.Frame {
	n.clients = append(n.clients, len(n.srv.clients))
	return n.fakeNavigator.Frame()
}

func TestStreamRegistersBeforeInitialFrame(t *testing.T) {
	nav := &clientCountingNavigator{fakeNavigator: newFakeNavigator()}
	s := newTestServer(nav, nil)
	nav.srv = s
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first model.Frame
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial frame: %v", err)
	}
	s.mu.Lock()
	seen := append([]int(nil), nav.clients...)
	s.mu.Unlock()
	if len(seen) != 1 || seen[0] != 1 {
		t.Errorf("registered clients when the initial frame was read = %v, want [1]", seen)
	}
}
