// Package navigator owns the session state and the single active feed.
//
// Every exported method may be called from any goroutine; state changes are
// marshalled onto the event loop. The navigator guarantees that at most one
// feed is open and that the outgoing feed is closed before the next one opens.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/guardvision/guardvision/internal/monitor/core"
	"github.com/guardvision/guardvision/internal/monitor/eventloop"
	"github.com/guardvision/guardvision/internal/monitor/feed"
	"github.com/guardvision/guardvision/internal/monitor/model"
	"github.com/guardvision/guardvision/internal/monitor/navigation"
	"github.com/guardvision/guardvision/internal/monitor/normalize"
	"github.com/guardvision/guardvision/internal/pkg/metrics"
	"github.com/guardvision/guardvision/pkg/log"
)

// Messages shown to the operator after a failed login.
const (
	MessageRejected    = "Invalid credentials. Access denied."
	MessageUnavailable = "Unable to verify credentials. Try again later."
)

// Config wires a Navigator.
type Config struct {
	Loop     *eventloop.Loop
	Store    core.RecordStore
	Verifier core.Verifier
	Renderer core.Renderer
	// Root is the store path holding every camera; defaults to model.DefaultRoot.
	Root       string
	Normalizer *normalize.Normalizer
	Log        log.Logger
	Now        func() time.Time
}

// Navigator drives navigation and feed lifecycles.
type Navigator struct {
	ctx      context.Context
	loop     *eventloop.Loop
	deps     feed.Deps
	verifier core.Verifier
	renderer core.Renderer
	log      log.Logger

	// Loop-owned.
	session model.SessionState
	camera  *feed.Camera
	fleet   *feed.Fleet
	message string
	// switching suppresses frames published by feeds opened mid-transition.
	switching bool

	frame atomic.Pointer[model.Frame]
}

// New returns a Navigator on the Login screen. Feeds it opens are bound to ctx.
func New(ctx context.Context, cfg Config) *Navigator {
	logger := cfg.Log
	if logger == nil {
		logger = log.NewNopLogger()
	}
	root := cfg.Root
	if root == "" {
		root = model.DefaultRoot
	}
	norm := cfg.Normalizer
	if norm == nil {
		norm = normalize.New(logger, normalize.WithDropObserver(func(*core.MalformedRecordError) {
			metrics.RecordsDropped.Inc()
		}))
	}
	renderer := cfg.Renderer
	if renderer == nil {
		renderer = core.RendererFunc(func(model.Frame) {})
	}

	n := &Navigator{
		ctx:  ctx,
		loop: cfg.Loop,
		deps: feed.Deps{
			Loop:       cfg.Loop,
			Store:      cfg.Store,
			Normalizer: norm,
			Log:        logger,
			Root:       root,
			Now:        cfg.Now,
		},
		verifier: cfg.Verifier,
		renderer: renderer,
		log:      logger.WithName("navigator"),
		session:  model.InitialSession(),
	}
	n.frame.Store(&model.Frame{Session: n.session})
	return n
}

// Frame returns the most recently published frame.
func (n *Navigator) Frame() model.Frame {
	return *n.frame.Load()
}

// Login verifies the credentials and moves to Home on success.
// On failure the session is unchanged, a message is published, and the error is returned;
// rejected credentials match core.ErrAuthenticationRejected.
func (n *Navigator) Login(ctx context.Context, identifier, secret string) error {
	// Check before verifying so a desynchronized caller fails fast.
	if err := n.loop.Call(ctx, func() error {
		if n.session.Screen != model.ScreenLogin {
			return n.reject(navigation.Login(identifier), core.NewInvalidTransition(string(navigation.EventLogin), n.session.Screen, ""))
		}
		return nil
	}); err != nil {
		return err
	}

	start := time.Now()
	verr := n.verifier.Verify(ctx, identifier, secret)
	metrics.LoginLatency.Observe(time.Since(start).Seconds())

	if verr != nil {
		result, msg := "error", MessageUnavailable
		if errors.Is(verr, core.ErrAuthenticationRejected) {
			result, msg = "rejected", MessageRejected
		}
		metrics.LoginAttempts.WithLabelValues(result).Inc()
		n.log.Warn("login failed", "operator", identifier, "error", verr)

		if err := n.loop.Call(ctx, func() error {
			// Another login may have succeeded while this one was being verified.
			if n.session.Screen != model.ScreenLogin {
				return nil
			}
			n.message = msg
			n.publish()
			return nil
		}); err != nil {
			return err
		}
		return fmt.Errorf("login %q: %w", identifier, verr)
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	n.log.Info("operator logged in", "operator", identifier)
	return n.dispatch(ctx, navigation.Login(identifier))
}

// OpenCameraList moves from Home to CameraList.
func (n *Navigator) OpenCameraList(ctx context.Context) error {
	return n.dispatch(ctx, navigation.OpenCameraList())
}

// SelectCamera moves from CameraList to the detail screen of cameraID.
func (n *Navigator) SelectCamera(ctx context.Context, cameraID string) error {
	return n.dispatch(ctx, navigation.SelectCamera(cameraID))
}

// Back returns to the previous screen.
func (n *Navigator) Back(ctx context.Context) error {
	return n.dispatch(ctx, navigation.Back())
}

// Logout closes any feed and returns to Login.
func (n *Navigator) Logout(ctx context.Context) error {
	return n.dispatch(ctx, navigation.Logout())
}

// Refresh re-reads the active feed once.
func (n *Navigator) Refresh(ctx context.Context) error {
	return n.loop.Call(ctx, func() error {
		f := n.activeFeed()
		if f == nil {
			return core.ErrNoActiveFeed
		}
		f.Refresh()
		return nil
	})
}

// Shutdown closes the active feed.
func (n *Navigator) Shutdown(ctx context.Context) error {
	return n.loop.Call(ctx, func() error {
		n.closeFeeds()
		return nil
	})
}

func (n *Navigator) dispatch(ctx context.Context, ev navigation.Event) error {
	return n.loop.Call(ctx, func() error {
		return n.apply(ctx, ev)
	})
}

// apply runs on the loop.
func (n *Navigator) apply(ctx context.Context, ev navigation.Event) error {
	next, err := navigation.Transition(ctx, n.session, ev)
	if err != nil {
		return n.reject(ev, err)
	}
	metrics.Transitions.WithLabelValues(string(ev.Name), "ok").Inc()
	n.log.Debug("navigated", "event", string(ev.Name), "from", string(n.session.Screen), "to", string(next.Screen))

	n.session = next
	n.message = ""
	n.switching = true
	n.switchFeed(next)
	n.switching = false
	n.publish()
	return nil
}

func (n *Navigator) reject(ev navigation.Event, err error) error {
	metrics.Transitions.WithLabelValues(string(ev.Name), "invalid").Inc()
	n.log.Error(err, "navigation event rejected", "event", string(ev.Name), "screen", string(n.session.Screen))
	return err
}

// switchFeed closes the outgoing feed before opening the one next needs.
func (n *Navigator) switchFeed(next model.SessionState) {
	switch {
	case next.Screen.ShowsFleet():
		if n.fleet != nil {
			return
		}
		n.closeFeeds()
		n.fleet = feed.OpenFleet(n.ctx, n.deps, n.feedChanged)

	case next.Screen == model.ScreenCameraDetail:
		if n.camera != nil && n.camera.CameraID() == next.SelectedCameraID {
			return
		}
		n.closeFeeds()
		n.camera = feed.OpenCamera(n.ctx, n.deps, next.SelectedCameraID, n.feedChanged)

	default:
		n.closeFeeds()
	}
}

func (n *Navigator) closeFeeds() {
	if n.camera != nil {
		n.camera.Close()
		n.camera = nil
	}
	if n.fleet != nil {
		n.fleet.Close()
		n.fleet = nil
	}
}

func (n *Navigator) activeFeed() feed.Feed {
	switch {
	case n.camera != nil:
		return n.camera
	case n.fleet != nil:
		return n.fleet
	}
	return nil
}

func (n *Navigator) feedChanged() {
	if !n.switching {
		n.publish()
	}
}

// publish runs on the loop.
func (n *Navigator) publish() {
	frame := model.Frame{Session: n.session, Message: n.message}
	if n.fleet != nil {
		frame.Fleet = n.fleet.View()
	}
	if n.camera != nil {
		frame.Camera = n.camera.View()
	}
	n.frame.Store(&frame)
	n.renderer.Render(frame)
}
