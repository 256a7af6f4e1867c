// Package feed keeps camera and fleet views live on top of a RecordStore.
//
// Open, Close and Refresh must run on the event loop. Store callbacks are
// re-posted to the loop and checked against a per-subscription liveness flag,
// so a callback arriving after Close never touches the view.
package feed

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/guardvision/guardvision/internal/monitor/core"
	"github.com/guardvision/guardvision/internal/monitor/eventloop"
	"github.com/guardvision/guardvision/internal/monitor/normalize"
	"github.com/guardvision/guardvision/internal/monitor/snapshot"
	"github.com/guardvision/guardvision/internal/pkg/metrics"
	"github.com/guardvision/guardvision/pkg/log"
)

// Deps are the collaborators shared by every subscription.
type Deps struct {
	Loop       *eventloop.Loop
	Store      core.RecordStore
	Normalizer *normalize.Normalizer
	Log        log.Logger
	// Root is the store path holding every camera.
	Root string
	// Now defaults to time.Now.
	Now func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = log.NewNopLogger()
	}
	if d.Normalizer == nil {
		d.Normalizer = normalize.New(d.Log)
	}
	return d
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Feed is an open subscription as seen by its owner.
type Feed interface {
	// Kind is metrics.FeedCamera or metrics.FeedFleet.
	Kind() string
	Refresh()
	Close()
}

// subscription is the lifecycle shared by Camera and Fleet.
// Every field except live is owned by the loop.
type subscription struct {
	deps Deps
	kind string
	path string
	log  log.Logger

	live atomic.Bool

	ctx       context.Context
	cancel    context.CancelFunc
	handle    core.Handle
	hasHandle bool
	broken    bool
	// applied counts live snapshots so a refresh result older than the latest push is discarded.
	applied uint64

	apply    func(v *snapshot.Node)
	markLost func()
	onChange func()
}

func (s *subscription) Kind() string { return s.kind }

func (s *subscription) open(parent context.Context) {
	s.ctx, s.cancel = context.WithCancel(parent)
	s.live.Store(true)
	metrics.ActiveSubscriptions.WithLabelValues(s.kind).Inc()
	s.log.Debug("opening subscription")
	s.subscribe()
}

func (s *subscription) subscribe() {
	h, err := s.deps.Store.Subscribe(s.ctx, s.path, s.deliver)
	if err != nil {
		s.lost(err)
		return
	}
	s.handle, s.hasHandle, s.broken = h, true, false
}

// deliver is the store callback. It may run on any goroutine.
func (s *subscription) deliver(v *snapshot.Node, err error) {
	if !s.live.Load() {
		metrics.LateCallbacks.WithLabelValues(s.kind).Inc()
		return
	}
	s.deps.Loop.Post(func() {
		if !s.live.Load() {
			metrics.LateCallbacks.WithLabelValues(s.kind).Inc()
			s.log.Debug("ignoring snapshot for closed subscription")
			return
		}
		if err != nil {
			s.lost(err)
			return
		}
		s.applied++
		s.broken = false
		s.apply(v)
		metrics.SnapshotsApplied.WithLabelValues(s.kind).Inc()
		s.changed()
	})
}

func (s *subscription) lost(err error) {
	if !errors.Is(err, core.ErrSubscriptionLost) {
		err = core.SubscriptionLost(s.path, err)
	}
	s.log.Warn("subscription lost; view frozen until refresh", "error", err)
	s.broken = true
	s.markLost()
	s.changed()
}

// Refresh re-reads the path once. A broken live subscription is re-established first.
func (s *subscription) Refresh() {
	if !s.live.Load() {
		return
	}
	if s.broken {
		s.releaseHandle()
		s.subscribe()
	}

	ctx, since := s.ctx, s.applied
	s.log.Debug("refreshing")
	go func() {
		v, err := s.deps.Store.ReadOnce(ctx, s.path)
		s.deps.Loop.Post(func() {
			if !s.live.Load() || ctx.Err() != nil {
				metrics.LateCallbacks.WithLabelValues(s.kind).Inc()
				return
			}
			if err != nil {
				// The live subscription is untouched; only this read failed.
				s.log.Warn("refresh read failed; showing last known data", "error", err)
				s.markLost()
				s.changed()
				return
			}
			if s.applied != since {
				s.log.Debug("discarding refresh superseded by a live snapshot")
				return
			}
			s.apply(v)
			s.changed()
		})
	}()
}

// Close releases the subscription. It is idempotent.
func (s *subscription) Close() {
	if !s.live.Swap(false) {
		return
	}
	s.cancel()
	metrics.ActiveSubscriptions.WithLabelValues(s.kind).Dec()
	s.releaseHandle()
	s.log.Debug("subscription closed")
}

func (s *subscription) releaseHandle() {
	if !s.hasHandle {
		return
	}
	s.hasHandle = false
	if err := s.deps.Store.Unsubscribe(context.WithoutCancel(s.ctx), s.handle); err != nil {
		s.log.Error(err, "failed to unsubscribe", "handle", s.handle.ID)
	}
}

func (s *subscription) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}
