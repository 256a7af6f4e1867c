package feed

import (
	"context"
	"sync/atomic"

	"github.com/guardvision/guardvision/internal/monitor/model"
	"github.com/guardvision/guardvision/internal/monitor/snapshot"
	"github.com/guardvision/guardvision/internal/pkg/metrics"
)

// Fleet keeps the latest record of every camera live.
// Each snapshot rebuilds the view wholesale and publishes it with a single pointer swap.
type Fleet struct {
	subscription
	view atomic.Pointer[model.FleetView]
}

var _ Feed = (*Fleet)(nil)

// OpenFleet subscribes to the store root.
func OpenFleet(ctx context.Context, deps Deps, onChange func()) *Fleet {
	deps = deps.withDefaults()
	f := &Fleet{}
	f.subscription = subscription{
		deps:     deps,
		kind:     metrics.FeedFleet,
		path:     deps.Root,
		onChange: onChange,
	}
	f.log = deps.Log.WithName("feed.fleet").WithValues("path", deps.Root)
	f.apply = f.applySnapshot
	f.markLost = f.markStale

	f.view.Store(&model.FleetView{CameraIDs: []string{}, Latest: map[string]model.DetectionRecord{}, Loading: true})
	f.open(ctx)
	return f
}

// View returns the current fleet view. It is safe from any goroutine; the value must not be modified.
func (f *Fleet) View() *model.FleetView { return f.view.Load() }

func (f *Fleet) applySnapshot(v *snapshot.Node) {
	ids, latest := f.deps.Normalizer.Fleet(v)
	f.view.Store(&model.FleetView{
		CameraIDs: ids,
		Latest:    latest,
		UpdatedAt: f.deps.now(),
	})
}

func (f *Fleet) markStale() {
	next := *f.view.Load()
	next.Loading = false
	next.Stale = true
	f.view.Store(&next)
}
