package feed

import (
	"context"
	"sync/atomic"

	"github.com/guardvision/guardvision/internal/monitor/model"
	"github.com/guardvision/guardvision/internal/monitor/snapshot"
	"github.com/guardvision/guardvision/internal/pkg/metrics"
)

// Camera keeps one camera's records live.
type Camera struct {
	subscription
	cameraID string
	view     atomic.Pointer[model.CameraFeed]
}

var _ Feed = (*Camera)(nil)

// OpenCamera subscribes to cameraID. The view is loading until the first snapshot.
// onChange runs on the loop after every view update.
func OpenCamera(ctx context.Context, deps Deps, cameraID string, onChange func()) *Camera {
	deps = deps.withDefaults()
	c := &Camera{cameraID: cameraID}
	c.subscription = subscription{
		deps:     deps,
		kind:     metrics.FeedCamera,
		path:     model.CameraPath(deps.Root, cameraID),
		onChange: onChange,
	}
	c.log = deps.Log.WithName("feed.camera").WithValues("cameraID", cameraID, "path", c.path)
	c.apply = c.applySnapshot
	c.markLost = c.markStale

	c.view.Store(&model.CameraFeed{CameraID: cameraID, Records: []model.DetectionRecord{}, Loading: true})
	c.open(ctx)
	return c
}

// CameraID returns the subscribed camera.
func (c *Camera) CameraID() string { return c.cameraID }

// View returns the current feed. It is safe from any goroutine; the value must not be modified.
func (c *Camera) View() *model.CameraFeed { return c.view.Load() }

func (c *Camera) applySnapshot(v *snapshot.Node) {
	c.view.Store(&model.CameraFeed{
		CameraID:  c.cameraID,
		Records:   c.deps.Normalizer.Records(c.cameraID, v),
		UpdatedAt: c.deps.now(),
	})
}

func (c *Camera) markStale() {
	next := *c.view.Load()
	next.Loading = false
	next.Stale = true
	c.view.Store(&next)
}
