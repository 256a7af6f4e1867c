// Package core declares the collaborators the monitor consumes and the errors it reports.
package core

import (
	"context"

	"github.com/guardvision/guardvision/internal/monitor/model"
	"github.com/guardvision/guardvision/internal/monitor/snapshot"
)

// SnapshotFunc receives the complete current value under a subscribed path.
// A nil value means the path is empty. A non-nil err (wrapping ErrSubscriptionLost)
// means the subscription broke and no further snapshots will follow.
//
// Stores may invoke the callback from any goroutine but must not invoke it
// concurrently for the same subscription.
type SnapshotFunc func(value *snapshot.Node, err error)

// Handle identifies one live subscription.
type Handle struct {
	ID   uint64
	Path string
}

// RecordStore is the push-based hierarchical store holding camera records.
type RecordStore interface {
	// Subscribe registers fn for path. It must not block on the network.
	Subscribe(ctx context.Context, path string, fn SnapshotFunc) (Handle, error)
	// Unsubscribe releases h. Callbacks already in flight may still arrive.
	Unsubscribe(ctx context.Context, h Handle) error
	// ReadOnce returns the current value under path, or nil when it is empty.
	ReadOnce(ctx context.Context, path string) (*snapshot.Node, error)
}

// Verifier checks operator credentials. A rejection wraps ErrAuthenticationRejected.
type Verifier interface {
	Verify(ctx context.Context, identifier, secret string) error
}

// Renderer draws frames. Render is called from the event loop and must not block.
type Renderer interface {
	Render(frame model.Frame)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(model.Frame)

func (f RendererFunc) Render(frame model.Frame) { f(frame) }
