package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/guardvision/guardvision/internal/monitor/eventloop"
	"github.com/guardvision/guardvision/internal/monitor/model"
	"github.com/guardvision/guardvision/internal/monitor/snapshot"
	"github.com/guardvision/guardvision/internal/monitor/storetest"
)

const root = "latest_faces"

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func record(ts int64, weapon string) *snapshot.Node {
	return snapshot.Object(
		snapshot.Field("timestamp", snapshot.Int(ts)),
		snapshot.Field("violence", snapshot.Bool(weapon != "none")),
		snapshot.Field("weapon", snapshot.Str(weapon)),
		snapshot.Field("image_base64", snapshot.Str("img")),
	)
}

type harness struct {
	loop    *eventloop.Loop
	store   *storetest.Store
	deps    Deps
	changes int
}

func newHarness() *harness {
	h := &harness{loop: eventloop.New(nil), store: storetest.New()}
	h.deps = Deps{Loop: h.loop, Store: h.store, Root: root, Now: func() time.Time { return epoch }}
	return h
}

func (h *harness) onChange() { h.changes++ }

// awaitEvents steps the loop until at least one event ran, for results posted by goroutines.
func (h *harness) awaitEvents(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.loop.RunPending() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for loop events")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCameraLoadsThenReplacesWholesale(t *testing.T) {
	h := newHarness()
	c := OpenCamera(context.Background(), h.deps, "3", h.onChange)

	if v := c.View(); !v.Loading || len(v.Records) != 0 {
		t.Fatalf("initial view = %+v, want loading and empty", v)
	}

	path := model.CameraPath(root, "3")
	h.store.Emit(path, snapshot.Object(snapshot.Field("k2", record(2, "gun")), snapshot.Field("k1", record(1, "knife"))))
	h.loop.RunPending()

	v := c.View()
	if v.Loading || v.Stale {
		t.Errorf("view flags = loading %v stale %v", v.Loading, v.Stale)
	}
	if got := keys(v.Records); !cmp.Equal(got, []string{"k2", "k1"}) {
		t.Errorf("keys = %v", got)
	}
	if !v.UpdatedAt.Equal(epoch) {
		t.Errorf("UpdatedAt = %v", v.UpdatedAt)
	}

	// A later snapshot supersedes, even when it has fewer records.
	h.store.Emit(path, snapshot.Object(snapshot.Field("k9", record(9, "none"))))
	h.loop.RunPending()
	if got := keys(c.View().Records); !cmp.Equal(got, []string{"k9"}) {
		t.Errorf("keys after second snapshot = %v", got)
	}
	if h.changes != 2 {
		t.Errorf("onChange called %d times, want 2", h.changes)
	}
}

func TestCameraNullSnapshotIsEmpty(t *testing.T) {
	h := newHarness()
	c := OpenCamera(context.Background(), h.deps, "3", nil)
	h.store.Emit(model.CameraPath(root, "3"), nil)
	h.loop.RunPending()

	v := c.View()
	if v.Loading || v.Records == nil || len(v.Records) != 0 {
		t.Errorf("view = %+v", v)
	}
}

func TestCloseIgnoresLateCallbacks(t *testing.T) {
	h := newHarness()
	c := OpenCamera(context.Background(), h.deps, "3", h.onChange)
	handle := h.store.Active()[0]

	// Queued before Close, run after it.
	h.store.Emit(handle.Path, snapshot.Object(snapshot.Field("k1", record(1, "knife"))))
	c.Close()
	// Delivered by a transport that has not stopped yet.
	if !h.store.EmitTo(handle, snapshot.Object(snapshot.Field("k2", record(2, "gun")))) {
		t.Fatal("handle unknown to store")
	}
	h.loop.RunPending()

	v := c.View()
	if !v.Loading || len(v.Records) != 0 {
		t.Errorf("closed feed mutated: %+v", v)
	}
	if h.changes != 0 {
		t.Errorf("onChange called %d times after close", h.changes)
	}

	subs, unsubs, _ := h.store.Counts()
	c.Close()
	if _, again, _ := h.store.Counts(); subs != 1 || unsubs != 1 || again != 1 {
		t.Errorf("subscribes=%d unsubscribes=%d (after second close %d)", subs, unsubs, again)
	}
}

func TestFleetAggregatesLatest(t *testing.T) {
	h := newHarness()
	f := OpenFleet(context.Background(), h.deps, h.onChange)

	h.store.Emit(root, snapshot.Object(
		snapshot.Field("3", snapshot.Object(
			snapshot.Field("a", record(5, "knife")),
			snapshot.Field("b", record(9, "gun")),
		)),
		snapshot.Field("4", snapshot.Object()),
	))
	h.loop.RunPending()

	v := f.View()
	if diff := cmp.Diff([]string{"3", "4"}, v.CameraIDs); diff != "" {
		t.Errorf("ids (-want +got):\n%s", diff)
	}
	if r, ok := v.LatestFor("3"); !ok || r.Key != "a" {
		t.Errorf("latest for 3 = %+v, %v", r, ok)
	}
	if _, ok := v.LatestFor("4"); ok || !v.Known("4") {
		t.Errorf("camera 4 should be known without a latest record")
	}
}

func TestFleetViewSwapIsAtomic(t *testing.T) {
	h := newHarness()
	f := OpenFleet(context.Background(), h.deps, nil)
	h.store.Emit(root, snapshot.Object(snapshot.Field("1", snapshot.Object(snapshot.Field("a", record(1, "x"))))))
	h.loop.RunPending()

	before := f.View()
	h.store.Emit(root, snapshot.Object(snapshot.Field("2", snapshot.Object())))
	h.loop.RunPending()

	if !before.Known("1") || before.Known("2") {
		t.Errorf("previously published view was modified: %+v", before)
	}
	if after := f.View(); after.Known("1") || !after.Known("2") {
		t.Errorf("new view = %+v", after)
	}
}

func TestSubscriptionLostFreezesAndRefreshRecovers(t *testing.T) {
	h := newHarness()
	c := OpenCamera(context.Background(), h.deps, "3", nil)
	path := model.CameraPath(root, "3")

	h.store.Emit(path, snapshot.Object(snapshot.Field("k1", record(1, "knife"))))
	h.store.Fail(path, errors.New("connection reset"))
	h.loop.RunPending()

	v := c.View()
	if !v.Stale || len(v.Records) != 1 {
		t.Fatalf("view after loss = %+v, want stale with last records", v)
	}

	h.store.SetValue(path, snapshot.Object(snapshot.Field("k2", record(2, "gun")), snapshot.Field("k1", record(1, "knife"))))
	c.Refresh()
	h.awaitEvents(t)

	v = c.View()
	if v.Stale || !cmp.Equal(keys(v.Records), []string{"k2", "k1"}) {
		t.Errorf("view after refresh = %+v", v)
	}
	if subs, unsubs, reads := h.store.Counts(); subs != 2 || unsubs != 1 || reads != 1 {
		t.Errorf("counts = %d/%d/%d, want resubscribe and one read", subs, unsubs, reads)
	}
}

func TestRefreshDoesNotOverrideNewerSnapshot(t *testing.T) {
	h := newHarness()
	c := OpenCamera(context.Background(), h.deps, "3", nil)
	path := model.CameraPath(root, "3")

	release := make(chan struct{})
	h.store.ReadHook = func(string) { <-release }
	h.store.SetValue(path, snapshot.Object(snapshot.Field("old", record(1, "x"))))

	c.Refresh()
	h.store.Emit(path, snapshot.Object(snapshot.Field("new", record(2, "y"))))
	h.loop.RunPending()
	close(release)
	h.awaitEvents(t)

	if got := keys(c.View().Records); !cmp.Equal(got, []string{"new"}) {
		t.Errorf("keys = %v, refresh result should have been discarded", got)
	}
}

func TestSubscribeFailureMarksStale(t *testing.T) {
	h := newHarness()
	h.store.SubscribeErr = errors.New("not connected")
	f := OpenFleet(context.Background(), h.deps, nil)

	if v := f.View(); !v.Stale || v.Loading {
		t.Errorf("view = %+v, want stale and not loading", v)
	}
}

func keys(rs []model.DetectionRecord) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Key)
	}
	return out
}

func TestFailedRefreshKeepsLiveSubscription(t *testing.T) {
	h := newHarness()
	c := OpenCamera(context.Background(), h.deps, "3", nil)
	path := model.CameraPath(root, "3")

	h.store.Emit(path, snapshot.Object(snapshot.Field("a", record(1, "knife"))))
	h.loop.RunPending()

	h.store.ReadErr = errors.New("timeout")
	c.Refresh()
	h.awaitEvents(t)
	if v := c.View(); !v.Stale || len(v.Records) != 1 {
		t.Fatalf("view after failed read = %+v, want stale with last records", v)
	}

	h.store.Emit(path, snapshot.Object(snapshot.Field("b", record(2, "gun")), snapshot.Field("a", record(1, "knife"))))
	h.loop.RunPending()
	if v := c.View(); v.Stale || !cmp.Equal(keys(v.Records), []string{"b", "a"}) {
		t.Fatalf("view after live push = %+v", v)
	}

	h.store.ReadErr = nil
	h.store.SetValue(path, snapshot.Object(snapshot.Field("b", record(2, "gun")), snapshot.Field("a", record(1, "knife"))))
	c.Refresh()
	h.awaitEvents(t)

	if subs, unsubs, reads := h.store.Counts(); subs != 1 || unsubs != 0 || reads != 2 {
		t.Errorf("counts = %d/%d/%d, want the original subscription kept and two reads", subs, unsubs, reads)
	}
	if len(h.store.Active()) != 1 {
		t.Errorf("active handles = %v", h.store.Active())
	}
}
