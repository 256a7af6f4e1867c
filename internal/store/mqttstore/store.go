// Package mqttstore serves the record store over an MQTT broker.
//
// Each camera's record set is the retained JSON document on topic {root}/{cameraID}.
// The root path is observed through {root}/+ and assembled from a per-camera
// mirror, in the order cameras were first seen. An empty retained payload removes
// a camera. A filter is settled once its SUBACK arrived and the settle window
// elapsed; retained messages are expected to arrive within that window.
package mqttstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/guardvision/guardvision/internal/monitor/core"
	"github.com/guardvision/guardvision/internal/monitor/eventloop"
	"github.com/guardvision/guardvision/internal/monitor/snapshot"
	"github.com/guardvision/guardvision/internal/pkg/metrics"
	"github.com/guardvision/guardvision/pkg/log"
	"github.com/guardvision/guardvision/pkg/mqtt"
	"github.com/guardvision/guardvision/pkg/mqtt/topic"
)

// Options tune the store.
type Options struct {
	Root string
	QoS  int
	// SettleWindow is how long to wait for retained messages after a SUBACK.
	SettleWindow time.Duration
	// ReadTimeout bounds ReadOnce and each SUBSCRIBE round trip.
	ReadTimeout time.Duration
}

type filterState struct {
	filter string
	refs   int

	settled   chan struct{}
	isSettled bool
	attempted bool
	released  bool
	failed    error
}

type subscription struct {
	id       uint64
	path     string
	cameraID string // empty for the fleet
	filter   *filterState
	fn       core.SnapshotFunc

	delivered bool
}

// Store implements core.RecordStore on top of an mqtt.Client.
type Store struct {
	client mqtt.Client
	topics *topic.Builder
	opts   Options
	log    log.Logger

	// ops sends SUBSCRIBE/UNSUBSCRIBE packets one at a time in request order.
	ops *eventloop.Loop

	// deliverMu serializes callbacks so each subscription sees snapshots in arrival order.
	deliverMu sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	subs    map[uint64]*subscription
	filters map[string]*filterState
	mirror  map[string]*snapshot.Node
	order   []string
}

var _ core.RecordStore = (*Store)(nil)

// New returns a store using client. Run must be called for subscriptions to take effect.
func New(client mqtt.Client, opts Options, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if opts.SettleWindow <= 0 {
		opts.SettleWindow = 750 * time.Millisecond
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	logger = logger.WithName("mqttstore")
	return &Store{
		client:  client,
		topics:  topic.NewBuilder(opts.Root),
		opts:    opts,
		log:     logger,
		ops:     eventloop.New(logger),
		subs:    map[uint64]*subscription{},
		filters: map[string]*filterState{},
		mirror:  map[string]*snapshot.Node{},
	}
}

// Run processes subscription packets until ctx is done.
func (s *Store) Run(ctx context.Context) error {
	return s.ops.Run(ctx)
}

// resolve maps a store path to its topic filter and camera.
func (s *Store) resolve(path string) (filter, cameraID string, err error) {
	if s.topics.IsRoot(path) {
		return s.topics.Fleet(), "", nil
	}
	if id, ok := s.topics.CameraID(path); ok {
		return s.topics.Camera(id), id, nil
	}
	return "", "", fmt.Errorf("mqttstore: path %q is neither the root %q nor a camera below it", path, s.topics.Root())
}

func (s *Store) Subscribe(_ context.Context, path string, fn core.SnapshotFunc) (core.Handle, error) {
	filter, cameraID, err := s.resolve(path)
	if err != nil {
		return core.Handle{}, err
	}

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	s.nextID++
	sub := &subscription{id: s.nextID, path: path, cameraID: cameraID, fn: fn}
	sub.filter = s.acquire(filter)
	s.subs[sub.id] = sub

	// A settled filter will not replay retained messages, so serve the mirror now.
	var (
		initial *snapshot.Node
		failed  error
		now     = sub.filter.isSettled
	)
	if now {
		failed = sub.filter.failed
		initial = s.valueLocked(cameraID)
		sub.delivered = true
	}
	s.mu.Unlock()

	if now {
		if failed != nil {
			fn(nil, failed)
		} else {
			fn(initial, nil)
		}
	}
	s.log.Debug("subscribed", "path", path, "filter", filter, "handle", sub.id)
	return core.Handle{ID: sub.id, Path: path}, nil
}

func (s *Store) Unsubscribe(_ context.Context, h core.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[h.ID]
	if !ok {
		return fmt.Errorf("mqttstore: unknown subscription %d", h.ID)
	}
	delete(s.subs, h.ID)
	s.release(sub.filter)
	return nil
}

func (s *Store) ReadOnce(ctx context.Context, path string) (*snapshot.Node, error) {
	filter, cameraID, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	fs := s.acquire(filter)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.release(fs)
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, s.opts.ReadTimeout)
	defer cancel()
	select {
	case <-fs.settled:
	case <-ctx.Done():
		return nil, core.SubscriptionLost(path, ctx.Err())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if fs.failed != nil {
		return nil, fs.failed
	}
	return s.valueLocked(cameraID), nil
}

// PublishCamera replaces a camera's record set. A nil value removes the camera.
func (s *Store) PublishCamera(ctx context.Context, cameraID string, v *snapshot.Node) error {
	var payload []byte
	if !v.IsNull() {
		b, err := v.MarshalJSON()
		if err != nil {
			return err
		}
		payload = b
	}
	if err := s.client.Publish(ctx, s.topics.Camera(cameraID), s.opts.QoS, true, payload); err != nil {
		return fmt.Errorf("publish camera %s: %w", cameraID, err)
	}
	return nil
}

// ConnectionChanged is wired to the client's connection callback.
// Losing the connection marks every subscription as lost; the broker replays
// retained messages after the client reconnects and re-subscribes.
func (s *Store) ConnectionChanged(up bool) {
	if up {
		metrics.StoreConnectivityStatus.Set(1)
		return
	}
	metrics.StoreConnectivityStatus.Set(0)

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	fns := make([]core.SnapshotFunc, 0, len(s.subs))
	paths := make([]string, 0, len(s.subs))
	for _, sub := range s.subs {
		fns = append(fns, sub.fn)
		paths = append(paths, sub.path)
	}
	s.mu.Unlock()

	for i, fn := range fns {
		fn(nil, core.SubscriptionLost(paths[i], errors.New("broker connection lost")))
	}
}

// acquire takes a reference on filter, subscribing on first use. Callers hold mu.
func (s *Store) acquire(filter string) *filterState {
	if fs, ok := s.filters[filter]; ok {
		fs.refs++
		return fs
	}
	fs := &filterState{filter: filter, refs: 1, settled: make(chan struct{})}
	s.filters[filter] = fs
	s.ops.Post(func() { s.activate(fs) })
	return fs
}

// release drops a reference, unsubscribing on last use. Callers hold mu.
func (s *Store) release(fs *filterState) {
	fs.refs--
	if fs.refs > 0 {
		return
	}
	fs.released = true
	if s.filters[fs.filter] == fs {
		delete(s.filters, fs.filter)
	}
	s.pruneLocked()
	s.ops.Post(func() { s.deactivate(fs) })
}

// activate runs on the ops loop.
func (s *Store) activate(fs *filterState) {
	s.mu.Lock()
	released := fs.released
	fs.attempted = !released
	s.mu.Unlock()
	if released {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ReadTimeout)
	defer cancel()
	if err := s.client.Subscribe(ctx, fs.filter, s.opts.QoS, s.onMessage); err != nil {
		s.fail(fs, core.SubscriptionLost(fs.filter, err))
		return
	}
	time.AfterFunc(s.opts.SettleWindow, func() { s.settle(fs) })
}

// deactivate runs on the ops loop.
func (s *Store) deactivate(fs *filterState) {
	s.mu.Lock()
	// A newer state for the same filter owns the broker subscription now.
	_, reused := s.filters[fs.filter]
	attempted := fs.attempted
	s.mu.Unlock()
	if reused || !attempted {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ReadTimeout)
	defer cancel()
	if err := s.client.Unsubscribe(ctx, fs.filter); err != nil {
		s.log.Warn("failed to unsubscribe", "filter", fs.filter, "error", err)
	}
}

func (s *Store) fail(fs *filterState, err error) {
	s.log.Error(err, "subscription failed", "filter", fs.filter)

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	fs.failed = err
	s.markSettledLocked(fs)
	fns := s.pendingLocked(fs)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(nil, err)
	}
}

// settle delivers the mirror to subscriptions that have not heard anything yet.
func (s *Store) settle(fs *filterState) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	if fs.released {
		s.markSettledLocked(fs)
		s.mu.Unlock()
		return
	}
	s.markSettledLocked(fs)
	type delivery struct {
		fn core.SnapshotFunc
		v  *snapshot.Node
	}
	var out []delivery
	for _, sub := range s.subs {
		if sub.filter == fs && !sub.delivered {
			sub.delivered = true
			out = append(out, delivery{fn: sub.fn, v: s.valueLocked(sub.cameraID)})
		}
	}
	s.mu.Unlock()

	s.log.Debug("filter settled", "filter", fs.filter, "pending", len(out))
	for _, d := range out {
		d.fn(d.v, nil)
	}
}

func (s *Store) markSettledLocked(fs *filterState) {
	if !fs.isSettled {
		fs.isSettled = true
		close(fs.settled)
	}
}

func (s *Store) pendingLocked(fs *filterState) []core.SnapshotFunc {
	var fns []core.SnapshotFunc
	for _, sub := range s.subs {
		if sub.filter == fs {
			sub.delivered = true
			fns = append(fns, sub.fn)
		}
	}
	return fns
}

// onMessage is the mqtt handler for every filter. It runs on the client's reader goroutine.
func (s *Store) onMessage(_ context.Context, t string, payload []byte) {
	cameraID, ok := s.topics.CameraID(t)
	if !ok {
		s.log.Debug("ignoring message outside the camera hierarchy", "topic", t)
		return
	}
	v, err := snapshot.Decode(payload)
	if err != nil {
		s.log.Warn("ignoring undecodable camera payload", "cameraID", cameraID, "error", err)
		return
	}

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	s.storeLocked(cameraID, v)
	type delivery struct {
		fn core.SnapshotFunc
		v  *snapshot.Node
	}
	var out []delivery
	var fleet *snapshot.Node
	for _, sub := range s.subs {
		switch {
		case sub.cameraID == cameraID:
			// The retained message is the complete value, settled or not.
			sub.delivered = true
			out = append(out, delivery{fn: sub.fn, v: v})
		case sub.cameraID == "" && sub.filter.isSettled:
			if fleet == nil {
				fleet = s.valueLocked("")
			}
			out = append(out, delivery{fn: sub.fn, v: fleet})
		}
	}
	s.mu.Unlock()

	for _, d := range out {
		d.fn(d.v, nil)
	}
}

func (s *Store) storeLocked(cameraID string, v *snapshot.Node) {
	if v.IsNull() {
		delete(s.mirror, cameraID)
		s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == cameraID })
		return
	}
	if _, known := s.mirror[cameraID]; !known {
		s.order = append(s.order, cameraID)
	}
	s.mirror[cameraID] = v
}

// valueLocked returns the mirrored camera, or the assembled fleet when cameraID is empty.
func (s *Store) valueLocked(cameraID string) *snapshot.Node {
	if cameraID != "" {
		return s.mirror[cameraID]
	}
	if len(s.order) == 0 {
		return nil
	}
	members := make([]snapshot.Member, 0, len(s.order))
	for _, id := range s.order {
		members = append(members, snapshot.Field(id, s.mirror[id]))
	}
	return snapshot.Object(members...)
}

// pruneLocked drops mirrored cameras no live filter keeps up to date.
func (s *Store) pruneLocked() {
	if _, ok := s.filters[s.topics.Fleet()]; ok {
		return
	}
	for _, id := range slices.Clone(s.order) {
		if _, ok := s.filters[s.topics.Camera(id)]; !ok {
			s.storeLocked(id, nil)
		}
	}
}
