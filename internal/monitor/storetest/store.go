// Package storetest provides a scriptable core.RecordStore for tests.
package storetest

import (
	"context"
	"errors"
	"sync"

	"github.com/guardvision/guardvision/internal/monitor/core"
	"github.com/guardvision/guardvision/internal/monitor/snapshot"
)

type subscription struct {
	path string
	fn   core.SnapshotFunc
}

// Store records every call and delivers snapshots only when told to.
type Store struct {
	mu sync.Mutex

	nextID uint64
	active map[uint64]subscription
	// released keeps unsubscribed callbacks so tests can simulate late delivery.
	released map[uint64]subscription
	values   map[string]*snapshot.Node

	subscribes   int
	unsubscribes int
	reads        int

	// SubscribeErr, when set, fails every Subscribe.
	SubscribeErr error
	// ReadErr, when set, fails every ReadOnce.
	ReadErr error
	// ReadHook runs inside ReadOnce before the value is returned.
	ReadHook func(path string)
}

var _ core.RecordStore = (*Store)(nil)

func New() *Store {
	return &Store{
		active:   map[uint64]subscription{},
		released: map[uint64]subscription{},
		values:   map[string]*snapshot.Node{},
	}
}

func (s *Store) Subscribe(_ context.Context, path string, fn core.SnapshotFunc) (core.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribes++
	if s.SubscribeErr != nil {
		return core.Handle{}, s.SubscribeErr
	}
	s.nextID++
	s.active[s.nextID] = subscription{path: path, fn: fn}
	return core.Handle{ID: s.nextID, Path: path}, nil
}

func (s *Store) Unsubscribe(_ context.Context, h core.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribes++
	sub, ok := s.active[h.ID]
	if !ok {
		return errors.New("storetest: unknown handle")
	}
	delete(s.active, h.ID)
	s.released[h.ID] = sub
	return nil
}

func (s *Store) ReadOnce(ctx context.Context, path string) (*snapshot.Node, error) {
	s.mu.Lock()
	s.reads++
	hook, err, v := s.ReadHook, s.ReadErr, s.values[path]
	s.mu.Unlock()

	if hook != nil {
		hook(path)
	}
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return v, nil
}

// SetValue sets what ReadOnce returns for path.
func (s *Store) SetValue(path string, v *snapshot.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[path] = v
}

// Emit delivers v to every active subscription of path and returns how many received it.
func (s *Store) Emit(path string, v *snapshot.Node) int {
	return s.each(path, func(fn core.SnapshotFunc) { fn(v, nil) })
}

// Fail delivers err to every active subscription of path.
func (s *Store) Fail(path string, err error) int {
	return s.each(path, func(fn core.SnapshotFunc) { fn(nil, err) })
}

// EmitTo delivers v to h even when h was already unsubscribed.
func (s *Store) EmitTo(h core.Handle, v *snapshot.Node) bool {
	s.mu.Lock()
	sub, ok := s.active[h.ID]
	if !ok {
		sub, ok = s.released[h.ID]
	}
	s.mu.Unlock()
	if ok {
		sub.fn(v, nil)
	}
	return ok
}

func (s *Store) each(path string, deliver func(core.SnapshotFunc)) int {
	s.mu.Lock()
	var fns []core.SnapshotFunc
	for _, sub := range s.active {
		if sub.path == path {
			fns = append(fns, sub.fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		deliver(fn)
	}
	return len(fns)
}

// Active returns the handles of open subscriptions.
func (s *Store) Active() []core.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Handle, 0, len(s.active))
	for id, sub := range s.active {
		out = append(out, core.Handle{ID: id, Path: sub.path})
	}
	return out
}

// Counts returns the number of Subscribe, Unsubscribe and ReadOnce calls.
func (s *Store) Counts() (subscribes, unsubscribes, reads int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribes, s.unsubscribes, s.reads
}
