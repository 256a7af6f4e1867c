// Package memstore is an in-process RecordStore.
//
// The whole tree lives in one immutable snapshot.Node; writes swap in a new
// root and notify every subscription whose path overlaps the written path.
// It backs local development, demos and tests.
package memstore

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/guardvision/guardvision/internal/monitor/core"
	"github.com/guardvision/guardvision/internal/monitor/snapshot"
	"github.com/guardvision/guardvision/pkg/log"
)

type subscription struct {
	path []string
	fn   core.SnapshotFunc
}

// Store is safe for concurrent use.
type Store struct {
	log log.Logger

	// notifyMu serializes writes with their notifications so subscribers see snapshots in write order.
	notifyMu sync.Mutex

	mu     sync.RWMutex
	root   *snapshot.Node
	subs   map[uint64]subscription
	nextID uint64

	lastPush int64
	pushSeq  int
}

var _ core.RecordStore = (*Store)(nil)

// New returns an empty store.
func New(logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Store{
		log:  logger.WithName("memstore"),
		root: snapshot.Object(),
		subs: map[uint64]subscription{},
	}
}

// Subscribe registers fn and immediately delivers the current value of path.
func (s *Store) Subscribe(_ context.Context, path string, fn core.SnapshotFunc) (core.Handle, error) {
	segs := split(path)

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = subscription{path: segs, fn: fn}
	current := s.root.Get(segs...)
	s.mu.Unlock()

	fn(current, nil)
	return core.Handle{ID: id, Path: path}, nil
}

func (s *Store) Unsubscribe(_ context.Context, h core.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[h.ID]; !ok {
		return fmt.Errorf("memstore: unknown subscription %d", h.ID)
	}
	delete(s.subs, h.ID)
	return nil
}

func (s *Store) ReadOnce(ctx context.Context, path string) (*snapshot.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root.Get(split(path)...), nil
}

// Set replaces the value at path. A nil value removes it.
func (s *Store) Set(path string, v *snapshot.Node) {
	segs := split(path)
	s.write(segs, func(root *snapshot.Node) *snapshot.Node {
		return setIn(root, segs, v)
	})
}

// Remove deletes path.
func (s *Store) Remove(path string) {
	s.Set(path, nil)
}

// Push adds a record under parent so that it iterates first. An empty key is generated
// from the clock and increases with every call. It returns the key used.
func (s *Store) Push(parent, key string, record *snapshot.Node) string {
	if key == "" {
		key = s.nextPushKey()
	}
	segs := split(parent)
	s.write(segs, func(root *snapshot.Node) *snapshot.Node {
		return setIn(root, segs, root.Get(segs...).Prepend(key, record))
	})
	return key
}

// Replace swaps the whole tree and notifies every subscription.
func (s *Store) Replace(root *snapshot.Node) {
	s.write(nil, func(*snapshot.Node) *snapshot.Node { return root })
}

func (s *Store) nextPushKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UnixMilli()
	if now <= s.lastPush {
		s.pushSeq++
	} else {
		s.lastPush, s.pushSeq = now, 0
	}
	return "-" + strconv.FormatInt(s.lastPush, 36) + fmt.Sprintf("%04d", s.pushSeq)
}

func (s *Store) write(changed []string, mutate func(*snapshot.Node) *snapshot.Node) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	type delivery struct {
		fn core.SnapshotFunc
		v  *snapshot.Node
	}

	s.mu.Lock()
	s.root = mutate(s.root)
	var out []delivery
	for _, sub := range s.subs {
		if overlaps(sub.path, changed) {
			out = append(out, delivery{fn: sub.fn, v: s.root.Get(sub.path...)})
		}
	}
	s.mu.Unlock()

	for _, d := range out {
		d.fn(d.v, nil)
	}
}

// LoadFile replaces the tree with the JSON document at path.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	root, err := snapshot.Decode(data)
	if err != nil {
		return fmt.Errorf("decode seed file %s: %w", path, err)
	}
	s.Replace(root)
	s.log.Info("loaded seed file", "path", path, "topLevelKeys", root.Len())
	return nil
}

func split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// overlaps reports whether a and b are equal or one is an ancestor of the other.
func overlaps(a, b []string) bool {
	n := min(len(a), len(b))
	for i := range n {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func setIn(n *snapshot.Node, segs []string, v *snapshot.Node) *snapshot.Node {
	if len(segs) == 0 {
		return v
	}
	child := setIn(n.Child(segs[0]), segs[1:], v)
	if child.IsNull() || (child.IsObject() && child.Len() == 0 && len(segs) > 1) {
		// Empty intermediate objects disappear, as in the realtime store.
		return n.Without(segs[0])
	}
	return n.With(segs[0], child)
}
