// Package normalize converts untrusted store snapshots into typed detection records.
//
// Records are returned in store key order. Push-keys are issued in increasing order
// and stores list them newest first, so the first valid record is the latest one.
// A malformed head record is skipped, which makes the next older valid record latest.
// Timestamps come from producer clocks and are never used for ordering.
package normalize

import (
	"fmt"

	"github.com/guardvision/guardvision/internal/monitor/core"
	"github.com/guardvision/guardvision/internal/monitor/model"
	"github.com/guardvision/guardvision/internal/monitor/snapshot"
	"github.com/guardvision/guardvision/pkg/log"
)

// Producer field names, each followed by accepted aliases.
var (
	timestampFields = []string{"timestamp"}
	violenceFields  = []string{"violence", "violenceDetected"}
	weaponFields    = []string{"weapon", "weaponLabel"}
	imageFields     = []string{"image_base64", "imagePayload"}
)

// DropFunc observes every record the normalizer discards.
type DropFunc func(err *core.MalformedRecordError)

// Normalizer turns camera subtrees into records, logging and dropping malformed entries.
type Normalizer struct {
	log    log.Logger
	onDrop DropFunc
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithDropObserver registers fn to be called for each dropped record.
func WithDropObserver(fn DropFunc) Option {
	return func(n *Normalizer) { n.onDrop = fn }
}

// New returns a Normalizer logging through logger.
func New(logger log.Logger, opts ...Option) *Normalizer {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	n := &Normalizer{log: logger.WithName("normalize")}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Records normalizes one camera's record set. A null or empty value yields an empty slice.
func (n *Normalizer) Records(cameraID string, raw *snapshot.Node) []model.DetectionRecord {
	if !n.checkCamera(cameraID, raw) {
		return []model.DetectionRecord{}
	}

	out := make([]model.DetectionRecord, 0, raw.Len())
	raw.Range(func(key string, blob *snapshot.Node) bool {
		if rec, ok := n.record(cameraID, key, blob); ok {
			out = append(out, rec)
		}
		return true
	})
	return out
}

// Latest returns the first valid record of a camera's record set.
// When the first key is malformed an older record is returned in its place.
func (n *Normalizer) Latest(cameraID string, raw *snapshot.Node) (model.DetectionRecord, bool) {
	if !n.checkCamera(cameraID, raw) {
		return model.DetectionRecord{}, false
	}

	var (
		latest model.DetectionRecord
		found  bool
	)
	raw.Range(func(key string, blob *snapshot.Node) bool {
		latest, found = n.record(cameraID, key, blob)
		return !found
	})
	return latest, found
}

// Fleet reduces the root snapshot to camera IDs in store order and each camera's latest record.
// A camera present without any valid record is listed but absent from the map.
func (n *Normalizer) Fleet(root *snapshot.Node) ([]string, map[string]model.DetectionRecord) {
	ids := make([]string, 0, root.Len())
	latest := make(map[string]model.DetectionRecord, root.Len())

	if !root.IsNull() && !root.IsObject() {
		n.log.Warn("ignoring non-object fleet snapshot", "kind", root.Kind().String())
		return ids, latest
	}

	root.Range(func(cameraID string, raw *snapshot.Node) bool {
		ids = append(ids, cameraID)
		if rec, ok := n.Latest(cameraID, raw); ok {
			latest[cameraID] = rec
		}
		return true
	})
	return ids, latest
}

func (n *Normalizer) checkCamera(cameraID string, raw *snapshot.Node) bool {
	if raw.IsNull() {
		return false
	}
	if !raw.IsObject() {
		n.log.Warn("ignoring non-object camera snapshot", "cameraID", cameraID, "kind", raw.Kind().String())
		return false
	}
	return true
}

func (n *Normalizer) record(cameraID, key string, blob *snapshot.Node) (model.DetectionRecord, bool) {
	rec, err := Record(cameraID, key, blob)
	if err != nil {
		n.log.Warn("dropping malformed record", "cameraID", err.CameraID, "pushKey", err.PushKey, "reason", err.Reason)
		if n.onDrop != nil {
			n.onDrop(err)
		}
		return model.DetectionRecord{}, false
	}
	return rec, true
}

// Record validates a single record blob.
func Record(cameraID, key string, blob *snapshot.Node) (model.DetectionRecord, *core.MalformedRecordError) {
	malformed := func(format string, args ...any) *core.MalformedRecordError {
		return &core.MalformedRecordError{CameraID: cameraID, PushKey: key, Reason: fmt.Sprintf(format, args...)}
	}

	if !blob.IsObject() {
		return model.DetectionRecord{}, malformed("record is %s, not an object", blob.Kind())
	}

	rec := model.DetectionRecord{CameraID: cameraID, Key: key}

	ts, name := lookup(blob, timestampFields)
	if ts.IsNull() {
		return model.DetectionRecord{}, malformed("missing field %q", name)
	}
	var ok bool
	if rec.Timestamp, ok = ts.Int64(); !ok {
		return model.DetectionRecord{}, malformed("field %q is not an integer", name)
	}

	v, name := lookup(blob, violenceFields)
	if v.IsNull() {
		return model.DetectionRecord{}, malformed("missing field %q", name)
	}
	if rec.ViolenceDetected, ok = v.Boolean(); !ok {
		return model.DetectionRecord{}, malformed("field %q is not a boolean", name)
	}

	w, name := lookup(blob, weaponFields)
	if w.IsNull() {
		return model.DetectionRecord{}, malformed("missing field %q", name)
	}
	if rec.WeaponLabel, ok = w.Text(); !ok {
		return model.DetectionRecord{}, malformed("field %q is not a string", name)
	}

	img, name := lookup(blob, imageFields)
	if img.IsNull() {
		return model.DetectionRecord{}, malformed("missing field %q", name)
	}
	if rec.ImagePayload, ok = img.Text(); !ok {
		return model.DetectionRecord{}, malformed("field %q is not a string", name)
	}

	return rec, nil
}

// lookup returns the first non-null field among names, and the name it was found under.
// When none is present the canonical name is returned for error messages.
func lookup(blob *snapshot.Node, names []string) (*snapshot.Node, string) {
	for _, name := range names {
		if v := blob.Child(name); !v.IsNull() {
			return v, name
		}
	}
	return nil, names[0]
}
