package topic

import (
	"fmt"
	"strings"
)

// Builder maps record-store paths onto MQTT topics.
//
// The store is a two-level hierarchy: {root}/{cameraID} holds one camera's records as a
// single retained JSON document. The root path itself has no topic of its own; it is
// observed through the single-level wildcard {root}/+.
type Builder struct {
	root string
}

// NewBuilder returns a Builder for the given root path (e.g. "latest_faces").
func NewBuilder(root string) *Builder {
	return &Builder{root: strings.Trim(root, Separator)}
}

// Root returns the root path.
func (b *Builder) Root() string {
	return b.root
}

// Camera returns the topic (and store path) holding one camera's records.
func (b *Builder) Camera(cameraID string) string {
	return b.root + Separator + cameraID
}

// Fleet returns the wildcard filter that observes every camera under the root.
func (b *Builder) Fleet() string {
	return b.root + Separator + Wildcard
}

// Shared wraps filter in a shared subscription for group.
func (b *Builder) Shared(group, filter string) string {
	return fmt.Sprintf("$share/%s/%s", group, filter)
}

// IsRoot reports whether path addresses the fleet root.
func (b *Builder) IsRoot(path string) bool {
	return strings.Trim(path, Separator) == b.root
}

// CameraID extracts the camera identifier from a camera topic or path.
// ok is false when the input is not exactly one level below the root.
func (b *Builder) CameraID(topicOrPath string) (id string, ok bool) {
	rest, found := strings.CutPrefix(strings.Trim(topicOrPath, Separator), b.root+Separator)
	if !found || rest == "" || strings.Contains(rest, Separator) {
		return "", false
	}
	if rest == Wildcard || rest == MultiWildcard {
		return "", false
	}
	return rest, true
}
