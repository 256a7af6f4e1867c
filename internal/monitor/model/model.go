// Package model defines the values the monitor core produces and the renderers consume.
package model

import (
	"time"
)

// Screen is the operator-facing screen.
type Screen string

const (
	ScreenLogin        Screen = "Login"
	ScreenHome         Screen = "Home"
	ScreenCameraList   Screen = "CameraList"
	ScreenCameraDetail Screen = "CameraDetail"
)

// ShowsFleet reports whether the fleet feed is active on s.
func (s Screen) ShowsFleet() bool {
	return s == ScreenHome || s == ScreenCameraList
}

// DetectionRecord is one detection event produced by a camera.
type DetectionRecord struct {
	CameraID string `json:"cameraId"`
	// Key is the store push-key identifying the record within its camera.
	Key              string `json:"key"`
	Timestamp        int64  `json:"timestamp"`
	ViolenceDetected bool   `json:"violenceDetected"`
	WeaponLabel      string `json:"weaponLabel"`
	// ImagePayload is the encoded image as delivered by the producer; it is never decoded here.
	ImagePayload string `json:"imagePayload"`
}

// Time converts the epoch-millisecond timestamp.
func (r DetectionRecord) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// CameraFeed is the live view of one camera's records, newest first.
type CameraFeed struct {
	CameraID string            `json:"cameraId"`
	Records  []DetectionRecord `json:"records"`
	Loading  bool              `json:"loading"`
	// Stale is set when the underlying subscription failed and the records may be outdated.
	Stale     bool      `json:"stale,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// Find returns the record with the given push-key.
func (f *CameraFeed) Find(key string) (DetectionRecord, bool) {
	if f == nil {
		return DetectionRecord{}, false
	}
	for _, r := range f.Records {
		if r.Key == key {
			return r, true
		}
	}
	return DetectionRecord{}, false
}

// FleetView maps every known camera to its latest record.
// CameraIDs is in store order and includes cameras without any record.
type FleetView struct {
	CameraIDs []string                   `json:"cameraIds"`
	Latest    map[string]DetectionRecord `json:"latest"`
	Loading   bool                       `json:"loading"`
	Stale     bool                       `json:"stale,omitempty"`
	UpdatedAt time.Time                  `json:"updatedAt,omitzero"`
}

// LatestFor returns the latest record of a camera, if it has one.
func (v *FleetView) LatestFor(cameraID string) (DetectionRecord, bool) {
	if v == nil {
		return DetectionRecord{}, false
	}
	r, ok := v.Latest[cameraID]
	return r, ok
}

// Known reports whether cameraID is present in the store.
func (v *FleetView) Known(cameraID string) bool {
	if v == nil {
		return false
	}
	for _, id := range v.CameraIDs {
		if id == cameraID {
			return true
		}
	}
	return false
}

// SessionState is the process-wide navigation state.
// SelectedCameraID is non-empty exactly when Screen is ScreenCameraDetail.
type SessionState struct {
	Authenticated    bool   `json:"authenticated"`
	Screen           Screen `json:"screen"`
	SelectedCameraID string `json:"selectedCameraId,omitempty"`
	// Operator is the identifier that logged in.
	Operator string `json:"operator,omitempty"`
}

// InitialSession is the state at startup.
func InitialSession() SessionState {
	return SessionState{Screen: ScreenLogin}
}

// Frame is everything a renderer needs to draw the current screen.
// At most one of Fleet and Camera is set.
type Frame struct {
	Session SessionState `json:"session"`
	Fleet   *FleetView   `json:"fleet,omitempty"`
	Camera  *CameraFeed  `json:"camera,omitempty"`
	// Message is a transient user-visible notice, such as a rejected login.
	Message string `json:"message,omitempty"`
}
