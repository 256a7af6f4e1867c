package model

import "strings"

// DefaultRoot is the store path holding every camera.
const DefaultRoot = "latest_faces"

// CameraPath returns the store path of one camera's records.
func CameraPath(root, cameraID string) string {
	return strings.TrimSuffix(root, "/") + "/" + cameraID
}
