// Package export copies detection images to object storage as evidence.
package export

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/guardvision/guardvision/internal/monitor/model"
	"github.com/guardvision/guardvision/internal/pkg/metrics"
	"github.com/guardvision/guardvision/pkg/log"
)

var (
	// ErrNotViewingCamera is returned when no camera detail screen is shown.
	ErrNotViewingCamera = errors.New("export is only available on the camera detail screen")
	// ErrRecordNotFound is returned when the record is not in the shown feed.
	ErrRecordNotFound = errors.New("record not found in the current camera feed")
	// ErrNoImage is returned when the record carries no usable image payload.
	ErrNoImage = errors.New("record has no image payload")
)

// Result describes an exported image.
type Result struct {
	CameraID    string    `json:"cameraId"`
	PushKey     string    `json:"pushKey"`
	Object      string    `json:"object"`
	ContentType string    `json:"contentType"`
	Size        int       `json:"size"`
	URL         string    `json:"url"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Exporter uploads the image of a displayed record and returns a download link.
type Exporter struct {
	store  ObjectStore
	expiry time.Duration
	log    log.Logger
	now    func() time.Time
}

// NewExporter returns an Exporter whose links stay valid for expiry.
func NewExporter(store ObjectStore, expiry time.Duration, logger log.Logger) *Exporter {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Exporter{store: store, expiry: expiry, log: logger.WithName("export"), now: time.Now}
}

// ExportFromFrame exports the record with pushKey from the camera shown in f.
func (e *Exporter) ExportFromFrame(ctx context.Context, f model.Frame, pushKey string) (Result, error) {
	if f.Session.Screen != model.ScreenCameraDetail || f.Camera == nil {
		return Result{}, ErrNotViewingCamera
	}
	rec, ok := f.Camera.Find(pushKey)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s/%s", ErrRecordNotFound, f.Camera.CameraID, pushKey)
	}
	return e.Export(ctx, rec)
}

// Export uploads rec's image to {cameraId}/{pushKey}.{ext}.
func (e *Exporter) Export(ctx context.Context, rec model.DetectionRecord) (Result, error) {
	data, contentType, err := DecodeImage(rec.ImagePayload)
	if err != nil {
		metrics.EvidenceExports.WithLabelValues("invalid").Inc()
		return Result{}, fmt.Errorf("export %s/%s: %w", rec.CameraID, rec.Key, err)
	}

	key := ObjectKey(rec.CameraID, rec.Key, contentType)
	if err := e.store.Put(ctx, key, data, contentType); err != nil {
		metrics.EvidenceExports.WithLabelValues("failed").Inc()
		return Result{}, err
	}
	link, err := e.store.PresignedURL(ctx, key, e.expiry)
	if err != nil {
		metrics.EvidenceExports.WithLabelValues("failed").Inc()
		return Result{}, err
	}

	metrics.EvidenceExports.WithLabelValues("success").Inc()
	e.log.Info("exported detection image", "cameraID", rec.CameraID, "pushKey", rec.Key, "object", key, "size", len(data))
	return Result{
		CameraID:    rec.CameraID,
		PushKey:     rec.Key,
		Object:      key,
		ContentType: contentType,
		Size:        len(data),
		URL:         link,
		ExpiresAt:   e.now().Add(e.expiry),
	}, nil
}

// DecodeImage decodes a base64 image payload, with or without a data: URI prefix,
// and sniffs its content type.
func DecodeImage(payload string) ([]byte, string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, "", ErrNoImage
	}
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		_, encoded, found := strings.Cut(rest, ",")
		if !found {
			return nil, "", fmt.Errorf("%w: malformed data URI", ErrNoImage)
		}
		payload = encoded
	}

	var (
		data []byte
		err  error
	)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if data, err = enc.DecodeString(payload); err == nil {
			break
		}
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNoImage, err)
	}
	if len(data) == 0 {
		return nil, "", ErrNoImage
	}
	return data, http.DetectContentType(data), nil
}

// ObjectKey names the stored object for a record.
func ObjectKey(cameraID, pushKey, contentType string) string {
	return cameraID + "/" + pushKey + extension(contentType)
}

func extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ".bin"
}
