package app

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path"
	"time"

	"github.com/guardvision/guardvision/internal/monitor/snapshot"
	"github.com/guardvision/guardvision/internal/store/memstore"
	"github.com/guardvision/guardvision/pkg/log"
)

var weapons = []string{"none", "none", "none", "knife", "gun", "bat"}

// CameraPublisher replaces a camera's retained record set.
type CameraPublisher interface {
	PublishCamera(ctx context.Context, cameraID string, v *snapshot.Node) error
}

// Publisher keeps a local copy of the tree and mirrors every changed camera to the broker.
type Publisher struct {
	root    string
	local   *memstore.Store
	out     CameraPublisher
	cameras []string
	now     func() time.Time
	next    int
}

func NewPublisher(root string, out CameraPublisher, cameras []string) *Publisher {
	return &Publisher{
		root:    root,
		local:   memstore.New(log.Std()),
		out:     out,
		cameras: cameras,
		now:     time.Now,
	}
}

// Load reads the seed file and publishes every camera under the root.
func (p *Publisher) Load(ctx context.Context, file string) error {
	if err := p.local.LoadFile(file); err != nil {
		return err
	}
	tree, err := p.local.ReadOnce(ctx, p.root)
	if err != nil {
		return err
	}
	if ids := tree.Keys(); len(ids) > 0 {
		p.cameras = ids
	}

	for _, id := range tree.Keys() {
		if err := p.out.PublishCamera(ctx, id, tree.Child(id)); err != nil {
			return err
		}
		log.Info("Published camera", "cameraID", id, "records", tree.Child(id).Len())
	}
	return nil
}

// Simulate adds one detection to the next camera in turn and publishes it.
func (p *Publisher) Simulate(ctx context.Context) (string, error) {
	if len(p.cameras) == 0 {
		return "", fmt.Errorf("no cameras to simulate")
	}
	id := p.cameras[p.next%len(p.cameras)]
	p.next++

	weapon := weapons[rand.IntN(len(weapons))]
	record := snapshot.Object(
		snapshot.Field("timestamp", snapshot.Int(p.now().UnixMilli())),
		snapshot.Field("violence", snapshot.Bool(weapon != "none" || rand.IntN(4) == 0)),
		snapshot.Field("weapon", snapshot.Str(weapon)),
		snapshot.Field("image_base64", snapshot.Str("")),
	)
	cameraPath := path.Join(p.root, id)
	key := p.local.Push(cameraPath, "", record)

	records, err := p.local.ReadOnce(ctx, cameraPath)
	if err != nil {
		return "", err
	}
	if err := p.out.PublishCamera(ctx, id, records); err != nil {
		return "", err
	}
	log.Info("Published detection", "cameraID", id, "pushKey", key, "weapon", weapon)
	return key, nil
}

// Run simulates a detection every interval until ctx is done.
func (p *Publisher) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := p.Simulate(ctx); err != nil {
				log.Error(err, "Failed to publish detection")
			}
		case <-ctx.Done():
			log.Info("Publisher loop stopping.")
			return nil
		}
	}
}
