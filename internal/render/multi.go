package render

import (
	"github.com/guardvision/guardvision/internal/monitor/core"
	"github.com/guardvision/guardvision/internal/monitor/model"
)

// Multi forwards every frame to each renderer in order.
type Multi []core.Renderer

func (m Multi) Render(f model.Frame) {
	for _, r := range m {
		r.Render(f)
	}
}
