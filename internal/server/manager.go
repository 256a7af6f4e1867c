// Package server runs the monitor's long-lived components side by side.
package server

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/guardvision/guardvision/pkg/log"
)

// Server defines the common interface for all long-running components.
type Server interface {
	Start(ctx context.Context) error
}

// Func adapts a function to Server.
type Func func(ctx context.Context) error

func (f Func) Start(ctx context.Context) error { return f(ctx) }

// Manager manages the lifecycle of the registered servers.
type Manager struct {
	servers []Server
}

// NewManager returns a Manager for servers; nil entries are skipped.
func NewManager(servers ...Server) *Manager {
	m := &Manager{}
	for _, s := range servers {
		if s != nil {
			m.servers = append(m.servers, s)
		}
	}
	return m
}

// Add registers another server before Start.
func (m *Manager) Add(s Server) {
	if s != nil {
		m.servers = append(m.servers, s)
	}
}

// Start launches all servers in parallel and waits for termination.
// The first failure cancels the others.
func (m *Manager) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range m.servers {
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}

	log.Info("All servers starting...", "count", len(m.servers))
	return g.Wait()
}
