// Package monitor assembles the monitoring client: the event loop, the record
// store backend, the navigator and its renderers and servers.
package monitor

import (
	"context"
	"time"

	"github.com/guardvision/guardvision/internal/monitor/eventloop"
	"github.com/guardvision/guardvision/internal/monitor/model"
	"github.com/guardvision/guardvision/internal/monitor/navigator"
	"github.com/guardvision/guardvision/internal/server"
	"github.com/guardvision/guardvision/pkg/log"
)

const shutdownTimeout = 5 * time.Second

// Monitor is the running application.
type Monitor struct {
	// ctx outlives the servers so feeds can be closed after they stop.
	ctx    context.Context
	cancel context.CancelFunc

	loop    *eventloop.Loop
	backend *backend
	nav     *navigator.Navigator
	servers *server.Manager

	renderInitial func(model.Frame)
}

// Navigator exposes the session driven by the servers.
func (m *Monitor) Navigator() *navigator.Navigator {
	return m.nav
}

// Run starts every component and blocks until ctx is cancelled or a server fails.
func (m *Monitor) Run(ctx context.Context) error {
	log.Info("Starting GuardVision monitor...")
	defer m.cancel()

	go func() {
		_ = m.loop.Run(m.ctx)
	}()
	backendErr := make(chan error, 1)
	go func() {
		backendErr <- m.backend.run(m.ctx)
	}()

	m.renderInitial(m.nav.Frame())

	serveCtx, stopServers := context.WithCancel(ctx)
	defer stopServers()
	serversErr := make(chan error, 1)
	go func() {
		serversErr <- m.servers.Start(serveCtx)
	}()

	var err error
	select {
	case err = <-serversErr:
	case err = <-backendErr:
		stopServers()
		<-serversErr
	}

	m.shutdown()
	if err != nil {
		log.Error(err, "GuardVision monitor stopped with error")
		return err
	}
	log.Info("GuardVision monitor stopped")
	return nil
}

// shutdown closes the active feed while the loop and transport still run, then stops them.
func (m *Monitor) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := m.nav.Shutdown(ctx); err != nil {
		log.Warn("failed to close feeds", "error", err)
	}
	m.backend.stop(ctx)
	m.cancel()

	select {
	case <-m.loop.Done():
	case <-ctx.Done():
	}
}
