package app

import (
	"fmt"

	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/guardvision/guardvision/cmd/gv-monitor/app/options"
	"github.com/guardvision/guardvision/pkg/app"
	"github.com/guardvision/guardvision/pkg/log"
)

const (
	commandName = "gv-monitor"
	commandDesc = `The GuardVision monitor follows the detection records published by security
cameras. Operators log in, glance at the latest event of every camera, and drill
into the full record history of one camera. Screens are printed to the terminal
and served over an HTTP API with a live websocket stream.`
)

func NewApp() *app.App {
	opts := options.NewMonitorOptions()
	application := app.NewApp(
		commandName,
		"Launch the GuardVision camera monitor",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithEnvPrefix("GV"),
		app.WithConfigWatcher(opts.OnConfigChange),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.MonitorOptions) app.RunFunc {
	return func() error {
		log.Init(opts.Log)
		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		monitor, err := cfg.NewMonitor()
		if err != nil {
			return fmt.Errorf("failed to create monitor: %w", err)
		}

		return monitor.Run(ctx)
	}
}
