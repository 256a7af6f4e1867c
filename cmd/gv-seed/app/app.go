package app

import (
	"context"
	"fmt"
	"time"

	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/guardvision/guardvision/cmd/gv-seed/app/options"
	"github.com/guardvision/guardvision/internal/store/mqttstore"
	"github.com/guardvision/guardvision/pkg/app"
	"github.com/guardvision/guardvision/pkg/log"
	pkgmqtt "github.com/guardvision/guardvision/pkg/mqtt"
)

const (
	commandName = "gv-seed"
	commandDesc = `gv-seed publishes camera record sets as retained MQTT messages so a
GuardVision monitor has something to show. It loads a JSON seed file and can keep
adding simulated detections.`
)

func NewApp() *app.App {
	opts := options.NewSeedOptions()
	return app.NewApp(
		commandName,
		"Publish seed and simulated detection records",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithEnvPrefix("GV"),
		app.WithRunFunc(run(opts)),
	)
}

func run(opts *options.SeedOptions) app.RunFunc {
	return func() error {
		log.Init(opts.Log)
		ctx := genericapiserver.SetupSignalContext()

		client, err := pkgmqtt.NewClient(opts.MqttOptions.ToClientConfig())
		if err != nil {
			return fmt.Errorf("failed to init mqtt client: %w", err)
		}
		if err := client.Start(ctx); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			client.Disconnect(shutdownCtx)
		}()

		log.Info("Attempting to connect to broker...", "broker", opts.MqttOptions.Broker)
		if err := client.AwaitConnection(ctx); err != nil {
			return err
		}

		store := mqttstore.New(client, mqttstore.Options{Root: opts.StoreOptions.Root, QoS: 1}, log.Std())
		p := NewPublisher(opts.StoreOptions.Root, store, opts.PublishOptions.Cameras)

		if file := opts.StoreOptions.SeedFile; file != "" {
			if err := p.Load(ctx, file); err != nil {
				return err
			}
		}
		if opts.PublishOptions.Interval == 0 {
			return nil
		}
		return p.Run(ctx, opts.PublishOptions.Interval)
	}
}
