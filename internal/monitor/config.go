package monitor

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/guardvision/guardvision/internal/auth"
	"github.com/guardvision/guardvision/internal/export"
	"github.com/guardvision/guardvision/internal/monitor/core"
	"github.com/guardvision/guardvision/internal/monitor/eventloop"
	"github.com/guardvision/guardvision/internal/monitor/model"
	"github.com/guardvision/guardvision/internal/monitor/navigator"
	"github.com/guardvision/guardvision/internal/pkg/metrics"
	"github.com/guardvision/guardvision/internal/render"
	"github.com/guardvision/guardvision/internal/server"
	grpcserver "github.com/guardvision/guardvision/internal/server/grpc"
	httpserver "github.com/guardvision/guardvision/internal/server/http"
	"github.com/guardvision/guardvision/internal/store/memstore"
	"github.com/guardvision/guardvision/internal/store/mqttstore"
	"github.com/guardvision/guardvision/pkg/log"
	pkgmqtt "github.com/guardvision/guardvision/pkg/mqtt"
	"github.com/guardvision/guardvision/pkg/options"
)

// Config is the completed, validated configuration of a monitor process.
type Config struct {
	MqttOptions   *options.MqttOptions
	StoreOptions  *options.StoreOptions
	AuthOptions   *options.AuthOptions
	HttpOptions   *options.HttpOptions
	GrpcOptions   *options.GrpcOptions
	S3Options     *options.S3Options
	RenderOptions *options.RenderOptions

	// Output receives terminal frames; defaults to os.Stdout.
	Output io.Writer
}

// backend is the record store together with what keeps it running.
type backend struct {
	store core.RecordStore
	// run keeps the transport alive until ctx is done.
	run func(ctx context.Context) error
	// stop releases the transport after the feeds are closed.
	stop func(ctx context.Context)
	// servers are optional front-end helpers such as the seed file watcher.
	servers []server.Server
	ready   func() bool
}

// NewMonitor wires every component. Nothing connects until Run.
func (cfg *Config) NewMonitor() (*Monitor, error) {
	logger := log.Std()
	ctx, cancel := context.WithCancel(context.Background())

	m := &Monitor{
		ctx:     ctx,
		cancel:  cancel,
		loop:    eventloop.New(logger),
		servers: server.NewManager(),
	}

	var grpcSrv *grpcserver.Server
	if cfg.GrpcOptions.Enabled {
		grpcSrv = grpcserver.NewServer(cfg.GrpcOptions)
		m.servers.Add(grpcSrv)
	}
	storeUp := func(up bool) {
		if grpcSrv != nil {
			grpcSrv.SetStoreReady(up)
		}
	}

	be, err := cfg.newBackend(logger, storeUp)
	if err != nil {
		cancel()
		return nil, err
	}
	m.backend = be
	for _, s := range be.servers {
		m.servers.Add(s)
	}

	verifier, err := cfg.newVerifier()
	if err != nil {
		cancel()
		return nil, err
	}

	exporter, bucketCheck, err := cfg.newExporter(logger)
	if err != nil {
		cancel()
		return nil, err
	}
	m.servers.Add(bucketCheck)

	// renderers is filled below, before the loop runs and the first frame is drawn.
	var renderers render.Multi
	if cfg.RenderOptions.Terminal {
		out := cfg.Output
		if out == nil {
			out = os.Stdout
		}
		renderers = append(renderers, render.NewTable(out, cfg.RenderOptions.Location()))
	}

	m.nav = navigator.New(ctx, navigator.Config{
		Loop:     m.loop,
		Store:    be.store,
		Verifier: verifier,
		Renderer: core.RendererFunc(func(f model.Frame) { renderers.Render(f) }),
		Root:     cfg.StoreOptions.Root,
		Log:      logger,
	})

	if cfg.HttpOptions.Enabled {
		httpSrv := httpserver.NewServer(httpserver.Config{
			Options:   cfg.HttpOptions,
			Navigator: m.nav,
			Exporter:  exporter,
			Ready:     be.ready,
			Log:       logger,
		})
		renderers = append(renderers, httpSrv)
		m.servers.Add(httpSrv)
	}
	m.renderInitial = renderers.Render

	return m, nil
}

func (cfg *Config) newBackend(logger log.Logger, storeUp func(bool)) (*backend, error) {
	switch cfg.StoreOptions.Backend {
	case options.StoreBackendMemory:
		store := memstore.New(logger)
		be := &backend{
			store: store,
			run: func(ctx context.Context) error {
				metrics.StoreConnectivityStatus.Set(1)
				storeUp(true)
				<-ctx.Done()
				return nil
			},
			stop:  func(context.Context) {},
			ready: func() bool { return true },
		}
		if seed := cfg.StoreOptions.SeedFile; seed != "" {
			if err := store.LoadFile(seed); err != nil {
				return nil, err
			}
			be.servers = append(be.servers, server.Func(func(ctx context.Context) error {
				return store.WatchFile(ctx, seed)
			}))
		}
		return be, nil

	default:
		var store *mqttstore.Store
		clientCfg := cfg.MqttOptions.ToClientConfig()
		clientCfg.OnConnectionChange = func(up bool) {
			store.ConnectionChanged(up)
			storeUp(up)
		}
		client, err := pkgmqtt.NewClient(clientCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to init mqtt client: %w", err)
		}
		store = mqttstore.New(client, mqttstore.Options{
			Root:         cfg.StoreOptions.Root,
			QoS:          1,
			SettleWindow: cfg.StoreOptions.SettleWindow,
			ReadTimeout:  cfg.StoreOptions.ReadTimeout,
		}, logger)

		return &backend{
			store: store,
			run: func(ctx context.Context) error {
				if err := client.Start(ctx); err != nil {
					return fmt.Errorf("failed to start mqtt client: %w", err)
				}
				return store.Run(ctx)
			},
			stop:  client.Disconnect,
			ready: client.IsConnected,
		}, nil
	}
}

func (cfg *Config) newVerifier() (core.Verifier, error) {
	switch cfg.AuthOptions.Mode {
	case options.AuthModeStatic:
		return auth.NewStaticVerifier(cfg.AuthOptions.Users)
	default:
		v, err := auth.NewBrokerVerifier(cfg.MqttOptions.Broker, cfg.MqttOptions.ClientID,
			cfg.MqttOptions.ConnectTimeout, cfg.MqttOptions.InsecureSkipVerify)
		if err != nil {
			return nil, fmt.Errorf("failed to init broker verifier: %w", err)
		}
		return v, nil
	}
}

// newExporter also returns a one-shot check that creates the evidence bucket.
func (cfg *Config) newExporter(logger log.Logger) (*export.Exporter, server.Server, error) {
	if !cfg.S3Options.Enabled {
		return nil, nil, nil
	}
	objects, err := export.NewMinIO(cfg.S3Options)
	if err != nil {
		return nil, nil, err
	}
	check := server.Func(func(ctx context.Context) error {
		if err := objects.CheckBucket(ctx); err != nil {
			// Exports fail individually until the bucket is reachable.
			logger.Warn("evidence bucket unavailable", "bucket", cfg.S3Options.BucketName, "error", err)
		}
		<-ctx.Done()
		return nil
	})
	return export.NewExporter(objects, cfg.S3Options.URLExpiry, logger), check, nil
}
