package options

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/guardvision/guardvision/internal/monitor"
	"github.com/guardvision/guardvision/pkg/app"
	"github.com/guardvision/guardvision/pkg/log"
	"github.com/guardvision/guardvision/pkg/options"
)

type MonitorOptions struct {
	MqttOptions   *options.MqttOptions   `json:"mqtt" mapstructure:"mqtt"`
	StoreOptions  *options.StoreOptions  `json:"store" mapstructure:"store"`
	AuthOptions   *options.AuthOptions   `json:"auth" mapstructure:"auth"`
	HttpOptions   *options.HttpOptions   `json:"http" mapstructure:"http"`
	GrpcOptions   *options.GrpcOptions   `json:"grpc" mapstructure:"grpc"`
	S3Options     *options.S3Options     `json:"s3" mapstructure:"s3"`
	RenderOptions *options.RenderOptions `json:"render" mapstructure:"render"`
	Log           *log.Options
}

var _ app.NamedFlagSetOptions = (*MonitorOptions)(nil)

func NewMonitorOptions() *MonitorOptions {
	o := &MonitorOptions{
		MqttOptions:   options.NewMqttOptions(),
		StoreOptions:  options.NewStoreOptions(),
		AuthOptions:   options.NewAuthOptions(),
		HttpOptions:   options.NewHttpOptions(),
		GrpcOptions:   options.NewGrpcOptions(),
		S3Options:     options.NewS3Options(),
		RenderOptions: options.NewRenderOptions(),
		Log:           log.NewOptions(),
	}

	return o
}

func (o *MonitorOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.StoreOptions.AddFlags(fss.FlagSet("store"))
	o.AuthOptions.AddFlags(fss.FlagSet("auth"))
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.GrpcOptions.AddFlags(fss.FlagSet("grpc"))
	o.S3Options.AddFlags(fss.FlagSet("s3"))
	o.RenderOptions.AddFlags(fss.FlagSet("render"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

// Complete derives the MQTT client ID from the hostname when none is set.
func (o *MonitorOptions) Complete() error {
	if o.MqttOptions.ClientID == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "unknown"
		}
		o.MqttOptions.ClientID = fmt.Sprintf("gv-monitor-%s-%d", host, os.Getpid())
	}
	return nil
}

func (o *MonitorOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.StoreOptions.Validate()...)
	errs = append(errs, o.AuthOptions.Validate()...)
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.GrpcOptions.Validate()...)
	errs = append(errs, o.S3Options.Validate()...)
	errs = append(errs, o.RenderOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

// OnConfigChange applies settings that can change without a restart.
func (o *MonitorOptions) OnConfigChange(v *viper.Viper, _ fsnotify.Event) {
	level := v.GetString("log.level")
	if level == "" || level == o.Log.Level {
		return
	}
	if err := log.SetLevel(level); err != nil {
		log.Warn("Ignoring log level change", "level", level, "error", err)
		return
	}
	o.Log.Level = level
	log.Info("Log level changed", "level", level)
}

func (o *MonitorOptions) Config() (*monitor.Config, error) {
	return &monitor.Config{
		MqttOptions:   o.MqttOptions,
		StoreOptions:  o.StoreOptions,
		AuthOptions:   o.AuthOptions,
		HttpOptions:   o.HttpOptions,
		GrpcOptions:   o.GrpcOptions,
		S3Options:     o.S3Options,
		RenderOptions: o.RenderOptions,
	}, nil
}
