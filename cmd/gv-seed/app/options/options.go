package options

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/guardvision/guardvision/pkg/app"
	"github.com/guardvision/guardvision/pkg/log"
	"github.com/guardvision/guardvision/pkg/options"
)

// PublishOptions controls what the seeder publishes.
type PublishOptions struct {
	// Interval between simulated detections; zero publishes the seed once and exits.
	Interval time.Duration `json:"interval" mapstructure:"interval"`

	// Cameras receive simulated detections when the seed file names none.
	Cameras []string `json:"cameras" mapstructure:"cameras"`
}

func (o *PublishOptions) AddFlags(fs *pflag.FlagSet) {
	fs.DurationVar(&o.Interval, "publish.interval", o.Interval, "Publish a simulated detection at this interval; 0 publishes the seed once and exits.")
	fs.StringSliceVar(&o.Cameras, "publish.cameras", o.Cameras, "Cameras that receive simulated detections when the seed file has none.")
}

type SeedOptions struct {
	MqttOptions    *options.MqttOptions  `json:"mqtt" mapstructure:"mqtt"`
	StoreOptions   *options.StoreOptions `json:"store" mapstructure:"store"`
	PublishOptions *PublishOptions       `json:"publish" mapstructure:"publish"`
	Log            *log.Options
}

var _ app.NamedFlagSetOptions = (*SeedOptions)(nil)

func NewSeedOptions() *SeedOptions {
	return &SeedOptions{
		MqttOptions:    options.NewMqttOptions(),
		StoreOptions:   options.NewStoreOptions(),
		PublishOptions: &PublishOptions{Cameras: []string{"1", "2", "3"}},
		Log:            log.NewOptions(),
	}
}

func (o *SeedOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.StoreOptions.AddFlags(fss.FlagSet("store"))
	o.PublishOptions.AddFlags(fss.FlagSet("publish"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *SeedOptions) Complete() error {
	if o.MqttOptions.ClientID == "" {
		o.MqttOptions.ClientID = fmt.Sprintf("gv-seed-%d", os.Getpid())
	}
	return nil
}

func (o *SeedOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.StoreOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	if o.PublishOptions.Interval < 0 {
		errs = append(errs, errors.New("publish.interval must not be negative"))
	}
	if o.StoreOptions.SeedFile == "" && o.PublishOptions.Interval == 0 {
		errs = append(errs, errors.New("nothing to publish: set store.seed-file or publish.interval"))
	}
	return utilerrors.NewAggregate(errs)
}
