package options

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*StoreOptions)(nil)

const (
	StoreBackendMQTT   = "mqtt"
	StoreBackendMemory = "memory"
)

// StoreOptions selects and tunes the record store the monitor subscribes to.
type StoreOptions struct {
	// Backend is "mqtt" or "memory".
	Backend string `json:"backend" mapstructure:"backend"`

	// Root is the path holding one child per camera.
	Root string `json:"root" mapstructure:"root"`

	// SeedFile is a JSON document loaded into the memory backend at startup.
	SeedFile string `json:"seed-file" mapstructure:"seed-file"`

	// SettleWindow is how long a one-shot read of the fleet waits for retained messages.
	SettleWindow time.Duration `json:"settle-window" mapstructure:"settle-window"`

	// ReadTimeout bounds a manual refresh.
	ReadTimeout time.Duration `json:"read-timeout" mapstructure:"read-timeout"`
}

func NewStoreOptions() *StoreOptions {
	return &StoreOptions{
		Backend:      StoreBackendMQTT,
		Root:         "latest_faces",
		SettleWindow: 750 * time.Millisecond,
		ReadTimeout:  10 * time.Second,
	}
}

func (o *StoreOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}
	switch o.Backend {
	case StoreBackendMQTT, StoreBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("store.backend must be %q or %q, got %q", StoreBackendMQTT, StoreBackendMemory, o.Backend))
	}
	if o.Root == "" || strings.ContainsAny(o.Root, "+#") || strings.HasPrefix(o.Root, "/") || strings.HasSuffix(o.Root, "/") {
		errs = append(errs, fmt.Errorf("store.root %q must be a non-empty path without wildcards or leading/trailing '/'", o.Root))
	}
	if o.SettleWindow <= 0 {
		errs = append(errs, fmt.Errorf("store.settle-window must be positive"))
	}
	if o.ReadTimeout < o.SettleWindow {
		errs = append(errs, fmt.Errorf("store.read-timeout must not be shorter than store.settle-window"))
	}

	return errs
}

func (o *StoreOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Backend, "store.backend", o.Backend, "Record store backend: 'mqtt' or 'memory'.")
	fs.StringVar(&o.Root, "store.root", o.Root, "Root path under which each camera publishes its records.")
	fs.StringVar(&o.SeedFile, "store.seed-file", o.SeedFile, "JSON snapshot loaded into the memory backend at startup.")
	fs.DurationVar(&o.SettleWindow, "store.settle-window", o.SettleWindow, "How long a one-shot fleet read waits for retained snapshots.")
	fs.DurationVar(&o.ReadTimeout, "store.read-timeout", o.ReadTimeout, "Upper bound for a manual refresh read.")
}
