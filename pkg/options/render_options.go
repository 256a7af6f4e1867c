package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*RenderOptions)(nil)

// RenderOptions configures the terminal renderer.
type RenderOptions struct {
	// Terminal prints every frame as a table on stdout.
	Terminal bool `json:"terminal" mapstructure:"terminal"`

	// TimeZone is the IANA zone detection times are shown in; empty means local time.
	TimeZone string `json:"time-zone" mapstructure:"time-zone"`
}

func NewRenderOptions() *RenderOptions {
	return &RenderOptions{
		Terminal: true,
	}
}

func (o *RenderOptions) Validate() []error {
	if o == nil || o.TimeZone == "" {
		return nil
	}
	if _, err := time.LoadLocation(o.TimeZone); err != nil {
		return []error{fmt.Errorf("render.time-zone %q: %w", o.TimeZone, err)}
	}
	return nil
}

// Location resolves TimeZone; it returns nil for local time.
func (o *RenderOptions) Location() *time.Location {
	if o.TimeZone == "" {
		return nil
	}
	loc, err := time.LoadLocation(o.TimeZone)
	if err != nil {
		return nil
	}
	return loc
}

func (o *RenderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.Terminal, "render.terminal", o.Terminal, "Print every screen as a table on stdout.")
	fs.StringVar(&o.TimeZone, "render.time-zone", o.TimeZone, "IANA time zone for displayed detection times (default local).")
}
