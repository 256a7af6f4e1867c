package options

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

var _ IOptions = (*AuthOptions)(nil)

const (
	AuthModeStatic = "static"
	AuthModeBroker = "broker"
)

// AuthOptions selects how operator credentials are verified.
type AuthOptions struct {
	// Mode is "static" (bcrypt entries below) or "broker" (MQTT CONNECT probe).
	Mode string `json:"mode" mapstructure:"mode"`

	// Users holds "identifier:bcrypt-hash" entries for the static mode.
	Users []string `json:"users" mapstructure:"users"`
}

func NewAuthOptions() *AuthOptions {
	return &AuthOptions{
		Mode: AuthModeBroker,
	}
}

func (o *AuthOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}
	switch o.Mode {
	case AuthModeBroker:
	case AuthModeStatic:
		if len(o.Users) == 0 {
			errs = append(errs, fmt.Errorf("auth.users must list at least one operator in static mode"))
		}
		for _, u := range o.Users {
			id, hash, ok := strings.Cut(u, ":")
			if !ok || id == "" || hash == "" {
				errs = append(errs, fmt.Errorf("auth.users entry %q must look like identifier:bcrypt-hash", u))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("auth.mode must be %q or %q, got %q", AuthModeStatic, AuthModeBroker, o.Mode))
	}

	return errs
}

func (o *AuthOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Mode, "auth.mode", o.Mode, "Credential verification: 'broker' probes the MQTT broker, 'static' checks auth.users.")
	fs.StringSliceVar(&o.Users, "auth.users", o.Users, "Operator entries in the form identifier:bcrypt-hash (static mode).")
}
