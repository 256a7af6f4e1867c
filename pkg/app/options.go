package app

import (
	cliflag "k8s.io/component-base/cli/flag"
)

// NamedFlagSetOptions is implemented by a command's root options object.
type NamedFlagSetOptions interface {
	// Flags returns the flag groups, one per option section.
	Flags() cliflag.NamedFlagSets

	// Complete fills derived defaults after flags and config are loaded.
	Complete() error

	// Validate reports every invalid option at once.
	Validate() error
}
