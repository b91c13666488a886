package main

import (
	"errors"

	"github.com/spf13/cobra"
)

// requireArgs accepts between min and max positional arguments. A negative
// max leaves the upper bound open.
func requireArgs(min, max int, message string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) < min || (max >= 0 && len(args) > max) {
			return errors.New(message)
		}
		return nil
	}
}
