// Package cli implements consolectl, an offline tool for the console's
// permission tables and action-type catalog.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"bizadmin.org/internal/permission"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format      string // "text" | "json" | "yaml"
	Permissions string // tables document overriding the built-in policy
	Policy      string // "console" | "api"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// ValidPolicies names the built-in tables.
var ValidPolicies = []string{"console", "api"}

// NewRootCommand creates the root command for consolectl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "consolectl",
		Short: "Inspect console permission tables and action types",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if !slices.Contains(ValidPolicies, opts.Policy) {
				return fmt.Errorf("invalid policy %q: must be one of %v", opts.Policy, ValidPolicies)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.Permissions, "permissions", "", "permission tables file (defaults to the built-in tables)")
	cmd.PersistentFlags().StringVar(&opts.Policy, "policy", "console", "built-in tables to use (console|api)")

	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewActionsCommand(opts))
	cmd.AddCommand(NewRoutesCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

// loadPolicy resolves the tables selected by the global flags.
func (o *RootOptions) loadPolicy() (*permission.Policy, error) {
	if o.Permissions != "" {
		p, err := permission.LoadFile(o.Permissions)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "load permissions", err)
		}
		return p, nil
	}
	if o.Policy == "api" {
		return permission.APIPolicy(), nil
	}
	return permission.Default(), nil
}
