package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"bizadmin.org/internal/permission"
)

// ValidationResult holds the outcome of validating a tables document.
type ValidationResult struct {
	File      string `json:"file" yaml:"file"`
	Valid     bool   `json:"valid" yaml:"valid"`
	Routes    int    `json:"routes" yaml:"routes"`
	AllowList int    `json:"allowlist" yaml:"allowlist"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a permission tables document",
		Long: `Parse and compile a permission tables document without serving it.

Unknown roles, malformed {param} patterns and routes that collide after
normalization are rejected.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(rootOpts *RootOptions, file string, cmd *cobra.Command) error {
	result := ValidationResult{File: file}
	policy, loadErr := permission.LoadFile(file)
	if loadErr == nil {
		result.Valid = true
		result.Routes = len(policy.Routes())
		result.AllowList = len(policy.AllowList())
	} else {
		result.Error = loadErr.Error()
	}

	out := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
	err := out.print(result, func(w io.Writer) error {
		if !result.Valid {
			_, err := fmt.Fprintf(w, "✗ %s: %s\n", file, result.Error)
			return err
		}
		_, err := fmt.Fprintf(w, "✓ %s: %d routes, %d allow-listed\n", file, result.Routes, result.AllowList)
		return err
	})
	if err != nil {
		return err
	}
	if loadErr != nil {
		return WrapExitError(ExitFailure, "invalid permission tables", loadErr)
	}
	return nil
}
