package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"bizadmin.org/internal/auth"
	"bizadmin.org/internal/permission"
)

type checkOptions struct {
	role    string
	deleted bool
}

// CheckResult is the output of the check command.
type CheckResult struct {
	Path                string    `json:"path" yaml:"path"`
	Role                auth.Role `json:"role" yaml:"role"`
	OrganizationDeleted bool      `json:"organization_deleted" yaml:"organization_deleted"`
	permission.Decision `yaml:",inline"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &checkOptions{}

	cmd := &cobra.Command{
		Use:   "check <path>",
		Short: "Decide whether a role may open a route",
		Long: `Evaluate the permission gate for one route.

Exits 0 when the route is permitted and 1 when it is denied.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.role, "role", "", "role of the signed-in user")
	cmd.Flags().BoolVar(&opts.deleted, "deleted", false, "treat the user's organization as soft-deleted")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}

func runCheck(rootOpts *RootOptions, opts *checkOptions, path string, cmd *cobra.Command) error {
	role, err := auth.ParseRole(opts.role)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --role", err)
	}
	policy, err := rootOpts.loadPolicy()
	if err != nil {
		return err
	}

	var org auth.Organization
	if opts.deleted {
		at := time.Now().UTC()
		org.DeletedAt = &at
	}

	result := CheckResult{
		Path:                path,
		Role:                role,
		OrganizationDeleted: opts.deleted,
		Decision:            policy.Decide(path, role, org),
	}
	out := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
	err = out.print(result, func(w io.Writer) error {
		verdict := "deny"
		if result.Allowed {
			verdict = "allow"
		}
		if result.Route != "" {
			_, err := fmt.Fprintf(w, "%s %s (%s, route %s)\n", verdict, path, result.Reason, result.Route)
			return err
		}
		_, err := fmt.Fprintf(w, "%s %s (%s)\n", verdict, path, result.Reason)
		return err
	})
	if err != nil {
		return err
	}
	if !result.Allowed {
		return NewExitError(ExitFailure, fmt.Sprintf("%s denied for %s", path, role))
	}
	return nil
}
