package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bizadmin.org/internal/permission"
)

// RoutesResult is the output of the routes command.
type RoutesResult struct {
	Routes    []permission.RouteRule `json:"routes" yaml:"routes"`
	AllowList []string               `json:"deleted_organization_allowlist" yaml:"deleted_organization_allowlist"`
}

// NewRoutesCommand creates the routes command.
func NewRoutesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "routes",
		Short:         "List the permission tables",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoutes(rootOpts, cmd)
		},
	}
}

func runRoutes(rootOpts *RootOptions, cmd *cobra.Command) error {
	policy, err := rootOpts.loadPolicy()
	if err != nil {
		return err
	}
	result := RoutesResult{Routes: policy.Routes(), AllowList: policy.AllowList()}

	out := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
	return out.print(result, func(w io.Writer) error {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ROUTE\tROLES")
		for _, rule := range result.Routes {
			roles := make([]string, len(rule.Roles))
			for i, r := range rule.Roles {
				roles[i] = string(r)
			}
			fmt.Fprintf(tw, "%s\t%s\n", rule.Path, strings.Join(roles, ","))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "\nopen to deleted organizations: %s\n", strings.Join(result.AllowList, " "))
		return err
	})
}
