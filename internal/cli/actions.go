package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"bizadmin.org/internal/actiontype"
)

// NewActionsCommand creates the actions command.
func NewActionsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actions [BASE...]",
		Short: "Derive action-type families",
		Long: `Print the REQUEST, SUCCESS, FAILED and CLEAN identifiers of each base.

Without arguments the built-in catalog is listed. With arguments the
bases are registered together, so a name that collides with another
base's derived identifier is reported.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runActions(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runActions(rootOpts *RootOptions, bases []string, cmd *cobra.Command) error {
	families := actiontype.Catalog.Families()
	if len(bases) > 0 {
		reg := actiontype.NewRegistry()
		families = make([]actiontype.Family, 0, len(bases))
		for _, base := range bases {
			fam, err := reg.Register(strings.TrimSpace(base))
			if err != nil {
				return WrapExitError(ExitFailure, fmt.Sprintf("register %q", base), err)
			}
			families = append(families, fam)
		}
	}

	out := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
	return out.print(map[string][]actiontype.Family{"families": families}, func(w io.Writer) error {
		for _, fam := range families {
			if _, err := fmt.Fprintf(w, "%s\n", fam.Base); err != nil {
				return err
			}
			for _, phase := range actiontype.Phases() {
				if _, err := fmt.Fprintf(w, "  %-8s %s\n", phase, fam.Type(phase)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
