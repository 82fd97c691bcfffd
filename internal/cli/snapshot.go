package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var errNoSnapshots = errors.New("snapshots are not configured, set snapshots.driver")

func newSnapshotCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "snapshot",
		Aliases: []string{"snapshots"},
		Short:   "Inspect persisted index snapshots",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:     "list NAME",
			Aliases: []string{"ls"},
			Short:   "List the snapshots of a collection",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := flags.open(cmd)
				if err != nil {
					return err
				}
				defer a.Close()

				if a.snapshots == nil {
					return errNoSnapshots
				}

				names, err := a.snapshots.List(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				if names == nil {
					names = []string{}
				}

				return render(cmd.OutOrStdout(), flags.output, names, func(tw *tabwriter.Writer) {
					for _, n := range names {
						fmt.Fprintln(tw, n)
					}
				})
			},
		},
		&cobra.Command{
			Use:     "delete NAME",
			Aliases: []string{"rm"},
			Short:   "Delete the snapshots of a collection",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := flags.open(cmd)
				if err != nil {
					return err
				}
				defer a.Close()

				if a.snapshots == nil {
					return errNoSnapshots
				}

				if err := a.snapshots.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Snapshots of %s deleted\n", args[0])
				return nil
			},
		},
	)

	return cmd
}
