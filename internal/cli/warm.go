package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newWarmCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "warm NAME...",
		Short: "Build the indexes of collections ahead of queries",
		Long: `Build the indexes of the given collections, or of every collection when
none is named. With snapshots configured the built graphs are persisted so
that a later serve restores instead of rebuilding.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			names := args
			if len(names) == 0 {
				cfgs, err := a.store.ListCollections(cmd.Context())
				if err != nil {
					return err
				}
				for _, cfg := range cfgs {
					names = append(names, cfg.Name)
				}
			}

			if err := a.searcher.Warm(cmd.Context(), names...); err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), flags.output, a.searcher.Cached(), func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "Warmed %d collection(s), %d build(s)\n", len(names), a.searcher.Builds())
			})
		},
	}
}
