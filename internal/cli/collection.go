package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vecsearch/distance"
	"github.com/hupe1980/vecsearch/model"
)

type collectionView struct {
	model.CollectionConfig `yaml:",inline"`
	VectorsCount           int `json:"vectors_count" yaml:"vectors_count"`
}

func newCollectionCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "collection",
		Aliases: []string{"collections", "col"},
		Short:   "Manage collections",
	}

	cmd.AddCommand(
		newCollectionCreateCommand(flags),
		newCollectionListCommand(flags),
		newCollectionGetCommand(flags),
		newCollectionDeleteCommand(flags),
	)

	return cmd
}

func newCollectionCreateCommand(flags *rootFlags) *cobra.Command {
	var (
		size     int
		kindName string
		hnsw     model.HNSWConfig
	)

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := distance.ParseKind(kindName)
			if err != nil {
				return err
			}

			cfg := model.CollectionConfig{
				Name:     args[0],
				Size:     size,
				Distance: kind,
				HNSW:     hnsw,
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			a, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.writer.CreateCollection(cmd.Context(), cfg); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Collection %s created successfully\n", cfg.Name)
			return nil
		},
	}

	cmd.Flags().IntVar(&size, "size", 0, "embedding dimension (required)")
	cmd.Flags().StringVarP(&kindName, "distance", "d", "cosine", "metric: cosine, euclidean, dot or manhattan")
	cmd.Flags().IntVar(&hnsw.M, "m", 0, "max neighbors per node (default 16)")
	cmd.Flags().IntVar(&hnsw.EFConstruction, "ef-construction", 0, "candidate list size during construction (default 200)")
	cmd.Flags().IntVar(&hnsw.EFSearch, "ef-search", 0, "candidate list size during search (default 50)")
	_ = cmd.MarkFlagRequired("size")

	return cmd
}

func newCollectionListCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List collections",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cfgs, err := a.store.ListCollections(cmd.Context())
			if err != nil {
				return err
			}

			views := make([]collectionView, 0, len(cfgs))
			for _, cfg := range cfgs {
				n, err := a.store.CountPoints(cmd.Context(), cfg.Name)
				if err != nil {
					return err
				}
				views = append(views, collectionView{CollectionConfig: cfg, VectorsCount: n})
			}

			return render(cmd.OutOrStdout(), flags.output, views, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "NAME\tSIZE\tDISTANCE\tPOINTS")
				for _, v := range views {
					fmt.Fprintf(tw, "%s\t%d\t%s\t%d\n", v.Name, v.Size, v.Distance, v.VectorsCount)
				}
			})
		},
	}
}

func newCollectionGetCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get NAME",
		Short: "Show a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg, err := a.store.LoadConfig(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			n, err := a.store.CountPoints(cmd.Context(), cfg.Name)
			if err != nil {
				return err
			}

			v := collectionView{CollectionConfig: cfg, VectorsCount: n}
			h := cfg.HNSW.WithDefaults()

			return render(cmd.OutOrStdout(), flags.output, v, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "Name:\t%s\n", cfg.Name)
				fmt.Fprintf(tw, "Size:\t%d\n", cfg.Size)
				fmt.Fprintf(tw, "Distance:\t%s\n", cfg.Distance)
				fmt.Fprintf(tw, "HNSW:\tm=%d ef_construction=%d ef_search=%d\n", h.M, h.EFConstruction, h.EFSearch)
				fmt.Fprintf(tw, "Points:\t%d\n", n)
			})
		},
	}
}

func newCollectionDeleteCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "delete NAME",
		Aliases: []string{"rm"},
		Short:   "Delete a collection and its points",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.writer.DeleteCollection(cmd.Context(), args[0]); err != nil {
				return err
			}

			if a.snapshots != nil {
				if err := a.snapshots.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Collection %s deleted successfully\n", args[0])
			return nil
		},
	}
}
