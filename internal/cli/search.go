package cli

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hupe1980/vecsearch"
	"github.com/hupe1980/vecsearch/distance"
	"github.com/hupe1980/vecsearch/model"
)

type searchFlags struct {
	topK    int
	ef      int
	filters []string
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.topK, "top-k", "k", 10, "number of results")
	cmd.Flags().IntVar(&f.ef, "ef", 0, "override the collection's ef_search")
	cmd.Flags().StringArrayVar(&f.filters, "filter", nil, "exact metadata match key=value (repeatable)")
}

func (f *searchFlags) options() ([]vecsearch.SearchOption, error) {
	criteria, err := parseFilters(f.filters)
	if err != nil {
		return nil, err
	}

	var opts []vecsearch.SearchOption
	if f.ef > 0 {
		opts = append(opts, vecsearch.WithEF(f.ef))
	}
	if len(criteria) > 0 {
		opts = append(opts, vecsearch.WithPayloadFilter(criteria))
	}

	return opts, nil
}

func newSearchCommand(flags *rootFlags) *cobra.Command {
	var (
		sf       searchFlags
		vector   string
		kindName string
	)

	cmd := &cobra.Command{
		Use:   "search NAME",
		Short: "Search a collection with a query vector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := parseVector(vector)
			if err != nil {
				return err
			}

			kind := distance.KindUnspecified
			if kindName != "" {
				if kind, err = distance.ParseKind(kindName); err != nil {
					return err
				}
			}

			opts, err := sf.options()
			if err != nil {
				return err
			}

			a, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.searcher.SearchByVector(cmd.Context(), args[0], query, sf.topK, kind, opts...)
			if err != nil {
				return err
			}

			return renderResults(cmd, flags.output, results)
		},
	}

	sf.register(cmd)
	cmd.Flags().StringVarP(&vector, "vector", "v", "", "comma-separated query vector (required)")
	cmd.Flags().StringVarP(&kindName, "distance", "d", "", "metric, defaults to the collection's")
	_ = cmd.MarkFlagRequired("vector")

	return cmd
}

func newSearchByIDCommand(flags *rootFlags) *cobra.Command {
	var sf searchFlags

	cmd := &cobra.Command{
		Use:   "search-by-id NAME ID",
		Short: "Search a collection with the embedding of a stored point",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[1])
			if err != nil {
				return fmt.Errorf("invalid point id %q: %w", args[1], err)
			}

			opts, err := sf.options()
			if err != nil {
				return err
			}

			a, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.searcher.SearchByID(cmd.Context(), args[0], id, sf.topK, opts...)
			if err != nil {
				return err
			}

			return renderResults(cmd, flags.output, results)
		},
	}

	sf.register(cmd)

	return cmd
}

func newSimilarityCommand(flags *rootFlags) *cobra.Command {
	var (
		va, vb   string
		kindName string
	)

	cmd := &cobra.Command{
		Use:   "similarity",
		Short: "Compute the similarity of two vectors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := parseVector(va)
			if err != nil {
				return fmt.Errorf("--a: %w", err)
			}

			b, err := parseVector(vb)
			if err != nil {
				return fmt.Errorf("--b: %w", err)
			}

			kind, err := distance.ParseKind(kindName)
			if err != nil {
				return err
			}

			// No store access: similarity is pure arithmetic.
			s := vecsearch.New(nil)
			defer s.Close()

			sim, err := s.ComputeSimilarity(a, b, kind)
			if err != nil {
				return err
			}

			v := struct {
				Similarity float32 `json:"similarity" yaml:"similarity"`
			}{sim}

			return render(cmd.OutOrStdout(), flags.output, v, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "%g\n", sim)
			})
		},
	}

	cmd.Flags().StringVar(&va, "a", "", "first vector, comma-separated (required)")
	cmd.Flags().StringVar(&vb, "b", "", "second vector, comma-separated (required)")
	cmd.Flags().StringVarP(&kindName, "distance", "d", "cosine", "metric: cosine, euclidean, dot or manhattan")
	_ = cmd.MarkFlagRequired("a")
	_ = cmd.MarkFlagRequired("b")

	return cmd
}

func renderResults(cmd *cobra.Command, format string, results []model.SearchResult) error {
	return render(cmd.OutOrStdout(), format, results, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "RANK\tSCORE\tID\tCONTENT")
		for i, r := range results {
			fmt.Fprintf(tw, "%d\t%.4f\t%s\t%s\n", i+1, r.Score, r.ID, truncate(r.Content, 48))
		}
	})
}

// parseVector parses "1,0,0" or "[1, 0, 0]".
func parseVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")

	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty vector")
	}

	parts := strings.Split(s, ",")
	v := make([]float32, len(parts))

	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		v[i] = float32(f)
	}

	return v, nil
}
