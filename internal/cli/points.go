package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hupe1980/vecsearch/metadata"
	"github.com/hupe1980/vecsearch/model"
)

// maxLineBytes bounds one JSONL record.
const maxLineBytes = 64 << 20

func newPointsCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "points",
		Aliases: []string{"point", "payloads"},
		Short:   "Add and list points",
	}

	cmd.AddCommand(
		newPointsAddCommand(flags),
		newPointsListCommand(flags),
	)

	return cmd
}

func newPointsAddCommand(flags *rootFlags) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add points from a JSONL file",
		Long: `Add points to a collection. Every line of the input holds one point:

  {"id": "...", "content": "hello", "embedding": [1, 0, 0], "metadata": {"lang": "en"}}

Points without an id get a random one. The batch is stored atomically.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			points, err := readPoints(r)
			if err != nil {
				return err
			}

			a, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.writer.AddPoints(cmd.Context(), args[0], points); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d payloads added successfully to %s\n", len(points), args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSONL input, - for stdin")

	return cmd
}

func readPoints(r io.Reader) ([]model.Point, error) {
	var points []model.Point

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for sc.Scan() {
		line++

		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		var p model.Point
		if err := json.Unmarshal([]byte(text), &p); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}

		points = append(points, p)
	}

	if err := sc.Err(); err != nil {
		return nil, err
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("no points in input")
	}

	return points, nil
}

func newPointsListCommand(flags *rootFlags) *cobra.Command {
	var filters []string

	cmd := &cobra.Command{
		Use:     "list NAME",
		Aliases: []string{"ls"},
		Short:   "List the points of a collection",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria, err := parseFilters(filters)
			if err != nil {
				return err
			}

			a, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			points, err := a.store.LoadPoints(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if len(criteria) > 0 {
				fs, err := metadata.ExactMatch(criteria)
				if err != nil {
					return err
				}

				filtered := points[:0]
				for _, p := range points {
					if fs.Matches(metadata.DocumentFromAny(p.Metadata)) {
						filtered = append(filtered, p)
					}
				}
				points = filtered
			}

			if points == nil {
				points = []model.Point{}
			}

			return render(cmd.OutOrStdout(), flags.output, points, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "ID\tCONTENT\tMETADATA")
				for _, p := range points {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, truncate(p.Content, 48), formatMetadata(p.Metadata))
				}
			})
		},
	}

	cmd.Flags().StringArrayVar(&filters, "filter", nil, "exact metadata match key=value (repeatable)")

	return cmd
}

// parseFilters turns key=value pairs into match criteria. Values that parse
// as JSON scalars keep their type, anything else is a string.
func parseFilters(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	criteria := make(map[string]any, len(pairs))

	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid filter %q, want key=value", pair)
		}

		var parsed any
		if err := json.Unmarshal([]byte(v), &parsed); err == nil {
			switch parsed.(type) {
			case string, float64, bool:
				criteria[k] = parsed
				continue
			}
		}

		criteria[k] = v
	}

	return criteria, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func formatMetadata(m map[string]any) string {
	if len(m) == 0 {
		return "-"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "?"
	}
	return string(b)
}
