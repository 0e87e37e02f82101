package cli

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lineal-dev/lineal/internal/engine"
)

func newImpactCommand() *cobra.Command {
	var (
		sourceName string
		column     string
		upstream   bool
		maxDepth   int
	)

	cmd := &cobra.Command{
		Use:   "impact <qualified-name>",
		Short: "Walk the lineage graph from one object",
		Long: `Impact lists every object reachable from the given object, with hop
distance. By default it walks downstream (the objects that would be
affected by a change); --upstream walks toward the inputs instead.
--column narrows the walk to a single column's lineage.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := engine.New(engine.Config{
				StatePath: cfg.StatePath,
				Logger:    newLogger(),
			})
			if err != nil {
				return err
			}
			defer eng.Close()

			direction := engine.DirectionDownstream
			if upstream {
				direction = engine.DirectionUpstream
			}
			source := sourceName
			if source == "" {
				source = cfg.DefaultSource
			}
			if source == "" {
				return fmt.Errorf("no data source given; use --source or set default_source")
			}

			result, err := eng.Impact(cmd.Context(), engine.ImpactRequest{
				Source:    source,
				Object:    args[0],
				Column:    column,
				Direction: direction,
				MaxDepth:  maxDepth,
			})
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)

			if column != "" {
				t.AppendHeader(table.Row{"Depth", "Object", "Column", "Transform", "Confidence"})
				for _, tr := range result.ColumnTraces {
					t.AppendRow(table.Row{tr.Depth, tr.Object.QualifiedName(), tr.Column, tr.Transform, fmt.Sprintf("%.2f", tr.Confidence)})
				}
			} else {
				t.AppendHeader(table.Row{"Depth", "Object", "Type", "Path"})
				for _, tr := range result.Traces {
					t.AppendRow(table.Row{tr.Depth, tr.Object.QualifiedName(), tr.Object.Type, strings.Join(tr.Path, " -> ")})
				}
			}
			t.Render()

			if column != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%d columns %s of %s.%s\n", len(result.ColumnTraces), direction, args[0], column)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%d objects %s of %s\n", len(result.Traces), direction, args[0])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceName, "source", "", "data source name")
	cmd.Flags().StringVar(&column, "column", "", "narrow the walk to one column")
	cmd.Flags().BoolVar(&upstream, "upstream", false, "walk upstream instead of downstream")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "bound the walk to this many hops (0 = unbounded)")

	return cmd
}
