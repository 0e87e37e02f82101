package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lineal-dev/lineal/internal/engine"
	"github.com/lineal-dev/lineal/pkg/core"
)

func newObjectsCommand() *cobra.Command {
	var (
		sourceName string
		showStale  bool
	)

	cmd := &cobra.Command{
		Use:   "objects [qualified-name]",
		Short: "List synced objects, or show one object with its edges",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := engine.New(engine.Config{
				StatePath: cfg.StatePath,
				Logger:    newLogger(),
			})
			if err != nil {
				return err
			}
			defer eng.Close()

			store := eng.Store()
			source := sourceName
			if source == "" {
				source = cfg.DefaultSource
			}
			if source == "" {
				return listSources(cmd, store)
			}

			ds, err := store.GetDataSource(cmd.Context(), source)
			if err != nil {
				return err
			}
			if ds == nil {
				return fmt.Errorf("data source not found: %s", source)
			}

			if len(args) == 1 {
				return showObject(cmd, store, ds.ID, args[0])
			}
			return listObjects(cmd, store, ds.ID, showStale)
		},
	}

	cmd.Flags().StringVar(&sourceName, "source", "", "data source name")
	cmd.Flags().BoolVar(&showStale, "stale", false, "include objects marked stale")

	return cmd
}

func listSources(cmd *cobra.Command, store core.Store) error {
	sources, err := store.ListDataSources(cmd.Context())
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Source", "Platform", "Host", "Database"})
	for _, s := range sources {
		t.AppendRow(table.Row{s.Name, s.Platform, s.Host, s.Database})
	}
	t.Render()
	return nil
}

func listObjects(cmd *cobra.Command, store core.Store, sourceID string, showStale bool) error {
	objects, err := store.ListObjects(cmd.Context(), sourceID)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Object", "Type", "Columns", "Stale"})
	for _, o := range objects {
		if o.Stale && !showStale {
			continue
		}
		t.AppendRow(table.Row{o.QualifiedName(), o.Type, len(o.Columns), o.Stale})
	}
	t.Render()
	return nil
}

func showObject(cmd *cobra.Command, store core.Store, sourceID, name string) error {
	object, err := store.GetObjectByName(cmd.Context(), sourceID, name)
	if err != nil {
		return err
	}
	if object == nil {
		return fmt.Errorf("object not found: %s", name)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s)\n", object.QualifiedName(), object.Type)
	if object.Description != "" {
		fmt.Fprintf(out, "  %s\n", object.Description)
	}
	if object.Stale {
		fmt.Fprintln(out, "  stale: yes")
	}

	if len(object.Columns) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(out)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Column", "Type"})
		for _, c := range object.Columns {
			t.AppendRow(table.Row{c.Name, c.Type})
		}
		t.Render()
	}

	upstream, err := store.ListEdgesTo(cmd.Context(), object.ID)
	if err != nil {
		return err
	}
	downstream, err := store.ListEdgesFrom(cmd.Context(), object.ID)
	if err != nil {
		return err
	}

	if len(upstream)+len(downstream) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(out)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Direction", "Object", "Type", "Confidence", "Cycle"})
		for _, e := range upstream {
			t.AppendRow(table.Row{"upstream", e.SourceName, e.Type, fmt.Sprintf("%.2f", e.Confidence), e.Cycle})
		}
		for _, e := range downstream {
			t.AppendRow(table.Row{"downstream", e.TargetName, e.Type, fmt.Sprintf("%.2f", e.Confidence), e.Cycle})
		}
		t.Render()
	}
	return nil
}
