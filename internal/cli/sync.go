package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lineal-dev/lineal/internal/engine"
	"github.com/lineal-dev/lineal/pkg/core"
)

// batchFile is the on-disk batch format. YAML and JSON both decode.
type batchFile struct {
	Source struct {
		Name        string         `yaml:"name"`
		Platform    string         `yaml:"platform"`
		Host        string         `yaml:"host"`
		Port        int            `yaml:"port"`
		Database    string         `yaml:"database"`
		Description string         `yaml:"description"`
		Metadata    map[string]any `yaml:"metadata"`
	} `yaml:"source"`
	// LastSync is the value returned by the previous run, zero when unknown
	LastSync time.Time `yaml:"last_sync"`
	Objects  []struct {
		Database    string         `yaml:"database"`
		Schema      string         `yaml:"schema"`
		Name        string         `yaml:"name"`
		Type        string         `yaml:"type"`
		SQL         string         `yaml:"sql"`
		Description string         `yaml:"description"`
		Tags        []string       `yaml:"tags"`
		Metadata    map[string]any `yaml:"metadata"`
		References  []string       `yaml:"references"`
		Columns     []struct {
			Name        string         `yaml:"name"`
			Type        string         `yaml:"type"`
			Nullable    *bool          `yaml:"nullable"`
			PrimaryKey  bool           `yaml:"primary_key"`
			Description string         `yaml:"description"`
			Metadata    map[string]any `yaml:"metadata"`
		} `yaml:"columns"`
	} `yaml:"objects"`
}

func newSyncCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <batch-file>",
		Short: "Resolve lineage for a batch of objects and persist the graph",
		Long: `Sync reads a batch file describing a data source and its objects,
extracts table and column lineage from each object's SQL, builds the
dependency graph, and upserts it into the lineage database.

Objects previously synced but absent from the batch are marked stale.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := loadBatchFile(args[0])
			if err != nil {
				return err
			}

			eng, err := engine.New(engine.Config{
				StatePath:     cfg.StatePath,
				Logger:        newLogger(),
				Workers:       cfg.Workers,
				Strict:        cfg.Strict,
				RetryAttempts: cfg.RetryAttempts,
			})
			if err != nil {
				return err
			}
			defer eng.Close()

			summary, err := eng.Sync(cmd.Context(), batch)
			if err != nil {
				return err
			}

			renderSummary(cmd, summary)
			return nil
		},
	}
	return cmd
}

// loadBatchFile decodes a batch file into a sync request.
func loadBatchFile(path string) (*engine.Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	var bf batchFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return nil, fmt.Errorf("failed to decode batch file: %w", err)
	}
	if bf.Source.Name == "" {
		return nil, fmt.Errorf("batch file has no source name")
	}

	batch := &engine.Batch{
		Source: core.DataSource{
			Name:        bf.Source.Name,
			Platform:    core.Platform(bf.Source.Platform),
			Host:        bf.Source.Host,
			Port:        bf.Source.Port,
			Database:    bf.Source.Database,
			Description: bf.Source.Description,
			Metadata:    bf.Source.Metadata,
		},
		LastSync: bf.LastSync,
	}
	if batch.Source.Platform == "" {
		batch.Source.Platform = core.PlatformGeneric
	}

	for _, o := range bf.Objects {
		object := &core.DataObject{
			SourceName:  bf.Source.Name,
			Database:    o.Database,
			Schema:      o.Schema,
			Name:        o.Name,
			Type:        core.ObjectType(o.Type),
			SQL:         o.SQL,
			Description: o.Description,
			Tags:        o.Tags,
			Metadata:    o.Metadata,
			References:  o.References,
		}
		if object.Type == "" {
			if object.SQL != "" {
				object.Type = core.ObjectTypeView
			} else {
				object.Type = core.ObjectTypeTable
			}
		}
		for i, c := range o.Columns {
			// Columns are nullable unless the batch says otherwise
			nullable := true
			if c.Nullable != nil {
				nullable = *c.Nullable
			}
			object.Columns = append(object.Columns, core.Column{
				Name:        c.Name,
				Type:        c.Type,
				Ordinal:     i,
				Nullable:    nullable,
				PrimaryKey:  c.PrimaryKey,
				Description: c.Description,
				Metadata:    c.Metadata,
			})
		}
		batch.Objects = append(batch.Objects, object)
	}

	return batch, nil
}

// renderSummary prints the batch outcome as a table.
func renderSummary(cmd *cobra.Command, summary *core.BatchSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Object", "Status", "Edges", "Columns", "Detail"})
	for _, r := range summary.Results {
		t.AppendRow(table.Row{r.QualifiedName, r.Status, r.Edges, r.Columns, r.Error})
	}
	t.Render()

	fmt.Fprintf(cmd.OutOrStdout(), "\n%d objects: %d resolved, %d partial, %d failed, %d marked stale (%d edges)\n",
		summary.Total, summary.Resolved, summary.Partial, summary.Failed, summary.Stale, summary.StaleEdges)
	fmt.Fprintf(cmd.OutOrStdout(), "synced at %s\n", summary.LastSync.Format(time.RFC3339))

	for _, cycle := range summary.Cycles {
		fmt.Fprintf(cmd.ErrOrStderr(), "cycle: %s\n", strings.Join(cycle, " -> "))
	}
}
