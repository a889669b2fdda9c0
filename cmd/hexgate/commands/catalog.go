package commands

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hexgate/hexgate/internal/core/catalog"
	"github.com/hexgate/hexgate/internal/utils/container"
)

func newCatalogCommand(st *State) *cobra.Command {
	var asJSON bool
	var schemas []string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the tables, views and functions the gateway can serve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireURL(st.Config); err != nil {
				return err
			}
			cfg := *st.Config
			cfg.Catalog.Enabled = true
			cfg.Catalog.RefreshInterval = 0
			if len(schemas) > 0 {
				cfg.Catalog.Schemas = schemas
			}

			c, err := container.NewContainer(&cfg)
			if err != nil {
				return err
			}
			if err := c.Connect(cmd.Context()); err != nil {
				return err
			}
			defer c.Close(cmd.Context())

			snap := c.Catalog().Snapshot()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			return printCatalog(st, cmd, string(c.Adapter().GetDialect()), snap)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON")
	cmd.Flags().StringSliceVar(&schemas, "schema", nil, "only list these schemas")

	return cmd
}

func printCatalog(st *State, cmd *cobra.Command, dialect string, snap *catalog.Snapshot) error {
	p := st.printer(cmd)
	p.KeyValue([][2]string{
		{"dialect", dialect},
		{"server", snap.ServerVersion},
	})

	rows := make([][]string, 0, len(snap.Tables)+len(snap.Functions))
	for _, t := range snap.Tables {
		kind := "table"
		if t.View {
			kind = "view"
		}
		rows = append(rows, []string{t.Schema, t.Name, kind, strings.Join(t.Columns, ", ")})
	}
	for _, f := range snap.Functions {
		rows = append(rows, []string{f.Schema, f.Name, "function", ""})
	}
	if len(rows) == 0 {
		p.Warning("no tables or functions found")
		return nil
	}
	if err := p.Table([]string{"schema", "name", "kind", "columns"}, rows); err != nil {
		return err
	}
	p.Success("%d tables, %d functions", len(snap.Tables), len(snap.Functions))
	return nil
}
