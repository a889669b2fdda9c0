package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hexgate/hexgate/internal/adapters/database"
	"github.com/hexgate/hexgate/internal/utils/container"
	"github.com/hexgate/hexgate/internal/version"
)

func newVersionCommand(st *State) *cobra.Command {
	var server bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Annotations: map[string]string{
			skipConfig: "true",
		},
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if server {
				return st.load(cmd)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			p := st.printer(cmd)
			p.KeyValue([][2]string{
				{"version", info.Version},
				{"commit", info.GitCommit},
				{"built", info.BuildDate},
				{"go", info.GoVersion},
				{"platform", info.Platform},
			})
			if !server {
				return nil
			}
			return printServerVersion(cmd, st)
		},
	}

	cmd.Flags().BoolVar(&server, "server", false, "also connect and report the database server version")
	return cmd
}

func printServerVersion(cmd *cobra.Command, st *State) error {
	if err := requireURL(st.Config); err != nil {
		return err
	}
	a, err := container.CreateDatabaseAdapter(st.Config.Database)
	if err != nil {
		return err
	}
	if err := a.Connect(cmd.Context()); err != nil {
		return err
	}
	defer a.Disconnect(cmd.Context())

	raw, err := a.ServerVersion(cmd.Context())
	if err != nil {
		return err
	}
	v, err := database.ParseServerVersion(raw)
	if err != nil {
		return err
	}
	caps := database.Capabilities(a.GetDialect(), v)

	st.printer(cmd).KeyValue([][2]string{
		{"database", fmt.Sprintf("%s %s", a.GetDialect(), v)},
		{"returning", fmt.Sprintf("%t", caps.Returning)},
		{"nulls ordering", fmt.Sprintf("%t", caps.NullsOrdering)},
		{"distinct on", fmt.Sprintf("%t", caps.DistinctOn)},
		{"functions", fmt.Sprintf("%t", caps.NamedArgs)},
	})
	return nil
}
