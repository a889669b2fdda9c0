// Package commands implements CLI commands.
package commands

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hexgate/hexgate/internal/config"
	"github.com/hexgate/hexgate/internal/debug"
	"github.com/hexgate/hexgate/internal/ui"
	"github.com/hexgate/hexgate/internal/version"
)

// skipConfig marks commands that run without loading configuration.
const skipConfig = "skip-config"

// State is shared by all commands of one invocation.
type State struct {
	Fs     afero.Fs
	Viper  *viper.Viper
	Config *config.Config
	Out    *ui.Printer

	configFile string
	noColor    bool
}

// NewRootCommand creates the hexgate command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&State{Fs: afero.NewOsFs(), Out: ui.Stdout})
}

func newRootCommand(st *State) *cobra.Command {
	root := &cobra.Command{
		Use:           "hexgate",
		Short:         "REST gateway for relational databases",
		Long:          "hexgate exposes the tables and functions of a PostgreSQL, MySQL or SQLite database as a REST API.",
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if st.noColor {
				ui.DisableColor()
			}
			if cmd.Annotations[skipConfig] == "true" {
				return nil
			}
			return st.load(cmd)
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVar(&st.configFile, "config", "", "config file (default: .hexgate.yaml in ., $HOME or $HOME/.config/hexgate)")
	flags.String("database-url", "", "database URL (overrides database.url)")
	flags.String("provider", "", "database provider: postgres, mysql or sqlite")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: text or json")
	flags.BoolVar(&st.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newServeCommand(st),
		newCompileCommand(st),
		newCatalogCommand(st),
		newRoutesCommand(st),
		newInitCommand(st),
		newVersionCommand(st),
	)
	return root
}

var flagKeys = map[string]string{
	"database-url": "database.url",
	"provider":     "database.provider",
	"log-level":    "log.level",
	"log-format":   "log.format",
}

func (st *State) load(cmd *cobra.Command) error {
	v, err := config.New()
	if err != nil {
		return err
	}
	v.SetFs(st.Fs)
	if st.configFile != "" {
		v.SetConfigFile(st.configFile)
	}
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	cfg, err := config.Load(st.Fs, v)
	if err != nil {
		return err
	}

	lvl, err := debug.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	if err := debug.Init(lvl, cfg.Log.Format, cmd.ErrOrStderr()); err != nil {
		return err
	}
	if cfg.File != "" {
		debug.Debug("config loaded", "file", cfg.File)
	}

	st.Viper = v
	st.Config = cfg
	return nil
}

func (st *State) printer(cmd *cobra.Command) *ui.Printer {
	if st.Out != ui.Stdout {
		return st.Out
	}
	return ui.New(cmd.OutOrStdout(), cmd.ErrOrStderr())
}

func requireURL(cfg *config.Config) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("no database URL: set database.url, HEXGATE_DATABASE_URL, DATABASE_URL or --database-url")
	}
	return nil
}
