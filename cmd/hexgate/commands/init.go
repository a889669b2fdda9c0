package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/hexgate/hexgate/internal/config"
)

type initOptions struct {
	path     string
	provider string
	url      string
	addr     string
	yes      bool
	force    bool
}

func newInitCommand(st *State) *cobra.Command {
	opts := initOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a hexgate config file",
		Long:  "Create a config file. Prompts for settings when run in a terminal unless --yes is given.",
		Args:  cobra.NoArgs,
		Annotations: map[string]string{
			skipConfig: "true",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			interactive := !opts.yes && isatty.IsTerminal(os.Stdin.Fd())
			return runInit(cmd, st, opts, interactive)
		},
	}

	cmd.Flags().StringVar(&opts.path, "path", config.FileName+".yaml", "config file to write")
	cmd.Flags().StringVar(&opts.provider, "db-provider", "postgres", "database provider: postgres, mysql or sqlite")
	cmd.Flags().StringVar(&opts.url, "db-url", "", "database URL; leave empty to use DATABASE_URL")
	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "do not prompt; use flags and defaults")
	cmd.Flags().BoolVar(&opts.force, "force", false, "overwrite an existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, st *State, opts initOptions, interactive bool) error {
	if exists, _ := afero.Exists(st.Fs, opts.path); exists && !opts.force {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", opts.path)
	}

	cfg := &config.Config{
		Server:   config.ServerConfig{Addr: opts.addr},
		Database: config.DatabaseConfig{Provider: opts.provider, URL: opts.url},
		Gateway:  config.GatewayConfig{StatementTimeout: 30 * time.Second},
		Auth:     config.AuthConfig{Mode: "none"},
		Log:      config.LogConfig{Level: "info", Format: "text"},
	}
	if interactive {
		if err := promptConfig(cfg); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := config.Save(st.Fs, cfg, opts.path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	p := st.printer(cmd)
	p.Success("Created %s", opts.path)
	if cfg.Database.URL == "" {
		p.Warning("database.url is empty; set DATABASE_URL before running hexgate serve")
	}
	return nil
}

func promptConfig(cfg *config.Config) error {
	answers := struct {
		Provider        string
		URL             string
		Addr            string
		Catalog         bool
		AllowUnfiltered bool
		Auth            string
	}{}

	questions := []*survey.Question{
		{
			Name: "provider",
			Prompt: &survey.Select{
				Message: "Database provider:",
				Options: []string{"postgres", "mysql", "sqlite"},
				Default: cfg.Database.Provider,
			},
		},
		{
			Name:   "url",
			Prompt: &survey.Input{Message: "Database URL (empty to use DATABASE_URL):", Default: cfg.Database.URL},
		},
		{
			Name:     "addr",
			Prompt:   &survey.Input{Message: "Listen address:", Default: cfg.Server.Addr},
			Validate: survey.Required,
		},
		{
			Name:   "catalog",
			Prompt: &survey.Confirm{Message: "Reject requests for tables the database does not have?", Default: true},
		},
		{
			Name:   "allowunfiltered",
			Prompt: &survey.Confirm{Message: "Allow clients to opt in to unfiltered update and delete?", Default: false},
		},
		{
			Name: "auth",
			Prompt: &survey.Select{
				Message: "Authentication:",
				Options: []string{"none", "trusted-header"},
				Default: cfg.Auth.Mode,
			},
		},
	}
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	cfg.Database.Provider = answers.Provider
	cfg.Database.URL = answers.URL
	cfg.Server.Addr = answers.Addr
	cfg.Catalog.Enabled = answers.Catalog
	cfg.Gateway.AllowUnfilteredOptIn = answers.AllowUnfiltered
	cfg.Auth.Mode = answers.Auth
	return nil
}
