package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hexgate/hexgate/internal/config"
	"github.com/hexgate/hexgate/internal/debug"
	"github.com/hexgate/hexgate/internal/utils/container"
)

func newServeCommand(st *State) *cobra.Command {
	var addr string
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway",
		Long:  "Connect to the database and serve its tables and functions until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				st.Config.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, st, watch)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&watch, "watch", true, "reload the log level when the config file changes")

	return cmd
}

func runServe(ctx context.Context, st *State, watch bool) error {
	if err := requireURL(st.Config); err != nil {
		return err
	}

	c, err := container.NewContainer(st.Config)
	if err != nil {
		return err
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if err := c.Close(context.Background()); err != nil {
			debug.Warn("failed to close database", "error", err)
		}
	}()

	if cat := c.Catalog(); cat != nil {
		go cat.Run(ctx)
	}

	if watch {
		w, err := config.Watch(st.Viper)
		if err != nil {
			debug.Warn("config watch disabled", "error", err)
		} else if w != nil {
			defer w.Stop()
		}
	}

	srv, err := c.Server()
	if err != nil {
		return err
	}
	debug.Info("gateway ready",
		"provider", st.Config.Database.Provider,
		"addr", st.Config.Server.Addr,
		"catalog", st.Config.Catalog.Enabled,
		"auth", st.Config.Auth.Mode)
	return srv.ListenAndServe(ctx)
}
