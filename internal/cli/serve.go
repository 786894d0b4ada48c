package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/impromptu/internal/config"
	"github.com/hupe1980/impromptu/internal/server"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.Listen = listen
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides server.listen)")
	return cmd
}

func runServe(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, nil, os.Stderr)
	if err != nil {
		return err
	}

	srv := server.New(app.Assistant, func(o *server.Options) {
		o.Addr = cfg.Server.Listen
		o.Logger = app.Logger
		if app.Instrumentation.Enabled() {
			o.Metrics = app.Instrumentation.Handler()
		}
	})

	app.Logger.Info("impromptu.start",
		"version", version,
		"model", cfg.Model.Provider,
		"calendar", cfg.Calendar.Provider,
		"oauth", cfg.UsesOAuth())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Warn("server.shutdown.failed", "error", err.Error())
	}
	return app.Shutdown(shutdownCtx)
}
