package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryan-buckman/rinton/internal/pipeline"
	"github.com/bryan-buckman/rinton/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd(e *env) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Poll every configured feed and serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := e.app()
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			schedules, err := app.Schedules(ctx)
			if err != nil {
				return err
			}
			if len(schedules) == 0 {
				slog.Warn("No feeds configured, only the API is served")
			}
			responder, err := app.Responder()
			if err != nil {
				return err
			}

			pipelines := make([]*pipeline.Pipeline, 0, len(schedules))
			for _, s := range schedules {
				pipelines = append(pipelines, s.Pipeline)
			}
			srv := server.New(server.Deps{
				Todos:     app.Todos,
				Feeds:     app.Feeds,
				Pipelines: pipelines,
				Poller:    pipeline.NewPoller(schedules...),
				Responder: responder,
			})

			if port == "" {
				port = e.cfg.APIPort
			}
			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start(":" + port)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			slog.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := srv.Stop(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (default API_PORT)")
	return cmd
}
