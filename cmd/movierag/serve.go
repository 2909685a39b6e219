package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/calque-ai/movierag/pkg/api"
	"github.com/calque-ai/movierag/pkg/calque"
	"github.com/calque-ai/movierag/pkg/middleware/ctrl"
)

func newServeCmd(global *globalOptions) *cobra.Command {
	var (
		addr string
		rps  int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve /ask, /healthz and /metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, app, err := loadApp(cmd, global)
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			if addr == "" {
				addr = app.Config.HTTPAddr
			}
			s := &api.Server{
				Chain:    app.Chain,
				Log:      app.Log,
				Logger:   app.Logger,
				Metrics:  app.Metrics,
				Tracer:   app.Tracer,
				Health:   app.HealthChecks(),
				Cache:    app.Cache,
				CacheTTL: app.Config.Cache.TTL,
			}
			if rps > 0 {
				s.Limiter = ctrl.NewLimiter(rps, time.Second)
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           s.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			calque.LogInfo(ctx, "listening", "addr", addr)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			calque.LogInfo(ctx, "shutting down")
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default MOVIERAG_HTTP_ADDR)")
	cmd.Flags().IntVar(&rps, "rps", 0, "maximum /ask requests per second, 0 for no limit")
	return cmd
}
