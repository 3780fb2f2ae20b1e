package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"geoatlas/internal/api"
	"geoatlas/internal/etl"
	"geoatlas/internal/query"
	"geoatlas/internal/source"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP query API",
		Long:  "Serves the geodata endpoints. When ETL_SCHEDULE is set, a full update also runs on that cron schedule.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			return runServer(ctx, a)
		},
	}
}

func runServer(ctx context.Context, a *app) error {
	srv := api.NewServer(
		query.NewGeoService(a.geo, a.log),
		query.NewVG250Service(a.geo, a.log),
		query.NewPopulationService(a.geo, a.log),
		query.NewMetadataService(a.meta),
		a.log,
	)

	httpSrv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           srv.Router(a.cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if a.cfg.ETLSchedule != "" {
		stopCron, err := startScheduledUpdates(a)
		if err != nil {
			return err
		}
		defer stopCron()
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http server listening", "addr", a.cfg.ListenAddr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// startScheduledUpdates runs a full ETL update on the configured cron
// schedule. The returned function stops the scheduler and waits for a
// running update to finish.
func startScheduledUpdates(a *app) (func(), error) {
	env := source.NewEnv(a.cfg, a.geo, a.meta, a.log)
	orch := etl.New(env)

	c := cron.New()
	_, err := c.AddFunc(a.cfg.ETLSchedule, func() {
		if err := orch.Update(context.Background(), etl.UpdateOptions{}); err != nil {
			a.log.Error("scheduled update failed", "error", err)
		}
	})
	if err != nil {
		return nil, err
	}

	a.log.Info("scheduled updates enabled", "schedule", a.cfg.ETLSchedule)
	c.Start()
	return func() {
		stopCtx := c.Stop()
		<-stopCtx.Done()
	}, nil
}
