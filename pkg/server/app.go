package server

import (
	"context"
	"errors"
	"fmt"

	"HistPull/internal/domain/models"
	"HistPull/internal/handler/api"
	"HistPull/internal/usecase"
	"HistPull/pkg/config"
	xhttp "HistPull/pkg/http"
	applogger "HistPull/pkg/logger"
	"HistPull/pkg/metrics"
)

// App encapsulates the application lifecycle in batch and server mode.
type App struct {
	cfg     *config.Config
	svc     *usecase.DownloadService
	metrics *metrics.Recorder
	log     *applogger.Logger
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, svc *usecase.DownloadService, rec *metrics.Recorder, l *applogger.Logger) *App {
	return &App{cfg: cfg, svc: svc, metrics: rec, log: l}
}

// RunBatch connects to the vendor and downloads the configured range once.
// A *models.ConnectionError is returned before any task is scheduled; task
// failures are reported in the returned report, not as an error.
func (a *App) RunBatch(ctx context.Context) (*models.BatchReport, error) {
	defer a.shutdown()

	if err := a.svc.Connect(ctx); err != nil {
		return nil, err
	}
	return a.svc.Run(ctx, models.DownloadRequest{
		StartDate:   a.cfg.Download.StartDate.Time,
		EndDate:     a.cfg.Download.EndDate.Time,
		Instruments: a.cfg.Download.Instruments,
		MaxWorkers:  a.cfg.Download.MaxWorkers,
	})
}

// Serve connects to the vendor and exposes the admin API until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	defer a.shutdown()

	if err := a.svc.Connect(ctx); err != nil {
		return err
	}

	httpServer := xhttp.NewServer(api.NewDownloadsHandler(a.log, a.svc),
		xhttp.WithHost(a.cfg.Server.Host),
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.log),
		xhttp.WithRegistry(a.metrics.Registry()),
	)
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("http server start: %w", err)
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), httpServer.ShutdownTimeout())
	defer cancel()
	if err := httpServer.Stop(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	return nil
}

// shutdown waits for background runs and closes the event publisher.
func (a *App) shutdown() {
	if err := a.svc.Close(); err != nil {
		a.log.Warn("download service close error", applogger.Error(err))
	}
	a.log.Info("shutdown complete")
}
