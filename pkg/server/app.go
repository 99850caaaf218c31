package server

import (
	"context"

	"FinRank/pkg/config"
	xhttp "FinRank/pkg/http"
	applogger "FinRank/pkg/logger"
)

// BackgroundHandler is an HTTP handler that may still be running work after
// the listener stops.
type BackgroundHandler interface {
	xhttp.Handler
	Wait()
}

// App encapsulates the serve lifecycle. Infrastructure clients are closed by
// the DI cleanup once Run returns.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	handler    BackgroundHandler
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, h BackgroundHandler) *App {
	if l == nil {
		l = applogger.Nop()
	}
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	srv := xhttp.NewServer(l, []xhttp.Handler{h},
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithCORS(cfg.Server.CORS),
	)
	return &App{cfg: cfg, log: l, handler: h, httpServer: srv}
}

// Server returns the HTTP server.
func (a *App) Server() *xhttp.Server { return a.httpServer }

// Run starts the HTTP server and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("finrank serving",
		applogger.String("environment", a.cfg.Environment),
		applogger.String("store", a.cfg.Store.Backend),
		applogger.String("prices", a.cfg.Prices.Provider),
	)

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown(context.WithoutCancel(ctx))
}

// shutdown stops the listener and waits for background generation runs.
func (a *App) shutdown(ctx context.Context) error {
	err := a.httpServer.Stop(ctx)
	if err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	a.handler.Wait()
	a.log.Info("shutdown complete")
	return err
}
