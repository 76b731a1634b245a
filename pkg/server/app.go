package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MetalPulse/internal/scheduler"
	"MetalPulse/internal/usecase"
	xhttp "MetalPulse/pkg/http"
	applogger "MetalPulse/pkg/logger"
)

// App encapsulates the long-running service lifecycle.
type App struct {
	log             *applogger.Logger
	httpServer      *xhttp.Server
	scheduler       *scheduler.Scheduler
	tracker         *usecase.QuoteTracker
	shutdownTimeout time.Duration
	runOnStart      bool
}

// Option configures App.
type Option func(*App)

// WithRunOnStart triggers one analysis right after startup.
func WithRunOnStart(v bool) Option { return func(a *App) { a.runOnStart = v } }

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.shutdownTimeout = d
		}
	}
}

// New creates a new App. tracker may be nil when live quotes are disabled.
func New(l *applogger.Logger, httpServer *xhttp.Server, sched *scheduler.Scheduler, tracker *usecase.QuoteTracker, opts ...Option) *App {
	a := &App{
		log:             l,
		httpServer:      httpServer,
		scheduler:       sched,
		tracker:         tracker,
		shutdownTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Scheduler exposes the job scheduler.
func (a *App) Scheduler() *scheduler.Scheduler { return a.scheduler }

// Run starts every component and blocks until ctx is done or SIGINT/SIGTERM
// arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.tracker != nil {
		if err := a.tracker.Start(ctx); err != nil {
			// live quotes are optional; the API reports them as disconnected
			a.log.Warn("quote tracker failed to start", applogger.Error(err))
		} else {
			a.log.Info("quote tracker started")
		}
	}

	if err := a.scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	if a.runOnStart {
		a.scheduler.RunNow()
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	if err := a.scheduler.Stop(ctx); err != nil {
		a.log.Warn("scheduler stop error", applogger.Error(err))
	}
	if a.tracker != nil {
		if err := a.tracker.Shutdown(ctx); err != nil {
			a.log.Warn("quote tracker stop error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
