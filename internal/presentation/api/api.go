package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lumenchat/lumen/internal/infrastructure/configs"
	"github.com/lumenchat/lumen/internal/infrastructure/logging"
	"github.com/lumenchat/lumen/internal/infrastructure/metrics"
	"github.com/lumenchat/lumen/internal/infrastructure/ratelimiter"
	healthHandler "github.com/lumenchat/lumen/internal/presentation/handler/health"
	socketsHandler "github.com/lumenchat/lumen/internal/presentation/handler/sockets"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Application struct {
	config         configs.Config
	socketsHandler *socketsHandler.Handler
	healthHandler  *healthHandler.Handler
	logger         logging.Logger
	ratelimiter    ratelimiter.Limiter

	// cleanup runs after the HTTP server has stopped accepting new
	// connections: transport, backplane, broker — in that order.
	cleanup func(ctx context.Context)
}

func NewApplication(
	config configs.Config,
	socketsHandler *socketsHandler.Handler,
	healthHandler *healthHandler.Handler,
	logger logging.Logger,
	ratelimiter ratelimiter.Limiter,
	cleanup func(ctx context.Context),
) *Application {
	return &Application{
		config:         config,
		socketsHandler: socketsHandler,
		healthHandler:  healthHandler,
		logger:         logger,
		ratelimiter:    ratelimiter,
		cleanup:        cleanup,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Use(app.loggerMiddleware)
	r.Use(app.rateLimiterMiddleware)
	r.Use(app.enableCors)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", app.healthHandler.GetHealth)
		r.Get("/healthz", app.healthHandler.GetHealth)
		r.Get("/ready", app.healthHandler.GetHealth)
		r.Get("/live", app.healthHandler.GetHealth)
	})

	// The websocket endpoint must stay outside the chi timeout middleware;
	// connections are long-lived by design.
	r.Get("/ws", app.socketsHandler.ConnectHandler)

	r.Handle("/metrics", metrics.Handler())

	return otelhttp.NewHandler(r, "lumen-gateway")
}

func (app *Application) Run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:      mux,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), app.config.HTTP.ShutdownGrace)
		defer cancel()

		app.logger.Info(logging.General, logging.Shutdown, "signal caught", map[logging.ExtraKey]any{
			"signal": s.String(),
		})

		// Stop accepting new connections first, then tear down the rest.
		err := srv.Shutdown(ctx)
		if app.cleanup != nil {
			app.cleanup(ctx)
		}
		shutdown <- err
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	return nil
}
