package main

import (
	"context"
	"expvar"
	"log"
	"runtime"

	"github.com/google/uuid"
	"github.com/lumenchat/lumen/internal/infrastructure/backplane"
	"github.com/lumenchat/lumen/internal/infrastructure/configs"
	"github.com/lumenchat/lumen/internal/infrastructure/contracts"
	"github.com/lumenchat/lumen/internal/infrastructure/env"
	"github.com/lumenchat/lumen/internal/infrastructure/events"
	"github.com/lumenchat/lumen/internal/infrastructure/identity"
	"github.com/lumenchat/lumen/internal/infrastructure/logging"
	"github.com/lumenchat/lumen/internal/infrastructure/messaging"
	"github.com/lumenchat/lumen/internal/infrastructure/ratelimiter"
	"github.com/lumenchat/lumen/internal/infrastructure/tracing"
	"github.com/lumenchat/lumen/internal/infrastructure/ws"
	"github.com/lumenchat/lumen/internal/presentation/api"
	healthHandler "github.com/lumenchat/lumen/internal/presentation/handler/health"
	socketsHandler "github.com/lumenchat/lumen/internal/presentation/handler/sockets"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

const (
	serviceName = "lumen-gateway"
)

func main() {
	tracerCfg := tracing.NewDefaultConfig(serviceName)

	sh, err := tracing.InitTracer(tracerCfg)
	if err != nil {
		log.Fatalf("Failed to initialize the tracer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer sh(ctx)

	logger := logging.NewLogger(logging.NewDefaultConfig())

	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	hub := ws.NewHub(logger)

	// Backplane first: the room consumers broadcast through it, and an
	// instance must apply its own frames too.
	bus := backplane.NewRedisBus(backplane.RedisConfig{
		Addr:     cfg.Backplane.RedisAddr,
		Password: cfg.Backplane.RedisPassword,
		Channel:  cfg.Backplane.Channel,
	})
	bp := backplane.New(bus, hub, logger)
	if err := bp.Start(ctx); err != nil {
		logger.Fatal(logging.Backplane, logging.Startup, "failed to start backplane", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	router := events.NewRouter(bp, logger)

	rmq := messaging.NewRabbitMQ(messaging.Config{
		URI:               cfg.Broker.URI,
		Exchange:          cfg.Broker.Exchange,
		Prefetch:          cfg.Broker.Prefetch,
		ReconnectBase:     cfg.Broker.ReconnectBase,
		ReconnectMax:      cfg.Broker.ReconnectMax,
		ReconnectAttempts: cfg.Broker.ReconnectAttempts,
	}, logger)
	defer rmq.Close()

	// Runs on every (re)connect: declare topology, restart the two
	// consumer groups on the fresh channel.
	rmq.OnReady(func(ch *amqp.Channel) error {
		// The ephemeral queue is per-instance; a fresh suffix per connect
		// is fine because the old one auto-deletes with its connection.
		ephemeralName := cfg.Retry.RealtimeQueue + "." + uuid.NewString()
		queueName, err := rmq.DeclareEphemeralQueue(ch, ephemeralName, contracts.RealtimeKeys())
		if err != nil {
			return err
		}

		realtime := events.NewConsumer(queueName, router.RealtimeHandlers(),
			events.NewDropPolicy(queueName, logger), logger)
		if err := realtime.Start(ctx, ch); err != nil {
			return err
		}

		queues, err := rmq.DeclareRetryTopology(ch, cfg.Retry.CriticalGroup, cfg.Retry.WaitingTTL, contracts.CriticalKeys())
		if err != nil {
			return err
		}

		critical := events.NewConsumer(queues.Main, router.CriticalHandlers(),
			events.NewRetryPolicy(queues, cfg.Retry.MaxRetries, rmq, logger), logger)
		return critical.Start(ctx, ch)
	})

	if err := rmq.Connect(); err != nil {
		logger.Fatal(logging.RabbitMQ, logging.Startup, "failed to connect to broker", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	go func() {
		<-rmq.Failed()
		// Keep serving connected clients; the health endpoint reports the
		// broker as down so operators and orchestration can react.
		logger.Error(logging.RabbitMQ, logging.Reconnect, "broker permanently unavailable", nil)
	}()

	verifier := identity.NewHTTPVerifier(env.GetString("AUTH_INTROSPECT_URL", "http://auth:8081/api/auth/introspect"))

	socketsH := socketsHandler.NewHandler(hub, verifier, cfg.WS, logger)
	healthH := healthHandler.NewHandler(hub, func() string { return rmq.State().String() })

	// The limiter shares its buckets through the same Redis the backplane
	// uses, so the limit holds across instances behind one load balancer.
	rl := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.RateLimiter.MaxRatePerSecond,
		MaxBurst:         cfg.RateLimiter.MaxBurst,
		CacheTTL:         cfg.RateLimiter.CacheTTL,
		SourceHeaderKey:  cfg.RateLimiter.SourceHeaderKey,
		Cache: ratelimiter.NewRedisCache(redis.NewClient(&redis.Options{
			Addr:     cfg.Backplane.RedisAddr,
			Password: cfg.Backplane.RedisPassword,
		})),
	})

	cleanup := func(ctx context.Context) {
		hub.Shutdown()
		if err := bp.Close(); err != nil {
			logger.Warn(logging.Backplane, logging.Shutdown, "backplane close failed", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
		rmq.Close()
	}

	app := api.NewApplication(*cfg, socketsH, healthH, logger, rl, cleanup)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.Mount()
	if err := app.Run(mux); err != nil {
		logger.Fatal(logging.General, logging.Shutdown, "server exited with error", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
}
