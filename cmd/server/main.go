package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"go.pilab.hu/deviceauth"
	echoapi "go.pilab.hu/deviceauth/api/echo"
	"go.pilab.hu/deviceauth/bboltdb"
	"go.pilab.hu/deviceauth/cache"
	"go.pilab.hu/deviceauth/cache/redis"
	"go.pilab.hu/deviceauth/client"
	"go.pilab.hu/deviceauth/config"
	"go.pilab.hu/deviceauth/internal/audit"
	"go.pilab.hu/deviceauth/internal/auth"
	"go.pilab.hu/deviceauth/internal/metrics"
	"go.pilab.hu/deviceauth/internal/server"
	"go.pilab.hu/deviceauth/log"
	"go.pilab.hu/deviceauth/mongodb"
	"go.pilab.hu/deviceauth/tracing"
)

// backend bundles the store chosen by configuration with its client registry.
type backend struct {
	store    deviceauth.DeviceCodeStore
	registry client.Registry
	ready    func(ctx context.Context) error
	close    func(ctx context.Context)
}

func main() {
	configPath := flag.String("config", "", "path to the config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		stdLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		stdLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	appLogger := log.NewZerologAdapter(log.ParseLevel(cfg.LogLevel), cfg.LogPretty)
	ctx := context.Background()

	appLogger.Info(ctx, "Configuration loaded successfully", map[string]interface{}{
		"http_addr":     cfg.HTTPAddr,
		"store_backend": cfg.StoreBackend,
		"log_level":     cfg.LogLevel,
		"otel_service":  cfg.OtelServiceName,
		"clients":       len(cfg.Clients),
	})

	audit.SetService(cfg.OtelServiceName)
	if !cfg.AuditLog {
		audit.SetOutput(io.Discard)
	}

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName, nil)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize TracerProvider", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.InitCustomMetrics(reg)

	b, err := newBackend(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize device code store", err, map[string]interface{}{
			"store_backend": cfg.StoreBackend,
		})
	}

	issuer := deviceauth.NewIssuer(b.store,
		deviceauth.WithCodeLifetime(cfg.DeviceCodeLifetime),
		deviceauth.WithMaxAttempts(cfg.MaxCodeAttempts),
	)
	builder := deviceauth.NewResponseBuilder(issuer,
		deviceauth.WithDefaultInterval(cfg.DefaultInterval),
		deviceauth.WithVerificationPath(cfg.VerificationPath),
		deviceauth.WithResponseLogger(appLogger.With(map[string]interface{}{"component": "response_builder"})),
	)
	svc := deviceauth.NewDeviceAuthorizationService(
		deviceauth.NewRequestValidator(b.registry, nil),
		issuer,
		builder,
		appLogger.With(map[string]interface{}{"component": "device_authorization"}),
	)

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	go deviceauth.NewSweeper(b.store, cfg.SweepInterval, appLogger).Run(sweepCtx)

	httpServer := server.NewHTTPServer(server.Options{
		Addr:     cfg.HTTPAddr,
		Logger:   appLogger,
		API:      echoapi.NewDeviceAuthorizationAPI(svc, appLogger),
		Authn:    []echo.MiddlewareFunc{echoapi.ClientBasicAuth(b.registry, auth.NewBcryptSecretHasher(0), appLogger)},
		Gatherer: reg,
		Ready:    b.ready,
	})

	go func() {
		appLogger.Info(ctx, fmt.Sprintf("HTTP server listening on %s", cfg.HTTPAddr))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal(ctx, "Failed to start HTTP server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit

	appLogger.Info(ctx, fmt.Sprintf("Received signal: %v. Shutting down server...", receivedSignal))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	stopSweeper()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown error", err)
	}

	b.close(shutdownCtx)

	if err := tp.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "TracerProvider shutdown error", err)
	}

	appLogger.Info(shutdownCtx, "Server gracefully stopped.")
}

func newBackend(ctx context.Context, cfg *config.Config, appLogger log.Logger) (*backend, error) {
	memoryClients := client.NewMemoryStore(cfg.RegistryClients()...)
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		store := cache.NewMemoryDeviceCodeStore()

		return &backend{
			store:    store,
			registry: memoryClients,
			close:    func(context.Context) { store.Stop() },
		}, nil

	case config.StoreBackendRedis:
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
		}

		return &backend{
			store:    redis.NewDeviceCodeStore(rdb, cfg.RedisPrefix),
			registry: memoryClients,
			ready:    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			close: func(ctx context.Context) {
				if err := rdb.Close(); err != nil {
					appLogger.Error(ctx, "Error closing Redis client", err)
				}
			},
		}, nil

	case config.StoreBackendMongoDB:
		if err := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
			return nil, err
		}

		db := mongodb.GetDB()

		repo := mongodb.NewDeviceCodeRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, err
		}

		clients := mongodb.NewClientRepository(db)
		if err := clients.EnsureIndexes(ctx); err != nil {
			return nil, err
		}

		for _, c := range cfg.RegistryClients() {
			if err := clients.UpsertClient(ctx, c); err != nil {
				return nil, err
			}
		}

		return &backend{
			store:    repo,
			registry: clients,
			ready:    mongodb.Ping,
			close:    mongodb.CloseMongoDB,
		}, nil

	case config.StoreBackendBBolt:
		store, err := bboltdb.Open(cfg.BBoltPath)
		if err != nil {
			return nil, err
		}

		return &backend{
			store:    store,
			registry: memoryClients,
			close: func(ctx context.Context) {
				if err := store.Close(); err != nil {
					appLogger.Error(ctx, "Error closing bbolt database", err)
				}
			},
		}, nil
	}

	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
