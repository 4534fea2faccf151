// Command offsetauth-server serves the auth endpoints of the quoting
// backend.
//
// Configuration comes from the environment (and .env when present). Both
// ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET are required. Without
// REDIS_ADDR, or with Redis unreachable, users and sessions live in process
// memory and are lost on restart.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/neenza/offsetauth"
	"github.com/neenza/offsetauth/httpapi"
	"github.com/neenza/offsetauth/internal/config"
	"github.com/neenza/offsetauth/internal/logging"
	"github.com/neenza/offsetauth/internal/telemetry"
	otelexport "github.com/neenza/offsetauth/metrics/export/otel"
	promexport "github.com/neenza/offsetauth/metrics/export/prometheus"
)

func main() {
	cfg := config.Load()
	config.MustNonEmptyBytes(cfg.Auth.JWT.AccessSecret, "ACCESS_TOKEN_SECRET")
	config.MustNonEmptyBytes(cfg.Auth.JWT.RefreshSecret, "REFRESH_TOKEN_SECRET")

	logger := logging.New(cfg.LogLevel)

	builder := offsetauth.New().
		WithConfig(cfg.Auth).
		WithLogger(logger)

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		builder = builder.WithRedis(rdb)
	} else {
		logger.Warn("REDIS_ADDR not set, running on in-memory stores")
	}

	engine, err := builder.Build()
	if err != nil {
		log.Fatalf("engine init error: %v", err)
	}

	if cfg.SeedDefaultUsers {
		seedCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		n, err := engine.SeedUsers(seedCtx, offsetauth.DefaultSeedUsers())
		cancel()
		if err != nil {
			log.Fatalf("seed users: %v", err)
		}
		logger.Info("default users seeded", "created", n)
	}

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	tp, err := telemetry.NewProvider(initCtx, cfg.OTLPEndpoint, "offsetauth", cfg.OTLPInsecure, 0)
	cancel()
	if err != nil {
		log.Fatalf("telemetry init error: %v", err)
	}
	var otelExp *otelexport.OTelExporter
	if cfg.OTLPEndpoint != "" {
		tp.SetGlobal()
		otelExp, err = otelexport.NewOTelExporter(otel.Meter("github.com/neenza/offsetauth"), engine)
		if err != nil {
			log.Fatalf("otel exporter: %v", err)
		}
	}

	var metricsHandler http.Handler
	if cfg.Auth.Metrics.Enabled {
		metricsHandler = promexport.Handler(promexport.NewCollector(engine))
	}

	e := httpapi.NewServer(&httpapi.Deps{
		Engine:      engine,
		Logger:      logger,
		CORSOrigins: cfg.CORSOrigins,
		Metrics:     metricsHandler,
	})

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo shutdown", "error", err)
	}
	if otelExp != nil {
		_ = otelExp.Close()
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown", "error", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
