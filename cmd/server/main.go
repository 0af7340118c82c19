// Copyright 2026 The Maintly Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maintly/maintly/internal/audit"
	"github.com/maintly/maintly/internal/authz"
	"github.com/maintly/maintly/internal/config"
	"github.com/maintly/maintly/internal/crypto"
	"github.com/maintly/maintly/internal/identity"
	"github.com/maintly/maintly/internal/observability/logger"
	"github.com/maintly/maintly/internal/observability/metrics"
	"github.com/maintly/maintly/internal/observability/tracing"
	"github.com/maintly/maintly/internal/ratelimit"
	"github.com/maintly/maintly/internal/store/postgres"
	transportHTTP "github.com/maintly/maintly/internal/transport/http"
	"github.com/maintly/maintly/internal/vault"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	// CLI commands
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "bootstrap":
			if err := runBootstrap(cfg, log); err != nil {
				fmt.Printf("Bootstrap failed: %v\n", err)
				os.Exit(1)
			}
			os.Exit(0)
		case "migrate":
			if err := runMigrate(cfg); err != nil {
				fmt.Printf("Migration failed: %v\n", err)
				os.Exit(1)
			}
			os.Exit(0)
		default:
			fmt.Printf("Unknown command %q (expected migrate or bootstrap)\n", os.Args[1])
			os.Exit(2)
		}
	}

	slog.Info("starting maintly api")

	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   cfg.Observability.SamplingRate,
		Endpoint:       cfg.Observability.OTELEndpoint,
		Insecure:       cfg.Observability.OTELInsecure,
	})
	if err != nil {
		slog.Error("failed to initialize tracer, tracing disabled", logger.Error(err))
		tracer, _ = tracing.New(ctx, tracing.Config{ServiceName: cfg.Observability.ServiceName})
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter. Domain instruments share the /metrics registry.
	httpMetrics := metrics.NewHTTP()
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled:        cfg.Observability.MetricsEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Registerer:     httpMetrics.Registerer(),
	})
	if err != nil {
		slog.Error("failed to initialize meter, metrics disabled", logger.Error(err))
		meter, _ = metrics.New(ctx, metrics.Config{ServiceName: cfg.Observability.ServiceName})
	}
	defer meter.Shutdown(ctx)
	recorder, err := metrics.NewRecorder(meter)
	if err != nil {
		slog.Error("failed to create domain instruments", logger.Error(err))
	}

	// Initialize database
	db, err := postgres.New(ctx, postgresConfig(cfg))
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database", slog.String("database", postgresConfig(cfg).String()))

	// Initialize repositories
	profileRepo := postgres.NewProfileRepository(db.SQL())
	grantRepo := postgres.NewGrantRepository(db.SQL())
	secretRepo := postgres.NewSecretRepository(db.SQL())

	auditLogger := audit.NewSlogLogger(log)

	// Initialize services
	identityService := identity.NewService(profileRepo, auditLogger)
	authzService := authz.NewService(grantRepo, auditLogger, recorder)
	vaultService := vault.NewService(
		secretRepo,
		secretRepo,
		authzService,
		crypto.New(),
		ratelimit.New(),
		auditLogger,
		vault.WithRecorder(recorder),
		vault.WithTracer(tracer.GetTracer()),
		vault.WithCreateLimit(cfg.RateLimit.CreateAttempts, cfg.RateLimit.CreateWindow),
	)

	// Run bootstrap (env driven)
	bootstrapService := identity.NewBootstrapService(profileRepo, auditLogger)
	if err := bootstrapService.Bootstrap(ctx); err != nil {
		if errors.Is(err, identity.ErrBootstrapUserNotFound) {
			slog.Warn("bootstrap admin has not signed in yet", logger.Error(err))
		} else {
			slog.Error("bootstrap failed", logger.Error(err))
		}
	}

	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer rateLimiter.Stop()

	verifier := transportHTTP.NewTokenVerifier(
		[]byte(cfg.Auth.JWTSecret),
		cfg.Auth.Issuer,
		cfg.Auth.Audience,
		cfg.Auth.Leeway,
	)

	handler := transportHTTP.NewHandler(identityService, authzService, vaultService, verifier, db.Ping)
	router := transportHTTP.NewRouter(handler, rateLimiter, httpMetrics, transportHTTP.RouterConfig{
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	addr := cfg.Server.Addr()
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"), slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

func postgresConfig(cfg *config.Config) postgres.Config {
	return postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	}
}

func runBootstrap(cfg *config.Config, log *slog.Logger) error {
	ctx := context.Background()
	db, err := postgres.New(ctx, postgresConfig(cfg))
	if err != nil {
		return err
	}
	defer db.Close()

	bootstrapService := identity.NewBootstrapService(
		postgres.NewProfileRepository(db.SQL()),
		audit.NewSlogLogger(log),
	)
	return bootstrapService.Bootstrap(ctx)
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := postgres.New(ctx, postgresConfig(cfg))
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying initial schema...")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}
