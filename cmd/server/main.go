// Copyright 2026 The Busgate Authors
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

	"github.com/joho/godotenv"

	"github.com/busgate/busgate/internal/access"
	"github.com/busgate/busgate/internal/audit"
	"github.com/busgate/busgate/internal/config"
	"github.com/busgate/busgate/internal/grant"
	"github.com/busgate/busgate/internal/identity"
	"github.com/busgate/busgate/internal/issue"
	"github.com/busgate/busgate/internal/observability/logger"
	"github.com/busgate/busgate/internal/observability/metrics"
	"github.com/busgate/busgate/internal/observability/tracing"
	"github.com/busgate/busgate/internal/provision"
	"github.com/busgate/busgate/internal/store/postgres"
	"github.com/busgate/busgate/internal/store/redisstore"
	transporthttp "github.com/busgate/busgate/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			slog.Error("migration failed", logger.Error(err))
			os.Exit(1)
		}
		slog.Info("migration complete")
		return
	}

	if err := run(cfg); err != nil {
		slog.Error("server exited", logger.Error(err))
		os.Exit(1)
	}
}

func runMigrate(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.New(ctx, databaseConfig(cfg))
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	return db.Migrate(ctx, postgres.InitialSchema)
}

func databaseConfig(cfg *config.Config) postgres.Config {
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

func run(cfg *config.Config) error {
	ctx := context.Background()

	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown failed", logger.Error(err))
		}
	}()

	meter, err := metrics.New(ctx, metrics.Config{Enabled: cfg.Observability.OTELEnabled}, cfg.Observability.ServiceName)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	credMetrics, err := metrics.NewCredentials(meter)
	if err != nil {
		return fmt.Errorf("init credential metrics: %w", err)
	}

	db, err := postgres.New(ctx, databaseConfig(cfg))
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	rdb, err := redisstore.NewClient(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()

	users := postgres.NewUserRepository(db)
	clients := postgres.NewClientRepository(db)
	grantStore := postgres.NewGrantRepository(db)
	accessStore := redisstore.NewAccessStore(rdb)
	busStore := redisstore.NewBusStore(rdb)

	auditLogger := audit.NewSlogLogger()
	hasher := identity.NewSecretHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)

	accessEngine := access.NewEngine(accessStore)
	grantEngine := grant.NewEngine(grantStore, busStore, auditLogger)

	issueService := issue.NewService(clients, accessEngine, grantEngine, hasher, auditLogger).
		WithLifetimes(cfg.Token.TokenLifetime, cfg.Token.CodeLifetime)
	provisionService := provision.NewService(users, clients, busStore, grantEngine, hasher, auditLogger)

	if err := bootstrapAdmin(ctx, cfg, users, hasher); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	rateLimiter := transporthttp.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	handler := transporthttp.NewHandler(issueService, provisionService, credMetrics, auditLogger)
	router := transporthttp.NewRouter(handler, rateLimiter)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		slog.Info("shutting down", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// bootstrapAdmin provisions the configured admin user on first start so the
// provisioning API is usable before any other user exists.
func bootstrapAdmin(ctx context.Context, cfg *config.Config, users identity.UserStore, hasher *identity.SecretHasher) error {
	if cfg.Admin.User == "" || cfg.Admin.Secret == "" {
		return nil
	}

	_, err := users.Get(ctx, cfg.Admin.User)
	if err == nil {
		return nil
	}
	if !errors.Is(err, identity.ErrUserNotFound) {
		return err
	}

	hash, err := hasher.Hash(cfg.Admin.Secret)
	if err != nil {
		return err
	}
	now := time.Now()
	if err := users.Put(ctx, &identity.User{Name: cfg.Admin.User, SecretHash: hash, CreatedAt: now, UpdatedAt: now}); err != nil {
		return err
	}
	slog.Info("admin user provisioned", logger.ClientID(cfg.Admin.User))
	return nil
}
