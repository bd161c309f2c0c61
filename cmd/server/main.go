package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"vn.io.arda/rolesync/internal/application"
	"vn.io.arda/rolesync/internal/config"
	"vn.io.arda/rolesync/internal/domain"
	"vn.io.arda/rolesync/internal/infrastructure/filestore"
	"vn.io.arda/rolesync/internal/infrastructure/keycloak"
	"vn.io.arda/rolesync/internal/infrastructure/postgres"
	kafkaconsumer "vn.io.arda/rolesync/internal/kafka"
	transporthttp "vn.io.arda/rolesync/internal/transport/http"
	"vn.io.arda/rolesync/internal/transport/mw"
)

func main() {
	// ── Logging ──────────────────────────────────────────────────────────────
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// ── Config ───────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if cfg.Server.Env == "production" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("env", cfg.Server.Env).
		Str("port", cfg.Server.Port).
		Str("realm", cfg.Keycloak.Realm).
		Str("match", cfg.Membership.Match).
		Msg("starting arda-rolesync")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Settings storage ─────────────────────────────────────────────────────
	var settingsRepo domain.SettingsRepository
	switch cfg.Settings.Backend {
	case "file":
		settingsRepo = filestore.New(afero.NewOsFs(), cfg.Settings.Dir)
		log.Info().Str("dir", cfg.Settings.Dir).Msg("settings stored in YAML files")
	default:
		pool, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("postgres ping failed")
		}
		repo := postgres.New(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("postgres schema setup failed")
		}
		settingsRepo = repo
		log.Info().Msg("postgres connected")
	}

	// ── Identity store (Keycloak Admin API) ──────────────────────────────────
	identity := keycloak.New(
		cfg.Keycloak.BaseURL,
		cfg.Keycloak.AdminRealm,
		cfg.Keycloak.Realm,
		cfg.Keycloak.AdminClientID,
		cfg.Keycloak.AdminClientSecret,
	)

	// ── Application Service ───────────────────────────────────────────────────
	osFs := afero.NewOsFs()
	store := application.NewMappingStore(settingsRepo, cfg.Settings.Name)
	checker := application.NewChecker(osFs, application.ParseMatchMode(cfg.Membership.Match))
	validator := application.NewMappingValidator(osFs, cfg.Membership.ReservedRoles)
	svc := application.NewService(store, checker, identity, validator)

	if _, err := svc.RefreshUnmapped(ctx); err != nil {
		// Keep serving: a stale cache only narrows revocation, grants still work.
		log.Warn().Err(err).Msg("initial unmapped roles refresh failed")
	}

	// ── HTTP Server ───────────────────────────────────────────────────────────
	keyFunc, err := mw.NewKeyfunc(ctx, cfg.Keycloak.JWKSURL(), cfg.Auth.JWKSRefresh)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up JWKS")
	}
	issuer := ""
	if cfg.Auth.VerifyIssuer {
		issuer = cfg.Keycloak.Issuer()
	}
	handler := transporthttp.NewHandler(svc)
	router := transporthttp.NewRouter(handler,
		mw.JWTAuth(keyFunc, issuer, cfg.Auth.Leeway),
		mw.RequireRole(cfg.Auth.AdminRole),
	)

	// ── Kafka Consumer ────────────────────────────────────────────────────────
	if cfg.Kafka.Enabled {
		consumer, err := kafkaconsumer.New(
			cfg.Kafka.Brokers,
			cfg.Kafka.ConsumerGroupID,
			cfg.Kafka.Topics,
			cfg.Keycloak.Realm,
			svc,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create kafka consumer")
		}

		// Start Kafka consumer in background
		go consumer.Start(ctx)
		log.Info().Strs("topics", cfg.Kafka.Topics).Msg("kafka consumer started")
	}

	// ── Start HTTP Server ─────────────────────────────────────────────────────
	go startHTTP(router, cfg.Server.Port)

	// ── Graceful Shutdown ─────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := router.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("arda-rolesync stopped")
}

func startHTTP(router *echo.Echo, port string) {
	log.Info().Str("port", port).Msg("HTTP server listening")
	if err := router.Start(":" + port); err != nil {
		log.Info().Msg("HTTP server stopped")
	}
}
