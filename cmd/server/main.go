package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/PhilTenno/filesyncgo/internal/audit"
	"github.com/PhilTenno/filesyncgo/internal/config"
	"github.com/PhilTenno/filesyncgo/internal/database"
	"github.com/PhilTenno/filesyncgo/internal/filesync"
	"github.com/PhilTenno/filesyncgo/internal/handler"
	"github.com/PhilTenno/filesyncgo/internal/hashing"
	"github.com/PhilTenno/filesyncgo/internal/metrics"
	"github.com/PhilTenno/filesyncgo/internal/redis"
	"github.com/PhilTenno/filesyncgo/internal/repository"
	"github.com/PhilTenno/filesyncgo/internal/service"
	"github.com/PhilTenno/filesyncgo/internal/tlsconfig"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogOutput(cfg.LogFormat)
	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("APP_ENV") == "production" ||
		os.Getenv("K_SERVICE") != "" || os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()

	if err := database.RunMigrations(db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	log.Info().Str("driver", db.DriverName()).Msg("database connected")

	var recorder audit.Recorder = audit.NewLogRecorder()
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Str("stream", cfg.AuditStream).Msg("redis connected")

		recorder = audit.Multi(
			recorder,
			audit.NewRedisRecorder(redisClient.Client, cfg.AuditStream, cfg.AuditStreamMaxLen),
		)
	}

	credRepo := repository.NewCredentialRepository(db.DB)
	windowRepo := repository.NewRateWindowRepository(db.DB)

	hasher := hashing.NewHasher(cfg.Argon2Params())
	verifier, err := service.NewTokenVerifier(credRepo, hasher, recorder)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create token verifier")
	}
	limiter := service.NewRateLimiter(db.DB, windowRepo, cfg.RateLimit, cfg.RateWindow)
	tokenManager := service.NewTokenManager(db.DB, credRepo, windowRepo, hasher, recorder, cfg.SingleTokenMode)

	runner := filesync.NewCoalescing(newSyncRunner(cfg), cfg.SyncTimeout)

	var m *metrics.Metrics
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		m = metrics.New()
		metricsHandler = m.Handler()
	}

	requestTimeout := config.ServerRequestTimeout
	if floor := cfg.SyncTimeout + config.ServerReadTimeout; floor > requestTimeout {
		requestTimeout = floor
	}

	r := handler.NewRouter(handler.RouterConfig{
		TriggerPath:    cfg.TriggerPath,
		Trigger:        handler.NewTriggerHandler(verifier, limiter, runner, m, cfg.TrustProxyHeaders, cfg.MaxBodyBytes),
		Tokens:         handler.NewTokenHandler(tokenManager),
		AdminUsername:  cfg.AdminUsername,
		AdminPassword:  cfg.AdminPassword,
		TrustProxy:     cfg.TrustProxyHeaders,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		RequestTimeout: requestTimeout,
		Metrics:        metricsHandler,
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	tlsManager, err := tlsconfig.New(tlsconfig.Options{
		CertFile:     cfg.TLSCertFile,
		KeyFile:      cfg.TLSKeyFile,
		ACMEDomain:   cfg.ACMEDomain,
		ACMEEmail:    cfg.ACMEEmail,
		ACMECacheDir: cfg.ACMECacheDir,
	})
	switch {
	case errors.Is(err, tlsconfig.ErrNotConfigured):
		tlsManager = nil
	case err != nil:
		log.Fatal().Err(err).Msg("failed to configure tls")
	default:
		server.TLSConfig = tlsManager.TLSConfig()
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		log.Info().
			Str("addr", cfg.Addr()).
			Str("triggerPath", cfg.TriggerPath).
			Bool("tls", tlsManager != nil).
			Bool("admin", cfg.AdminEnabled()).
			Str("syncMode", cfg.SyncMode).
			Msg("starting server")

		var err error
		if tlsManager != nil {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server forced to shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}

	log.Info().Msg("server stopped")
}

func newSyncRunner(cfg *config.Config) filesync.Runner {
	if cfg.SyncMode == config.SyncModeWebhook {
		return filesync.NewWebhookRunner(cfg.SyncWebhookURL)
	}
	return filesync.NewCommandRunner(cfg.SyncCommand, cfg.SyncProjectDir)
}

func setLogOutput(format string) {
	if format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
