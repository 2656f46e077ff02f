package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/oauth2"

	adapthttp "scaletrack/internal/adapter/http"
	"scaletrack/internal/adapter/memory"
	"scaletrack/internal/adapter/postgres"
	"scaletrack/internal/adapter/rest"
	"scaletrack/internal/app"
	"scaletrack/internal/cache"
	"scaletrack/internal/config"
	"scaletrack/internal/domain"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := buildLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	source, users, sessions, cleanup, err := buildSource(cfg, logger)
	if err != nil {
		logger.Fatal("source init failed", zap.String("mode", cfg.Source.Mode), zap.Error(err))
	}
	defer cleanup()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())
	metrics := cache.NewMetrics(promReg)

	registry := app.NewRegistry(source, metrics, logger)
	authSvc := app.NewAuthService(users, sessions, cfg.Auth.SessionTTL)

	oidcConfig, err := buildOIDC(cfg.Auth.OIDC)
	if err != nil {
		logger.Fatal("oidc init failed", zap.String("issuer", cfg.Auth.OIDC.Issuer), zap.Error(err))
	}

	go sweepSessions(sessions, logger)

	srv := adapthttp.New(
		registry,
		authSvc,
		oidcConfig,
		cfg.Auth.Disabled,
		cfg.Server.WebDir,
		promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}),
		logger,
	)

	logger.Info("listening",
		zap.String("addr", cfg.Server.Addr),
		zap.String("source", cfg.Source.Mode),
		zap.Bool("sso", oidcConfig.Enabled))
	if err := http.ListenAndServe(cfg.Server.Addr, srv.Handler()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// buildSource constructs the record source and the auth repositories for the
// configured mode. REST and memory modes keep users and sessions in memory.
func buildSource(cfg *config.Config, logger *zap.Logger) (domain.RecordSource, domain.UserRepository, domain.SessionRepository, func(), error) {
	switch cfg.Source.Mode {
	case config.ModePostgres:
		db, err := postgres.Open(cfg.Database.URL)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		cleanup := func() { _ = db.Close() }
		return db, postgres.NewUserRepo(db), postgres.NewSessionRepo(db), cleanup, nil

	case config.ModeREST:
		client := rest.NewClient(cfg.Source.BaseURL, cfg.Source.Token, cfg.Source.RPS, logger)
		mem := memory.New()
		return client, memory.NewUserRepo(mem), memory.NewSessionRepo(mem), func() {}, nil

	case config.ModeMemory:
		mem := memory.New()
		return mem, memory.NewUserRepo(mem), memory.NewSessionRepo(mem), func() {}, nil
	}
	return nil, nil, nil, nil, fmt.Errorf("unknown source mode %q", cfg.Source.Mode)
}

func buildOIDC(cfg config.OIDCConfig) (adapthttp.OIDCConfig, error) {
	if !cfg.Enabled() {
		return adapthttp.OIDCConfig{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return adapthttp.OIDCConfig{}, err
	}

	return adapthttp.OIDCConfig{
		Enabled:  true,
		Provider: provider,
		OAuth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
	}, nil
}

// sweepSessions drops expired sessions once an hour.
func sweepSessions(sessions domain.SessionRepository, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := sessions.DeleteExpired(ctx); err != nil {
			logger.Warn("session sweep failed", zap.Error(err))
		}
		cancel()
	}
}
