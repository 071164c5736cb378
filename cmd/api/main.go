package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dialer-platform/internal/audit"
	"dialer-platform/internal/auth"
	"dialer-platform/internal/campaign"
	"dialer-platform/internal/config"
	"dialer-platform/internal/dispatch"
	"dialer-platform/internal/httpapi"
	"dialer-platform/internal/ledger"
	"dialer-platform/internal/moderation"
	"dialer-platform/internal/numberpolicy"
	"dialer-platform/internal/pricing"
	"dialer-platform/internal/reporting"
	"dialer-platform/pkg/logger"
	"dialer-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Service graph. Repositories are Postgres-backed; the caller-ID blocklist
	// lives in Redis so every process shares one set.
	var classifier moderation.Classifier
	if cfg.Classifier.BaseURL != "" {
		classifier = moderation.NewHTTPClassifier(cfg.Classifier)
	}
	moderator := moderation.NewService(classifier, nil)
	blocklist := numberpolicy.NewRedisBlocklist(rdb)

	ledgerSvc := ledger.NewService(ledger.NewPostgresRepo(db))
	rateSvc := pricing.NewService(pricing.NewPostgresRepo(db), cfg.Dispatch.DefaultRateMinor, cfg.Dispatch.Currency)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))

	campaignRepo := campaign.NewPostgresRepo(db)
	campaignSvc := campaign.NewService(campaignRepo, ledgerSvc, rateSvc, moderator, blocklist)
	dispatchSvc := dispatch.NewService(campaignRepo, campaignSvc, ledgerSvc, rateSvc, auditSvc)
	reportSvc := reporting.NewService(reporting.NewPostgresRepo(db))

	h := httpapi.Handlers{
		Auth:        authManager,
		Ledger:      ledgerSvc,
		Campaigns:   campaignSvc,
		Dispatcher:  dispatchSvc,
		Reports:     reportSvc,
		Blocklist:   blocklist,
		Moderation:  moderator,
		Audit:       auditSvc,
		Redis:       rdb,
		DispatchCfg: cfg.Dispatch,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, db, rdb, auth.RequireAccessToken(authManager), h)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
