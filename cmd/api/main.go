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

	"kagra-platform/internal/admin"
	"kagra-platform/internal/audit"
	"kagra-platform/internal/auth"
	"kagra-platform/internal/charaxy"
	"kagra-platform/internal/config"
	"kagra-platform/internal/identity"
	"kagra-platform/internal/rbac"
	"kagra-platform/internal/search"
	"kagra-platform/internal/users"
	"kagra-platform/pkg/logger"
	"kagra-platform/pkg/utils"

	"github.com/gin-contrib/cors"
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

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
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

	provider, err := identity.NewGoTrueProvider(identity.GoTrueConfig{
		ProjectURL: cfg.Supabase.URL,
		AnonKey:    cfg.Supabase.AnonKey,
	})
	if err != nil {
		log.Error("identity provider init failed", "err", err)
		os.Exit(1)
	}

	verifier, err := auth.NewVerifier(provider, cfg.Supabase.JWTSecret)
	if err != nil {
		log.Error("token verifier init failed", "err", err)
		os.Exit(1)
	}

	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	userSvc := users.NewService(users.NewPostgresRepo(db))
	permStore := rbac.NewSystemPermissionStore(rbac.NewPostgresRepo(db), rdb, cfg.Cache.PermissionTTL)
	charaxySvc := charaxy.NewService(charaxy.NewPostgresRepo(db), permStore, userSvc)
	sessions := auth.NewSessionCache(rdb, cfg.Auth.SessionCacheTTL)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	if len(cfg.CORS.Origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.Origins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	registerRoutes(r, appDeps{
		db:         db,
		rdb:        rdb,
		verifier:   verifier,
		permStore:  permStore,
		authH:      auth.Handlers{Provider: provider, Verifier: verifier, Profiles: userSvc, Sessions: sessions, Audit: auditSvc},
		usersH:     users.Handlers{Users: userSvc, Audit: auditSvc},
		charaxyH:   charaxy.Handlers{Service: charaxySvc, Audit: auditSvc},
		adminH:     admin.Handlers{Permissions: permStore, Profiles: userSvc, Audit: auditSvc},
		searchH:    search.Handlers{Charaxy: charaxySvc, Audit: auditSvc},
		roleLookup: userSvc,
		audit:      auditSvc,
	})

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
}
