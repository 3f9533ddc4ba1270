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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/bugtrack/bugtrack/internal/app"
	"github.com/bugtrack/bugtrack/internal/audit"
	"github.com/bugtrack/bugtrack/internal/auth"
	"github.com/bugtrack/bugtrack/internal/bugs"
	"github.com/bugtrack/bugtrack/internal/rbac"
	"github.com/bugtrack/bugtrack/internal/roles"
	"github.com/bugtrack/bugtrack/internal/shared"
	"github.com/bugtrack/bugtrack/internal/users"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "bugtrack_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	auditLogger := shared.NewAuditLogger(dbpool)

	rolesRepo := roles.NewRepository(dbpool)
	rolesCache := roles.NewCachedStore(rolesRepo, redisClient, cfg.RoleCacheTTL, logger)
	resolver := rbac.NewResolver(rolesCache, logger)
	rbacMiddleware := rbac.Middleware{Resolver: resolver, Logger: logger}

	rolesService := roles.NewService(rolesRepo, rolesCache)
	rolesHandler := roles.NewHandler(logger, rolesService, rbacMiddleware)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, resolver, auditLogger, logger)
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware)

	bugsRepo := bugs.NewRepository(dbpool)
	bugsService := bugs.NewService(bugsRepo, resolver, usersRepo, auditLogger, logger, bugs.ServiceConfig{
		LegacyAssigneeNameMatch: cfg.LegacyAssigneeNameMatch,
	})
	bugsHandler := bugs.NewHandler(logger, bugsService, rbacMiddleware)

	auditRepo := audit.NewRepository(dbpool)
	auditService := audit.NewService(auditRepo)
	auditHandler := audit.NewHandler(logger, auditService, rbacMiddleware)

	permissionsHandler := rbac.NewPermissionsHandler(logger, resolver)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		AuthHandler:        authHandler,
		BugsHandler:        bugsHandler,
		UsersHandler:       usersHandler,
		RolesHandler:       rolesHandler,
		AuditHandler:       auditHandler,
		PermissionsHandler: permissionsHandler,
		RBACMiddleware:     rbacMiddleware,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}
