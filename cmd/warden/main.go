package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warden-app/warden/internal/app"
	"github.com/warden-app/warden/internal/auth"
	"github.com/warden-app/warden/internal/groups"
	"github.com/warden-app/warden/internal/modules"
	"github.com/warden-app/warden/internal/observability"
	"github.com/warden-app/warden/internal/permissions"
	"github.com/warden-app/warden/internal/platform/cache"
	"github.com/warden-app/warden/internal/platform/db"
	"github.com/warden-app/warden/internal/rbac"
	"github.com/warden-app/warden/internal/roles"
	"github.com/warden-app/warden/internal/users"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	store := rbac.NewPGStore(pool)
	resolver := rbac.NewResolver(store)
	coordinator := rbac.NewCoordinator(store)
	gate := rbac.Middleware{Checker: resolver, Logger: logger}

	tokens := auth.NewTokenStore(redisClient, cfg.TokenTTL)
	authn := auth.Middleware{Tokens: tokens, Logger: logger}

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, tokens, resolver)

	usersService := users.NewService(users.NewRepository(pool), coordinator)
	usersHandler := users.NewHandler(logger, usersService, gate)

	groupsService := groups.NewService(groups.NewRepository(pool), coordinator)
	groupsHandler := groups.NewHandler(logger, groupsService, gate)

	rolesService := roles.NewService(roles.NewRepository(pool), coordinator)
	rolesHandler := roles.NewHandler(logger, rolesService, gate)

	modulesService := modules.NewService(modules.NewRepository(pool))
	modulesHandler := modules.NewHandler(logger, modulesService, gate)

	permissionsService := permissions.NewService(permissions.NewRepository(pool))
	permissionsHandler := permissions.NewHandler(logger, permissionsService, gate)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthMiddleware:     authn,
		AuthHandler:        authHandler,
		UsersHandler:       usersHandler,
		GroupsHandler:      groupsHandler,
		RolesHandler:       rolesHandler,
		ModulesHandler:     modulesHandler,
		PermissionsHandler: permissionsHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
