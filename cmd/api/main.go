package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/kamino-guard/internal/auth"
	"github.com/BradenHooton/kamino-guard/internal/cache"
	"github.com/BradenHooton/kamino-guard/internal/config"
	"github.com/BradenHooton/kamino-guard/internal/database"
	"github.com/BradenHooton/kamino-guard/internal/handlers"
	"github.com/BradenHooton/kamino-guard/internal/middleware"
	"github.com/BradenHooton/kamino-guard/internal/repositories"
	"github.com/BradenHooton/kamino-guard/internal/routes"
	"github.com/BradenHooton/kamino-guard/internal/services"
	pkgauth "github.com/BradenHooton/kamino-guard/pkg/auth"
	pkghttp "github.com/BradenHooton/kamino-guard/pkg/http"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.Database.RunMigrations {
		if err := database.Migrate(ctx, cfg.Database.DSN(), logger); err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	store := cache.NewRedisCache(redisClient, cfg.Redis.KeyPrefix)
	if err := store.Ping(ctx); err != nil {
		// Security services fail open without the cache, so this is not fatal.
		logger.Warn("redis unavailable at startup", slog.Any("error", err))
	}

	var emailSender services.EmailSender
	switch cfg.Email.Provider {
	case "log":
		emailSender = services.NewLogEmailSender(logger)
	default:
		sender, err := services.NewSESEmailSender(ctx, cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		if err != nil {
			logger.Error("failed to initialize email sender", slog.Any("error", err))
			os.Exit(1)
		}
		emailSender = sender
	}

	userRepo := repositories.NewUserRepository(db)
	hasher := pkgauth.NewBcryptHasher(cfg.Email.BcryptCost)

	// Security services
	lockoutService := services.NewLockoutService(userRepo, store, services.LockoutConfig{
		MaxFailedAttempts: cfg.Security.MaxFailedAttempts,
		Window:            cfg.Security.LockoutTimeWindow,
		LockoutDuration:   cfg.Security.LockoutDuration,
	}, logger)

	suspiciousMonitor := services.NewSuspiciousActivityMonitor(store, services.SuspiciousActivityConfig{
		Threshold: cfg.Security.SuspiciousActivityThreshold,
		Window:    cfg.Security.SuspiciousActivityWindow,
	}, logger)

	auditService := services.NewAuditService(store, suspiciousMonitor, services.AuditConfig{
		RealTimeMonitoring: cfg.Security.EnableRealTimeMonitoring,
		EventCapPerUser:    cfg.Security.AuditEventCapPerUser,
		Retention:          cfg.Security.AuditRetention,
	}, logger)

	resetService := services.NewPasswordResetService(userRepo, store, hasher, emailSender, auditService, services.PasswordResetConfig{
		TokenExpiry:             cfg.Security.TokenExpiry,
		MaxRequestsPerHour:      cfg.Security.MaxResetRequestsPerHour,
		ResetURLBase:            cfg.Email.ResetURLBase,
		ResetTemplate:           cfg.Email.PasswordResetTemplate,
		PasswordChangedTemplate: cfg.Email.PasswordChangedTemplate,
	}, logger)

	loginMonitor := services.NewLoginMonitor(lockoutService, auditService, logger)

	ipConfig, invalid := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	if len(invalid) > 0 {
		logger.Warn("ignoring invalid trusted proxy entries", slog.Any("entries", invalid))
	}

	// Handlers
	floor := auth.ResponseFloor{Min: cfg.Server.ResetResponseFloor, Jitter: cfg.Server.ResetResponseJitter}
	resetHandler := handlers.NewPasswordResetHandler(resetService, ipConfig, floor, logger)
	securityHandler := handlers.NewSecurityHandler(loginMonitor, auditService, logger)
	healthHandler := handlers.NewHealthHandler(map[string]handlers.HealthChecker{
		"database": handlers.HealthCheckFunc(db.HealthCheck),
		"cache":    handlers.HealthCheckFunc(store.Ping),
	}, logger)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret)

	router := routes.NewRouter(routes.Config{
		Env:              cfg.Server.Env,
		IPConfig:         ipConfig,
		ResetRateLimit:   middleware.RateLimitConfig{RequestsPerMinute: cfg.Server.ResetRequestsPerMinute},
		ServiceRateLimit: middleware.RateLimitConfig{RequestsPerMinute: cfg.Server.ServiceRequestsPerMinute},
	}, logger, resetHandler, securityHandler, healthHandler, tokenManager)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
