package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	configs "github.com/Payphone-Digital/adminauth/config"
	"github.com/Payphone-Digital/adminauth/internal/constants"
	"github.com/Payphone-Digital/adminauth/internal/handler"
	"github.com/Payphone-Digital/adminauth/internal/middleware"
	"github.com/Payphone-Digital/adminauth/internal/repository"
	"github.com/Payphone-Digital/adminauth/internal/router"
	"github.com/Payphone-Digital/adminauth/internal/service"
	"github.com/Payphone-Digital/adminauth/pkg/cache"
	"github.com/Payphone-Digital/adminauth/pkg/circuit"
	"github.com/Payphone-Digital/adminauth/pkg/clock"
	"github.com/Payphone-Digital/adminauth/pkg/database"
	"github.com/Payphone-Digital/adminauth/pkg/logger"
	"github.com/Payphone-Digital/adminauth/pkg/ratelimit"
	"github.com/Payphone-Digital/adminauth/pkg/redis"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	config, err := configs.LoadConfig()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	if err := logger.InitLogger(config); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	if !config.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.GetLogger().Info("Application starting",
		zap.String("app_name", config.App.Name),
		zap.String("environment", config.App.Environment),
		zap.String("version", constants.AppVersion),
	)

	db, err := database.NewPostgresDB(config.Database)
	if err != nil {
		logger.GetLogger().Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.CloseDB(db)

	if err := database.AutoMigrate(db); err != nil {
		logger.GetLogger().Fatal("Failed to run database migrations", zap.Error(err))
	}
	if err := database.CreateIndexes(db); err != nil {
		logger.GetLogger().Fatal("Failed to create indexes", zap.Error(err))
	}
	logger.GetLogger().Info("Database migrated successfully")

	if err := database.Seed(db, config.Seed); err != nil {
		// the admin may already exist with another password
		logger.GetLogger().Error("Failed to seed database", zap.Error(err))
	}

	clk := clock.System()
	memory := cache.NewCache(clk, time.Minute)
	defer memory.Close()

	// the limiter and sessions live in redis when it is enabled, with the
	// in-process cache taking over while redis is unreachable
	var (
		store   cache.Store = memory
		pinger  handler.Pinger
		breaker handler.BreakerState
	)
	if config.Redis.Enabled {
		redisClient, err := redis.NewClient(config, logger.GetLogger())
		if err != nil {
			logger.GetLogger().Warn("Redis unavailable, using in-process cache", zap.Error(err))
		} else {
			defer redisClient.Close()
			redisBreaker := circuit.NewBreaker("redis", circuit.DefaultConfig(), logger.GetLogger())
			store = cache.NewFallback(redisClient, memory, redisBreaker, logger.GetLogger())
			pinger = redisClient
			breaker = redisBreaker
		}
	}
	limiter := ratelimit.New(store, "")

	// Repositories
	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewTokenRepository(db)

	// Services
	locks := service.NewAccountLock(userRepo, clk, config.Security)
	activity := service.NewActivityTracker(userRepo, clk, config.Security)
	tokens := service.NewTokenStore(tokenRepo, clk, config.Token)
	sessions := service.NewSessionManager(store, clk, config.JWT.SessionTTL)
	jwtService := service.NewJWTService(config.JWT.Secret, config.App.Name)
	telemetry := service.NewTelemetry(store, clk, config.RateLimit)
	authService := service.NewAuthService(userRepo, locks, activity, tokens, sessions, limiter, clk, config)
	guard := service.NewGuard(userRepo, tokens, sessions, jwtService, locks, activity, telemetry, limiter, clk, config.RateLimit)
	sweeper := service.NewSweeper(tokenRepo, clk, config.Token.MaxPerUser)

	// Handlers
	cookies := handler.NewSessionCookie(jwtService, config.JWT, clk)
	r := router.NewRouter(
		handler.NewAuthHandler(authService, cookies),
		handler.NewWebAuthHandler(authService, cookies),
		handler.NewMaintenanceHandler(sweeper, config.Maintenance.PruneOldDays),
		handler.NewHealthHandler(db, pinger, breaker, constants.AppVersion),

		middleware.NewValidationMiddleware(),
		middleware.NewAuthMiddleware(guard, config.JWT.CookieName),
		limiter,
		config,
	).SetupRoutes()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if config.Maintenance.Enabled {
		go sweeper.Start(ctx, config.Maintenance.Interval, service.SweepOptions{
			PruneExpired:  config.Maintenance.PruneExpired,
			PruneOld:      config.Maintenance.PruneOld,
			OlderThanDays: config.Maintenance.PruneOldDays,
			EnforceLimits: config.Maintenance.EnforceLimits,
		})
	}

	srv := &http.Server{
		Addr:              ":" + config.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.GetLogger().Info("Server starting",
			zap.String("port", config.App.Port),
			zap.String("host", "0.0.0.0"),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.GetLogger().Fatal("Failed to start server",
				zap.Error(err),
				zap.String("port", config.App.Port),
			)
		}
	}()

	<-ctx.Done()
	logger.GetLogger().Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.App.Timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.GetLogger().Error("Server forced to shutdown", zap.Error(err))
	}
}
