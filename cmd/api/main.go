package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/groupbuy-api/internal/config"
	"github.com/noah-isme/groupbuy-api/internal/database"
	"github.com/noah-isme/groupbuy-api/internal/handler"
	"github.com/noah-isme/groupbuy-api/internal/middleware"
	"github.com/noah-isme/groupbuy-api/internal/realtime"
	"github.com/noah-isme/groupbuy-api/internal/repository"
	"github.com/noah-isme/groupbuy-api/internal/router"
	"github.com/noah-isme/groupbuy-api/internal/service"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger = logger.With().Str("service", cfg.AppName).Str("env", cfg.AppEnv).Logger()

	db, err := database.ConnectSQL(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to access database pool")
	}
	defer sqlDB.Close()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL, database.RedisOptions{PoolSize: cfg.RedisPoolSize, DialTimeout: cfg.RedisDialTimeout})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Drain()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	listingRepo := repository.NewListingRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	favoriteRepo := repository.NewFavoriteRepository(db)
	chatRepo := repository.NewChatRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	trustService := service.NewTrustService(userRepo, logger)
	notificationService := service.NewNotificationService(notificationRepo, redisClient, cfg.RealtimeChannel, natsConn, validate, logger)
	dispatcher := service.NewEventDispatcher(logger, cfg.EventRetryAttempts,
		service.NewTrustScoreHandler(trustService, participantRepo),
		service.NewNotificationHandler(notificationService, participantRepo, favoriteRepo),
	)

	userService := service.NewUserService(userRepo, validate, logger)
	listingService := service.NewListingService(listingRepo, participantRepo, favoriteRepo, userRepo, dispatcher, validate, logger)
	favoriteService := service.NewFavoriteService(favoriteRepo, listingRepo, userRepo, validate, logger)
	chatService := service.NewChatService(chatRepo, listingRepo, userRepo, realtime.NewHub(logger), redisClient, cfg.RealtimeChannel, natsConn, validate, logger)
	deadlineNotifier := service.NewDeadlineNotifier(listingRepo, dispatcher, redisClient, cfg.RealtimeChannel, cfg.DeadlineWindow, cfg.DeadlineSweepInterval, logger)

	backgroundCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	notificationService.Start(backgroundCtx)
	chatService.Start(backgroundCtx)
	deadlineNotifier.Start(backgroundCtx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		ErrorHandler: handler.ErrorHandler(logger),
	})

	middleware.Register(app, middleware.Config{
		Logger:    &logger,
		JWTSecret: cfg.JWTSecret,
		AccessLog: cfg.AppEnv == "development",
	})
	router.Register(app, cfg, router.Dependencies{
		ListingHandler:      handler.NewListingHandler(listingService, validate, logger, cfg.RateLimitMax, cfg.RateLimitWindow),
		FavoriteHandler:     handler.NewFavoriteHandler(favoriteService, logger),
		UserHandler:         handler.NewUserHandler(userService, logger),
		ChatHandler:         handler.NewChatHandler(chatService, validate, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, cfg.NotificationKeepAlive),
		Database:            sqlDB,
	})

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Msg("http server listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, stopBackground, logger)
}

func waitForShutdown(app *fiber.App, stopBackground context.CancelFunc, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
