package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tournament-report-bot/config"
	"tournament-report-bot/handlers"
	"tournament-report-bot/middleware"
	"tournament-report-bot/models"
	"tournament-report-bot/services"
	"tournament-report-bot/telegram"
	"tournament-report-bot/utils"
	"tournament-report-bot/workers"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatal("failed to build logger: ", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	if cfg.CatalogFile != "" {
		if err := services.SeedCatalog(ctx, db, cfg.CatalogFile); err != nil {
			logger.Fatal("failed to seed catalog", zap.String("file", cfg.CatalogFile), zap.Error(err))
		}
	}
	catalog, err := services.LoadCatalog(ctx, db)
	if err != nil {
		logger.Fatal("failed to load catalog", zap.Error(err))
	}
	logger.Info("catalog loaded", zap.Int("races", len(catalog.Races())), zap.Int("heroes", len(catalog.Heroes())))

	store := services.NewTournamentStore(db)
	bracket := services.NewChallongeClient(cfg.ChallongeURL, cfg.ChallongeRatePerMinute, utils.HTTPClient, logger)
	sessions := services.NewSessionStore(cfg.SessionIdleTimeout, cfg.CommittedRetention, logger)

	var (
		publishers []services.ReportPublisher
		botAPI     *tgbotapi.BotAPI
	)
	if cfg.R2.Enabled() {
		archive, err := utils.NewR2Archive(ctx, cfg.R2, logger)
		if err != nil {
			logger.Fatal("failed to initialize R2 client", zap.Error(err))
		}
		publishers = append(publishers, archive)
	}
	if cfg.TelegramToken != "" {
		botAPI, err = tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			logger.Fatal("failed to connect to Telegram", zap.Error(err))
		}
		publishers = append(publishers, telegram.NewNotifier(botAPI, logger))
	}

	committer := services.NewCommitter(sessions, store, bracket, publishers, logger)
	reports := services.NewReportService(sessions, store, bracket, catalog, committer,
		services.GameCountBounds{Min: cfg.MinGames, Max: cfg.MaxGames}, logger)

	if _, err := services.StartSessionSweep(ctx, sessions, cfg.SweepInterval, logger); err != nil {
		logger.Fatal("failed to start session sweep", zap.Error(err))
	}
	workers.NewBracketSyncWorker(store, bracket, cfg.SyncRetryInterval, logger).Start(ctx)

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-User-ID, X-Telegram-ID",
		MaxAge:       86400,
	}))
	// 🔐 Only gateway requests, except the health check
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken, logger, "/healthz"))
	handlers.SetupReportRoutes(app, handlers.NewReportHandler(reports, logger))

	go func() {
		if err := app.Listen(cfg.ListenAddr); err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}()
	logger.Info("✅ Server running", zap.String("addr", cfg.ListenAddr))

	if botAPI != nil {
		bot := telegram.NewBot(botAPI, reports, 16, logger)
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates := botAPI.GetUpdatesChan(u)
		go bot.Run(ctx, updates)
		logger.Info("✅ Telegram bot running", zap.String("username", botAPI.Self.UserName))
	}

	<-ctx.Done()
	logger.Info("Shutting down server...")

	if botAPI != nil {
		botAPI.StopReceivingUpdates()
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("server shutdown failed", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
