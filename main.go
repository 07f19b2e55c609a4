package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"partnership-sync/config"
	"partnership-sync/handlers"
	"partnership-sync/logger"
	"partnership-sync/middleware"
	"partnership-sync/models"
	"partnership-sync/services"
	"partnership-sync/utils"
	"partnership-sync/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	cfg, dotenv, err := config.Load()
	if err != nil {
		boot := logger.New("info", os.Getenv("LOG_FORMAT"))
		boot.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if !dotenv {
		log.Info().Msg("no .env file found, reading environment variables directly")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to access database pool")
	}
	// One sync run holds a single connection per statement; the pool bounds
	// how many runs and dashboard reads can hit the database at once.
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLife)

	if err := db.AutoMigrate(models.AutoMigrateModels...); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	store := services.NewSyncStore(db)

	if cfg.PartnersFile != "" {
		partners, err := services.LoadPartnersFile(cfg.PartnersFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.PartnersFile).Msg("failed to load partners")
		}
		if err := store.UpsertPartners(ctx, partners); err != nil {
			log.Fatal().Err(err).Msg("failed to seed partners")
		}
		log.Info().Int("partners", len(partners)).Msg("partners seeded")
	}

	var archive workers.PageArchiver
	if cfg.Archive.Enabled() {
		r2, err := utils.NewR2PageArchive(ctx, cfg.Archive)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize R2 archive")
		}
		archive = r2
		log.Info().Str("bucket", cfg.Archive.Bucket).Msg("raw page archive enabled")
	}

	client := services.NewMarketplaceClient(cfg.Marketplace)
	syncer := workers.NewSyncer(client, store, archive, cfg.Marketplace, cfg.Sync)

	app := fiber.New(fiber.Config{
		AppName:      "partnership-sync",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // sync triggers answer when the run finishes
	})
	app.Use(recover.New())
	app.Use(middleware.RequestLogger(log))
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-User-ID, X-User-Roles",
		MaxAge:       86400,
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := sqlDB.PingContext(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "down", "cause": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Everything below requires the gateway token.
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken))

	handlers.SetupSyncRoutes(app, syncer)
	handlers.SetupCustomerRoutes(app, services.NewCustomerQueryService(db))
	handlers.SetupTransactionRoutes(app, services.NewTransactionQueryService(db))
	handlers.SetupPartnerRoutes(app, db)

	if cfg.Sync.Interval > 0 {
		sched, err := workers.StartSyncScheduler(ctx, syncer, cfg.Sync.Interval)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start sync scheduler")
		}
		defer func() {
			if err := sched.Shutdown(); err != nil {
				log.Warn().Err(err).Msg("scheduler shutdown")
			}
		}()
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("server error")
		}
	}()

	log.Info().
		Str("port", cfg.Port).
		Str("marketplace", cfg.Marketplace.BaseURL).
		Int("page_size", cfg.Sync.PageSize).
		Int("max_pages", cfg.Sync.MaxPages).
		Dur("sync_interval", cfg.Sync.Interval).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Msg("server running")

	<-ctx.Done()
	log.Info().Msg("shutting down server")
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		log.Warn().Err(err).Msg("server shutdown")
	}
}
