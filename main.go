package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/driver/postgres"

	"bonkers-airdrop/config"
	"bonkers-airdrop/economy"
	"bonkers-airdrop/handlers"
	"bonkers-airdrop/middleware"
	"bonkers-airdrop/services"
	"bonkers-airdrop/store"
	"bonkers-airdrop/utils"
	"bonkers-airdrop/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	utils.SetupLogging("bonkers-airdrop", cfg.Server.Environment, cfg.Logging.Level, cfg.Logging.File)

	params := economy.DefaultParams()
	if cfg.Economy.ParamsFile != "" {
		if params, err = economy.LoadParams(cfg.Economy.ParamsFile); err != nil {
			log.Fatalf("failed to load economy params: %v", err)
		}
	}
	log.Printf("💰 Economy params version %s", params.Version)

	st, err := store.Open(postgres.Open(cfg.Database.URL), cfg.Database.Store)
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}
	if sqlDB, err := st.DB.DB(); err == nil {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	}

	metrics := services.NewMetrics("bonkers")
	ledger := services.NewLedger(st, params, metrics)
	referrals := services.NewReferralService(ledger)
	limiter := middleware.NewRateLimiter(middleware.RateLimit{
		RequestsPerMinute: cfg.Limits.RequestsPerMinute,
		Burst:             cfg.Limits.Burst,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler, err := workers.NewScheduler(ctx)
	if err != nil {
		log.Fatal(err)
	}
	if err := scheduler.AddReferralSettlement(referrals, cfg.Workers.ReferralSettlementInterval); err != nil {
		log.Fatal("failed to schedule referral settlement:", err)
	}
	if err := scheduler.AddLimiterSweep(limiter, time.Minute); err != nil {
		log.Fatal("failed to schedule rate-limit sweep:", err)
	}
	if cfg.Workers.LedgerArchiveEnabled {
		archive, err := utils.NewR2Archive(ctx, utils.R2Config{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			AccessKeySecret: cfg.R2.AccessKeySecret,
			Bucket:          cfg.R2.Bucket,
		})
		if err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
		if err := scheduler.AddLedgerArchive(workers.NewLedgerArchiver(st, archive)); err != nil {
			log.Fatal("failed to schedule ledger archive:", err)
		}
	}
	scheduler.Start()

	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: handlers.ErrorHandler,
	})
	app.Use(recover.New())
	app.Use(logger.New())

	allowedOrigins := strings.Join(cfg.Server.AllowedOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, X-Requested-With, X-Request-ID, Cache-Control, X-Session-Token, X-Service-Token, Idempotency-Key",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	handlers.Register(app, handlers.Deps{
		DB:           st,
		Registry:     metrics.Registry,
		GatewayToken: cfg.Server.GatewayToken,
		JWTSecret:    []byte(cfg.Server.JWTSecret),
		Limiter:      limiter,
		Accounts:     services.NewAccountService(ledger),
		Swaps:        services.NewSwapService(ledger),
		Withdrawals:  services.NewWithdrawalService(ledger),
		Tasks:        services.NewTaskService(ledger),
		Referrals:    referrals,
		Leaderboard:  services.NewLeaderboardService(ledger),
	})

	go func() {
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", cfg.Server.Port)
	log.Printf("✅ Referral settlement every %s", cfg.Workers.ReferralSettlementInterval)
	log.Printf("✅ CORS configured for origins: %s", allowedOrigins)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if err := scheduler.Shutdown(); err != nil {
		log.Printf("Scheduler shutdown error: %v", err)
	}
	if sqlDB, err := st.DB.DB(); err == nil {
		sqlDB.Close()
	}
}
