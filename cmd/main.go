package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"ledger-stats-system/internal/config"
	"ledger-stats-system/internal/handler"
	"ledger-stats-system/internal/ingester"
	"ledger-stats-system/internal/models"
	"ledger-stats-system/internal/repository"
	"ledger-stats-system/internal/scheduler"
	"ledger-stats-system/internal/service"
	"ledger-stats-system/internal/tiers"
	"ledger-stats-system/pkg/logger"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	db, err := initDatabase(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}
	defer closeDatabase(db)

	tierTable := tiers.DefaultTable()

	txRepo := repository.NewTransactionRepository(db)
	balanceRepo := repository.NewBalanceRepository(db)
	statsRepo := repository.NewWalletStatsRepository(db)

	balanceSvc := service.NewBalanceService(db, txRepo, balanceRepo, tierTable)
	statsSvc := service.NewWalletStatsService(db, balanceRepo, statsRepo, service.RankedQueryStrategy{})
	reclassifySvc := service.NewReclassifyService(balanceRepo, tierTable)

	var poller *ingester.Poller
	if cfg.Ledger.PollEnabled {
		poller = ingester.NewPoller(ingester.NewClient(&cfg.Ledger), txRepo)
	}

	sched := scheduler.NewAggregationScheduler(cfg, poller, balanceSvc, statsSvc)
	if err := sched.Start(); err != nil {
		logger.Fatal("Failed to start scheduler:", err)
	}
	defer sched.Stop()

	router := setupHTTPRouter(sched, reclassifySvc)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting on port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error:", err)
	}

	logger.Info("Server stopped")
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := migrateModels(db); err != nil {
		return nil, err
	}

	return db, nil
}

func migrateModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Transaction{},
		&models.AccountHourlyBalance{},
		&models.UniqueWalletsHourly{},
	)
}

func closeDatabase(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get database instance:", err)
		return
	}
	sqlDB.Close()
}

func setupHTTPRouter(sched *scheduler.AggregationScheduler, reclassifySvc *service.ReclassifyService) http.Handler {
	router := http.NewServeMux()

	aggHandler := handler.NewAggregationHandler(sched)
	reclassifyHandler := handler.NewReclassifyHandler(reclassifySvc)

	router.HandleFunc("/api/aggregate/balances", aggHandler.TriggerBalances)
	router.HandleFunc("/api/aggregate/wallet-stats", aggHandler.TriggerWalletStats)
	router.HandleFunc("/api/aggregate/backfill", aggHandler.TriggerBackfill)
	router.HandleFunc("/api/reclassify", reclassifyHandler.Reclassify)
	router.HandleFunc("/health", handler.HandleHealth)

	return router
}
