package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/madfrog2047/Maskbook/internal/blockchain"
	"github.com/madfrog2047/Maskbook/internal/cache"
	"github.com/madfrog2047/Maskbook/internal/config"
	"github.com/madfrog2047/Maskbook/internal/handler"
	"github.com/madfrog2047/Maskbook/internal/models"
	"github.com/madfrog2047/Maskbook/internal/repository"
	"github.com/madfrog2047/Maskbook/internal/scheduler"
	"github.com/madfrog2047/Maskbook/internal/service"
	"github.com/madfrog2047/Maskbook/pkg/logger"
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

	tokenCache, err := cache.NewTokenCache(&cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, token cache disabled:", err)
		tokenCache = nil
	} else {
		defer tokenCache.Close()
	}

	rpRepo := repository.NewRedPacketRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	cursorRepo := repository.NewCursorRepository(db)

	tokenSvc := service.NewTokenService(tokenRepo, tokenCache)
	walletSvc := service.NewWalletService(walletRepo)
	rpSvc := service.NewRedPacketService(rpRepo, tokenSvc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, chainCfg := range cfg.GetEnabledChains() {
		go startChainWatcher(ctx, chainCfg, rpSvc, rpRepo, cursorRepo)
	}

	expiryScheduler := scheduler.NewExpiryScheduler(rpSvc, rpRepo, cfg.Chains, cfg.Expiry.SweepCron)
	if err := expiryScheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler:", err)
	}
	defer expiryScheduler.Stop()

	router := setupHTTPRouter(rpSvc, rpRepo, walletSvc, tokenSvc)

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
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
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

	return db, nil
}

func closeDatabase(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get database instance:", err)
		return
	}
	sqlDB.Close()
}

// startChainWatcher 每条链一个监听循环：事件映射交给processor，
// 同时周期性检查在途交易的回执
func startChainWatcher(ctx context.Context, chainCfg config.ChainConfig, rpSvc *service.RedPacketService, rpRepo *repository.RedPacketRepository, cursorRepo *repository.CursorRepository) {
	client, err := blockchain.NewClient(&chainCfg)
	if err != nil {
		logger.Error("Failed to create blockchain client:", err)
		return
	}
	defer client.Close()

	lastProcessedBlock, err := cursorRepo.GetCursor(ctx, chainCfg.ID)
	if err != nil {
		logger.Error("Failed to get chain cursor:", err)
		return
	}

	startBlock := lastProcessedBlock
	if startBlock == 0 && chainCfg.StartBlock > 0 {
		startBlock = chainCfg.StartBlock
	}

	logger.WithFields(map[string]interface{}{
		"chain_id":    chainCfg.ID,
		"network":     chainCfg.Network,
		"start_block": startBlock,
	}).Info("启动链监听器")

	processor := service.NewChainEventProcessor(rpSvc, rpRepo, models.Network(chainCfg.Network))

	listener := blockchain.NewEventListener(&chainCfg, client, cursorRepo)
	defer listener.Stop()
	go listener.Start(ctx, startBlock)

	receiptTicker := time.NewTicker(time.Duration(chainCfg.PullInterval) * time.Second * 2)
	defer receiptTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-listener.GetEventChannel():
			if err := processor.ProcessEvent(ctx, event); err != nil {
				logger.Error("Failed to process chain event:", err)
			}
		case <-receiptTicker.C:
			processor.CheckPendingTransactions(ctx, client)
		}
	}
}

func setupHTTPRouter(rpSvc *service.RedPacketService, rpRepo *repository.RedPacketRepository, walletSvc *service.WalletService, tokenSvc *service.TokenService) http.Handler {
	router := http.NewServeMux()

	rpHandler := handler.NewRedPacketHandler(rpSvc, rpRepo)
	walletHandler := handler.NewWalletHandler(walletSvc)
	tokenHandler := handler.NewTokenHandler(tokenSvc)

	router.HandleFunc("/api/redpacket/create", rpHandler.Create)
	router.HandleFunc("/api/redpacket/import", rpHandler.Import)
	router.HandleFunc("/api/redpacket/list", rpHandler.List)
	router.HandleFunc("/api/redpacket/", rpHandler.Handle)
	router.HandleFunc("/api/wallet/list", walletHandler.List)
	router.HandleFunc("/api/wallet/", walletHandler.Get)
	router.HandleFunc("/api/token", tokenHandler.Add)
	router.HandleFunc("/api/token/", tokenHandler.Get)
	router.HandleFunc("/health", handler.HandleHealth)

	return router
}
