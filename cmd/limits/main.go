package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"limits/internal/amqp"
	"limits/internal/cache"
	"limits/internal/cli"
	"limits/internal/compliance"
	"limits/internal/core"
	"limits/internal/gateway/sandbox"
	apphttp "limits/internal/http"
	"limits/internal/services"
)

func main() {
	logger := cli.SetupLogger()
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// "limits seed" provisions the demo user and card, then exits.
	if len(os.Args) > 1 && os.Args[1] == "seed" {
		if err := repo.SeedDemoData(context.Background()); err != nil {
			logger.Error("Failed to seed demo data", "error", err)
			os.Exit(1)
		}
		logger.Info("Demo data seeded", "db", cfg.SQLiteDBPath)
		return
	}

	// Only the sandbox backend exists today; Validate has already rejected
	// anything else.
	gw := sandbox.New()
	logger.Info("Initialized gateway backend", "backend", cfg.GatewayBackend)

	historyCache := cache.NewLRUCache[[]core.TransactionRecord](cfg.HistoryCacheSize, cfg.HistoryCacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(historyCache)
	cacheManager.StartCleanup(time.Minute)

	var publisher services.AuditPublisher
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		// The API stays up without the audit stream; loads log a warning
		// per skipped message.
		logger.Warn("AMQP unavailable, audit publishing disabled", "error", err)
	} else {
		publisher = amqpClient
		defer amqpClient.Close()
	}

	loads := services.NewLoadService(repo, gw, publisher, compliance.DefaultTiers(cfg.Caps())).
		WithHistoryCache(historyCache)

	srv := apphttp.NewServer(":"+cfg.Port, loads, repo, repo)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
	})

	logger.Info("Starting limits server",
		"port", cfg.Port,
		"backend", cfg.GatewayBackend,
		"limit_day", cfg.LimitDay.String(),
		"limit_month", cfg.LimitMonth.String(),
		"limit_year", cfg.LimitYear.String(),
		"limit_balance", cfg.LimitBalance.String())

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	<-done
	logger.Info("Server stopped gracefully")
}
