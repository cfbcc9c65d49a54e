package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"timesheet/internal/amqp"
	"timesheet/internal/auth"
	"timesheet/internal/config"
	"timesheet/internal/core"
	apphttp "timesheet/internal/http"
	applog "timesheet/internal/log"
	"timesheet/internal/recalc"
	"timesheet/internal/services"
	"timesheet/internal/store"
	"timesheet/internal/store/memory"
	"timesheet/internal/store/sqlite"
)

func main() {
	// Load .env for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	var st store.Store
	switch cfg.Backend {
	case "sqlite":
		var err error
		st, err = sqlite.New(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize sqlite store", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
	default:
		st = memory.New()
	}
	defer st.Close()
	logger.Info("Initialized store", "backend", cfg.Backend)

	directory := auth.NewDirectory(st)
	for _, uid := range cfg.AdminUIDs {
		if err := directory.SetRole(context.Background(), uid, core.RoleAdmin); err != nil {
			logger.Error("Failed to seed admin role", "uid", uid, "error", err)
			os.Exit(1)
		}
	}

	// Without a broker the API still works; summaries lag until the next
	// recalculation.
	var publisher services.ChangePublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		publisher = client
		logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Warn("AMQP disabled - entry changes will not be aggregated incrementally")
	}

	verifier := auth.NewHMACVerifier(cfg.AuthSecret)
	entryService := services.NewEntryService(st, publisher, directory)
	recalcService := recalc.NewService(st, st, directory)

	srv := apphttp.NewServer(":"+cfg.Port, entryService, recalcService, verifier, directory)
	srv.ReadTimeout = cfg.ReadTimeout
	srv.WriteTimeout = cfg.WriteTimeout
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting timesheet server", "port", cfg.Port, "backend", cfg.Backend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
