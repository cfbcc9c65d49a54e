package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"timesheet/internal/aggregator"
	"timesheet/internal/amqp"
	"timesheet/internal/config"
	applog "timesheet/internal/log"
	"timesheet/internal/services"
	"timesheet/internal/store"
	"timesheet/internal/store/memory"
	"timesheet/internal/store/sqlite"
)

func main() {
	// Load .env for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := applog.DefaultConfig()
	cfg.Component = applog.ComponentWorker
	logger := applog.New(cfg)
	applog.SetDefault(logger)

	logger.Info("Starting timesheet-worker")

	conf := config.Load()
	if err := conf.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if conf.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the aggregation worker")
		os.Exit(1)
	}

	var st store.Store
	switch conf.Backend {
	case "sqlite":
		var err error
		st, err = sqlite.New(conf.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize sqlite store", "error", err, "path", conf.SQLiteDBPath)
			os.Exit(1)
		}
	default:
		st = memory.New()
	}
	defer st.Close()

	client, err := amqp.NewClient(conf.AMQPURL, conf.AMQPExchange, conf.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	processor := services.NewAggregationProcessor(client, aggregator.NewProcessor(st))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return processor.Run(ctx)
	})

	logger.Info("Aggregation worker consuming entry changes",
		"exchange", conf.AMQPExchange, "queue", conf.AMQPQueue)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
