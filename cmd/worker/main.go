package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-shop-backend.git/internal/catalog"
	"github.com/ariefcatur/go-shop-backend.git/internal/config"
	"github.com/ariefcatur/go-shop-backend.git/internal/inventory"
	kafkax "github.com/ariefcatur/go-shop-backend.git/internal/kafka"
	"github.com/ariefcatur/go-shop-backend.git/internal/logger"
	"github.com/ariefcatur/go-shop-backend.git/internal/orders"
	"github.com/ariefcatur/go-shop-backend.git/internal/postgres"
	"github.com/ariefcatur/go-shop-backend.git/internal/redisx"
)

func main() {
	log := logger.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Error("config", "err", err)
		os.Exit(1)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Producer untuk alert stok menipis
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 256, log)
	prod.Start()

	svc := &inventory.Service{
		Stock:     &catalog.Repo{DB: db},
		Alerts:    &orders.EventPublisher{Producer: prod, Service: cfg.ServiceName + "-worker"},
		Cache:     redisx.StatusCache{R: rdb},
		Seen:      redisx.Marker{R: rdb},
		Threshold: cfg.LowStockThreshold,
		Name:      cfg.WorkerGroup,
		Log:       log,
	}

	// Consumer
	topics := orders.WorkerTopics()
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.WorkerGroup, topics, cfg.WorkerCount, log)

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("worker consumer started", "group", cfg.WorkerGroup, "topics", topics, "workers", cfg.WorkerCount)
		if err := cons.Start(ctx, svc.Handle); err != nil {
			log.Error("consumer exit", "err", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumer...")
	cancel()
	// handler masih bisa publish alert sampai consumer selesai
	<-done
	prod.Close()
	prod.WaitClosed()
}
