package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-shop-backend.git/internal/cart"
	"github.com/ariefcatur/go-shop-backend.git/internal/catalog"
	"github.com/ariefcatur/go-shop-backend.git/internal/config"
	"github.com/ariefcatur/go-shop-backend.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-shop-backend.git/internal/kafka"
	"github.com/ariefcatur/go-shop-backend.git/internal/logger"
	"github.com/ariefcatur/go-shop-backend.git/internal/orders"
	"github.com/ariefcatur/go-shop-backend.git/internal/postgres"
	"github.com/ariefcatur/go-shop-backend.git/internal/redisx"
	"github.com/ariefcatur/go-shop-backend.git/internal/reports"
	"github.com/ariefcatur/go-shop-backend.git/internal/uploads"
	"github.com/ariefcatur/go-shop-backend.git/internal/users"
	"github.com/go-chi/chi/v5"
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
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Error("db migrate", "err", err)
		os.Exit(1)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start()

	// Services & handlers
	svc := orders.NewService(&orders.Repo{DB: db}, &orders.EventPublisher{Producer: prod, Service: cfg.ServiceName}, log)
	catalogRepo := &catalog.Repo{DB: db}
	userRepo := &users.Repo{DB: db}
	files := &uploads.Store{Dir: cfg.UploadDir}

	router := httpx.NewRouter()
	router.Route("/api", func(r chi.Router) {
		(&httpx.AuthHandler{Users: userRepo, Log: log}).Register(r)
		(&httpx.CatalogHandler{Catalog: catalogRepo, Log: log}).Register(r)
		(&httpx.CartHandler{Cart: &cart.Repo{DB: db}, Log: log}).Register(r)
		(&httpx.OrdersHandler{
			Service: svc,
			Proofs:  files,
			Redis:   rdb,
			Log:     log,
		}).Register(r)
		(&httpx.AdminHandler{
			Orders:  svc,
			Catalog: catalogRepo,
			Users:   userRepo,
			Reports: &reports.Repo{DB: db},
			Images:  files,
			Redis:   rdb,
			Log:     log,
		}).Register(r)
	})
	httpx.ServeStatic(router, cfg.UploadDir)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	// graceful shutdown
	go func() {
		log.Info("HTTP listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "err", err)
			os.Exit(1)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Warn("http shutdown", "err", err)
	}
	prod.Close()      // tutup inbox -> flush & close writer
	prod.WaitClosed() // drain
}
