package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"harvest/config"
	"harvest/consumers"
	"harvest/database"
	"harvest/middlewares"
	"harvest/rabbitmq"
	"harvest/repository"
	"harvest/repository/memory"
	"harvest/routes"
	"harvest/services"
	"harvest/workers"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	carts, orders, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Storage initialization failed: %v", err)
	}
	defer closeStore()

	var events services.EventPublisher
	var rmq *rabbitmq.RabbitMQ
	if cfg.RabbitMQURL != "" {
		rmq, err = rabbitmq.NewRabbitMQ(cfg)
		if err != nil {
			log.Fatalf("RabbitMQ initialization failed: %v", err)
		}
		defer rmq.Close()

		if err := rmq.SetupQueues(); err != nil {
			log.Fatalf("Failed to setup RabbitMQ queues: %v", err)
		}
		events = rmq
	} else {
		log.Warn("RABBITMQ_URL is empty, order events are disabled")
	}

	fees := services.Fees{
		DeliveryFee:           cfg.DeliveryFee,
		FreeDeliveryThreshold: cfg.FreeDeliveryThreshold,
		ServiceFee:            cfg.ServiceFee,
	}

	orderService := services.NewOrderService(orders, events)
	svc := routes.Services{
		Carts: services.NewCartService(carts, fees),
		Checkout: services.NewCheckoutService(orders, services.CheckoutConfig{
			Fees:          fees,
			Currency:      cfg.Currency,
			PaymentWindow: cfg.PaymentWindow,
			Bank: services.BankAccount{
				BankName:      cfg.BankName,
				AccountNumber: cfg.BankAccountNumber,
				AccountName:   cfg.BankAccountName,
			},
		}, events),
		Orders: orderService,
	}

	if rmq != nil {
		consumer := consumers.NewOrderConsumer(rmq.Channel, cfg, orderService)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				log.WithError(err).Error("order consumer stopped")
			}
		}()
	}

	go workers.NewPaymentSweeper(orderService, cfg.PaymentSweepInterval).Run(ctx)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(cfg)))
	r.Use(middlewares.PrometheusMiddleware())

	routes.SetupRoutes(r, svc, cfg.JWTSecret)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Harvest order service starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown failed")
	}
}

func setupLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Warn("invalid LOG_LEVEL, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.GinMode == gin.ReleaseMode {
		log.SetFormatter(&log.JSONFormatter{})
	}
}

func openStore(ctx context.Context, cfg *config.Config) (repository.CartRepository, repository.OrderRepository, func(), error) {
	if cfg.StorageDriver == config.StorageMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return store, store, func() {}, nil
	}

	db, err := database.Open(ctx, database.DSN(cfg))
	if err != nil {
		return nil, nil, nil, err
	}

	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}

	closeDB := func() {
		if err := db.Close(); err != nil {
			log.WithError(err).Warn("close database")
		}
	}

	return repository.NewCart(db), repository.NewOrder(db), closeDB, nil
}

func corsConfig(cfg *config.Config) cors.Config {
	c := cors.DefaultConfig()
	c.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"}

	if len(cfg.CORSAllowOrigins) == 0 || (len(cfg.CORSAllowOrigins) == 1 && cfg.CORSAllowOrigins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.CORSAllowOrigins
	}

	return c
}
