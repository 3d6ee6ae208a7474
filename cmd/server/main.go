package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/ecomgo/storefront/internal/cache"
	"github.com/ecomgo/storefront/internal/cartstore"
	"github.com/ecomgo/storefront/internal/config"
	"github.com/ecomgo/storefront/internal/es"
	"github.com/ecomgo/storefront/internal/handlers"
	"github.com/ecomgo/storefront/internal/handlers/cart"
	"github.com/ecomgo/storefront/internal/logging"
	authmw "github.com/ecomgo/storefront/internal/middleware/auth"
	"github.com/ecomgo/storefront/internal/mykafka"
	"github.com/ecomgo/storefront/internal/payment"
	"github.com/ecomgo/storefront/internal/photostore"
	"github.com/ecomgo/storefront/internal/service/token"
	httpserver "github.com/ecomgo/storefront/internal/transport/http"
)

const productIndex = "product"

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)
	slog.SetDefault(logger)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     configuration.REDIS_ADDR,
		Password: configuration.REDIS_PASSWORD,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis ping error: %v", err)
	}

	var producer mykafka.Publisher = mykafka.NopPublisher{}
	var kafkaProducer *mykafka.Producer
	if configuration.KAFKA_ADDRESS != "" {
		kafkaProducer, err = mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})
		if err != nil {
			log.Fatalf("kafka init error: %v", err)
		}
		producer = kafkaProducer
	} else {
		logger.Warn("KAFKA_ADDRESS not set, events disabled")
	}

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatalf("elasticsearch init error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	photos, err := photostore.NewMinioStore(ctx,
		configuration.MINIO_ENDPOINT,
		configuration.MINIO_ACCESS_KEY,
		configuration.MINIO_SECRET_KEY,
		configuration.MINIO_BUCKET,
	)
	cancel()
	if err != nil {
		log.Fatalf("minio init error: %v", err)
	}

	tokens := &token.Service{
		DB:            db,
		JWTSecret:     []byte(configuration.JWT_SECRET),
		RefreshSecret: []byte(configuration.REFRESH_SECRET),
	}

	gateway := payment.NewStripeGateway(configuration.STRIPE_SECRET_KEY)
	cartStore := cartstore.NewRedisStore(rdb)

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())

	deps := httpserver.Deps{
		Auth:        &authmw.Middleware{DB: db, Tokens: tokens},
		AuthHandler: &handlers.AuthHandler{DB: db, Tokens: tokens, Producer: producer},
		CategoryHandler: &handlers.CategoryHandler{
			DB:       db,
			Cache:    cache.NewCategories(rdb),
			Producer: producer,
		},
		ProductHandler: &handlers.ProductHandler{
			DB:       db,
			Producer: producer,
			Photos:   photos,
			ES:       esClient,
			Index:    productIndex,
		},
		OrderHandler:  &handlers.OrderHandler{DB: db, Producer: producer},
		SearchHandler: handlers.NewSearchHandler(esClient, productIndex),
		CartHandler:   &cart.CartHandler{DB: db, Store: cartStore, Producer: producer},
		CheckoutHandler: &handlers.CheckoutHandler{
			DB:       db,
			Cart:     cartStore,
			Gateway:  gateway,
			Producer: producer,
		},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + configuration.PORT,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := rdb.Close(); err != nil {
		log.Printf("redis close error: %v", err)
	}

	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Printf("kafka close error: %v", err)
		}
	}

	log.Println("shutdown complete")
}
