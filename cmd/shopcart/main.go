package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/shopcart/internal/cache"
	"github.com/Skotchmaster/shopcart/internal/events"
	"github.com/Skotchmaster/shopcart/internal/httpserver"
	"github.com/Skotchmaster/shopcart/internal/metrics"
	"github.com/Skotchmaster/shopcart/internal/repo"
	"github.com/Skotchmaster/shopcart/internal/search"
	"github.com/Skotchmaster/shopcart/internal/service"
	"github.com/Skotchmaster/shopcart/pkg/config"
	pkgdb "github.com/Skotchmaster/shopcart/pkg/db"
	"github.com/Skotchmaster/shopcart/pkg/logging"
	"github.com/Skotchmaster/shopcart/pkg/middleware/csrf"
	loggingmw "github.com/Skotchmaster/shopcart/pkg/middleware/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := pkgdb.Open(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if cfg.AutoMigrate {
		if err := repo.AutoMigrate(db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	store := repo.New(db, cfg.TxTimeout)
	m := metrics.NewDefault("shopcart")

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers)
	} else {
		logger.Warn("kafka_disabled", "reason", "KAFKA_BROKERS not set")
	}

	cartOpts := []service.Option{service.WithPublisher(publisher), service.WithMetrics(m)}
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis url: %v", err)
		}
		rdb = redis.NewClient(opt)
		cartOpts = append(cartOpts, service.WithSummaryCache(cache.NewRedisCache(rdb, cfg.SummaryCacheTTL)))
	}

	catalog := &service.CatalogService{Repo: store, Events: publisher}
	if cfg.ESURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		es, err := search.NewClient(ctx, search.Config{URL: cfg.ESURL, Username: cfg.ESUser, Password: cfg.ESPassword})
		cancel()
		if err != nil {
			logger.Warn("search_disabled", "error", err)
		} else {
			catalog.Index = search.NewIndex(es, cfg.ESIndex)
		}
	}

	e := httpserver.New()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(m.Middleware())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.CORS())
	e.Use(echomw.Secure())
	e.Use(csrf.Middleware(csrf.DefaultConfig()))

	httpserver.Register(e, &httpserver.Deps{
		Cart:    &httpserver.CartHTTP{Svc: service.NewCartService(store, cartOpts...)},
		Catalog: &httpserver.CatalogHTTP{Svc: catalog},
		Auth: &httpserver.AuthHTTP{Svc: &service.AuthService{
			Repo:      store,
			JWTSecret: cfg.JWTAccessSecret,
			AccessTTL: cfg.AccessTokenTTL,
			Events:    publisher,
		}},
		Wishlist:  &httpserver.WishlistHTTP{Svc: &service.WishlistService{Repo: store}},
		JWTSecret: cfg.JWTAccessSecret,
		Ready:     func(ctx context.Context) error { return pkgdb.Ping(ctx, db) },
		Metrics:   m.Handler(),
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_failed", "error", err)
	}
	if err := publisher.Close(); err != nil {
		logger.Error("publisher_close_failed", "error", err)
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Error("redis_close_failed", "error", err)
		}
	}
	if err := pkgdb.Close(db); err != nil {
		logger.Error("db_close_failed", "error", err)
	}

	logger.Info("stopped")
}
