package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	limiter "github.com/ulule/limiter/v3"

	"apotekku/backend/internal/cache"
	"apotekku/backend/internal/config"
	"apotekku/backend/internal/dashboard"
	"apotekku/backend/internal/events"
	"apotekku/backend/internal/httpapi"
	"apotekku/backend/internal/service"
	"apotekku/backend/internal/store"
	"apotekku/backend/internal/store/memory"
	"apotekku/backend/internal/store/sqlstore"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if err := cfg.ValidateSecurity(); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		log.Fatalf("repository unavailable: %v", err)
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}

	dashCache := cache.DashboardCache(cache.NoopDashboardCache{})
	publisher := events.Publisher(events.NoopPublisher{})
	var limiterStore limiter.Store
	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		redisCache := cache.NewRedisDashboardCache(client)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache, noop events and in-process rate limits", err)
			_ = client.Close()
		} else {
			dashCache = redisCache
			publisher = events.NewRedisPublisher(client, cfg.EventsChannel)
			if ls, err := httpapi.NewRedisLimiterStore(client); err != nil {
				log.Printf("redis limiter store unavailable (%v), using in-process rate limits", err)
			} else {
				limiterStore = ls
			}
			closers = append(closers, client.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	dash := dashboard.NewEngine(repo, dashCache, time.Duration(cfg.DashboardTTLSeconds)*time.Second, dashboard.Options{
		LowStockThreshold: cfg.LowStockThreshold,
		NearExpiryDays:    cfg.NearExpiryDays,
	})
	svc := service.New(repo, dash, publisher, service.Options{
		PriceValidation: cfg.PriceValidation,
		NearExpiryDays:  cfg.NearExpiryDays,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.ManagerPIN, repo)
	api, err := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		LoginRate:     cfg.LoginRateLimit,
		SaleRate:      cfg.SaleRateLimit,
		PINRate:       cfg.PINRateLimit,
		LimiterStore:  limiterStore,
	})
	if err != nil {
		log.Fatalf("invalid rate limit configuration: %v", err)
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("pharmacy backend listening on %s (price validation: %s)", cfg.Address(), cfg.PriceValidation)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

// openRepository picks Postgres, then SQLite, then the seeded in-memory store.
// A configured database that cannot be reached is fatal rather than silently
// replaced by memory.
func openRepository(ctx context.Context, cfg config.Config) (store.Repository, func() error, error) {
	var (
		db   *sqlstore.Store
		err  error
		kind string
	)
	switch {
	case cfg.DatabaseURL != "":
		kind = "postgres"
		db, err = sqlstore.NewPostgres(ctx, cfg.DatabaseURL)
	case cfg.SQLitePath != "":
		kind = "sqlite"
		db, err = sqlstore.NewSQLite(ctx, cfg.SQLitePath)
	default:
		log.Println("repository: in-memory")
		return memory.NewSeeded(), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", kind, err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("%s migrate: %w", kind, err)
	}

	users, err := db.ListUsers(ctx)
	if err == nil && len(users) == 0 {
		log.Printf("[server] WARN: %s has no user accounts; run cmd/seed to create them", kind)
	}
	log.Printf("repository: %s", kind)
	return db, db.Close, nil
}
