package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sponsorship-partnerships/internal/cache"
	"github.com/iliyamo/sponsorship-partnerships/internal/config"
	"github.com/iliyamo/sponsorship-partnerships/internal/database"
	"github.com/iliyamo/sponsorship-partnerships/internal/handler"
	"github.com/iliyamo/sponsorship-partnerships/internal/middleware"
	"github.com/iliyamo/sponsorship-partnerships/internal/queue"
	"github.com/iliyamo/sponsorship-partnerships/internal/repository"
	"github.com/iliyamo/sponsorship-partnerships/internal/router"
	"github.com/iliyamo/sponsorship-partnerships/internal/service"
	"github.com/iliyamo/sponsorship-partnerships/internal/telemetry"
)

func main() {
	_ = godotenv.Load() // .env is optional
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint, cfg.ServiceName)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	if cfg.DBDriver == config.DriverSQLite || cfg.DBAutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis: unavailable, rate limiting and caches disabled")
	} else {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()

	var notifier service.DecisionNotifier
	if cfg.AMQPURL != "" {
		notifier = service.NewQueuePublisher(cfg.AMQPURL, cfg.DecisionQueue)
		go func() {
			err := queue.StartDecisionConsumer(ctx, queue.ConsumerConfig{
				URL:     cfg.AMQPURL,
				Queue:   cfg.DecisionQueue,
				LogPath: cfg.DecisionLogPath,
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("consumer: stopped: %v", err)
			}
		}()
	} else {
		log.Printf("amqp: AMQP_URL not set, decision events disabled")
	}

	var pricingCache service.PricingCache
	if rdb != nil {
		pricingCache = cache.NewPricingCache(rdb, cfg.PricingCacheTTL)
	}

	svc := service.NewPartnershipService(
		repository.NewCatalogRepo(db),
		repository.NewPartnershipRepo(db),
		pricingCache,
		notifier,
		cfg.DefaultLanguage,
	)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.Use(middleware.Tracing(cfg.ServiceName))
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	organizer := handler.NewOrganizerHandler(svc)
	organizer.InvalidateCatalog = func(ctx context.Context, eventID string) {
		if err := middleware.PurgeCachedPath(ctx, rdb, cacheCfg, "/v1/events/"+eventID+"/packs"); err != nil {
			log.Printf("cache: purge catalog of event %s: %v", eventID, err)
		}
	}

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db)), cfg.JWTSecret)
	router.RegisterCatalog(e, handler.NewCatalogHandler(svc), middleware.NewRedisCache(cacheCfg, rdb))
	router.RegisterPartner(e, handler.NewPartnerHandler(svc), cfg.JWTSecret)
	router.RegisterOrganizer(e, organizer, cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s, db=%s)", addr, cfg.Env, cfg.DBDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	svc.Wait()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
}
