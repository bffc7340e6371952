package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coupon-service/internal/config"
	"coupon-service/internal/database"
	"coupon-service/internal/handlers"
	"coupon-service/internal/kafka"
	"coupon-service/internal/logger"
	"coupon-service/internal/metrics"
	"coupon-service/internal/models"
	"coupon-service/internal/redis"
	"coupon-service/internal/repository"
	"coupon-service/internal/services"
)

// Фабричные функции для подключения внешних сервисов (подменяемые в тестах).
var (
	dbConnect        = database.Connect
	redisConnect     = redis.Connect
	newKafkaProducer = kafka.NewProducer
	newKafkaConsumer = kafka.NewConsumer
	kafkaHealthCheck = handlers.CheckKafkaHealth
	loadConfig       = config.Load
	newLogger        = logger.New
)

const (
	storeDriverPostgres = "postgres"
	storeDriverMemory   = "memory"
)

// application агрегирует собранные зависимости.
type application struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	redis    *redis.Client
	producer *kafka.Producer
	consumer *kafka.Consumer
	handler  http.Handler
	server   *http.Server
}

func main() {
	app, err := buildApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build app: %v\n", err)
		os.Exit(1)
	}
	app.log.Info("Starting coupon service...")

	go func() {
		app.log.WithField("address", app.server.Addr).Info("HTTP server starting")
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	app.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.server.Shutdown(ctx); err != nil {
		app.log.WithError(err).Error("Server forced to shutdown")
	}
	app.close()
	app.log.Info("Server exited")
}

// close освобождает ресурсы; безопасен для частично собранного приложения.
func (a *application) close() {
	_ = a.consumer.Stop()
	_ = a.producer.Close()
	_ = a.redis.Close()
	_ = a.db.Close()
}

// buildApplication создает все зависимости (подменяемые в тестах).
func buildApplication() (*application, error) {
	cfg := loadConfig()
	log := newLogger(&cfg.Logger)
	app := &application{cfg: cfg, log: log}

	repo, err := app.openStore()
	if err != nil {
		app.close()
		return nil, err
	}

	if cfg.Redis.Enabled {
		app.redis, err = redisConnect(&cfg.Redis, log)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("redis connect: %w", err)
		}
	}

	if cfg.Kafka.Enabled {
		app.producer, err = newKafkaProducer(&cfg.Kafka, log)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		app.consumer, err = newKafkaConsumer(&cfg.Kafka, log)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("kafka consumer: %w", err)
		}
	}

	m := metrics.New()

	couponService := services.NewCouponService(repo, log, &cfg.Coupons).WithMetrics(m)
	if app.redis != nil {
		couponService.WithCache(app.redis)
	}
	if app.producer != nil {
		couponService.WithPublisher(app.producer)
	}
	merchantService := services.NewMerchantService(repo, log)

	var rateLimiter *services.RateLimiter
	if app.redis != nil {
		rateLimiter = services.NewRateLimiter(app.redis, log, &cfg.RateLimit)
	} else {
		rateLimiter = services.NewRateLimiter(nil, log, &cfg.RateLimit)
	}

	if app.consumer != nil {
		registerEventHandlers(app.consumer, couponService, log)
		if err := app.consumer.Start(); err != nil {
			app.close()
			return nil, fmt.Errorf("kafka consumer start: %w", err)
		}
	}

	app.handler = handlers.NewRouter(handlers.RouterDeps{
		Coupons:     handlers.NewCouponHandler(couponService, log),
		Merchants:   handlers.NewMerchantHandler(merchantService, log),
		Health:      app.healthHandler(),
		RateLimit:   handlers.NewRateLimitHandler(rateLimiter, log, &cfg.RateLimit),
		Limiter:     rateLimiter,
		Metrics:     m.Middleware,
		MetricsPage: m.Handler(),
		Log:         log,
	})
	app.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      app.handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	log.WithFields(map[string]interface{}{
		"store":        cfg.Coupons.StoreDriver,
		"active_limit": cfg.Coupons.ActiveLimit,
		"redis":        app.redis != nil,
		"kafka":        app.producer != nil,
	}).Info("Application assembled")

	return app, nil
}

// openStore выбирает хранилище купонов по STORE_DRIVER
func (a *application) openStore() (repository.CouponRepository, error) {
	switch a.cfg.Coupons.StoreDriver {
	case storeDriverMemory:
		repo := repository.NewMemoryCouponRepository()
		demo := repo.AddMerchant("Demo Merchant")
		a.log.WithField("merchant_id", demo.ID).Warn("Using in-memory coupon store; data is not persisted")
		return repo, nil
	case storeDriverPostgres:
		db, err := dbConnect(&a.cfg.Database, a.log)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		a.db = db
		if a.cfg.Database.AutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := db.Migrate(ctx); err != nil {
				return nil, fmt.Errorf("db migrate: %w", err)
			}
		}
		return repository.NewPostgresCouponRepository(db), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", a.cfg.Coupons.StoreDriver)
	}
}

// healthHandler передает в проверки только включенные компоненты
func (a *application) healthHandler() *handlers.HealthHandler {
	var (
		db      handlers.DBHealth
		rc      handlers.RedisHealth
		brokers []string
	)
	if a.db != nil {
		db = a.db
	}
	if a.redis != nil {
		rc = a.redis
	}
	if a.producer != nil {
		brokers = a.cfg.Kafka.Brokers
	}
	return handlers.NewHealthHandler(db, rc, brokers, kafkaHealthCheck)
}

// registerEventHandlers регистрирует обработчики событий купонов.
// Другие инстансы сервиса сбрасывают свой кеш списков по событиям из Kafka.
func registerEventHandlers(consumer *kafka.Consumer, coupons *services.CouponService, log *logger.Logger) {
	invalidate := func(ctx context.Context, event *models.Event) error {
		data, err := kafka.DecodeCouponEvent(event)
		if err != nil {
			return err
		}
		coupons.InvalidateMerchant(ctx, data.MerchantID)
		log.WithFields(map[string]interface{}{
			"event_id":    event.ID,
			"event_type":  event.Type,
			"merchant_id": data.MerchantID,
		}).Debug("Coupon list cache invalidated by event")
		return nil
	}

	consumer.RegisterHandler(models.EventTypeCouponCreated, invalidate)
	consumer.RegisterHandler(models.EventTypeCouponActivated, invalidate)
	consumer.RegisterHandler(models.EventTypeCouponDeactivated, invalidate)
}
