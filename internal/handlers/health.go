package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/IBM/sarama"
)

const (
	statusHealthy   = "healthy"
	statusDisabled  = "disabled"
	statusUnhealthy = "unhealthy"
)

// HealthHandler проверяет зависимости сервиса. Нулевые зависимости считаются
// выключенными: memory-драйвер без БД, сервис без Redis или Kafka.
type HealthHandler struct {
	db           DBHealth
	redisClient  RedisHealth
	kafkaBrokers []string
	kafkaCheck   func([]string) error
}

// NewHealthHandler создает новый обработчик здоровья
func NewHealthHandler(db DBHealth, redisClient RedisHealth, kafkaBrokers []string, kafkaCheck func([]string) error) *HealthHandler {
	if kafkaCheck == nil {
		kafkaCheck = CheckKafkaHealth
	}
	return &HealthHandler{
		db:           db,
		redisClient:  redisClient,
		kafkaBrokers: kafkaBrokers,
		kafkaCheck:   kafkaCheck,
	}
}

// HealthResponse представляет ответ проверки здоровья
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
	Version  string            `json:"version"`
	Uptime   string            `json:"uptime"`
}

var startTime = time.Now()

type componentCheck struct {
	name string
	// nil означает, что компонент выключен
	check func(ctx context.Context) error
}

func (h *HealthHandler) components() []componentCheck {
	checks := []componentCheck{{name: "database"}, {name: "redis"}, {name: "kafka"}}
	if h.db != nil {
		checks[0].check = func(context.Context) error { return h.db.Health() }
	}
	if h.redisClient != nil {
		checks[1].check = h.redisClient.Health
	}
	if h.kafkaBrokers != nil {
		checks[2].check = func(context.Context) error { return h.kafkaCheck(h.kafkaBrokers) }
	}
	return checks
}

// Health проверяет состояние всех компонентов системы
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	services := make(map[string]string)
	overallStatus := statusHealthy

	for _, c := range h.components() {
		switch {
		case c.check == nil:
			services[c.name] = statusDisabled
		default:
			if err := c.check(ctx); err != nil {
				services[c.name] = statusUnhealthy + ": " + err.Error()
				overallStatus = statusUnhealthy
			} else {
				services[c.name] = statusHealthy
			}
		}
	}

	statusCode := http.StatusOK
	if overallStatus == statusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSONResponse(w, statusCode, HealthResponse{
		Status:   overallStatus,
		Services: services,
		Version:  "1.0.0",
		Uptime:   time.Since(startTime).String(),
	})
}

// Readiness проверяет готовность приложения к обработке запросов
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, c := range h.components() {
		if c.check == nil {
			continue
		}
		if err := c.check(ctx); err != nil {
			writeErrorResponse(w, http.StatusServiceUnavailable, c.name+" not ready")
			return
		}
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Liveness проверяет, что приложение живо
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": time.Since(startTime).String(),
	})
}

// CheckKafkaHealth проверяет доступность Kafka брокеров
func CheckKafkaHealth(brokers []string) error {
	return checkKafkaHealth(brokers)
}

func checkKafkaHealth(brokers []string) error {
	if len(brokers) == 0 {
		return errors.New("no brokers configured")
	}

	cfg := sarama.NewConfig()
	cfg.Net.DialTimeout = 3 * time.Second
	cfg.Net.ReadTimeout = 5 * time.Second
	cfg.Net.WriteTimeout = 5 * time.Second
	cfg.Metadata.Retry.Max = 1
	cfg.Metadata.Retry.Backoff = 500 * time.Millisecond

	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	return nil
}
