package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config представляет конфигурацию приложения
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	Redis     RedisConfig     `json:"redis" yaml:"redis"`
	Kafka     KafkaConfig     `json:"kafka" yaml:"kafka"`
	Logger    LoggerConfig    `json:"logger" yaml:"logger"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	Coupons   CouponsConfig   `json:"coupons" yaml:"coupons"`
}

// ServerConfig представляет конфигурацию HTTP сервера
type ServerConfig struct {
	Port         string `json:"port" yaml:"port"`
	Host         string `json:"host" yaml:"host"`
	ReadTimeout  int    `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout int    `json:"write_timeout" yaml:"write_timeout"`
}

// DatabaseConfig представляет конфигурацию базы данных
type DatabaseConfig struct {
	Host         string `json:"host" yaml:"host"`
	Port         string `json:"port" yaml:"port"`
	User         string `json:"user" yaml:"user"`
	Password     string `json:"password" yaml:"password"`
	DBName       string `json:"db_name" yaml:"db_name"`
	SSLMode      string `json:"ssl_mode" yaml:"ssl_mode"`
	MaxOpenConns int    `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns" yaml:"max_idle_conns"`
	AutoMigrate  bool   `json:"auto_migrate" yaml:"auto_migrate"`
}

// RedisConfig представляет конфигурацию Redis
type RedisConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Host     string `json:"host" yaml:"host"`
	Port     string `json:"port" yaml:"port"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// KafkaConfig представляет конфигурацию Kafka
type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	GroupID string   `json:"group_id" yaml:"group_id"`
	Topics  Topics   `json:"topics" yaml:"topics"`
}

// Topics представляет список топиков Kafka
type Topics struct {
	Coupons string `json:"coupons" yaml:"coupons"`
}

// LoggerConfig представляет конфигурацию логгера
type LoggerConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	File   string `json:"file" yaml:"file"`
}

// RateLimitConfig описывает настройки rate limiting
type RateLimitConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	Requests      int    `json:"requests" yaml:"requests"`             // лимит чтений на клиента
	WriteRequests int    `json:"write_requests" yaml:"write_requests"` // лимит изменений купонов на клиента
	WindowSeconds int    `json:"window_seconds" yaml:"window_seconds"`
	KeyPrefix     string `json:"key_prefix" yaml:"key_prefix"`
}

// CouponsConfig хранит бизнес-настройки купонов
type CouponsConfig struct {
	ActiveLimit         int    `json:"active_limit" yaml:"active_limit"`                   // максимум активных купонов на мерчанта
	ListCacheTTLSeconds int    `json:"list_cache_ttl_seconds" yaml:"list_cache_ttl_seconds"` // 0 = без кеша
	StoreDriver         string `json:"store_driver" yaml:"store_driver"`                   // postgres | memory
}

// DefaultActiveLimit - лимит активных купонов на одного мерчанта.
const DefaultActiveLimit = 5

// Load загружает конфигурацию из переменных окружения.
// Перед чтением подхватывается .env (если есть), после чтения поверх накладывается
// YAML-файл из CONFIG_FILE (если задан).
func Load() *Config {
	_ = godotenv.Load()

	cfg := fromEnv()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.applyFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
		}
	}

	cfg.normalize()
	return cfg
}

func fromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 10),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "coupon_user"),
			Password:     getEnv("DB_PASSWORD", "coupon_pass"),
			DBName:       getEnv("DB_NAME", "coupon_service"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			AutoMigrate:  getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvAsBool("KAFKA_ENABLED", true),
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			GroupID: getEnv("KAFKA_GROUP_ID", "coupon-service"),
			Topics: Topics{
				Coupons: getEnv("KAFKA_TOPIC_COUPONS", "coupons"),
			},
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getEnvAsBool("RATE_LIMIT_ENABLED", false),
			Requests:      getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
			WriteRequests: getEnvAsInt("RATE_LIMIT_WRITE_REQUESTS", 30),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			KeyPrefix:     getEnv("RATE_LIMIT_KEY_PREFIX", "ratelimit"),
		},
		Coupons: CouponsConfig{
			ActiveLimit:         getEnvAsInt("COUPON_ACTIVE_LIMIT", DefaultActiveLimit),
			ListCacheTTLSeconds: getEnvAsInt("COUPON_LIST_CACHE_TTL_SECONDS", 30),
			StoreDriver:         getEnv("STORE_DRIVER", "postgres"),
		},
	}
}

// applyFile накладывает значения из YAML-файла поверх текущей конфигурации.
// Ключи, отсутствующие в файле, не меняются.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) normalize() {
	if c.Coupons.ActiveLimit <= 0 {
		c.Coupons.ActiveLimit = DefaultActiveLimit
	}
	if c.Coupons.ListCacheTTLSeconds < 0 {
		c.Coupons.ListCacheTTLSeconds = 0
	}
	c.Coupons.StoreDriver = strings.ToLower(strings.TrimSpace(c.Coupons.StoreDriver))
	if c.Coupons.StoreDriver == "" {
		c.Coupons.StoreDriver = "postgres"
	}
	brokers := c.Kafka.Brokers[:0]
	for _, b := range c.Kafka.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	c.Kafka.Brokers = brokers
}

// DSN возвращает строку подключения для lib/pq
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// getEnv получает значение переменной окружения с значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt получает значение переменной окружения как int с значением по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool получает значение переменной окружения как bool с значением по умолчанию
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := strings.ToLower(getEnv(key, ""))
	if valueStr == "true" || valueStr == "1" || valueStr == "yes" {
		return true
	}
	if valueStr == "false" || valueStr == "0" || valueStr == "no" {
		return false
	}
	return defaultValue
}
