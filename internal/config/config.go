// Package config предоставляет структуры и функции для загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Драйверы хранилища.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string        `yaml:"env" env:"ENV" env-default:"local"`
	StorageDriver           string        `yaml:"storage_driver" env:"STORAGE_DRIVER" env-default:"postgres"`
	StorageConnectionString string        `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string        `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
	SeedPath                string        `yaml:"seed_path" env:"SEED_PATH"` // Только для storage_driver: memory
	WebhookSecret           string        `yaml:"webhook_secret" env:"WEBHOOK_SECRET"`
	SubscriptionPeriod      time.Duration `yaml:"subscription_period" env:"SUBSCRIPTION_PERIOD" env-default:"720h"`
	MetricsAddress          string        `yaml:"metrics_address" env:"METRICS_ADDRESS" env-default:":9090"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	RabbitMQ                `yaml:"rabbitmq"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"5s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
	DedupeTTL    time.Duration `yaml:"dedupe_ttl" env-default:"24h"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// RabbitMQ структура для подключения к брокеру
type RabbitMQ struct {
	RabbitMQURL       string        `yaml:"rabbitmq_url" env:"RABBITMQ_URL"`
	MaxRetries        int           `yaml:"max_retries" env-default:"5"`
	RetryDelay        time.Duration `yaml:"retry_delay" env-default:"2s"`
	Exchange          string        `yaml:"exchange" env-default:"payments"`
	ConfirmationQueue string        `yaml:"confirmation_queue" env-default:"payments.confirmations"`
	Workers           int           `yaml:"workers" env-default:"4"`
}

// Load читает конфиг из файла path и переменных окружения
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config.Load: file %s does not exist", path)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if cfg.StorageDriver != DriverPostgres && cfg.StorageDriver != DriverMemory {
		return nil, fmt.Errorf("config.Load: unknown storage_driver %q", cfg.StorageDriver)
	}
	return &cfg, nil
}

// MustLoad загружает конфиг по пути из CONFIG_PATH и завершает процесс при ошибке
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"StorageDriver: %s\n"+
			"MigrationsPath: %s\n"+
			"SubscriptionPeriod: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"  MaxRetries: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"RabbitMQ:\n"+
			"  Exchange: %s\n"+
			"  ConfirmationQueue: %s\n"+
			"  Workers: %d\n",
		c.Env,
		c.StorageDriver,
		c.MigrationsPath,
		c.SubscriptionPeriod,
		c.AddressRedis,
		c.DB,
		c.RedisConnection.MaxRetries,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.Exchange,
		c.ConfirmationQueue,
		c.Workers,
	)
}
