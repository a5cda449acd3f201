package utils

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Stripe   StripeConfig
	Booking  BookingConfig
}

type AppConfig struct {
	Name    string
	Port    string
	Debug   bool
	LogPath string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	MaxConns int32
}

// RedisConfig is optional. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StripeConfig is optional. An empty SecretKey selects the in-memory gateway.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	APIURL        string
}

type BookingConfig struct {
	GatewayTimeout          time.Duration
	CreateIntentMaxAttempts int
	RetryBaseDelay          time.Duration
	SlotBackend             string
	SlotHoldTTL             time.Duration
}

const (
	SlotBackendPostgres = "postgres"
	SlotBackendRedis    = "redis"
)

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("APP_NAME", "clinic-booking")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("GATEWAY_TIMEOUT_SECONDS", 10)
	viper.SetDefault("CREATE_INTENT_MAX_ATTEMPTS", 3)
	viper.SetDefault("RETRY_BASE_DELAY_MS", 200)
	viper.SetDefault("SLOT_BACKEND", SlotBackendPostgres)
	viper.SetDefault("SLOT_HOLD_TTL_MINUTES", 15)

	// .env boleh tidak ada, environment variable tetap dibaca
	if err := viper.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:    viper.GetString("APP_NAME"),
			Port:    viper.GetString("PORT"),
			Debug:   viper.GetBool("DEBUG"),
			LogPath: viper.GetString("LOG_PATH"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASS"),
			MaxConns: viper.GetInt32("DB_MAX_CONNS"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Stripe: StripeConfig{
			SecretKey:     viper.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret: viper.GetString("STRIPE_WEBHOOK_SECRET"),
			APIURL:        viper.GetString("STRIPE_API_URL"),
		},
		Booking: BookingConfig{
			GatewayTimeout:          time.Duration(viper.GetInt("GATEWAY_TIMEOUT_SECONDS")) * time.Second,
			CreateIntentMaxAttempts: viper.GetInt("CREATE_INTENT_MAX_ATTEMPTS"),
			RetryBaseDelay:          time.Duration(viper.GetInt("RETRY_BASE_DELAY_MS")) * time.Millisecond,
			SlotBackend:             strings.ToLower(viper.GetString("SLOT_BACKEND")),
			SlotHoldTTL:             time.Duration(viper.GetInt("SLOT_HOLD_TTL_MINUTES")) * time.Minute,
		},
	}

	if config.Booking.SlotBackend == SlotBackendRedis && config.Redis.Addr == "" {
		return nil, errors.New("SLOT_BACKEND=redis requires REDIS_ADDR")
	}

	return config, nil
}
