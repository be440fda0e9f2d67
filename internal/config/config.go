package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Tinkoff holds the acquiring (payment) and e2c (payout) terminal
// credentials plus the callback URLs registered with the gateway.
type Tinkoff struct {
	BaseURL string

	TerminalKey string
	Password    string

	E2CTerminalKey string
	E2CPassword    string

	NotificationURL string
	SuccessURL      string
	FailURL         string

	Timeout time.Duration
}

type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string
	JWTTTL      time.Duration
	LogLevel    string
	Development bool

	Tinkoff Tinkoff
}

// Load reads .env (when present) and the environment. Missing required
// values are reported together.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        envOrDefault("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		JWTTTL:      durationOrDefault("JWT_TTL", 24*time.Hour),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		Development: os.Getenv("APP_ENV") != "production",
		Tinkoff: Tinkoff{
			BaseURL:         envOrDefault("TINKOFF_BASE_URL", "https://securepay.tinkoff.ru"),
			TerminalKey:     os.Getenv("TINKOFF_TERMINAL_KEY"),
			Password:        os.Getenv("TINKOFF_PASSWORD"),
			E2CTerminalKey:  os.Getenv("TINKOFF_E2C_TERMINAL_KEY"),
			E2CPassword:     os.Getenv("TINKOFF_E2C_PASSWORD"),
			NotificationURL: os.Getenv("TINKOFF_NOTIFICATION_URL"),
			SuccessURL:      os.Getenv("TINKOFF_SUCCESS_URL"),
			FailURL:         os.Getenv("TINKOFF_FAIL_URL"),
			Timeout:         durationOrDefault("TINKOFF_TIMEOUT", 10*time.Second),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is empty")
	}

	return cfg, nil
}

func envOrDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func durationOrDefault(name string, def time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
