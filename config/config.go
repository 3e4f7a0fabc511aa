package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

var (
	PORT        string
	DB_URL      string
	JWT_SECRET  string
	APP_URL     string
	CORS_ORIGIN string

	LOG_LEVEL  string
	LOG_FORMAT string

	GOOGLE_CLIENT_ID         string
	GOOGLE_CLIENT_SECRET     string
	GOOGLE_REDIRECT_URL      string
	GOOGLE_FRONTEND_REDIRECT string

	STRIPE_TEST_SECRET_KEY        string
	STRIPE_LIVE_SECRET_KEY        string
	STRIPE_TEST_WEBHOOK_SECRET    string
	STRIPE_LIVE_WEBHOOK_SECRET    string
	STRIPE_TEST_CONNECT_CLIENT_ID string
	STRIPE_LIVE_CONNECT_CLIENT_ID string
	STRIPE_CONNECT_REDIRECT_URL   string

	// Applied to every Stripe HTTP call; a charge that times out is reported
	// as an unknown outcome, never as a failure.
	STRIPE_TIMEOUT time.Duration
)

func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found. Using system environment variables.")
	}

	PORT = getEnv("PORT", "8080")
	DB_URL = mustEnv("DB_URL")
	JWT_SECRET = mustEnv("JWT_SECRET")
	APP_URL = getEnv("APP_URL", "http://localhost:5173")
	CORS_ORIGIN = getEnv("CORS_ORIGIN", APP_URL)

	LOG_LEVEL = getEnv("LOG_LEVEL", "info")
	LOG_FORMAT = getEnv("LOG_FORMAT", "console")

	GOOGLE_CLIENT_ID = getEnv("GOOGLE_CLIENT_ID", "")
	GOOGLE_CLIENT_SECRET = getEnv("GOOGLE_CLIENT_SECRET", "")
	GOOGLE_REDIRECT_URL = getEnv("GOOGLE_REDIRECT_URL", "")
	GOOGLE_FRONTEND_REDIRECT = getEnv("GOOGLE_FRONTEND_REDIRECT", "")

	// test keys are mandatory, live keys only once the platform goes live
	STRIPE_TEST_SECRET_KEY = mustEnv("STRIPE_TEST_SECRET_KEY")
	STRIPE_LIVE_SECRET_KEY = getEnv("STRIPE_LIVE_SECRET_KEY", "")
	STRIPE_TEST_WEBHOOK_SECRET = getEnv("STRIPE_TEST_WEBHOOK_SECRET", "")
	STRIPE_LIVE_WEBHOOK_SECRET = getEnv("STRIPE_LIVE_WEBHOOK_SECRET", "")
	STRIPE_TEST_CONNECT_CLIENT_ID = getEnv("STRIPE_TEST_CONNECT_CLIENT_ID", "")
	STRIPE_LIVE_CONNECT_CLIENT_ID = getEnv("STRIPE_LIVE_CONNECT_CLIENT_ID", "")
	STRIPE_CONNECT_REDIRECT_URL = getEnv("STRIPE_CONNECT_REDIRECT_URL", "http://localhost:"+PORT+"/connect/callback")

	STRIPE_TIMEOUT = getDuration("STRIPE_TIMEOUT", 20*time.Second)
}

func mustEnv(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatal().Str("key", key).Msg("Missing required environment variable")
	}
	return v
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", raw).Msg("Invalid duration, using default")
		return fallback
	}
	return d
}
