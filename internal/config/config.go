package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is everything the server and CLI read from the environment.
type Config struct {
	// MockMode runs against an in-process SQLite database seeded with demo data.
	MockMode    bool
	DatabaseURL string
	SQLitePath  string

	ListenAddr string
	JWTSecret  string

	MapsAPIKey string
	RedisURL   string
	NATSURL    string

	SampleInterval   time.Duration
	FallbackSpeedKmh float64
	ConnectTimeout   time.Duration

	LogFile   string
	LogLevel  string
	LogStdout bool
}

// Load reads .env (if present) and the process environment. Missing backend
// settings are not an error: they switch the service into mock mode.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, relying on env vars")
	}

	cfg := &Config{
		SQLitePath: getEnv("SQLITE_PATH", "file:bustracker?mode=memory&cache=shared"),
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),
		JWTSecret:  getEnv("JWT_SECRET", "supersecret"),
		MapsAPIKey: firstNonEmpty(os.Getenv("GOOGLE_MAPS_API_KEY"), os.Getenv("MAPS_API_KEY")),
		RedisURL:   os.Getenv("REDIS_URL"),
		NATSURL:    os.Getenv("NATS_URL"),
		LogFile:    getEnv("LOG_FILE", "./logs/app.log"),
		LogLevel:   getEnv("LOG_LEVEL", "debug"),
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" && os.Getenv("DB_HOST") != "" {
		cfg.DatabaseURL = fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", "password"),
			getEnv("DB_NAME", "bustracker"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_SSLMODE", "disable"),
			getEnv("DB_TIMEZONE", "UTC"),
		)
	}

	var err error
	if cfg.MockMode, err = getBool("MOCK_MODE", cfg.DatabaseURL == ""); err != nil {
		return nil, err
	}
	if !cfg.MockMode && cfg.DatabaseURL == "" {
		return nil, errors.New("MOCK_MODE=false requires DATABASE_URL or DB_HOST")
	}
	if cfg.LogStdout, err = getBool("LOG_STDOUT", false); err != nil {
		return nil, err
	}
	if cfg.SampleInterval, err = getMillis("SAMPLE_INTERVAL_MS", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout, err = getMillis("CONNECT_TIMEOUT_MS", 30*time.Second); err != nil {
		return nil, err
	}

	cfg.FallbackSpeedKmh = 50
	if v := os.Getenv("FALLBACK_SPEED_KMH"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("invalid FALLBACK_SPEED_KMH: %q", v)
		}
		cfg.FallbackSpeedKmh = f
	}

	return cfg, nil
}

// getEnv reads an environment variable or returns the provided default
func getEnv(key, defaultValue string) string {
	if v, exists := os.LookupEnv(key); exists {
		return v
	}
	return defaultValue
}

func getBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q", key, v)
	}
	return b, nil
}

func getMillis(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
