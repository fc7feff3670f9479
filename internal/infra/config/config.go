package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env      string
	HTTPAddr string

	MongoURI string
	MongoDB  string

	KafkaBrokers     []string
	KafkaTopicPrefix string

	RedisAddr string

	SessionSecret string
	SessionTTL    time.Duration

	IdentityURL    string
	IdentityAPIKey string

	GeoBaseURL    string
	GeoUserAgent  string
	GeoRateLimit  int
	GeoRateWindow time.Duration

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          getEnv("MONGO_DB", "tradepost"),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", ""),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		SessionSecret:    os.Getenv("ADMIN_SESSION_SECRET"),
		IdentityURL:      getEnv("IDENTITY_URL", "http://localhost:9099/verify"),
		IdentityAPIKey:   os.Getenv("IDENTITY_API_KEY"),
		GeoBaseURL:       getEnv("GEO_BASE_URL", "https://nominatim.openstreetmap.org"),
		GeoUserAgent:     getEnv("GEO_USER_AGENT", "tradepost/1.0"),
		S3Endpoint:       getEnv("S3_ENDPOINT", "http://localhost:9000"),
		S3AccessKey:      getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:      getEnv("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:         getEnv("S3_BUCKET", "tradepost-attachments"),
	}
	brokers := getEnv("KAFKA_BROKERS", "")
	if brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	sessionTTL, err := parseDurationEnv("ADMIN_SESSION_TTL", 8*time.Hour)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionTTL = sessionTTL

	geoWindow, err := parseDurationEnv("GEO_RATE_WINDOW", time.Minute)
	if err != nil {
		return Config{}, err
	}
	cfg.GeoRateWindow = geoWindow

	geoLimit, err := parseIntEnv("GEO_RATE_LIMIT", 60)
	if err != nil {
		return Config{}, err
	}
	cfg.GeoRateLimit = geoLimit

	useSSL, err := parseBoolEnv("S3_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg.S3UseSSL = useSSL

	if cfg.SessionSecret == "" {
		return Config{}, fmt.Errorf("ADMIN_SESSION_SECRET is required")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return v, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
