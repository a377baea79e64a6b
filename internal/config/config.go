package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Output and job settings.
	OutputDir      string
	DefaultRadiusM float64

	// Remote layer fetching.
	EAQueryURL       string
	FetchTimeout     time.Duration
	FetchRetries     int
	FetchRetryDelay  time.Duration
	FetchConcurrency int

	// Geocoding.
	PostcodesURL     string
	GeocodeTimeout   time.Duration
	GeocodeCacheSize int

	// Job result publishing. Kafka is optional; leaving KAFKA_BROKERS
	// unset disables it.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaEnabled bool

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is folded into the
// environment first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	radius, err := parseFloat("DEFAULT_RADIUS_M", 500)
	if err != nil || radius <= 0 {
		return nil, errors.New("invalid DEFAULT_RADIUS_M")
	}

	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "180s")
	if err != nil || fetchTimeout <= 0 {
		return nil, errors.New("invalid FETCH_TIMEOUT")
	}
	fetchRetries, err := parseInt("FETCH_RETRIES", 3)
	if err != nil || fetchRetries < 1 {
		return nil, errors.New("invalid FETCH_RETRIES")
	}
	fetchRetryDelay, err := parseDuration("FETCH_RETRY_DELAY", "3s")
	if err != nil || fetchRetryDelay < 0 {
		return nil, errors.New("invalid FETCH_RETRY_DELAY")
	}
	fetchConcurrency, err := parseInt("FETCH_CONCURRENCY", 6)
	if err != nil || fetchConcurrency < 1 {
		return nil, errors.New("invalid FETCH_CONCURRENCY")
	}

	geocodeTimeout, err := parseDuration("GEOCODE_TIMEOUT", "15s")
	if err != nil || geocodeTimeout <= 0 {
		return nil, errors.New("invalid GEOCODE_TIMEOUT")
	}
	geocodeCacheSize, err := parseInt("GEOCODE_CACHE_SIZE", 1000)
	if err != nil || geocodeCacheSize < 1 {
		return nil, errors.New("invalid GEOCODE_CACHE_SIZE")
	}

	brokers := parseBrokers(os.Getenv("KAFKA_BROKERS"))

	cfg := &Config{
		OutputDir:      envOrDefault("OUTPUT_DIR", "./output"),
		DefaultRadiusM: radius,

		EAQueryURL:       envOrDefault("EA_QUERY_URL", "https://environment.data.gov.uk/backend/catalog/api/geospatial/query"),
		FetchTimeout:     fetchTimeout,
		FetchRetries:     fetchRetries,
		FetchRetryDelay:  fetchRetryDelay,
		FetchConcurrency: fetchConcurrency,

		PostcodesURL:     envOrDefault("POSTCODES_URL", "https://api.postcodes.io/postcodes"),
		GeocodeTimeout:   geocodeTimeout,
		GeocodeCacheSize: geocodeCacheSize,

		KafkaBrokers: brokers,
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "rofsw-job-results"),
		KafkaEnabled: len(brokers) > 0,

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),
	}

	if cfg.OutputDir == "" {
		return nil, errors.New("OUTPUT_DIR is required")
	}
	if cfg.EAQueryURL == "" {
		return nil, errors.New("EA_QUERY_URL is required")
	}
	if cfg.PostcodesURL == "" {
		return nil, errors.New("POSTCODES_URL is required")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	return time.ParseDuration(envOrDefault(key, fallback))
}

func parseInt(key string, fallback int) (int, error) {
	if s := os.Getenv(key); s != "" {
		return strconv.Atoi(s)
	}
	return fallback, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	if s := os.Getenv(key); s != "" {
		return strconv.ParseFloat(s, 64)
	}
	return fallback, nil
}

// parseBrokers splits a comma-separated broker list, dropping empty entries.
func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
