package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "./output", cfg.OutputDir)
	assert.Equal(t, 500.0, cfg.DefaultRadiusM)
	assert.Equal(t, "https://environment.data.gov.uk/backend/catalog/api/geospatial/query", cfg.EAQueryURL)
	assert.Equal(t, 180*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 3, cfg.FetchRetries)
	assert.Equal(t, 3*time.Second, cfg.FetchRetryDelay)
	assert.Equal(t, 6, cfg.FetchConcurrency)
	assert.Equal(t, "https://api.postcodes.io/postcodes", cfg.PostcodesURL)
	assert.Equal(t, 15*time.Second, cfg.GeocodeTimeout)
	assert.Equal(t, 1000, cfg.GeocodeCacheSize)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, "rofsw-job-results", cfg.KafkaTopic)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("OUTPUT_DIR", "/var/lib/rofsw")
	t.Setenv("DEFAULT_RADIUS_M", "750")
	t.Setenv("EA_QUERY_URL", "http://localhost:8081/query")
	t.Setenv("FETCH_TIMEOUT", "30s")
	t.Setenv("FETCH_RETRIES", "5")
	t.Setenv("FETCH_RETRY_DELAY", "1s")
	t.Setenv("FETCH_CONCURRENCY", "2")
	t.Setenv("POSTCODES_URL", "http://localhost:8082/postcodes")
	t.Setenv("GEOCODE_TIMEOUT", "5s")
	t.Setenv("GEOCODE_CACHE_SIZE", "50")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-results")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/rofsw", cfg.OutputDir)
	assert.Equal(t, 750.0, cfg.DefaultRadiusM)
	assert.Equal(t, "http://localhost:8081/query", cfg.EAQueryURL)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 5, cfg.FetchRetries)
	assert.Equal(t, 1*time.Second, cfg.FetchRetryDelay)
	assert.Equal(t, 2, cfg.FetchConcurrency)
	assert.Equal(t, "http://localhost:8082/postcodes", cfg.PostcodesURL)
	assert.Equal(t, 5*time.Second, cfg.GeocodeTimeout)
	assert.Equal(t, 50, cfg.GeocodeCacheSize)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, "custom-results", cfg.KafkaTopic)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_InvalidRadius(t *testing.T) {
	t.Setenv("DEFAULT_RADIUS_M", "not-a-number")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEFAULT_RADIUS_M")
}

func TestLoad_NegativeRadius(t *testing.T) {
	t.Setenv("DEFAULT_RADIUS_M", "-500")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEFAULT_RADIUS_M")
}

func TestLoad_InvalidFetchTimeout(t *testing.T) {
	t.Setenv("FETCH_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FETCH_TIMEOUT")
}

func TestLoad_InvalidFetchRetries(t *testing.T) {
	t.Setenv("FETCH_RETRIES", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FETCH_RETRIES")
}

func TestLoad_InvalidFetchConcurrency(t *testing.T) {
	t.Setenv("FETCH_CONCURRENCY", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FETCH_CONCURRENCY")
}

func TestLoad_NegativeRetryDelay(t *testing.T) {
	t.Setenv("FETCH_RETRY_DELAY", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FETCH_RETRY_DELAY")
}

func TestLoad_InvalidGeocodeTimeout(t *testing.T) {
	t.Setenv("GEOCODE_TIMEOUT", "bad")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEOCODE_TIMEOUT")
}

func TestLoad_InvalidGeocodeCacheSize(t *testing.T) {
	t.Setenv("GEOCODE_CACHE_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEOCODE_CACHE_SIZE")
}

func TestLoad_BrokersImplyKafkaEnabled(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "localhost:9092")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
}

func TestParseBrokers(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty", "", nil},
		{"single", "localhost:9092", []string{"localhost:9092"}},
		{"multiple with spaces", " b1:9092 , b2:9092 ", []string{"b1:9092", "b2:9092"}},
		{"trailing comma", "b1:9092,", []string{"b1:9092"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseBrokers(tt.input))
		})
	}
}
