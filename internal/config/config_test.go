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

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Equal(t, "https://www.ncei.noaa.gov/pub/data/noaa/isd-lite", cfg.ISDLiteBaseURL)
	assert.Equal(t, 60*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 2, cfg.FetchRetries)
	assert.Equal(t, 8, cfg.FetchConcurrency)
	assert.Equal(t, 3, cfg.LookbackHours)
	assert.Equal(t, 25.0, cfg.WindThresholdKt)
	assert.Equal(t, 0.0, cfg.PrecipThresholdMM)
	assert.Equal(t, 3000.0, cfg.CeilingThresholdFt)
	assert.Equal(t, 5.0, cfg.VisibilityThresholdKm)
	assert.Equal(t, 0.8, cfg.ResolveMinConfidence)
	assert.False(t, cfg.IncludeDestWeather)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("METRICS_ADDR", ":9090")
	t.Setenv("FETCH_TIMEOUT", "15s")
	t.Setenv("FETCH_RETRIES", "5")
	t.Setenv("FETCH_CONCURRENCY", "12")
	t.Setenv("LOOKBACK_HOURS", "6")
	t.Setenv("WIND_THRESHOLD_KT", "30")
	t.Setenv("VISIBILITY_THRESHOLD_KM", "1.5")
	t.Setenv("INCLUDE_DEST_WEATHER", "true")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092")
	t.Setenv("KAFKA_SINK_TOPIC", "joined")
	t.Setenv("CACHE_PATH", "/tmp/fetch-cache.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, 15*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 5, cfg.FetchRetries)
	assert.Equal(t, 12, cfg.FetchConcurrency)
	assert.Equal(t, 6, cfg.LookbackHours)
	assert.Equal(t, 30.0, cfg.WindThresholdKt)
	assert.Equal(t, 1.5, cfg.VisibilityThresholdKm)
	assert.True(t, cfg.IncludeDestWeather)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "joined", cfg.KafkaSinkTopic)
	assert.Equal(t, "/tmp/fetch-cache.db", cfg.CachePath)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad duration", "FETCH_TIMEOUT", "soon"},
		{"bad int", "FETCH_RETRIES", "two"},
		{"bad float", "WIND_THRESHOLD_KT", "breezy"},
		{"negative retries", "FETCH_RETRIES", "-1"},
		{"zero concurrency", "FETCH_CONCURRENCY", "0"},
		{"negative lookback", "LOOKBACK_HOURS", "-3"},
		{"negative threshold", "CEILING_THRESHOLD_FT", "-100"},
		{"confidence above one", "RESOLVE_MIN_CONFIDENCE", "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_KafkaTopicRequiredWithBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker-1:9092")
	t.Setenv("KAFKA_SINK_TOPIC", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_SINK_TOPIC")
}
