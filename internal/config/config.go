package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	LogLevel    string
	LogFormat   string
	MetricsAddr string // empty disables the metrics HTTP server

	// Remote source endpoints.
	ISDLiteBaseURL    string
	StationHistoryURL string
	BTSBaseURL        string
	RegistryURL       string

	// Fetch behavior.
	FetchTimeout     time.Duration
	FetchRetries     int
	FetchConcurrency int
	CachePath        string // empty disables the on-disk byte cache

	// Join behavior.
	WindThresholdKt       float64
	PrecipThresholdMM     float64
	CeilingThresholdFt    float64
	VisibilityThresholdKm float64
	LookbackHours         int
	ResolveMinConfidence  float64
	IncludeDestWeather    bool

	// Optional Kafka sink for joined records.
	KafkaBrokers   []string
	KafkaSinkTopic string
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is merged first when
// present.
func Load() (*Config, error) {
	_ = godotenv.Load() // best-effort; absence is the normal case

	cfg := &Config{
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		LogFormat:   envOrDefault("LOG_FORMAT", "json"),
		MetricsAddr: os.Getenv("METRICS_ADDR"),

		ISDLiteBaseURL:    envOrDefault("ISD_LITE_BASE_URL", "https://www.ncei.noaa.gov/pub/data/noaa/isd-lite"),
		StationHistoryURL: envOrDefault("STATION_HISTORY_URL", "https://www.ncei.noaa.gov/pub/data/noaa/isd-history.csv"),
		BTSBaseURL:        envOrDefault("BTS_BASE_URL", "https://transtats.bts.gov/PREZIP"),
		RegistryURL:       envOrDefault("REGISTRY_URL", "https://registry.faa.gov/database/ReleasableAircraft.zip"),

		CachePath:      os.Getenv("CACHE_PATH"),
		KafkaSinkTopic: os.Getenv("KAFKA_SINK_TOPIC"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}

	var err error
	if cfg.FetchTimeout, err = durationEnv("FETCH_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.FetchRetries, err = intEnv("FETCH_RETRIES", 2); err != nil {
		return nil, err
	}
	if cfg.FetchConcurrency, err = intEnv("FETCH_CONCURRENCY", 8); err != nil {
		return nil, err
	}
	if cfg.LookbackHours, err = intEnv("LOOKBACK_HOURS", 3); err != nil {
		return nil, err
	}
	if cfg.WindThresholdKt, err = floatEnv("WIND_THRESHOLD_KT", 25); err != nil {
		return nil, err
	}
	if cfg.PrecipThresholdMM, err = floatEnv("PRECIP_THRESHOLD_MM", 0); err != nil {
		return nil, err
	}
	if cfg.CeilingThresholdFt, err = floatEnv("CEILING_THRESHOLD_FT", 3000); err != nil {
		return nil, err
	}
	if cfg.VisibilityThresholdKm, err = floatEnv("VISIBILITY_THRESHOLD_KM", 5); err != nil {
		return nil, err
	}
	if cfg.ResolveMinConfidence, err = floatEnv("RESOLVE_MIN_CONFIDENCE", 0.8); err != nil {
		return nil, err
	}
	cfg.IncludeDestWeather = boolEnv("INCLUDE_DEST_WEATHER", false)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.FetchTimeout <= 0 {
		return errors.New("FETCH_TIMEOUT must be positive")
	}
	if c.FetchRetries < 0 {
		return errors.New("FETCH_RETRIES must not be negative")
	}
	if c.FetchConcurrency < 1 {
		return errors.New("FETCH_CONCURRENCY must be at least 1")
	}
	if c.LookbackHours < 0 {
		return errors.New("LOOKBACK_HOURS must not be negative")
	}
	if c.WindThresholdKt < 0 || c.PrecipThresholdMM < 0 || c.CeilingThresholdFt < 0 || c.VisibilityThresholdKm < 0 {
		return errors.New("weather thresholds must not be negative")
	}
	if c.ResolveMinConfidence < 0 || c.ResolveMinConfidence > 1 {
		return errors.New("RESOLVE_MIN_CONFIDENCE must be within [0, 1]")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaSinkTopic == "" {
		return errors.New("KAFKA_SINK_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func boolEnv(key string, fallback bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	return s == "true" || s == "1"
}
