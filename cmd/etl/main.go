// Command etl runs one (airport, year, month) flight/weather join and emits
// the joined record set as JSON lines, optionally also publishing it to a
// Kafka sink topic.
//
// Usage:
//
//	go run ./cmd/etl -year 2024 -month 1 -airport JFK -out joined.jsonl
//
// Ambiguous airport text exits with the ranked candidate list; re-run with
// -pick N to select one.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/flightwx-etl/internal/adapter/cache"
	"github.com/couchcryptid/flightwx-etl/internal/adapter/fetch"
	httpadapter "github.com/couchcryptid/flightwx-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/flightwx-etl/internal/adapter/kafka"
	"github.com/couchcryptid/flightwx-etl/internal/config"
	"github.com/couchcryptid/flightwx-etl/internal/domain"
	"github.com/couchcryptid/flightwx-etl/internal/flights"
	"github.com/couchcryptid/flightwx-etl/internal/join"
	"github.com/couchcryptid/flightwx-etl/internal/observability"
	"github.com/couchcryptid/flightwx-etl/internal/registry"
	"github.com/couchcryptid/flightwx-etl/internal/stations"
	"github.com/couchcryptid/flightwx-etl/internal/wxrepo"
)

func main() {
	year := flag.Int("year", 0, "four-digit year, e.g. 2024")
	month := flag.Int("month", 0, "month number 1-12")
	airport := flag.String("airport", "", "airport identifier: IATA, ICAO, or free text")
	pick := flag.Int("pick", -1, "candidate index to select when resolution is ambiguous")
	destWx := flag.Bool("dest-wx", false, "also join destination-airport weather")
	out := flag.String("out", "-", "output path for JSONL records, or - for stdout")
	flag.Parse()

	if err := run(*year, *month, *airport, *pick, *destWx, *out); err != nil {
		var ambiguous *domain.AmbiguousAirportError
		if errors.As(err, &ambiguous) {
			printCandidates(ambiguous)
			os.Exit(2)
		}
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(year, month int, airport string, pick int, destWx bool, outPath string) error {
	if year < 1987 || month < 1 || month > 12 || airport == "" {
		flag.Usage()
		return fmt.Errorf("required flags: -year (1987+), -month (1-12), -airport")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var byteCache fetch.Cache
	if cfg.CachePath != "" {
		store, err := cache.Open(cfg.CachePath, logger)
		if err != nil {
			return fmt.Errorf("open byte cache: %w", err)
		}
		defer store.Close()
		byteCache = store
		logger.Info("byte cache enabled", "path", cfg.CachePath)
	}

	fetcher := fetch.New(fetch.Config{
		ISDLiteBaseURL:    cfg.ISDLiteBaseURL,
		StationHistoryURL: cfg.StationHistoryURL,
		BTSBaseURL:        cfg.BTSBaseURL,
		RegistryURL:       cfg.RegistryURL,
		Timeout:           cfg.FetchTimeout,
		Retries:           cfg.FetchRetries,
	}, byteCache, logger, metrics)

	if cfg.MetricsAddr != "" {
		srv := httpadapter.NewServer(cfg.MetricsAddr, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	historyStream, err := fetcher.FetchStationHistory(ctx)
	if err != nil {
		return fmt.Errorf("fetch station history: %w", err)
	}
	directory, err := stations.Load(historyStream)
	historyStream.Close()
	if err != nil {
		return fmt.Errorf("load station directory: %w", err)
	}
	logger.Info("station directory loaded", "airports", directory.Len())

	engine := join.New(
		directory,
		wxrepo.New(fetcher, logger, metrics, cfg.FetchConcurrency),
		flights.New(fetcher, logger, metrics),
		registry.New(fetcher, logger, metrics),
		logger,
		metrics,
	)

	opts := join.Options{
		IncludeDestinationWeather: destWx || cfg.IncludeDestWeather,
		MinConfidence:             cfg.ResolveMinConfidence,
		LookbackHours:             cfg.LookbackHours,
		Thresholds: domain.Thresholds{
			WindSpeedKt:  cfg.WindThresholdKt,
			PrecipMM:     cfg.PrecipThresholdMM,
			CeilingFt:    cfg.CeilingThresholdFt,
			VisibilityKm: cfg.VisibilityThresholdKm,
		},
		Weights: domain.DefaultScoreWeights(),
	}
	if pick >= 0 {
		opts.PickIndex = &pick
	}

	result, err := engine.Run(ctx, year, time.Month(month), airport, opts)
	if err != nil {
		return err
	}

	if err := writeJSONL(outPath, result.Records); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	if len(cfg.KafkaBrokers) > 0 {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaSinkTopic, logger)
		defer writer.Close()
		if err := writer.LoadBatch(ctx, result.Records); err != nil {
			return fmt.Errorf("publish to sink topic: %w", err)
		}
		logger.Info("joined records published", "topic", cfg.KafkaSinkTopic, "records", len(result.Records))
	}

	if len(result.FailedStations) > 0 {
		logger.Warn("run degraded: weather missing for some stations",
			"failed_stations", result.FailedStations)
	}
	return nil
}

func writeJSONL(path string, records []domain.JoinedFlightRecord) error {
	var w *bufio.Writer
	if path == "-" {
		w = bufio.NewWriter(os.Stdout)
	} else {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = bufio.NewWriter(f)
	}

	enc := json.NewEncoder(w)
	for i := range records {
		if err := enc.Encode(records[i]); err != nil {
			return err
		}
	}
	return w.Flush()
}

func printCandidates(err *domain.AmbiguousAirportError) {
	fmt.Fprintf(os.Stderr, "airport %q is ambiguous; re-run with -pick N:\n", err.Identifier)
	for i, c := range err.Candidates {
		fmt.Fprintf(os.Stderr, "  [%d] %-4s %-4s %-40s confidence %.2f\n",
			i, c.Record.IATA, c.Record.ICAO, c.Record.Name, c.Confidence)
	}
}
