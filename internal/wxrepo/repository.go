// Package wxrepo acquires and assembles per-station monthly observation
// tables, isolating each station's fetch or decode failure from the rest of
// the run.
package wxrepo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/flightwx-etl/internal/domain"
	"github.com/couchcryptid/flightwx-etl/internal/isdlite"
	"github.com/couchcryptid/flightwx-etl/internal/observability"
)

// StationSource fetches the raw (already decompressed) observation stream
// for one station-year. Implementations must return domain.ErrNotFound when
// no file is published for the station.
type StationSource interface {
	FetchStationYear(ctx context.Context, stationID string, year int) (io.ReadCloser, error)
}

// Repository fetches, decodes, and memoizes station-month observation
// tables. Safe for concurrent use.
type Repository struct {
	source      StationSource
	logger      *slog.Logger
	metrics     *observability.Metrics
	concurrency int

	mu   sync.Mutex
	memo map[string]memoEntry
}

type memoEntry struct {
	observations []domain.WeatherObservation
	skipped      int
}

// FetchResult maps each requested station to its ordered observation
// sequence, with failed stations recorded separately. A failed station has
// no entry in Observations.
type FetchResult struct {
	Observations map[string][]domain.WeatherObservation
	Failed       map[string]error
	SkippedLines int
}

// New creates a Repository reading from source with the given worker-pool
// size.
func New(source StationSource, logger *slog.Logger, metrics *observability.Metrics, concurrency int) *Repository {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Repository{
		source:      source,
		logger:      logger,
		metrics:     metrics,
		concurrency: concurrency,
		memo:        map[string]memoEntry{},
	}
}

// Fetch acquires observations for every requested station in parallel. A
// fetch or structural-decode failure for one station never aborts the
// others; the failing station is recorded in Failed with an empty
// observation sequence. Successful station-months are memoized for the
// repository's lifetime, so a station serving several airports is fetched
// once.
func (r *Repository) Fetch(ctx context.Context, stations []string, year int, month time.Month) FetchResult {
	result := FetchResult{
		Observations: make(map[string][]domain.WeatherObservation, len(stations)),
		Failed:       map[string]error{},
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	var resultMu sync.Mutex

	for i := 0; i < r.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for stationID := range jobs {
				obs, skipped, err := r.stationMonth(ctx, stationID, year, month)

				resultMu.Lock()
				if err != nil {
					result.Failed[stationID] = err
				} else {
					result.Observations[stationID] = obs
					result.SkippedLines += skipped
				}
				resultMu.Unlock()
			}
		}()
	}

	seen := map[string]bool{}
	for _, stationID := range stations {
		if seen[stationID] {
			continue
		}
		seen[stationID] = true
		jobs <- stationID
	}
	close(jobs)
	wg.Wait()

	return result
}

func (r *Repository) stationMonth(ctx context.Context, stationID string, year int, month time.Month) ([]domain.WeatherObservation, int, error) {
	key := fmt.Sprintf("%s|%d|%d", stationID, year, month)

	r.mu.Lock()
	if entry, ok := r.memo[key]; ok {
		r.mu.Unlock()
		return entry.observations, entry.skipped, nil
	}
	r.mu.Unlock()

	start := time.Now()
	obs, skipped, err := r.fetchAndDecode(ctx, stationID, year, month)
	if err != nil {
		r.metrics.StationsFailed.Inc()
		r.logger.Warn("station weather unavailable, continuing without it",
			"station_id", stationID, "year", year, "month", int(month), "error", err)
		return nil, 0, err
	}

	r.metrics.StationsFetched.Inc()
	r.metrics.StationFetchDuration.Observe(time.Since(start).Seconds())
	r.metrics.ObservationsDecoded.Add(float64(len(obs)))
	r.metrics.ObservationLinesSkipped.Add(float64(skipped))
	r.logger.Debug("station weather decoded",
		"station_id", stationID, "observations", len(obs), "skipped_lines", skipped)

	// Only successes are memoized; a transiently unreachable station should
	// be retried on the next run rather than pinned failing.
	r.mu.Lock()
	r.memo[key] = memoEntry{observations: obs, skipped: skipped}
	r.mu.Unlock()

	return obs, skipped, nil
}

func (r *Repository) fetchAndDecode(ctx context.Context, stationID string, year int, month time.Month) ([]domain.WeatherObservation, int, error) {
	stream, err := r.source.FetchStationYear(ctx, stationID, year)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch station %s year %d: %w", stationID, year, err)
	}
	defer stream.Close()

	decoded, err := isdlite.Decode(stream, stationID)
	if err != nil {
		return nil, 0, err
	}

	obs := monthWindow(decoded.Observations, year, month)
	return dedupeHours(obs), decoded.SkippedLines, nil
}

// monthWindow keeps only observations inside the requested month; the
// station file covers the whole year.
func monthWindow(obs []domain.WeatherObservation, year int, month time.Month) []domain.WeatherObservation {
	out := make([]domain.WeatherObservation, 0, len(obs)/12+1)
	for _, o := range obs {
		if o.Timestamp.Year() == year && o.Timestamp.Month() == month {
			out = append(out, o)
		}
	}
	return out
}

// dedupeHours sorts observations by timestamp and collapses duplicate hours
// with last-wins, so the output is strictly increasing per station.
func dedupeHours(obs []domain.WeatherObservation) []domain.WeatherObservation {
	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].Timestamp.Before(obs[j].Timestamp)
	})

	out := obs[:0]
	for _, o := range obs {
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(o.Timestamp) {
			out[n-1] = o
			continue
		}
		out = append(out, o)
	}
	return out
}
