// Package join orchestrates the resolution-and-join pipeline: airport
// resolution, weather and flight and registry acquisition, the temporal
// join, and adverse-weather scoring.
package join

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/couchcryptid/flightwx-etl/internal/domain"
	"github.com/couchcryptid/flightwx-etl/internal/flights"
	"github.com/couchcryptid/flightwx-etl/internal/observability"
	"github.com/couchcryptid/flightwx-etl/internal/wxrepo"
)

// AirportResolver is the station-directory contract the engine consumes.
type AirportResolver interface {
	Resolve(identifier string) ([]domain.RankedAirport, error)
}

// WeatherFetcher acquires per-station observation tables.
type WeatherFetcher interface {
	Fetch(ctx context.Context, stations []string, year int, month time.Month) wxrepo.FetchResult
}

// FlightLoader loads the month's flight record set.
type FlightLoader interface {
	Load(ctx context.Context, year int, month time.Month) (flights.LoadResult, error)
}

// TailResolver enriches tail numbers with aircraft metadata.
type TailResolver interface {
	Resolve(ctx context.Context, tailNum string) domain.AircraftMetadata
}

// Options tunes one run.
type Options struct {
	// PickIndex selects a candidate from an ambiguous resolution, counted
	// from the ranked list the previous attempt reported.
	PickIndex *int

	// IncludeDestinationWeather joins destination-airport weather as well
	// and folds it into the flag via OR.
	IncludeDestinationWeather bool

	// MinConfidence is the fuzzy-resolution confidence below which the
	// engine refuses to guess and demands an explicit pick.
	MinConfidence float64

	Thresholds domain.Thresholds
	Weights    domain.ScoreWeights

	// LookbackHours bounds the nearest-earlier-hour search when the exact
	// hour has no observation. Never looks forward.
	LookbackHours int
}

// DefaultOptions returns origin-only joining with the default criteria set.
func DefaultOptions() Options {
	return Options{
		MinConfidence: 0.8,
		Thresholds:    domain.DefaultThresholds(),
		Weights:       domain.DefaultScoreWeights(),
		LookbackHours: 3,
	}
}

// Result is the terminal output of a run: the joined records in flight
// input order, plus an honest account of what degraded.
type Result struct {
	Airport domain.AirportRecord
	Records []domain.JoinedFlightRecord

	// FailedStations lists stations whose weather could not be acquired;
	// their flights carry absent weather fields.
	FailedStations []string

	// UnresolvedAirports lists airport codes seen in the flight set that
	// map to no weather station.
	UnresolvedAirports []string

	SkippedWeatherLines int
	SkippedFlightRows   int
	FlightVariant       string
}

// Engine wires the pipeline stages together.
type Engine struct {
	airports AirportResolver
	weather  WeatherFetcher
	flights  FlightLoader
	registry TailResolver
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates an Engine from its collaborating stages.
func New(airports AirportResolver, weather WeatherFetcher, fl FlightLoader, registry TailResolver, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		airports: airports,
		weather:  weather,
		flights:  fl,
		registry: registry,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run produces the joined record set for one (airport, year, month) unit of
// work. Failures local to one station or tail number surface as absence
// markers in the output; only an unresolvable airport or a completely
// unavailable flight source aborts the run.
func (e *Engine) Run(ctx context.Context, year int, month time.Month, airportIdentifier string, opts Options) (*Result, error) {
	start := time.Now()
	e.metrics.RunActive.Set(1)
	defer e.metrics.RunActive.Set(0)
	defer func() {
		e.metrics.JoinDuration.Observe(time.Since(start).Seconds())
	}()

	airport, err := e.resolveSubject(airportIdentifier, opts)
	if err != nil {
		return nil, err
	}
	e.logger.Info("airport resolved",
		"identifier", airportIdentifier, "iata", airport.IATA, "icao", airport.ICAO, "name", airport.Name)

	loaded, err := e.flights.Load(ctx, year, month)
	if err != nil {
		return nil, err
	}

	legs := filterLegs(loaded.Records, airport)
	e.logger.Info("flight legs selected", "total_month", len(loaded.Records), "airport_legs", len(legs))

	stationByAirport, unresolved := e.resolveStations(legs, opts.IncludeDestinationWeather)
	wx := e.weather.Fetch(ctx, stationIDs(stationByAirport), year, month)

	index := indexObservations(wx.Observations)
	records := e.joinAll(ctx, legs, stationByAirport, index, opts)

	result := &Result{
		Airport:             airport,
		Records:             records,
		FailedStations:      sortedKeys(wx.Failed),
		UnresolvedAirports:  unresolved,
		SkippedWeatherLines: wx.SkippedLines,
		SkippedFlightRows:   loaded.SkippedRows,
		FlightVariant:       loaded.Variant,
	}

	e.logSummary(result)
	return result, nil
}

// resolveSubject picks exactly one airport for the unit of work. Exact and
// single-candidate matches pick themselves; a confident fuzzy top candidate
// is accepted; anything else requires an explicit index or surfaces the
// ranked list via *domain.AmbiguousAirportError.
func (e *Engine) resolveSubject(identifier string, opts Options) (domain.AirportRecord, error) {
	candidates, err := e.airports.Resolve(identifier)
	if err != nil {
		return domain.AirportRecord{}, err
	}

	if opts.PickIndex != nil {
		i := *opts.PickIndex
		if i < 0 || i >= len(candidates) {
			return domain.AirportRecord{}, fmt.Errorf("pick index %d out of range (%d candidates for %q)", i, len(candidates), identifier)
		}
		return candidates[i].Record, nil
	}

	if len(candidates) == 1 {
		return candidates[0].Record, nil
	}
	if candidates[0].Confidence >= opts.MinConfidence && candidates[0].Confidence > candidates[1].Confidence {
		return candidates[0].Record, nil
	}
	return domain.AirportRecord{}, &domain.AmbiguousAirportError{Identifier: identifier, Candidates: candidates}
}

// filterLegs keeps the legs touching the chosen airport. Arrivals matter
// too: their origin weather lives at some other airport, which is why the
// join needs weather for every origin observed, not just the subject.
func filterLegs(records []domain.FlightRecord, airport domain.AirportRecord) []domain.FlightRecord {
	out := make([]domain.FlightRecord, 0, len(records)/8)
	for _, rec := range records {
		if rec.Origin == airport.IATA || rec.Dest == airport.IATA {
			out = append(out, rec)
		}
	}
	return out
}

// resolveStations maps every distinct airport code in the leg set to its
// weather station. Codes with no station are recorded, not fatal: their
// flights proceed with absent weather, because missing information must not
// read as confirmed good weather.
func (e *Engine) resolveStations(legs []domain.FlightRecord, includeDest bool) (map[string]string, []string) {
	codes := map[string]bool{}
	for _, leg := range legs {
		codes[leg.Origin] = true
		if includeDest {
			codes[leg.Dest] = true
		}
	}

	stationByAirport := map[string]string{}
	var unresolved []string
	for code := range codes {
		// Only an exact code match counts here; a fuzzy guess against a
		// field code would silently attach the wrong station's weather.
		candidates, err := e.airports.Resolve(code)
		if err != nil || candidates[0].Confidence < 1.0 || !candidates[0].Record.HasStation() {
			unresolved = append(unresolved, code)
			continue
		}
		stationByAirport[code] = candidates[0].Record.StationID()
	}
	sort.Strings(unresolved)

	if len(unresolved) > 0 {
		e.logger.Warn("airports without weather stations", "count", len(unresolved), "airports", unresolved)
	}
	return stationByAirport, unresolved
}

func (e *Engine) joinAll(ctx context.Context, legs []domain.FlightRecord, stationByAirport map[string]string, index observationIndex, opts Options) []domain.JoinedFlightRecord {
	records := make([]domain.JoinedFlightRecord, 0, len(legs))
	for _, leg := range legs {
		records = append(records, e.joinOne(ctx, leg, stationByAirport, index, opts))
	}
	return records
}

func (e *Engine) joinOne(ctx context.Context, leg domain.FlightRecord, stationByAirport map[string]string, index observationIndex, opts Options) domain.JoinedFlightRecord {
	originObs := index.lookup(stationByAirport[leg.Origin], leg, opts.LookbackHours)

	var destObs *domain.WeatherObservation
	if opts.IncludeDestinationWeather {
		destObs = index.lookup(stationByAirport[leg.Dest], leg, opts.LookbackHours)
	}

	score, flag := domain.CombineScores(
		domain.ScoreWeather(originObs, opts.Thresholds, opts.Weights),
		domain.ScoreWeather(destObs, opts.Thresholds, opts.Weights),
	)

	e.metrics.FlightsJoined.Inc()
	switch {
	case flag == nil:
		e.metrics.FlightsNoWeather.Inc()
	case *flag:
		e.metrics.FlightsFlagged.Inc()
	}

	return domain.JoinedFlightRecord{
		Flight:        leg,
		OriginWeather: originObs,
		DestWeather:   destObs,
		Aircraft:      e.registry.Resolve(ctx, leg.TailNum),
		WxScore:       score,
		BadWxFlag:     flag,
		ProcessedAt:   domain.Clock().Now().UTC(),
	}
}

func (e *Engine) logSummary(result *Result) {
	var flagged, unknown int
	for _, rec := range result.Records {
		switch {
		case rec.BadWxFlag == nil:
			unknown++
		case *rec.BadWxFlag:
			flagged++
		}
	}

	share := 0.0
	if known := len(result.Records) - unknown; known > 0 {
		share = float64(flagged) / float64(known)
	}

	// Winter months land around a 10-15% adverse share; a wildly different
	// number usually means a parsing or threshold problem upstream.
	e.logger.Info("join complete",
		"records", len(result.Records),
		"flagged", flagged,
		"weather_unknown", unknown,
		"adverse_share", fmt.Sprintf("%.3f", share),
		"failed_stations", len(result.FailedStations),
		"unresolved_airports", len(result.UnresolvedAirports),
	)
}

// observationIndex holds per-station hourly observations keyed by timestamp.
type observationIndex map[string]map[time.Time]domain.WeatherObservation

func indexObservations(byStation map[string][]domain.WeatherObservation) observationIndex {
	index := make(observationIndex, len(byStation))
	for stationID, seq := range byStation {
		hours := make(map[time.Time]domain.WeatherObservation, len(seq))
		for _, obs := range seq {
			hours[obs.Timestamp] = obs
		}
		index[stationID] = hours
	}
	return index
}

// lookup matches a flight to the observation at its scheduled-departure
// hour, falling back to the nearest earlier hour within the window. Future
// hours are never consulted: only conditions at or before the event are
// causally relevant.
func (idx observationIndex) lookup(stationID string, leg domain.FlightRecord, lookbackHours int) *domain.WeatherObservation {
	if stationID == "" {
		return nil
	}
	hours, ok := idx[stationID]
	if !ok {
		return nil
	}
	hour, ok := leg.SchedDepHour()
	if !ok {
		return nil
	}

	ts := leg.FlightDate.Add(time.Duration(hour) * time.Hour)
	for back := 0; back <= lookbackHours; back++ {
		if obs, ok := hours[ts.Add(-time.Duration(back)*time.Hour)]; ok {
			return &obs
		}
	}
	return nil
}

func stationIDs(stationByAirport map[string]string) []string {
	ids := make([]string, 0, len(stationByAirport))
	for _, id := range stationByAirport {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedKeys(m map[string]error) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
