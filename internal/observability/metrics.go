package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for a join run.
type Metrics struct {
	RunActive prometheus.Gauge

	// Weather acquisition metrics.
	StationsFetched         prometheus.Counter
	StationsFailed          prometheus.Counter
	ObservationsDecoded     prometheus.Counter
	ObservationLinesSkipped prometheus.Counter
	StationFetchDuration    prometheus.Histogram

	// Flight and join metrics.
	FlightsLoaded    prometheus.Counter
	FlightsJoined    prometheus.Counter
	FlightsFlagged   prometheus.Counter
	FlightsNoWeather prometheus.Counter
	JoinDuration     prometheus.Histogram

	// Collaborator metrics.
	FetchRequests   *prometheus.CounterVec // labels: source={weather,flights,registry,stations}, outcome={success,not_found,error}
	FetchCache      *prometheus.CounterVec // labels: result={hit,miss}
	RegistryLookups *prometheus.CounterVec // labels: result={hit,miss,degraded}
}

// NewMetrics creates and registers all run metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunActive,
		m.StationsFetched,
		m.StationsFailed,
		m.ObservationsDecoded,
		m.ObservationLinesSkipped,
		m.StationFetchDuration,
		m.FlightsLoaded,
		m.FlightsJoined,
		m.FlightsFlagged,
		m.FlightsNoWeather,
		m.JoinDuration,
		m.FetchRequests,
		m.FetchCache,
		m.RegistryLookups,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flightwx",
			Name:      "run_active",
			Help:      "1 while a join run is in flight, 0 otherwise.",
		}),
		StationsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flightwx",
			Name:      "stations_fetched_total",
			Help:      "Weather stations fetched and decoded successfully.",
		}),
		StationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flightwx",
			Name:      "stations_failed_total",
			Help:      "Weather stations whose fetch or decode failed and was isolated.",
		}),
		ObservationsDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flightwx",
			Name:      "observations_decoded_total",
			Help:      "Hourly observations decoded across all stations.",
		}),
		ObservationLinesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flightwx",
			Name:      "observation_lines_skipped_total",
			Help:      "Malformed observation lines dropped during decode.",
		}),
		StationFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flightwx",
			Name:      "station_fetch_duration_seconds",
			Help:      "Duration of one station fetch+decode.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		FlightsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flightwx",
			Name:      "flights_loaded_total",
			Help:      "Flight legs loaded from the on-time extract.",
		}),
		FlightsJoined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flightwx",
			Name:      "flights_joined_total",
			Help:      "Joined flight records emitted.",
		}),
		FlightsFlagged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flightwx",
			Name:      "flights_flagged_total",
			Help:      "Joined records with the adverse-weather flag set.",
		}),
		FlightsNoWeather: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flightwx",
			Name:      "flights_no_weather_total",
			Help:      "Joined records with no matchable observation (flag absent).",
		}),
		JoinDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flightwx",
			Name:      "join_duration_seconds",
			Help:      "Duration of a complete join run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flightwx",
			Name:      "fetch_requests_total",
			Help:      "Remote fetches by source and outcome.",
		}, []string{"source", "outcome"}),
		FetchCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flightwx",
			Name:      "fetch_cache_total",
			Help:      "Byte-cache lookups by result.",
		}, []string{"result"}),
		RegistryLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flightwx",
			Name:      "registry_lookups_total",
			Help:      "Tail-number registry lookups by result.",
		}, []string{"result"}),
	}
}
