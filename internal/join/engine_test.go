package join_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flightwx-etl/internal/domain"
	"github.com/couchcryptid/flightwx-etl/internal/flights"
	"github.com/couchcryptid/flightwx-etl/internal/join"
	"github.com/couchcryptid/flightwx-etl/internal/observability"
	"github.com/couchcryptid/flightwx-etl/internal/wxrepo"
)

// --- mocks ---

type mockResolver struct {
	byCode map[string][]domain.RankedAirport
}

func (m *mockResolver) Resolve(identifier string) ([]domain.RankedAirport, error) {
	candidates, ok := m.byCode[identifier]
	if !ok || len(candidates) == 0 {
		return nil, &domain.ResolutionError{Identifier: identifier}
	}
	return candidates, nil
}

type mockWeather struct {
	result    wxrepo.FetchResult
	requested []string
}

func (m *mockWeather) Fetch(_ context.Context, stations []string, _ int, _ time.Month) wxrepo.FetchResult {
	m.requested = stations
	if m.result.Observations == nil {
		m.result.Observations = map[string][]domain.WeatherObservation{}
	}
	if m.result.Failed == nil {
		m.result.Failed = map[string]error{}
	}
	return m.result
}

type mockFlights struct {
	result flights.LoadResult
	err    error
}

func (m *mockFlights) Load(context.Context, int, time.Month) (flights.LoadResult, error) {
	if m.err != nil {
		return flights.LoadResult{}, m.err
	}
	return m.result, nil
}

type mockRegistry struct {
	known map[string]domain.AircraftMetadata
}

func (m *mockRegistry) Resolve(_ context.Context, tailNum string) domain.AircraftMetadata {
	if meta, ok := m.known[tailNum]; ok {
		meta.TailNum = tailNum
		return meta
	}
	return domain.UnknownAircraft(tailNum)
}

// --- fixtures ---

var (
	jfk = domain.AirportRecord{IATA: "JFK", ICAO: "KJFK", Name: "NEW YORK/JOHN F KENNEDY INTL", Country: "US", USAF: "744860", WBAN: "94789"}
	atl = domain.AirportRecord{IATA: "ATL", ICAO: "KATL", Name: "ATLANTA HARTSFIELD INTL", Country: "US", USAF: "722190", WBAN: "13874"}
	smq = domain.AirportRecord{IATA: "SMQ", ICAO: "KSMQ", Name: "SOMERSET", Country: "US"} // no station
)

func exact(rec domain.AirportRecord) []domain.RankedAirport {
	return []domain.RankedAirport{{Record: rec, Confidence: 1.0}}
}

func fp(v float64) *float64 { return &v }

func day(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

func obsAt(stationID string, ts time.Time, windKt float64) domain.WeatherObservation {
	return domain.WeatherObservation{StationID: stationID, Timestamp: ts, WindSpeedKt: fp(windKt)}
}

func leg(date time.Time, origin, dest, dep, tail string) domain.FlightRecord {
	return domain.FlightRecord{FlightDate: date, Carrier: "DL", TailNum: tail, Origin: origin, Dest: dest, SchedDep: dep}
}

func newEngine(resolver *mockResolver, weather *mockWeather, fl *mockFlights, reg *mockRegistry) *join.Engine {
	return join.New(resolver, weather, fl, reg,
		observability.NewDiscardLogger(), observability.NewMetricsForTesting())
}

func defaultResolver() *mockResolver {
	return &mockResolver{byCode: map[string][]domain.RankedAirport{
		"JFK": exact(jfk),
		"ATL": exact(atl),
		"SMQ": exact(smq),
	}}
}

// --- tests ---

func TestEngine_Run_JoinAndFlag(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })

	legs := []domain.FlightRecord{
		leg(day(15), "JFK", "ATL", "0900", "N737NG"), // matches the stormy hour
		leg(day(15), "JFK", "ATL", "1400", "N320AB"), // matches a calm hour
		leg(day(15), "JFK", "ATL", "1800", ""),       // matches another calm hour
		leg(day(16), "JFK", "ATL", "0900", ""),       // no observation that day
	}
	weather := &mockWeather{result: wxrepo.FetchResult{
		Observations: map[string][]domain.WeatherObservation{
			jfk.StationID(): {
				obsAt(jfk.StationID(), day(15).Add(9*time.Hour), 40),
				obsAt(jfk.StationID(), day(15).Add(14*time.Hour), 8),
				obsAt(jfk.StationID(), day(15).Add(18*time.Hour), 5),
			},
		},
		Failed: map[string]error{},
	}}
	engine := newEngine(defaultResolver(), weather, &mockFlights{result: flights.LoadResult{Records: legs, Variant: flights.VariantReporting}},
		&mockRegistry{known: map[string]domain.AircraftMetadata{
			"N737NG": {Manufacturer: "BOEING", Model: "737-800", Known: true},
		}})

	result, err := engine.Run(context.Background(), 2024, time.January, "JFK", join.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "JFK", result.Airport.IATA)
	require.Len(t, result.Records, 4)

	stormy := result.Records[0]
	require.NotNil(t, stormy.BadWxFlag)
	assert.True(t, *stormy.BadWxFlag)
	require.NotNil(t, stormy.WxScore)
	assert.Greater(t, *stormy.WxScore, 0.0)
	require.NotNil(t, stormy.OriginWeather)
	assert.Equal(t, day(15).Add(9*time.Hour), stormy.OriginWeather.Timestamp)
	assert.True(t, stormy.Aircraft.Known)
	assert.Equal(t, "BOEING", stormy.Aircraft.Manufacturer)
	assert.Equal(t, fake.Now().UTC(), stormy.ProcessedAt)

	// Exactly the storm-hour flight is flagged; the other matched flights
	// carry a confirmed false.
	for _, calm := range result.Records[1:3] {
		require.NotNil(t, calm.BadWxFlag)
		assert.False(t, *calm.BadWxFlag)
	}
	assert.False(t, result.Records[1].Aircraft.Known)

	// No observation for the 16th within the look-back window: the verdict
	// must be absent, not a false.
	unknown := result.Records[3]
	assert.Nil(t, unknown.BadWxFlag)
	assert.Nil(t, unknown.WxScore)
	assert.Nil(t, unknown.OriginWeather)
}

func TestEngine_Run_OutputOrderFollowsInput(t *testing.T) {
	legs := []domain.FlightRecord{
		leg(day(3), "JFK", "ATL", "0900", "N1"),
		leg(day(1), "ATL", "JFK", "1100", "N2"),
		leg(day(2), "JFK", "SMQ", "1300", "N3"),
	}
	engine := newEngine(defaultResolver(), &mockWeather{},
		&mockFlights{result: flights.LoadResult{Records: legs}}, &mockRegistry{})

	result, err := engine.Run(context.Background(), 2024, time.January, "JFK", join.DefaultOptions())
	require.NoError(t, err)

	got := make([]domain.FlightRecord, 0, len(result.Records))
	for _, rec := range result.Records {
		got = append(got, rec.Flight)
	}
	if diff := cmp.Diff(legs, got); diff != "" {
		t.Errorf("output order mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_Run_FiltersToAirportLegs(t *testing.T) {
	legs := []domain.FlightRecord{
		leg(day(1), "JFK", "ATL", "0900", ""),
		leg(day(1), "ATL", "JFK", "0900", ""), // arrival counts too
		leg(day(1), "ATL", "SMQ", "0900", ""), // unrelated leg
	}
	engine := newEngine(defaultResolver(), &mockWeather{},
		&mockFlights{result: flights.LoadResult{Records: legs}}, &mockRegistry{})

	result, err := engine.Run(context.Background(), 2024, time.January, "JFK", join.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	for _, rec := range result.Records {
		touches := rec.Flight.Origin == "JFK" || rec.Flight.Dest == "JFK"
		assert.True(t, touches)
	}
}

func TestEngine_Run_Lookback(t *testing.T) {
	mkEngine := func(obsHour int) (*join.Engine, *mockWeather) {
		weather := &mockWeather{result: wxrepo.FetchResult{
			Observations: map[string][]domain.WeatherObservation{
				jfk.StationID(): {obsAt(jfk.StationID(), day(15).Add(time.Duration(obsHour)*time.Hour), 40)},
			},
			Failed: map[string]error{},
		}}
		legs := []domain.FlightRecord{leg(day(15), "JFK", "ATL", "1200", "")}
		return newEngine(defaultResolver(), weather,
			&mockFlights{result: flights.LoadResult{Records: legs}}, &mockRegistry{}), weather
	}

	t.Run("nearest earlier hour inside the window matches", func(t *testing.T) {
		engine, _ := mkEngine(9) // 3 hours before the 1200 departure
		result, err := engine.Run(context.Background(), 2024, time.January, "JFK", join.DefaultOptions())
		require.NoError(t, err)
		require.NotNil(t, result.Records[0].OriginWeather)
		assert.Equal(t, day(15).Add(9*time.Hour), result.Records[0].OriginWeather.Timestamp)
	})

	t.Run("hours beyond the window never match", func(t *testing.T) {
		engine, _ := mkEngine(8) // 4 hours back, outside the default window
		result, err := engine.Run(context.Background(), 2024, time.January, "JFK", join.DefaultOptions())
		require.NoError(t, err)
		assert.Nil(t, result.Records[0].OriginWeather)
		assert.Nil(t, result.Records[0].BadWxFlag)
	})

	t.Run("future hours never match even when closer", func(t *testing.T) {
		engine, _ := mkEngine(13) // 1 hour after departure
		result, err := engine.Run(context.Background(), 2024, time.January, "JFK", join.DefaultOptions())
		require.NoError(t, err)
		assert.Nil(t, result.Records[0].OriginWeather)
	})
}

func TestEngine_Run_MidnightDeparture(t *testing.T) {
	// A "2400" departure is midnight at the end of the flight date. The
	// observation at 00:00 of the same date is a full day before the actual
	// departure and must not be matched, even when it is the only stormy
	// hour on record.
	legs := []domain.FlightRecord{leg(day(15), "JFK", "ATL", "2400", "")}
	weather := &mockWeather{result: wxrepo.FetchResult{
		Observations: map[string][]domain.WeatherObservation{
			jfk.StationID(): {obsAt(jfk.StationID(), day(15), 40)},
		},
		Failed: map[string]error{},
	}}
	engine := newEngine(defaultResolver(), weather,
		&mockFlights{result: flights.LoadResult{Records: legs}}, &mockRegistry{})

	result, err := engine.Run(context.Background(), 2024, time.January, "JFK", join.DefaultOptions())
	require.NoError(t, err)

	rec := result.Records[0]
	assert.Nil(t, rec.OriginWeather)
	assert.Nil(t, rec.WxScore)
	assert.Nil(t, rec.BadWxFlag)
}

func TestEngine_Run_DestinationWeather(t *testing.T) {
	legs := []domain.FlightRecord{leg(day(15), "JFK", "ATL", "0900", "")}
	stormyATL := wxrepo.FetchResult{
		Observations: map[string][]domain.WeatherObservation{
			jfk.StationID(): {obsAt(jfk.StationID(), day(15).Add(9*time.Hour), 8)},
			atl.StationID(): {obsAt(atl.StationID(), day(15).Add(9*time.Hour), 40)},
		},
		Failed: map[string]error{},
	}

	t.Run("origin-only by default", func(t *testing.T) {
		weather := &mockWeather{result: stormyATL}
		engine := newEngine(defaultResolver(), weather,
			&mockFlights{result: flights.LoadResult{Records: legs}}, &mockRegistry{})

		result, err := engine.Run(context.Background(), 2024, time.January, "JFK", join.DefaultOptions())
		require.NoError(t, err)

		rec := result.Records[0]
		assert.Nil(t, rec.DestWeather)
		require.NotNil(t, rec.BadWxFlag)
		assert.False(t, *rec.BadWxFlag) // stormy destination ignored
		assert.Equal(t, []string{jfk.StationID()}, weather.requested)
	})

	t.Run("opted in, destination folds into the flag", func(t *testing.T) {
		weather := &mockWeather{result: stormyATL}
		engine := newEngine(defaultResolver(), weather,
			&mockFlights{result: flights.LoadResult{Records: legs}}, &mockRegistry{})

		opts := join.DefaultOptions()
		opts.IncludeDestinationWeather = true
		result, err := engine.Run(context.Background(), 2024, time.January, "JFK", opts)
		require.NoError(t, err)

		rec := result.Records[0]
		require.NotNil(t, rec.DestWeather)
		require.NotNil(t, rec.BadWxFlag)
		assert.True(t, *rec.BadWxFlag)
		assert.ElementsMatch(t, []string{jfk.StationID(), atl.StationID()}, weather.requested)
	})
}

func TestEngine_Run_FailedStationDegrades(t *testing.T) {
	legs := []domain.FlightRecord{leg(day(15), "JFK", "ATL", "0900", "")}
	weather := &mockWeather{result: wxrepo.FetchResult{
		Observations: map[string][]domain.WeatherObservation{},
		Failed:       map[string]error{jfk.StationID(): context.DeadlineExceeded},
	}}
	engine := newEngine(defaultResolver(), weather,
		&mockFlights{result: flights.LoadResult{Records: legs}}, &mockRegistry{})

	result, err := engine.Run(context.Background(), 2024, time.January, "JFK", join.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{jfk.StationID()}, result.FailedStations)
	rec := result.Records[0]
	assert.Nil(t, rec.OriginWeather)
	assert.Nil(t, rec.BadWxFlag)
}

func TestEngine_Run_AirportWithoutStation(t *testing.T) {
	legs := []domain.FlightRecord{leg(day(15), "SMQ", "JFK", "0900", "")}
	engine := newEngine(defaultResolver(), &mockWeather{},
		&mockFlights{result: flights.LoadResult{Records: legs}}, &mockRegistry{})

	result, err := engine.Run(context.Background(), 2024, time.January, "JFK", join.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"SMQ"}, result.UnresolvedAirports)
	assert.Nil(t, result.Records[0].BadWxFlag)
}

func TestEngine_Run_SubjectResolution(t *testing.T) {
	newAmbiguous := func() *mockResolver {
		r := defaultResolver()
		r.byCode["new york"] = []domain.RankedAirport{
			{Record: jfk, Confidence: 0.62},
			{Record: smq, Confidence: 0.62},
		}
		r.byCode["kennedy"] = []domain.RankedAirport{
			{Record: jfk, Confidence: 0.9},
			{Record: smq, Confidence: 0.4},
		}
		return r
	}

	t.Run("unknown identifier aborts", func(t *testing.T) {
		engine := newEngine(defaultResolver(), &mockWeather{}, &mockFlights{}, &mockRegistry{})
		_, err := engine.Run(context.Background(), 2024, time.January, "nowhere", join.DefaultOptions())

		var resErr *domain.ResolutionError
		require.ErrorAs(t, err, &resErr)
	})

	t.Run("ambiguous identifier surfaces the candidate list", func(t *testing.T) {
		engine := newEngine(newAmbiguous(), &mockWeather{}, &mockFlights{}, &mockRegistry{})
		_, err := engine.Run(context.Background(), 2024, time.January, "new york", join.DefaultOptions())

		var ambErr *domain.AmbiguousAirportError
		require.ErrorAs(t, err, &ambErr)
		assert.Len(t, ambErr.Candidates, 2)
	})

	t.Run("confident top candidate picks itself", func(t *testing.T) {
		engine := newEngine(newAmbiguous(), &mockWeather{},
			&mockFlights{result: flights.LoadResult{}}, &mockRegistry{})
		result, err := engine.Run(context.Background(), 2024, time.January, "kennedy", join.DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, "JFK", result.Airport.IATA)
	})

	t.Run("explicit pick resolves ambiguity", func(t *testing.T) {
		engine := newEngine(newAmbiguous(), &mockWeather{},
			&mockFlights{result: flights.LoadResult{}}, &mockRegistry{})
		opts := join.DefaultOptions()
		pick := 1
		opts.PickIndex = &pick

		result, err := engine.Run(context.Background(), 2024, time.January, "new york", opts)
		require.NoError(t, err)
		assert.Equal(t, "SMQ", result.Airport.IATA)
	})

	t.Run("pick out of range", func(t *testing.T) {
		engine := newEngine(newAmbiguous(), &mockWeather{}, &mockFlights{}, &mockRegistry{})
		opts := join.DefaultOptions()
		pick := 7
		opts.PickIndex = &pick

		_, err := engine.Run(context.Background(), 2024, time.January, "new york", opts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "out of range")
	})
}

func TestEngine_Run_FlightSourceUnavailableAborts(t *testing.T) {
	engine := newEngine(defaultResolver(), &mockWeather{},
		&mockFlights{err: &domain.SourceUnavailableError{Year: 2024, Month: 1}}, &mockRegistry{})

	_, err := engine.Run(context.Background(), 2024, time.January, "JFK", join.DefaultOptions())

	var srcErr *domain.SourceUnavailableError
	require.ErrorAs(t, err, &srcErr)
}

func TestEngine_Run_DeterministicRerun(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })

	legs := []domain.FlightRecord{
		leg(day(15), "JFK", "ATL", "0900", "N737NG"),
		leg(day(15), "ATL", "JFK", "1400", "N320AB"),
	}
	weather := &mockWeather{result: wxrepo.FetchResult{
		Observations: map[string][]domain.WeatherObservation{
			jfk.StationID(): {obsAt(jfk.StationID(), day(15).Add(9*time.Hour), 40)},
			atl.StationID(): {obsAt(atl.StationID(), day(15).Add(14*time.Hour), 8)},
		},
		Failed: map[string]error{},
	}}
	engine := newEngine(defaultResolver(), weather,
		&mockFlights{result: flights.LoadResult{Records: legs}}, &mockRegistry{})

	first, err := engine.Run(context.Background(), 2024, time.January, "JFK", join.DefaultOptions())
	require.NoError(t, err)
	second, err := engine.Run(context.Background(), 2024, time.January, "JFK", join.DefaultOptions())
	require.NoError(t, err)

	if diff := cmp.Diff(first.Records, second.Records); diff != "" {
		t.Errorf("reruns differ (-first +second):\n%s", diff)
	}
}
