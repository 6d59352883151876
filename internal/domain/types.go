package domain

import "time"

// AirportRecord is one row of the station directory: an airport identity plus
// the ISD weather-station identifiers serving it. USAF and WBAN are empty when
// no usable station exists for the airport.
type AirportRecord struct {
	IATA         string  `json:"iata"`
	ICAO         string  `json:"icao"`
	Name         string  `json:"name"`
	Municipality string  `json:"municipality,omitempty"`
	Country      string  `json:"country"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	USAF         string  `json:"usaf_id,omitempty"`
	WBAN         string  `json:"wban_id,omitempty"`
}

// StationID returns the "USAF-WBAN" key used to locate ISD-Lite files.
func (a AirportRecord) StationID() string {
	return a.USAF + "-" + a.WBAN
}

// HasStation reports whether the airport maps to a weather station.
func (a AirportRecord) HasStation() bool {
	return a.USAF != "" && a.WBAN != ""
}

// RankedAirport is an AirportRecord with a resolution confidence in [0, 1].
// Exact IATA/ICAO matches carry confidence 1.0.
type RankedAirport struct {
	Record     AirportRecord `json:"record"`
	Confidence float64       `json:"confidence"`
}

// WeatherObservation is one decoded hourly surface observation. Field values
// are nil when the source record carried the missing-value sentinel; a nil
// field is "not observed", never zero.
type WeatherObservation struct {
	StationID    string    `json:"station_id"`
	Timestamp    time.Time `json:"timestamp"` // truncated to the hour, UTC basis
	TemperatureC *float64  `json:"temperature_c,omitempty"`
	DewPointC    *float64  `json:"dew_point_c,omitempty"`
	PressureHPa  *float64  `json:"pressure_hpa,omitempty"`
	WindDirDeg   *float64  `json:"wind_dir_deg,omitempty"`
	WindSpeedKt  *float64  `json:"wind_speed_kt,omitempty"`
	CeilingFt    *float64  `json:"ceiling_ft,omitempty"`
	VisibilityKm *float64  `json:"visibility_km,omitempty"`
	PrecipMM     *float64  `json:"precipitation_mm,omitempty"`
}

// FlightRecord is one flight leg from the on-time performance extract,
// normalized to the canonical shape regardless of source variant.
// Delay fields are nil for cancelled or diverted flights.
type FlightRecord struct {
	FlightDate  time.Time `json:"flight_date"` // date only, midnight UTC
	Carrier     string    `json:"carrier"`
	TailNum     string    `json:"tail_num,omitempty"`
	Origin      string    `json:"origin"`
	Dest        string    `json:"dest"`
	SchedDep    string    `json:"sched_dep"` // local HHMM, e.g. "1530"
	DepDelayMin *float64  `json:"dep_delay_min,omitempty"`
	ArrDelayMin *float64  `json:"arr_delay_min,omitempty"`
}

// SchedDepHour returns the scheduled departure hour bucket (0-23).
// ok is false when the HHMM field is missing, unparseable, or the "2400"
// midnight encoding, in which case the flight cannot be matched to an
// observation.
func (f FlightRecord) SchedDepHour() (int, bool) {
	return hourFromHHMM(f.SchedDep)
}

// AircraftMetadata is the registry enrichment for a tail number. Known is
// false for the unknown sentinel returned on registry misses.
type AircraftMetadata struct {
	TailNum      string `json:"tail_num"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	Known        bool   `json:"known"`
}

// UnknownAircraft returns the sentinel metadata for a tail number that is
// absent from the registry (or when the registry itself is unavailable).
func UnknownAircraft(tailNum string) AircraftMetadata {
	return AircraftMetadata{
		TailNum:      tailNum,
		Manufacturer: "unknown",
		Model:        "unknown",
	}
}

// JoinedFlightRecord is the terminal output entity: a flight annotated with
// the nearest prior weather at its origin (and optionally destination),
// aircraft metadata, and the derived adverse-weather fields.
//
// WxScore and BadWxFlag are nil when no observation could be matched for any
// requested role; absence of information is never reported as good weather.
type JoinedFlightRecord struct {
	Flight        FlightRecord        `json:"flight"`
	OriginWeather *WeatherObservation `json:"origin_weather,omitempty"`
	DestWeather   *WeatherObservation `json:"dest_weather,omitempty"`
	Aircraft      AircraftMetadata    `json:"aircraft"`
	WxScore       *float64            `json:"wx_score,omitempty"`
	BadWxFlag     *bool               `json:"bad_wx_flag,omitempty"`
	ProcessedAt   time.Time           `json:"processed_at"`
}

// hourFromHHMM converts an HHMM string ("1530", "730") to an hour bucket.
// BTS encodes a midnight departure as "2400", meaning 00:00 of the day after
// the flight date; that hour lies outside the date's buckets, so it never
// matches an observation rather than matching the wrong day's.
func hourFromHHMM(hhmm string) (int, bool) {
	if len(hhmm) < 3 || len(hhmm) > 4 {
		return 0, false
	}
	n := 0
	for _, c := range hhmm {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	hour := n / 100
	minute := n % 100
	if hour > 23 || minute > 59 {
		return 0, false
	}
	return hour, true
}
