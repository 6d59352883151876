// Package isdlite decodes the compact hourly surface-observation format into
// typed observation records. See the domain package docs for the record
// layout and unit encodings.
package isdlite

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/flightwx-etl/internal/domain"
)

// missingSentinel marks an unobserved field in the source format.
const missingSentinel = -9999

// fieldCount is the fixed number of whitespace-separated columns per line.
const fieldCount = 12

// metersPerSecondToKnots converts the source wind-speed unit to knots after
// the tenths scaling is applied.
const metersPerSecondToKnots = 1.94384

// Result carries the decoded observations plus the count of malformed lines
// that were dropped. Skipped lines are surfaced, not fatal.
type Result struct {
	Observations []domain.WeatherObservation
	SkippedLines int
}

// Decode parses a station's raw observation stream. Malformed lines (wrong
// field count, non-integer fields, impossible dates) are skipped and
// counted. The only fatal condition is a structurally unreadable stream,
// reported as a *domain.DecodeError.
func Decode(r io.Reader, stationID string) (Result, error) {
	var res Result

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		obs, ok := decodeLine(line, stationID)
		if !ok {
			res.SkippedLines++
			continue
		}
		res.Observations = append(res.Observations, obs)
	}
	if err := scanner.Err(); err != nil {
		return Result{}, &domain.DecodeError{StationID: stationID, Err: err}
	}
	return res, nil
}

func decodeLine(line, stationID string) (domain.WeatherObservation, bool) {
	fields := strings.Fields(line)
	if len(fields) != fieldCount {
		return domain.WeatherObservation{}, false
	}

	vals := make([]int, fieldCount)
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return domain.WeatherObservation{}, false
		}
		vals[i] = n
	}

	year, month, day, hour := vals[0], vals[1], vals[2], vals[3]
	if month < 1 || month > 12 || day < 1 || day > 31 || hour < 0 || hour > 23 {
		return domain.WeatherObservation{}, false
	}

	obs := domain.WeatherObservation{
		StationID:    stationID,
		Timestamp:    time.Date(year, time.Month(month), day, hour, 0, 0, 0, time.UTC),
		TemperatureC: scaled(vals[4], 0.1),
		DewPointC:    scaled(vals[5], 0.1),
		PressureHPa:  scaled(vals[6], 0.1),
		WindDirDeg:   scaled(vals[7], 1),
		WindSpeedKt:  scaled(vals[8], 0.1*metersPerSecondToKnots),
		CeilingFt:    scaled(vals[9], 1),
		VisibilityKm: scaled(vals[10], 0.001),
		PrecipMM:     scaled(vals[11], 0.1),
	}
	return obs, true
}

// scaled applies a per-field scale factor, mapping the missing-value
// sentinel to nil rather than a negative scaled artifact.
func scaled(raw int, factor float64) *float64 {
	if raw == missingSentinel {
		return nil
	}
	v := float64(raw) * factor
	return &v
}
