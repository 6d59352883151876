package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedDepHour(t *testing.T) {
	tests := []struct {
		name     string
		hhmm     string
		wantHour int
		wantOK   bool
	}{
		{"four digits", "1530", 15, true},
		{"three digits", "730", 7, true},
		{"start of day", "0000", 0, true},
		{"top of last hour", "2359", 23, true},
		{"end-of-day midnight is not matchable", "2400", 0, false},
		{"empty", "", 0, false},
		{"too short", "12", 0, false},
		{"non-numeric", "12:30", 0, false},
		{"impossible hour", "2530", 0, false},
		{"impossible minute", "1275", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := FlightRecord{SchedDep: tt.hhmm}
			hour, ok := f.SchedDepHour()
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantHour, hour)
			}
		})
	}
}

func TestAirportRecord_Station(t *testing.T) {
	t.Run("station identity", func(t *testing.T) {
		rec := AirportRecord{IATA: "JFK", USAF: "744860", WBAN: "94789"}
		assert.True(t, rec.HasStation())
		assert.Equal(t, "744860-94789", rec.StationID())
	})

	t.Run("airport without station", func(t *testing.T) {
		rec := AirportRecord{IATA: "SMQ"}
		assert.False(t, rec.HasStation())
	})
}

func TestUnknownAircraft(t *testing.T) {
	meta := UnknownAircraft("N737NG")
	assert.Equal(t, "N737NG", meta.TailNum)
	assert.Equal(t, "unknown", meta.Manufacturer)
	assert.Equal(t, "unknown", meta.Model)
	assert.False(t, meta.Known)
}

func TestJoinedFlightRecord_JSONAbsence(t *testing.T) {
	// Absent weather fields must serialize as absent, never as zero values a
	// consumer could mistake for calm conditions.
	rec := JoinedFlightRecord{
		Flight: FlightRecord{
			FlightDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			Carrier:    "DL",
			Origin:     "JFK",
			Dest:       "ATL",
			SchedDep:   "0900",
		},
		Aircraft:    UnknownAircraft("N1"),
		ProcessedAt: time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.NotContains(t, decoded, "wx_score")
	assert.NotContains(t, decoded, "bad_wx_flag")
	assert.NotContains(t, decoded, "origin_weather")
	assert.NotContains(t, decoded, "dest_weather")

	flight, ok := decoded["flight"].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, flight, "dep_delay_min")
	assert.NotContains(t, flight, "arr_delay_min")
}
