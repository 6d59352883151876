// Package flights loads the monthly on-time performance record set,
// normalizing the two published extract variants into one canonical shape.
package flights

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/flightwx-etl/internal/domain"
	"github.com/couchcryptid/flightwx-etl/internal/observability"
)

// Variant names the two published extracts, tried in order.
const (
	VariantReporting = "reporting"
	VariantMarketing = "marketing"
)

var variants = []string{VariantReporting, VariantMarketing}

// canonicalColumns maps each logical field to the header aliases used across
// extract variants. Headers are compared upper-cased and trimmed.
var canonicalColumns = map[string][]string{
	"FL_DATE": {"FL_DATE", "FLIGHTDATE"},
	"CARRIER": {
		"OP_UNIQUE_CARRIER",
		"REPORTING_AIRLINE",
		"IATA_CODE_REPORTING_AIRLINE",
		"MKT_UNIQUE_CARRIER",
		"MARKETING_AIRLINE_NETWORK",
		"IATA_CODE_MARKETING_AIRLINE",
		"OPERATING_AIRLINE",
	},
	"TAIL_NUM":     {"TAIL_NUM", "TAIL_NUMBER"},
	"ORIGIN":       {"ORIGIN"},
	"DEST":         {"DEST"},
	"CRS_DEP_TIME": {"CRS_DEP_TIME", "CRSDEPTIME"},
	"DEP_DELAY":    {"DEP_DELAY", "DEPDELAY"},
	"ARR_DELAY":    {"ARR_DELAY", "ARRDELAY"},
}

// VariantFetcher fetches the flight CSV stream (already extracted from its
// archive) for one extract variant.
type VariantFetcher interface {
	FetchFlightMonth(ctx context.Context, variant string, year int, month time.Month) (io.ReadCloser, error)
}

// Source loads flight months with variant fallback.
type Source struct {
	fetcher VariantFetcher
	logger  *slog.Logger
	metrics *observability.Metrics
}

// LoadResult carries the normalized records plus the count of rows dropped
// for unparseable required fields.
type LoadResult struct {
	Records     []domain.FlightRecord
	SkippedRows int
	Variant     string
}

// New creates a Source reading through fetcher.
func New(fetcher VariantFetcher, logger *slog.Logger, metrics *observability.Metrics) *Source {
	return &Source{fetcher: fetcher, logger: logger, metrics: metrics}
}

// Load fetches and normalizes the flight set for one month. The reporting
// extract is tried first; fetch errors and schema mismatches both fall back
// to the marketing extract. Only when every variant fails does Load return
// a *domain.SourceUnavailableError.
func (s *Source) Load(ctx context.Context, year int, month time.Month) (LoadResult, error) {
	var errs []error
	for _, variant := range variants {
		result, err := s.loadVariant(ctx, variant, year, month)
		if err != nil {
			s.logger.Warn("flight variant unavailable, trying next",
				"variant", variant, "year", year, "month", int(month), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", variant, err))
			continue
		}
		s.metrics.FlightsLoaded.Add(float64(len(result.Records)))
		s.logger.Info("flights loaded",
			"variant", variant, "records", len(result.Records), "skipped_rows", result.SkippedRows)
		return result, nil
	}
	return LoadResult{}, &domain.SourceUnavailableError{Year: year, Month: int(month), Errs: errs}
}

func (s *Source) loadVariant(ctx context.Context, variant string, year int, month time.Month) (LoadResult, error) {
	stream, err := s.fetcher.FetchFlightMonth(ctx, variant, year, month)
	if err != nil {
		return LoadResult{}, err
	}
	defer stream.Close()

	records, skipped, err := parseCSV(stream)
	if err != nil {
		return LoadResult{}, err
	}
	return LoadResult{Records: records, SkippedRows: skipped, Variant: variant}, nil
}

// parseCSV reads one extract, resolves header aliases to canonical fields,
// and normalizes each row. A missing logical column is a schema error, which
// the caller treats like any other variant failure.
func parseCSV(r io.Reader) ([]domain.FlightRecord, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read flight header: %w", err)
	}

	headerIdx := map[string]int{}
	for i, h := range header {
		headerIdx[strings.ToUpper(strings.TrimSpace(h))] = i
	}

	fieldIdx := map[string]int{}
	var missing []string
	for canonical, aliases := range canonicalColumns {
		found := false
		for _, alias := range aliases {
			if i, ok := headerIdx[alias]; ok {
				fieldIdx[canonical] = i
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, canonical)
		}
	}
	if len(missing) > 0 {
		return nil, 0, fmt.Errorf("flight CSV missing logical fields: %s", strings.Join(missing, ", "))
	}

	var records []domain.FlightRecord
	var skipped int
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read flight row: %w", err)
		}

		rec, ok := recordFromRow(row, fieldIdx)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

func recordFromRow(row []string, fieldIdx map[string]int) (domain.FlightRecord, bool) {
	field := func(name string) string {
		i := fieldIdx[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	date, ok := parseFlightDate(field("FL_DATE"))
	if !ok {
		return domain.FlightRecord{}, false
	}
	origin := strings.ToUpper(field("ORIGIN"))
	dest := strings.ToUpper(field("DEST"))
	if origin == "" || dest == "" {
		return domain.FlightRecord{}, false
	}

	return domain.FlightRecord{
		FlightDate:  date,
		Carrier:     strings.ToUpper(field("CARRIER")),
		TailNum:     strings.ToUpper(field("TAIL_NUM")),
		Origin:      origin,
		Dest:        dest,
		SchedDep:    normalizeHHMM(field("CRS_DEP_TIME")),
		DepDelayMin: parseDelay(field("DEP_DELAY")),
		ArrDelayMin: parseDelay(field("ARR_DELAY")),
	}, true
}

var flightDateLayouts = []string{"2006-01-02", "1/2/2006", "2006-01-02 15:04:05"}

func parseFlightDate(s string) (time.Time, bool) {
	for _, layout := range flightDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// normalizeHHMM strips a fractional suffix ("1530.0") and drops anything
// that is not a plausible clock time, leaving validation to SchedDepHour.
func normalizeHHMM(s string) string {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	return s
}

// parseDelay keeps delay absence explicit: cancelled and diverted legs have
// empty delay columns, and an absent delay must never read as on-time.
func parseDelay(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
