// Package stations resolves free-text or coded airport identifiers to the
// weather-station records needed to fetch observations.
package stations

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/couchcryptid/flightwx-etl/internal/domain"
)

// NOAA publishes placeholder ids for stations that exist in the history file
// but have no usable observation archive.
const (
	usafSentinel = "999999"
	wbanSentinel = "99999"
)

// maxCandidates caps the ranked list returned for fuzzy queries.
const maxCandidates = 8

// similarityFloor drops fuzzy candidates with effectively no resemblance to
// the query, so "zzzzzz" resolves to zero candidates rather than a long tail
// of noise.
const similarityFloor = 0.34

// Directory holds the airport-to-station mapping, loaded once at
// construction and immutable thereafter.
type Directory struct {
	records []domain.AirportRecord
	byIATA  map[string]int
	byICAO  map[string]int
}

// Load parses the ISD station-history CSV into a Directory. Rows without a
// call sign are skipped (pure weather stations, not airports); rows whose
// USAF/WBAN ids are non-numeric or placeholder values keep their airport
// identity but map to no station.
func Load(r io.Reader) (*Directory, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read station history header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToUpper(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"USAF", "WBAN", "STATION NAME", "CTRY", "CALL"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("station history missing column %q", required)
		}
	}

	d := &Directory{
		byIATA: map[string]int{},
		byICAO: map[string]int{},
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read station history row: %w", err)
		}

		rec, ok := recordFromRow(row, col)
		if !ok {
			continue
		}

		idx := len(d.records)
		d.records = append(d.records, rec)

		// Later rows win: the history file lists superseded station periods
		// first, current ones last.
		if rec.IATA != "" {
			d.byIATA[rec.IATA] = idx
		}
		if rec.ICAO != "" {
			d.byICAO[rec.ICAO] = idx
		}
	}

	if len(d.records) == 0 {
		return nil, fmt.Errorf("station history contained no airport rows")
	}
	return d, nil
}

// Len returns the number of airport rows loaded.
func (d *Directory) Len() int { return len(d.records) }

// Resolve maps an identifier to a ranked candidate list, best first.
//
// Exact IATA or ICAO matches (case-insensitive) short-circuit to a single
// candidate with confidence 1.0. Anything else is matched approximately
// against airport name and municipality; equal-similarity candidates are
// ordered by hub traffic rank, then IATA code, so repeated calls rank
// identically. Zero candidates is a *domain.ResolutionError.
func (d *Directory) Resolve(identifier string) ([]domain.RankedAirport, error) {
	query := strings.ToUpper(strings.TrimSpace(identifier))
	if query == "" {
		return nil, &domain.ResolutionError{Identifier: identifier}
	}

	if len(query) == 3 {
		if idx, ok := d.byIATA[query]; ok {
			return []domain.RankedAirport{{Record: d.records[idx], Confidence: 1.0}}, nil
		}
	}
	if len(query) == 4 {
		if idx, ok := d.byICAO[query]; ok {
			return []domain.RankedAirport{{Record: d.records[idx], Confidence: 1.0}}, nil
		}
	}

	candidates := d.fuzzyMatch(query)
	if len(candidates) == 0 {
		return nil, &domain.ResolutionError{Identifier: identifier}
	}
	return candidates, nil
}

func (d *Directory) fuzzyMatch(query string) []domain.RankedAirport {
	// Dedup by IATA so superseded station periods of the same airport don't
	// crowd the candidate list.
	best := map[string]domain.RankedAirport{}
	for _, rec := range d.records {
		sim := Similarity(query, rec.Name)
		if rec.Municipality != "" {
			if ms := Similarity(query, rec.Municipality); ms > sim {
				sim = ms
			}
		}
		if sim < similarityFloor {
			continue
		}
		key := rec.IATA
		if key == "" {
			key = rec.ICAO
		}
		if prev, ok := best[key]; !ok || sim > prev.Confidence {
			best[key] = domain.RankedAirport{Record: rec, Confidence: sim}
		}
	}

	ranked := make([]domain.RankedAirport, 0, len(best))
	for _, c := range best {
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		ri, rj := hubRank(ranked[i].Record.IATA), hubRank(ranked[j].Record.IATA)
		if ri != rj {
			return ri < rj
		}
		return ranked[i].Record.IATA < ranked[j].Record.IATA
	})

	if len(ranked) > maxCandidates {
		ranked = ranked[:maxCandidates]
	}
	return ranked
}

// recordFromRow builds an AirportRecord from one history row. ok is false
// for rows that cannot represent an airport.
func recordFromRow(row []string, col map[string]int) (domain.AirportRecord, bool) {
	field := func(name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	call := strings.ToUpper(field("CALL"))
	if call == "" {
		return domain.AirportRecord{}, false
	}

	rec := domain.AirportRecord{
		ICAO:      call,
		Name:      strings.ToUpper(field("STATION NAME")),
		Country:   strings.ToUpper(field("CTRY")),
		Latitude:  parseCoord(field("LAT")),
		Longitude: parseCoord(field("LON")),
	}

	// US airports carry a K-prefixed ICAO call sign; the IATA code is the
	// remainder. Elsewhere the 4-letter call sign is all we have.
	if rec.Country == "US" && len(call) == 4 && strings.HasPrefix(call, "K") {
		rec.IATA = call[1:]
	}

	// Station names are often "CITY/FIELD NAME"; the leading segment is the
	// closest thing the history file has to a municipality.
	if city, _, found := strings.Cut(rec.Name, "/"); found {
		rec.Municipality = strings.TrimSpace(city)
	}

	usaf, wban := field("USAF"), field("WBAN")
	if isNumeric(usaf) && isNumeric(wban) && usaf != usafSentinel && wban != wbanSentinel {
		rec.USAF = usaf
		rec.WBAN = wban
	}
	return rec, true
}

func parseCoord(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
