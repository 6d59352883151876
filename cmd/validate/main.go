// Command validate sanity-checks an emitted joined-record JSONL file:
// required fields, tri-state flag consistency, month bounds, and agreement
// between each record's flag and its embedded observation under a given
// threshold set.
//
// Usage:
//
//	go run ./cmd/validate -in joined.jsonl -year 2024 -month 1
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/couchcryptid/flightwx-etl/internal/domain"
)

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	in := flag.String("in", "", "path to joined-record JSONL file")
	year := flag.Int("year", 0, "expected year")
	month := flag.Int("month", 0, "expected month 1-12")
	flag.Parse()

	if *in == "" || *year == 0 || *month < 1 || *month > 12 {
		flag.Usage()
		os.Exit(1)
	}

	records, err := loadRecords(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	phases := []*phase{
		validateSchema(records),
		validateMonth(records, *year, time.Month(*month)),
		validateFlagConsistency(records, domain.DefaultThresholds()),
	}

	fmt.Printf("=== Joined Record Validation: %s (%d records) ===\n\n", *in, len(records))
	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-36s %s\n", p.name, status)
		for i, e := range p.errors {
			if i == 5 {
				fmt.Printf("      ... and %d more\n", len(p.errors)-5)
				break
			}
			fmt.Printf("      %s\n", e)
		}
	}

	printSummary(records)
	if !allPassed {
		os.Exit(1)
	}
}

func loadRecords(path string) ([]domain.JoinedFlightRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	var records []domain.JoinedFlightRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec domain.JoinedFlightRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return records, nil
}

func validateSchema(records []domain.JoinedFlightRecord) *phase {
	p := &phase{name: "schema"}
	for i, rec := range records {
		if rec.Flight.Origin == "" || rec.Flight.Dest == "" {
			p.errorf("record %d: missing origin or dest", i)
		}
		if rec.Flight.FlightDate.IsZero() {
			p.errorf("record %d: missing flight date", i)
		}
		if rec.Aircraft.Manufacturer == "" || rec.Aircraft.Model == "" {
			p.errorf("record %d: aircraft metadata must be populated or the unknown sentinel, never empty", i)
		}
		if rec.ProcessedAt.IsZero() {
			p.errorf("record %d: missing processed_at", i)
		}
	}
	return p
}

func validateMonth(records []domain.JoinedFlightRecord, year int, month time.Month) *phase {
	p := &phase{name: "month bounds"}
	for i, rec := range records {
		if rec.Flight.FlightDate.Year() != year || rec.Flight.FlightDate.Month() != month {
			p.errorf("record %d: flight date %s outside %04d-%02d",
				i, rec.Flight.FlightDate.Format("2006-01-02"), year, int(month))
		}
	}
	return p
}

// validateFlagConsistency checks the tri-state contract: flag and score are
// present together, absent weather means an absent verdict, and a present
// flag agrees with re-scoring the embedded observations.
func validateFlagConsistency(records []domain.JoinedFlightRecord, th domain.Thresholds) *phase {
	p := &phase{name: "flag consistency"}
	weights := domain.DefaultScoreWeights()
	for i, rec := range records {
		if (rec.BadWxFlag == nil) != (rec.WxScore == nil) {
			p.errorf("record %d: flag and score must be absent together", i)
			continue
		}
		if rec.OriginWeather == nil && rec.DestWeather == nil {
			if rec.BadWxFlag != nil {
				p.errorf("record %d: verdict present without any observation", i)
			}
			continue
		}
		if rec.BadWxFlag == nil {
			p.errorf("record %d: observation present but verdict absent", i)
			continue
		}

		_, want := domain.CombineScores(
			domain.ScoreWeather(rec.OriginWeather, th, weights),
			domain.ScoreWeather(rec.DestWeather, th, weights),
		)
		if want != nil && *want != *rec.BadWxFlag {
			p.errorf("record %d: flag %v disagrees with rescoring (%v) under default thresholds",
				i, *rec.BadWxFlag, *want)
		}
	}
	return p
}

func printSummary(records []domain.JoinedFlightRecord) {
	var flagged, unknown int
	for _, rec := range records {
		switch {
		case rec.BadWxFlag == nil:
			unknown++
		case *rec.BadWxFlag:
			flagged++
		}
	}
	known := len(records) - unknown
	share := 0.0
	if known > 0 {
		share = float64(flagged) / float64(known) * 100
	}
	fmt.Printf("\nadverse share: %.1f%% of %d records with a verdict (%d without)\n", share, known, unknown)
}
