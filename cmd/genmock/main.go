// Command genmock generates a self-consistent set of synthetic input
// fixtures: a station-history CSV, one ISD-Lite observation file per
// station, a monthly flight CSV, and a registry snapshot. The fixtures feed
// local runs and the test suites without touching any remote source.
//
// Usage:
//
//	go run ./cmd/genmock -out-dir testdata/fixtures -year 2024 -month 1
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// seed keeps every generated byte reproducible across invocations.
const seed = 20240126

type mockAirport struct {
	iata, icao, name string
	usaf, wban       string
}

var mockAirports = []mockAirport{
	{iata: "JFK", icao: "KJFK", name: "NEW YORK/JF KENNEDY INTL", usaf: "744860", wban: "94789"},
	{iata: "ATL", icao: "KATL", name: "ATLANTA HARTSFIELD INTL", usaf: "722190", wban: "13874"},
	{iata: "LAX", icao: "KLAX", name: "LOS ANGELES INTL", usaf: "722950", wban: "23174"},
	{iata: "ORD", icao: "KORD", name: "CHICAGO O'HARE INTL", usaf: "725300", wban: "94846"},
}

var mockTails = []struct{ tail, mfr, model string }{
	{"737NG", "BOEING", "737-800"},
	{"320AB", "AIRBUS", "A320-214"},
	{"175EA", "EMBRAER", "ERJ 170-200"},
}

func main() {
	outDir := flag.String("out-dir", "", "directory to write fixtures into")
	year := flag.Int("year", 2024, "fixture year")
	month := flag.Int("month", 1, "fixture month 1-12")
	flag.Parse()

	if *outDir == "" {
		flag.Usage()
		log.Fatal("missing required flag: -out-dir")
	}
	if *month < 1 || *month > 12 {
		log.Fatalf("invalid month %d", *month)
	}

	if err := run(*outDir, *year, time.Month(*month)); err != nil {
		log.Fatal(err)
	}
}

func run(outDir string, year int, month time.Month) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	rng := rand.New(rand.NewSource(seed))

	if err := writeFile(outDir, "isd-history.csv", stationHistoryCSV()); err != nil {
		return err
	}
	for _, ap := range mockAirports {
		name := fmt.Sprintf("%s-%s-%d", ap.usaf, ap.wban, year)
		if err := writeFile(outDir, name, isdLiteMonth(rng, year, month)); err != nil {
			return err
		}
	}
	if err := writeFile(outDir, fmt.Sprintf("flights_%d_%02d.csv", year, int(month)), flightsCSV(rng, year, month)); err != nil {
		return err
	}
	if err := writeFile(outDir, "registry.csv", registryCSV()); err != nil {
		return err
	}

	log.Printf("fixtures written to %s (%d stations, year=%d month=%d)", outDir, len(mockAirports), year, int(month))
	return nil
}

func writeFile(dir, name, content string) error {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Printf("wrote %s (%d bytes)", path, len(content))
	return nil
}

func stationHistoryCSV() string {
	var b strings.Builder
	b.WriteString(`"USAF","WBAN","STATION NAME","CTRY","ST","CALL","LAT","LON","ELEV(M)","BEGIN","END"` + "\n")
	for _, ap := range mockAirports {
		fmt.Fprintf(&b, `"%s","%s","%s","US","NY","%s","+40.639","-73.778","+0003.4","19480101","20251231"`+"\n",
			ap.usaf, ap.wban, ap.name, ap.icao)
	}
	// A station-history row with placeholder ids: resolvable airport, no
	// usable station.
	b.WriteString(`"999999","99999","SMALLFIELD MUNI","US","NY","KSMQ","+40.100","-74.500","+0010.0","19480101","20251231"` + "\n")
	return b.String()
}

// isdLiteMonth emits one observation line per hour for the month, with a
// deliberate sprinkle of missing-value sentinels and one malformed line.
func isdLiteMonth(rng *rand.Rand, year int, month time.Month) string {
	var b strings.Builder
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for ts := start; ts.Month() == month; ts = ts.Add(time.Hour) {
		temp := rng.Intn(300) - 100 // tenths of °C
		wind := rng.Intn(120)       // tenths of m/s
		ceiling := 2000 + rng.Intn(20000)
		visibility := 2000 + rng.Intn(14000)
		precip := 0
		if rng.Intn(10) == 0 {
			precip = rng.Intn(80)
		}
		if rng.Intn(25) == 0 {
			wind = -9999
		}
		fmt.Fprintf(&b, "%4d %2d %2d %2d %5d %5d %5d %3d %4d %5d %6d %4d\n",
			ts.Year(), int(ts.Month()), ts.Day(), ts.Hour(),
			temp, temp-20, 10132, rng.Intn(360), wind, ceiling, visibility, precip)
	}
	b.WriteString("garbage line that fails to parse\n")
	return b.String()
}

func flightsCSV(rng *rand.Rand, year int, month time.Month) string {
	var b strings.Builder
	b.WriteString("FL_DATE,OP_UNIQUE_CARRIER,TAIL_NUM,ORIGIN,DEST,CRS_DEP_TIME,DEP_DELAY,ARR_DELAY\n")

	carriers := []string{"DL", "AA", "UA", "B6"}
	days := daysIn(year, month)
	for day := 1; day <= days; day++ {
		for i := 0; i < 6; i++ {
			origin := mockAirports[rng.Intn(len(mockAirports))]
			dest := mockAirports[rng.Intn(len(mockAirports))]
			if origin.iata == dest.iata {
				continue
			}
			dep := fmt.Sprintf("%02d%02d", 6+rng.Intn(16), rng.Intn(60))
			depDelay := fmt.Sprintf("%d", rng.Intn(90)-15)
			arrDelay := fmt.Sprintf("%d", rng.Intn(90)-20)
			if rng.Intn(20) == 0 { // cancelled: no actual delays
				depDelay, arrDelay = "", ""
			}
			tail := "N" + mockTails[rng.Intn(len(mockTails))].tail
			fmt.Fprintf(&b, "%04d-%02d-%02d,%s,%s,%s,%s,%s,%s,%s\n",
				year, int(month), day, carriers[rng.Intn(len(carriers))], tail,
				origin.iata, dest.iata, dep, depDelay, arrDelay)
		}
	}
	return b.String()
}

func registryCSV() string {
	var b strings.Builder
	b.WriteString("N-NUMBER,SERIAL NUMBER,MFR,MODEL\n")
	for _, t := range mockTails {
		fmt.Fprintf(&b, "%s,SN-%s,%s,%s\n", t.tail, t.tail, t.mfr, t.model)
	}
	return b.String()
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
