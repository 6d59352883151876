package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ResolutionError reports that an identifier matched zero airports. This is
// unrecoverable for the run: without a resolved airport there is no unit of
// work.
type ResolutionError struct {
	Identifier string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("no airport candidates for %q", e.Identifier)
}

// AmbiguousAirportError reports that an identifier matched several airports
// and none with enough confidence to pick silently. The caller disambiguates
// by re-running with an explicit candidate index.
type AmbiguousAirportError struct {
	Identifier string
	Candidates []RankedAirport
}

func (e *AmbiguousAirportError) Error() string {
	names := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		names = append(names, fmt.Sprintf("%s (%s, %.2f)", c.Record.IATA, c.Record.Name, c.Confidence))
	}
	return fmt.Sprintf("ambiguous airport %q: candidates %s", e.Identifier, strings.Join(names, "; "))
}

// DecodeError reports that a station's observation stream was structurally
// unreadable. Individual malformed lines are skipped, not reported here.
type DecodeError struct {
	StationID string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode observations for station %s: %v", e.StationID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// SourceUnavailableError reports that every flight-data variant failed for
// the requested month.
type SourceUnavailableError struct {
	Year  int
	Month int
	Errs  []error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("no flight data available for %04d-%02d: %v", e.Year, e.Month, errors.Join(e.Errs...))
}

func (e *SourceUnavailableError) Unwrap() []error { return e.Errs }

// ErrNotFound is returned by fetch collaborators when the remote resource
// does not exist (e.g. no ISD-Lite file published for a station-year).
var ErrNotFound = errors.New("resource not found")
