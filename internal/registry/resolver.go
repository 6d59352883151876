// Package registry resolves aircraft tail numbers to manufacturer and model
// via a lazily loaded registry snapshot. Enrichment is best-effort: lookup
// misses and a completely unavailable snapshot both degrade to an unknown
// sentinel, never a failed run.
package registry

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/couchcryptid/flightwx-etl/internal/domain"
	"github.com/couchcryptid/flightwx-etl/internal/observability"
)

// SnapshotFetcher fetches the registry snapshot CSV stream (already
// extracted from its archive).
type SnapshotFetcher interface {
	FetchRegistry(ctx context.Context) (io.ReadCloser, error)
}

// Resolver performs cached tail-number lookups. Safe for concurrent use.
type Resolver struct {
	fetcher SnapshotFetcher
	logger  *slog.Logger
	metrics *observability.Metrics

	mu       sync.Mutex
	loaded   bool
	degraded bool
	byTail   map[string]domain.AircraftMetadata
}

// New creates a Resolver; the snapshot is fetched on first Resolve.
func New(fetcher SnapshotFetcher, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{fetcher: fetcher, logger: logger, metrics: metrics}
}

// Resolve returns metadata for a tail number. It never fails: registry
// misses and snapshot unavailability return the unknown sentinel.
func (r *Resolver) Resolve(ctx context.Context, tailNum string) domain.AircraftMetadata {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loaded {
		r.loadLocked(ctx)
	}
	if r.degraded {
		r.metrics.RegistryLookups.WithLabelValues("degraded").Inc()
		return domain.UnknownAircraft(tailNum)
	}

	meta, ok := r.byTail[normalizeTail(tailNum)]
	if !ok {
		r.metrics.RegistryLookups.WithLabelValues("miss").Inc()
		return domain.UnknownAircraft(tailNum)
	}
	r.metrics.RegistryLookups.WithLabelValues("hit").Inc()
	meta.TailNum = tailNum
	return meta
}

// loadLocked fetches and indexes the snapshot once. A failed fetch flips the
// resolver into degraded mode for the process lifetime rather than retrying
// per lookup against a source already known to be down.
func (r *Resolver) loadLocked(ctx context.Context) {
	r.loaded = true

	byTail, err := r.fetchSnapshot(ctx)
	if err != nil {
		r.degraded = true
		r.logger.Warn("aircraft registry unavailable, all tail numbers resolve unknown", "error", err)
		return
	}
	r.byTail = byTail
	r.logger.Info("aircraft registry loaded", "entries", len(byTail))
}

func (r *Resolver) fetchSnapshot(ctx context.Context) (map[string]domain.AircraftMetadata, error) {
	stream, err := r.fetcher.FetchRegistry(ctx)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	return parseSnapshot(stream)
}

// parseSnapshot reads the bulk export. The export is keyed by N-number
// (tail number without the leading "N") with manufacturer and model name
// columns; header names are matched case-insensitively.
func parseSnapshot(r io.Reader) (map[string]domain.AircraftMetadata, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read registry header: %w", err)
	}

	col := map[string]int{}
	for i, h := range header {
		col[strings.ToUpper(strings.TrimSpace(h))] = i
	}
	tailIdx, ok := firstColumn(col, "N-NUMBER", "N_NUMBER", "TAIL_NUM")
	if !ok {
		return nil, fmt.Errorf("registry snapshot missing tail-number column")
	}
	mfrIdx, ok := firstColumn(col, "MFR", "MANUFACTURER")
	if !ok {
		return nil, fmt.Errorf("registry snapshot missing manufacturer column")
	}
	modelIdx, ok := firstColumn(col, "MODEL", "MDL")
	if !ok {
		return nil, fmt.Errorf("registry snapshot missing model column")
	}

	byTail := map[string]domain.AircraftMetadata{}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read registry row: %w", err)
		}
		if tailIdx >= len(row) || mfrIdx >= len(row) || modelIdx >= len(row) {
			continue
		}

		tail := normalizeTail(row[tailIdx])
		if tail == "" {
			continue
		}
		byTail[tail] = domain.AircraftMetadata{
			Manufacturer: strings.TrimSpace(row[mfrIdx]),
			Model:        strings.TrimSpace(row[modelIdx]),
			Known:        true,
		}
	}
	return byTail, nil
}

func firstColumn(col map[string]int, names ...string) (int, bool) {
	for _, n := range names {
		if i, ok := col[n]; ok {
			return i, true
		}
	}
	return 0, false
}

// normalizeTail upper-cases and strips the "N" registration prefix so BTS
// tail numbers ("N123AA") match registry N-numbers ("123AA").
func normalizeTail(tail string) string {
	tail = strings.ToUpper(strings.TrimSpace(tail))
	return strings.TrimPrefix(tail, "N")
}
