// Package observability exposes harvest progress in Prometheus text format.
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/cruisecrawl/internal/fetcher"
	"github.com/IshaanNene/cruisecrawl/internal/types"
)

// StatsSource reports named harvest counters.
type StatsSource interface {
	Snapshot() map[string]int64
}

// Metrics tracks fetch-level counters and republishes harvest counters.
type Metrics struct {
	// Request metrics
	RequestsTotal       atomic.Int64
	RequestsFailed      atomic.Int64
	RequestsRateLimited atomic.Int64

	// Response metrics
	Responses2xx    atomic.Int64
	Responses4xx    atomic.Int64
	Responses5xx    atomic.Int64
	BytesDownloaded atomic.Int64

	mu      sync.RWMutex
	harvest StatsSource
	gauges  map[string]func() int64

	logger *slog.Logger
}

// harvestHelp describes the engine's counters. Unknown names get a generic line.
var harvestHelp = map[string]string{
	"pages":              "Ship listing pages harvested",
	"ships":              "Ship detail pages harvested",
	"ships_skipped":      "Ships skipped as already recorded",
	"ships_failed":       "Ships abandoned after a recoverable error",
	"voyages_stored":     "Voyages stored",
	"voyages_skipped":    "Voyages skipped as already processed",
	"voyages_failed":     "Voyages abandoned after a recoverable error",
	"rows_stored":        "Itinerary rows stored",
	"at_sea_rows":        "At Sea rows synthesized",
	"rows_dropped":       "Itinerary rows dropped by validation",
	"unparsed_fragments": "Date fragments that matched no grammar",
	"requests":           "Requests issued by the harvester",
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		gauges: make(map[string]func() int64),
		logger: logger.With("component", "metrics"),
	}
}

// Observe publishes the counters of src under the cruisecrawl_harvest_ prefix.
func (m *Metrics) Observe(src StatsSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.harvest = src
}

// Gauge registers a value sampled on every scrape.
func (m *Metrics) Gauge(name string, fn func() int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = fn
}

// RecordFetch counts one fetch attempt as seen by Instrument.
func (m *Metrics) RecordFetch(resp *types.Response, err error) {
	m.RequestsTotal.Add(1)
	if err != nil {
		m.RequestsFailed.Add(1)
		if errors.Is(err, types.ErrRateLimited) {
			m.RequestsRateLimited.Add(1)
		}
		var fe *types.FetchError
		if errors.As(err, &fe) {
			m.recordStatus(fe.StatusCode)
		}
		return
	}
	m.recordStatus(resp.StatusCode)
	m.BytesDownloaded.Add(int64(len(resp.Body)))
}

func (m *Metrics) recordStatus(code int) {
	switch {
	case code >= 500:
		m.Responses5xx.Add(1)
	case code >= 400:
		m.Responses4xx.Add(1)
	case code >= 200 && code < 300:
		m.Responses2xx.Add(1)
	}
}

type sample struct {
	name  string
	help  string
	kind  string
	value int64
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []sample{
		{"cruisecrawl_requests_total", "Total fetch attempts", "counter", m.RequestsTotal.Load()},
		{"cruisecrawl_requests_failed_total", "Total failed fetches", "counter", m.RequestsFailed.Load()},
		{"cruisecrawl_requests_rate_limited_total", "Total fetches refused with 429 or 503", "counter", m.RequestsRateLimited.Load()},
		{"cruisecrawl_responses_2xx_total", "Total 2xx responses", "counter", m.Responses2xx.Load()},
		{"cruisecrawl_responses_4xx_total", "Total 4xx responses", "counter", m.Responses4xx.Load()},
		{"cruisecrawl_responses_5xx_total", "Total 5xx responses", "counter", m.Responses5xx.Load()},
		{"cruisecrawl_bytes_downloaded_total", "Total bytes downloaded", "counter", m.BytesDownloaded.Load()},
	}

	m.mu.RLock()
	harvest := m.harvest
	gauges := make(map[string]func() int64, len(m.gauges))
	for k, v := range m.gauges {
		gauges[k] = v
	}
	m.mu.RUnlock()

	if harvest != nil {
		snap := harvest.Snapshot()
		for _, name := range sortedKeys(snap) {
			help, ok := harvestHelp[name]
			if !ok {
				help = "Harvest counter " + name
			}
			metrics = append(metrics, sample{"cruisecrawl_harvest_" + name + "_total", help, "counter", snap[name]})
		}
	}
	for _, name := range sortedKeys(gauges) {
		metrics = append(metrics, sample{"cruisecrawl_" + name, "Current " + name, "gauge", gauges[name]()})
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", metric.name, metric.kind)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// StartServer starts the metrics HTTP server in the background. The caller
// shuts it down with Shutdown.
func (m *Metrics) StartServer(port int, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return srv
}

// Snapshot returns the fetch metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"requests_total":        m.RequestsTotal.Load(),
		"requests_failed":       m.RequestsFailed.Load(),
		"requests_rate_limited": m.RequestsRateLimited.Load(),
		"responses_2xx":         m.Responses2xx.Load(),
		"responses_4xx":         m.Responses4xx.Load(),
		"responses_5xx":         m.Responses5xx.Load(),
		"bytes_downloaded":      m.BytesDownloaded.Load(),
	}
}

// Instrument wraps f so that every fetch is counted in m.
func Instrument(f fetcher.Fetcher, m *Metrics) fetcher.Fetcher {
	return &instrumented{next: f, metrics: m}
}

type instrumented struct {
	next    fetcher.Fetcher
	metrics *Metrics
}

func (i *instrumented) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	resp, err := i.next.Fetch(ctx, req)
	i.metrics.RecordFetch(resp, err)
	return resp, err
}

func (i *instrumented) Close() error { return i.next.Close() }

func (i *instrumented) Type() string { return i.next.Type() }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
