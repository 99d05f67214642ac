// Package metrics aggregates probe outcomes and latency distributions for
// the diagnostics endpoint.
package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/streamlens/streamlens/internal/store"
)

// Collector records per-probe metrics in a thread-safe manner.
type Collector struct {
	mu         sync.Mutex
	hist       *hdrhistogram.Histogram
	byStatus   map[store.Status]int64
	events     int64
	discovered int64
	minLatency time.Duration
	maxLatency time.Duration
	sumLatency time.Duration
	start      time.Time
}

// Snapshot is a point-in-time aggregate.
type Snapshot struct {
	Probes         int64                  `json:"probes"`
	ByStatus       map[store.Status]int64 `json:"byStatus,omitempty"`
	EventsObserved int64                  `json:"eventsObserved"`
	Discovered     int64                  `json:"discovered"`
	UptimeMs       float64                `json:"uptime_ms"`

	MinLatencyMs  float64 `json:"min_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms"`
	MeanLatencyMs float64 `json:"mean_latency_ms"`
	P50LatencyMs  float64 `json:"p50_latency_ms"`
	P90LatencyMs  float64 `json:"p90_latency_ms"`
	P99LatencyMs  float64 `json:"p99_latency_ms"`
}

func NewCollector() *Collector {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	h := hdrhistogram.New(1, 60_000_000, 3)
	return &Collector{
		hist:     h,
		byStatus: make(map[store.Status]int64),
		start:    time.Now(),
	}
}

// ObserveProbe records one finished probe.
func (c *Collector) ObserveProbe(status store.Status, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elapsed > 0 {
		us := elapsed.Microseconds()
		if us < c.hist.LowestTrackableValue() {
			us = c.hist.LowestTrackableValue()
		}
		if us > c.hist.HighestTrackableValue() {
			us = c.hist.HighestTrackableValue()
		}
		_ = c.hist.RecordValue(us)
	}
	c.sumLatency += elapsed

	if c.minLatency == 0 || elapsed < c.minLatency {
		c.minLatency = elapsed
	}
	if elapsed > c.maxLatency {
		c.maxLatency = elapsed
	}
	c.byStatus[status]++
}

// ObserveEvent counts one lifecycle event ingested from the browser.
func (c *Collector) ObserveEvent() {
	c.mu.Lock()
	c.events++
	c.mu.Unlock()
}

// ObserveDiscovery counts one URL surfaced by the in-page extractor.
func (c *Collector) ObserveDiscovery() {
	c.mu.Lock()
	c.discovered++
	c.mu.Unlock()
}

// Snapshot computes current aggregates.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64
	for _, n := range c.byStatus {
		total += n
	}

	snap := Snapshot{
		Probes:         total,
		EventsObserved: c.events,
		Discovered:     c.discovered,
		UptimeMs:       float64(time.Since(c.start)) / float64(time.Millisecond),
		MinLatencyMs:   float64(c.minLatency) / float64(time.Millisecond),
		MaxLatencyMs:   float64(c.maxLatency) / float64(time.Millisecond),
	}
	if total > 0 {
		snap.MeanLatencyMs = float64(c.sumLatency) / float64(total) / float64(time.Millisecond)
	}
	if c.hist.TotalCount() > 0 {
		snap.P50LatencyMs = float64(c.hist.ValueAtQuantile(50)) / 1000
		snap.P90LatencyMs = float64(c.hist.ValueAtQuantile(90)) / 1000
		snap.P99LatencyMs = float64(c.hist.ValueAtQuantile(99)) / 1000
	}
	if len(c.byStatus) > 0 {
		snap.ByStatus = make(map[store.Status]int64, len(c.byStatus))
		for k, v := range c.byStatus {
			snap.ByStatus[k] = v
		}
	}
	return snap
}
