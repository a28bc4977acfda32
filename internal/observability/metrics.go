package observability

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// MetricType identifies the kind of metric.
type MetricType string

const (
	MetricCounter MetricType = "counter"
	MetricGauge   MetricType = "gauge"
)

// MetricEntry represents a single metric value.
type MetricEntry struct {
	Name      string     `json:"name"`
	Type      MetricType `json:"type"`
	Help      string     `json:"help"`
	Value     float64    `json:"value"`
	Timestamp time.Time  `json:"ts"`
}

// -----------------------------------------------------------------------
// Counter
// -----------------------------------------------------------------------

// Counter is a monotonically increasing event counter.
type Counter struct {
	name  string
	help  string
	value atomic.Int64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	c.value.Add(1)
}

// Add increments the counter by delta. Delta must be >= 0.
func (c *Counter) Add(delta int64) {
	if delta < 0 {
		return
	}
	c.value.Add(delta)
}

// Value returns the current counter value.
func (c *Counter) Value() int64 {
	return c.value.Load()
}

// Entry returns a MetricEntry snapshot.
func (c *Counter) Entry() MetricEntry {
	return MetricEntry{
		Name:      c.name,
		Type:      MetricCounter,
		Help:      c.help,
		Value:     float64(c.Value()),
		Timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------
// Gauge
// -----------------------------------------------------------------------

// Gauge can go up and down.
type Gauge struct {
	name  string
	help  string
	mu    sync.Mutex
	value float64
}

// Set sets the gauge to the given value.
func (g *Gauge) Set(v float64) {
	g.mu.Lock()
	g.value = v
	g.mu.Unlock()
}

// Inc increments the gauge by 1.
func (g *Gauge) Inc() {
	g.mu.Lock()
	g.value++
	g.mu.Unlock()
}

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() {
	g.mu.Lock()
	g.value--
	g.mu.Unlock()
}

// Value returns the current gauge value.
func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// Entry returns a MetricEntry snapshot.
func (g *Gauge) Entry() MetricEntry {
	return MetricEntry{
		Name:      g.name,
		Type:      MetricGauge,
		Help:      g.help,
		Value:     g.Value(),
		Timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------

// Registry manages all metrics. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	gauges   map[string]*Gauge
}

// NewRegistry creates an empty metric registry.
func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
	}
}

// NewCounter registers and returns a new counter metric.
// If a counter with the same name already exists, the existing one is returned.
func (r *Registry) NewCounter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.counters[name]; ok {
		return existing
	}
	c := &Counter{name: name, help: help}
	r.counters[name] = c
	return c
}

// NewGauge registers and returns a new gauge metric.
// If a gauge with the same name already exists, the existing one is returned.
func (r *Registry) NewGauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.gauges[name]; ok {
		return existing
	}
	g := &Gauge{name: name, help: help}
	r.gauges[name] = g
	return g
}

// GetCounter returns a registered counter or nil.
func (r *Registry) GetCounter(name string) *Counter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[name]
}

// GetGauge returns a registered gauge or nil.
func (r *Registry) GetGauge(name string) *Gauge {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gauges[name]
}

// AllMetrics returns a snapshot of all registered metric entries,
// sorted by name for deterministic output.
func (r *Registry) AllMetrics() []MetricEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]MetricEntry, 0, len(r.counters)+len(r.gauges))
	for _, name := range sortedKeys(r.counters) {
		entries = append(entries, r.counters[name].Entry())
	}
	for _, name := range sortedKeys(r.gauges) {
		entries = append(entries, r.gauges[name].Entry())
	}
	return entries
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// -----------------------------------------------------------------------
// Pre-configured engine metrics
// -----------------------------------------------------------------------

// Metrics bundles the standard counters and gauges the engine reports.
type Metrics struct {
	Registry *Registry

	Detections         *Counter
	BuysSubmitted      *Counter
	BuysFailed         *Counter
	SellsSubmitted     *Counter
	SellsFailed        *Counter
	TransfersSubmitted *Counter
	TransfersFailed    *Counter

	SniperRunning     *Gauge
	WalletsRegistered *Gauge
	WatchedContracts  *Gauge
}

// NewMetrics creates a registry pre-populated with the engine metrics.
func NewMetrics() *Metrics {
	r := NewRegistry()
	return &Metrics{
		Registry: r,

		Detections:         r.NewCounter("volley_detections_total", "Tradable contracts detected"),
		BuysSubmitted:      r.NewCounter("volley_buys_submitted_total", "Buy orders submitted"),
		BuysFailed:         r.NewCounter("volley_buys_failed_total", "Buy orders failed"),
		SellsSubmitted:     r.NewCounter("volley_sells_submitted_total", "Sell orders submitted"),
		SellsFailed:        r.NewCounter("volley_sells_failed_total", "Sell orders failed"),
		TransfersSubmitted: r.NewCounter("volley_transfers_submitted_total", "Fund transfers submitted"),
		TransfersFailed:    r.NewCounter("volley_transfers_failed_total", "Fund transfers failed"),

		SniperRunning:     r.NewGauge("volley_sniper_running", "1 while a sniping run is active"),
		WalletsRegistered: r.NewGauge("volley_wallets_registered", "Registered trading wallets"),
		WatchedContracts:  r.NewGauge("volley_watched_contracts", "Contracts on the watchlist"),
	}
}
