package metrics

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/leeforge/recipemedia/json"
)

const historySize = 100

// Collector is an in-process metric store keyed by name and label set.
type Collector struct {
	metrics map[string]*Metric
	mu      sync.RWMutex
}

// Metric is one series.
type Metric struct {
	Name      string            `json:"name"`
	Type      string            `json:"type"`
	Value     float64           `json:"value"`
	Count     int64             `json:"count,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
	History   []float64         `json:"history,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

func NewCollector() *Collector {
	return &Collector{
		metrics: make(map[string]*Metric),
	}
}

// IncCounter adds one to a counter.
func (c *Collector) IncCounter(name string, labels map[string]string) {
	c.AddCounter(name, 1, labels)
}

func (c *Collector) AddCounter(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.series(name, "counter", labels)
	m.Value += value
	m.Timestamp = time.Now().Unix()
}

func (c *Collector) SetGauge(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.series(name, "gauge", labels)
	m.Value = value
	m.Timestamp = time.Now().Unix()
}

// ObserveHistogram records value; Value holds the running sum and History
// the most recent observations.
func (c *Collector) ObserveHistogram(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.series(name, "histogram", labels)
	m.Value += value
	m.Count++
	m.History = append(m.History, value)
	if len(m.History) > historySize {
		m.History = m.History[1:]
	}
	m.Timestamp = time.Now().Unix()
}

// RecordRequest records one served HTTP request.
func (c *Collector) RecordRequest(method, route string, status int, duration float64) {
	labels := map[string]string{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	c.IncCounter("http_requests_total", labels)
	c.ObserveHistogram("http_request_duration_seconds", duration, map[string]string{"route": route})
}

// series returns the metric for name and labels, creating it. Callers hold
// the write lock.
func (c *Collector) series(name, typ string, labels map[string]string) *Metric {
	key := buildKey(name, labels)
	if m, ok := c.metrics[key]; ok {
		return m
	}
	m := &Metric{Name: name, Type: typ, Labels: copyLabels(labels)}
	c.metrics[key] = m
	return m
}

// buildKey renders name{k=v,...} with labels sorted by key.
func buildKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	b.WriteByte('}')
	return b.String()
}

func copyLabels(labels map[string]string) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

// GetMetrics returns a snapshot of every series keyed by series key.
func (c *Collector) GetMetrics() map[string]Metric {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]Metric, len(c.metrics))
	for k, v := range c.metrics {
		m := *v
		m.History = append([]float64(nil), v.History...)
		result[k] = m
	}
	return result
}

// GetMetric returns a snapshot of one series.
func (c *Collector) GetMetric(name string, labels map[string]string) (Metric, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.metrics[buildKey(name, labels)]
	if !ok {
		return Metric{}, false
	}
	out := *m
	out.History = append([]float64(nil), m.History...)
	return out, true
}

func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = make(map[string]*Metric)
}

// Middleware records every request. route labels the request so path
// parameters do not explode the series count.
func (c *Collector) Middleware(route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			name := r.URL.Path
			if route != nil {
				if rt := route(r); rt != "" {
					name = rt
				}
			}
			c.RecordRequest(r.Method, name, ww.statusCode, time.Since(start).Seconds())
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Handler serves the snapshot as JSON.
func (c *Collector) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(c.GetMetrics())
	})
}
