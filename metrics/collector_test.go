package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterLabelOrderIsIrrelevant(t *testing.T) {
	c := NewCollector()
	c.IncCounter("media_pipeline_calls_total", map[string]string{"backend": "bitmap", "success": "true"})
	c.IncCounter("media_pipeline_calls_total", map[string]string{"success": "true", "backend": "bitmap"})

	m, ok := c.GetMetric("media_pipeline_calls_total", map[string]string{"backend": "bitmap", "success": "true"})
	require.True(t, ok)
	assert.Equal(t, "counter", m.Type)
	assert.Equal(t, 2.0, m.Value)
	assert.Len(t, c.GetMetrics(), 1)
	assert.Contains(t, c.GetMetrics(), "media_pipeline_calls_total{backend=bitmap,success=true}")
}

func TestHistogramKeepsSumAndRecentHistory(t *testing.T) {
	c := NewCollector()
	for i := 1; i <= historySize+5; i++ {
		c.ObserveHistogram("media_derivative_bytes", float64(i), nil)
	}

	m, ok := c.GetMetric("media_derivative_bytes", nil)
	require.True(t, ok)
	assert.EqualValues(t, historySize+5, m.Count)
	assert.Len(t, m.History, historySize)
	assert.Equal(t, 6.0, m.History[0])
	n := float64(historySize + 5)
	assert.Equal(t, n*(n+1)/2, m.Value)
}

func TestSnapshotIsDetached(t *testing.T) {
	c := NewCollector()
	labels := map[string]string{"preset": "banner"}
	c.ObserveHistogram("h", 1, labels)
	labels["preset"] = "mutated"

	snap := c.GetMetrics()
	c.ObserveHistogram("h", 2, map[string]string{"preset": "banner"})

	assert.Len(t, snap["h{preset=banner}"].History, 1)
	m, _ := c.GetMetric("h", map[string]string{"preset": "banner"})
	assert.Equal(t, "banner", m.Labels["preset"])
}

func TestConcurrentUpdates(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.IncCounter("calls", nil)
			c.SetGauge("last", 1, nil)
		}()
	}
	wg.Wait()

	m, _ := c.GetMetric("calls", nil)
	assert.Equal(t, 50.0, m.Value)
}

func TestMiddlewareAndHandler(t *testing.T) {
	c := NewCollector()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	h := c.Middleware(func(*http.Request) string { return "/images" })(next)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/images", nil))

	m, ok := c.GetMetric("http_requests_total", map[string]string{"method": "POST", "route": "/images", "status": "201"})
	require.True(t, ok)
	assert.Equal(t, 1.0, m.Value)

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var out map[string]Metric
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Contains(t, out, "http_request_duration_seconds{route=/images}")
}
