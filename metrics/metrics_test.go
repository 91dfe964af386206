package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("/intermodal", "forwarded")
	m.ObserveUpstream("/intermodal", 200, time.Second)
	m.TrackInFlight()()
	m.RegisterRateTableSize(func() int { return 1 })
	assert.Nil(t, m.Registry())

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetrics_CountsRequests(t *testing.T) {
	m := New()
	m.ObserveRequest("/intermodal", "forwarded")
	m.ObserveRequest("/intermodal", "forwarded")
	m.ObserveRequest("", "invalid")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("/intermodal", "forwarded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("none", "invalid")))
}

func TestMetrics_InFlight(t *testing.T) {
	m := New()
	done := m.TrackInFlight()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InFlight))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlight))
}

func TestMetrics_HandlerExposesSeries(t *testing.T) {
	m := New()
	m.RegisterRateTableSize(func() int { return 7 })
	m.ObserveUpstream("/guesser", 0, 30*time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.True(t, strings.Contains(body, "transit_gateway_ratelimit_tracked_clients 7"), body)
	assert.Contains(t, body, `transit_gateway_upstream_duration_seconds_count{capability="/guesser",code="error"} 1`)
}
