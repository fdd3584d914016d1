package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestMetricsRegistered verifies that every collector is registered and
// gatherable once observed.
func TestMetricsRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveAdd(time.Millisecond, 1, nil)
	m.ObserveDelete(nil)
	m.ObserveQuery(time.Millisecond, 3, nil)
	m.RequestsTotal.WithLabelValues("GET", "/health", "2xx").Inc()
	m.RequestDuration.WithLabelValues("GET", "/health").Observe(0.1)
	m.RateLimitRejectedTotal.Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}

	expected := map[string]bool{
		"smolvec_adds_total":                    false,
		"smolvec_add_duration_seconds":          false,
		"smolvec_deletes_total":                 false,
		"smolvec_queries_total":                 false,
		"smolvec_query_duration_seconds":        false,
		"smolvec_records_scanned_total":         false,
		"smolvec_http_requests_total":           false,
		"smolvec_http_request_duration_seconds": false,
		"smolvec_ratelimit_rejected_total":      false,
	}
	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("metric %q not found in registry", name)
		}
	}
}

func TestRecorderOutcomes(t *testing.T) {
	m := NewMetrics(nil)

	m.ObserveQuery(time.Millisecond, 10, nil)
	m.ObserveQuery(time.Millisecond, 4, errors.New("boom"))
	m.ObserveAdd(time.Millisecond, 1, errors.New("boom"))
	m.ObserveAdd(time.Millisecond, 25, nil)

	if got := testutil.ToFloat64(m.QueriesTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok queries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.QueriesTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("failed queries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RecordsScannedTotal); got != 14 {
		t.Errorf("records scanned = %v, want 14", got)
	}
	if got := testutil.ToFloat64(m.AddsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("failed adds = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.AddsTotal.WithLabelValues("ok")); got != 25 {
		t.Errorf("batch adds = %v, want 25", got)
	}
	if got := testutil.CollectAndCount(m.AddDuration); got != 1 {
		t.Errorf("add duration series = %v, want 1", got)
	}
}

// TestMiddlewareRecordsRouteTemplate verifies that requests are labelled by
// the matched route template rather than the raw path.
func TestMiddlewareRecordsRouteTemplate(t *testing.T) {
	m := NewMetrics(nil)

	router := mux.NewRouter()
	router.Use(m.Middleware)
	router.HandleFunc("/vectors/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods("GET")

	for _, id := range []string{"a", "b", "c"} {
		req := httptest.NewRequest("GET", "/vectors/"+id, nil)
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/vectors/{id}", "4xx")); got != 3 {
		t.Errorf("expected 3 requests for route template, got %v", got)
	}
	if n := testutil.CollectAndCount(m.RequestDuration); n != 1 {
		t.Errorf("expected a single duration series, got %d", n)
	}
}

// TestMiddlewareDefaultStatus verifies that handlers which only write a body
// are counted as 2xx.
func TestMiddlewareDefaultStatus(t *testing.T) {
	m := NewMetrics(nil)

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unmatched", "2xx")); got != 1 {
		t.Errorf("expected 1 unmatched 2xx request, got %v", got)
	}
}
