package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from metrics handler, got %d", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestRegistry_ExposesHTTPAndRuntimeMetrics(t *testing.T) {
	r := NewRegistry()
	RecordHTTPMetrics(http.MethodGet, "/injuries", http.StatusOK, 10*time.Millisecond)

	body := scrape(t, r)
	for _, want := range []string{
		"injurystore_http_requests_total",
		"injurystore_http_request_duration_seconds",
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s in scrape output", want)
		}
	}
}

func TestRegistry_ExtraCollectors(t *testing.T) {
	custom := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "injurystore_test_extra_total",
		Help: "test counter",
	})
	custom.Inc()
	r := NewRegistry(custom)

	if !strings.Contains(scrape(t, r), "injurystore_test_extra_total 1") {
		t.Fatal("expected extra collector in scrape output")
	}
	if err := r.Register(custom); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestRegistry_InstancesAreIndependent(t *testing.T) {
	custom := prometheus.NewGauge(prometheus.GaugeOpts{Name: "injurystore_test_gauge", Help: "test"})
	first := NewRegistry(custom)
	second := NewRegistry()

	if count, err := testutil.GatherAndCount(first.Gatherer(), "injurystore_test_gauge"); err != nil || count != 1 {
		t.Fatalf("expected gauge in first registry, count=%d err=%v", count, err)
	}
	if count, err := testutil.GatherAndCount(second.Gatherer(), "injurystore_test_gauge"); err != nil || count != 0 {
		t.Fatalf("expected no gauge in second registry, count=%d err=%v", count, err)
	}
}

func TestRecordHTTPMetrics_Counts(t *testing.T) {
	counter := httpRequestsTotal.WithLabelValues(http.MethodDelete, "/injuries/:id", "200")
	before := testutil.ToFloat64(counter)

	RecordHTTPMetrics(http.MethodDelete, "/injuries/:id", http.StatusOK, time.Millisecond)
	RecordHTTPMetrics(http.MethodDelete, "/injuries/:id", http.StatusOK, time.Millisecond)

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Fatalf("expected 2 recorded requests, got %v", got)
	}
}

func TestRecordHTTPMetrics_UnmatchedRoute(t *testing.T) {
	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
	before := testutil.ToFloat64(counter)
	RecordHTTPMetrics(http.MethodGet, "", http.StatusNotFound, time.Millisecond)
	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Fatalf("expected unmatched route label, got delta %v", got)
	}
}

func TestInFlightGauge(t *testing.T) {
	before := testutil.ToFloat64(httpRequestsInFlight)
	IncrementInFlight()
	if got := testutil.ToFloat64(httpRequestsInFlight) - before; got != 1 {
		t.Fatalf("expected in-flight +1, got %v", got)
	}
	DecrementInFlight()
	if got := testutil.ToFloat64(httpRequestsInFlight) - before; got != 0 {
		t.Fatalf("expected in-flight back to baseline, got %v", got)
	}
}
