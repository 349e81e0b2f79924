package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	pipe := NewPipelineMetrics(reg)
	pipe.IncPublished("sent")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "outbox_events_published_total") {
		t.Fatalf("expected pipeline counter in scrape output; body=%s", rec.Body.String())
	}
}

func TestHandlerOnlyExposesMetricsPath(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler(prometheus.NewRegistry()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for non-metrics path, got %d", rec.Code)
	}
}
