package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMetricsUseMatchedRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewHTTPMetrics("test", reg)

	r := chi.NewRouter()
	r.Use(HTTPObs{Metrics: metrics}.Middleware)
	r.Get("/orders/{orderID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/abc-123", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	// The counter must be labelled with the chi pattern, not the raw path.
	got := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues("GET", "/orders/{orderID}", "200"))
	if got != 1 {
		t.Fatalf("requests_total{route=/orders/{orderID}} = %v, want 1", got)
	}
	raw := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues("GET", "/orders/abc-123", "200"))
	if raw != 0 {
		t.Fatalf("raw path leaked into route label: %v", raw)
	}
}

func TestStatusRecorderCapturesWrites(t *testing.T) {
	rr := httptest.NewRecorder()
	rec := NewStatusRecorder(rr)
	rec.WriteHeader(http.StatusTeapot)
	if _, err := rec.Write([]byte("short and stout")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if rec.Status() != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Status())
	}
	if rec.BytesWritten() != int64(len("short and stout")) {
		t.Fatalf("bytes = %d", rec.BytesWritten())
	}
}
