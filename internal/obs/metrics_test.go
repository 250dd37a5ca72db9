package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                 "/",
		"/metrics":                         "/metrics",
		"/v1/assets/42":                    "/v1/assets/:id",
		"/v1/assets/42/records":            "/v1/assets/:id/records",
		"/v1/records/7/approve":            "/v1/records/:id/approve",
		"/v1/records/7/materials?limit=10": "/v1/records/:id/materials",
		"/v1/assets/abc":                   "/v1/assets/abc",
		"/v1/audit":                        "/v1/audit",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestObserveTransitionCounts(t *testing.T) {
	before := testutil.ToFloat64(stageTransitions.WithLabelValues("approve", "quality_report"))
	ObserveTransition("approve", "quality_report")
	after := testutil.ToFloat64(stageTransitions.WithLabelValues("approve", "quality_report"))
	if after-before != 1 {
		t.Fatalf("expected counter to grow by 1, got %v", after-before)
	}
}

func TestInstrumentPassesThroughStatus(t *testing.T) {
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/assets/3", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/v1/assets/:id", "418"))
	if got < 1 {
		t.Fatalf("request not counted under canonical path")
	}
}
