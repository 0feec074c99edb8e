package observability_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"jetstay/internal/adapters/observability"
)

func TestMetricsRegistryAndHandler(t *testing.T) {
	reg := observability.InitRegistry()

	// record samples so the vectors are non-empty
	observability.ObserveHTTP("/test", "GET", 200, 12*time.Millisecond)
	observability.ObserveBooking("rooms", "confirmed", 3*time.Millisecond)
	observability.ObserveLockWait("room_type", time.Millisecond)

	mh := observability.MetricsHandler(reg)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	mh.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	out := string(body)
	for _, name := range []string{
		"jetstay_http_requests_total",
		`jetstay_booking_outcomes_total{domain="rooms",outcome="confirmed"}`,
		"jetstay_inventory_lock_wait_seconds",
	} {
		if !strings.Contains(out, name) {
			t.Fatalf("expected %s in output", name)
		}
	}
}

func TestInitRegistry_Idempotent(t *testing.T) {
	if observability.InitRegistry() != observability.InitRegistry() {
		t.Fatalf("expected the same registry on repeated calls")
	}
}

func TestLabelErr(t *testing.T) {
	if got := observability.LabelErr(nil); got != "none" {
		t.Fatalf("LabelErr(nil) = %q", got)
	}
	if got := observability.LabelErr(io.EOF); got != "*errors.errorString" {
		t.Fatalf("LabelErr(io.EOF) = %q", got)
	}
}
