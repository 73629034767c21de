package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHandlerExposesCounters(t *testing.T) {
	SamplesTotal.WithLabelValues("accepted").Inc()
	BrakeEventsTotal.Inc()

	app := fiber.New()
	app.Get("/metrics", Handler())

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatalf("metrics request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "carbondrive_samples_total") {
		t.Fatalf("expected samples counter in exposition")
	}
	if !strings.Contains(string(body), "carbondrive_brake_events_total") {
		t.Fatalf("expected brake counter in exposition")
	}
}

func TestCounterIncrements(t *testing.T) {
	before := testutil.ToFloat64(SessionsTotal.WithLabelValues("started", "car"))
	SessionsTotal.WithLabelValues("started", "car").Inc()
	after := testutil.ToFloat64(SessionsTotal.WithLabelValues("started", "car"))
	if after-before != 1 {
		t.Fatalf("expected counter to increase by one, got %v", after-before)
	}
}
