package tracking

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"backend-carbondrive/internal/emission"
	"backend-carbondrive/internal/location"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

func passThrough(c *fiber.Ctx) error { return c.Next() }

// asUser stands in for the JWT middleware.
func asUser(id string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", id)
		return c.Next()
	}
}

func newTestApp(svc *Service, mw fiber.Handler) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app.Group("/tracking"), svc, mw)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func TestTrackingHandlers(t *testing.T) {
	svc := NewService(Deps{Reconciler: haversineReconciler(), Logger: zerolog.Nop()})
	app := newTestApp(svc, asUser("user-1"))

	samples := track(60_000, 500, 500, 500, 500)
	resp := doJSON(t, app, http.MethodPost, "/tracking/sessions", map[string]any{
		"user_id":        "user-1",
		"transport_mode": "walking",
		"first_fix":      samples[0],
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start session status: %d", resp.StatusCode)
	}
	var started Session
	if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if started.ID == "" || started.State != StateActive {
		t.Fatalf("unexpected session %+v", started)
	}

	path := "/tracking/sessions/" + started.ID
	resp = doJSON(t, app, http.MethodPost, path+"/samples", samples[1:3])
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("push samples status: %d", resp.StatusCode)
	}
	resp = doJSON(t, app, http.MethodPost, path+"/samples", samples[3])
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("push single sample status: %d", resp.StatusCode)
	}

	resp = doJSON(t, app, http.MethodPost, path+"/telemetry", map[string]any{
		"data": []map[string]any{
			{"timestamp_ms": samples[1].TimestampMs, "speed_kmh": 30, "maf_gs": 5},
			{"timestamp_ms": samples[2].TimestampMs, "speed_kmh": 30, "maf_gs": 5},
		},
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("push telemetry status: %d", resp.StatusCode)
	}

	resp = doJSON(t, app, http.MethodGet, path, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get live session status: %d", resp.StatusCode)
	}
	var live Session
	if err := json.NewDecoder(resp.Body).Decode(&live); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if live.TelemetryCount != 2 || live.MeasuredFuelL <= 0 {
		t.Fatalf("expected telemetry applied, got %+v", live)
	}

	resp = doJSON(t, app, http.MethodPost, path+"/stop", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop status: %d", resp.StatusCode)
	}
	var stopped StopResult
	if err := json.NewDecoder(resp.Body).Decode(&stopped); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stopped.Warning != "" || stopped.Session.State != StateFinalized {
		t.Fatalf("unexpected stop result %+v", stopped)
	}
	if len(stopped.Session.Waypoints) != 4 {
		t.Fatalf("expected 4 waypoints, got %d", len(stopped.Session.Waypoints))
	}

	resp = doJSON(t, app, http.MethodPost, path+"/stop", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second stop status: %d", resp.StatusCode)
	}
	resp = doJSON(t, app, http.MethodPost, path+"/samples", samples[4])
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("push after stop status: %d", resp.StatusCode)
	}
}

func TestTrackingHandlersUserFromToken(t *testing.T) {
	svc := NewService(Deps{Logger: zerolog.Nop()})
	app := newTestApp(svc, func(c *fiber.Ctx) error {
		c.Locals("user_id", "from-token")
		return c.Next()
	})

	resp := doJSON(t, app, http.MethodPost, "/tracking/sessions", map[string]any{"transport_mode": "car"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start status: %d", resp.StatusCode)
	}
	var s Session
	_ = json.NewDecoder(resp.Body).Decode(&s)
	if s.UserID != "from-token" {
		t.Fatalf("expected user from token, got %q", s.UserID)
	}

	resp = doJSON(t, app, http.MethodDelete, "/tracking/sessions/"+s.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("reset status: %d", resp.StatusCode)
	}
}

func TestTrackingHandlersSessionOwnership(t *testing.T) {
	svc := NewService(Deps{Logger: zerolog.Nop()})
	alice := newTestApp(svc, asUser("alice"))
	bob := newTestApp(svc, asUser("bob"))

	resp := doJSON(t, alice, http.MethodPost, "/tracking/sessions", map[string]any{"user_id": "mallory", "transport_mode": "bicycle"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for a body user other than the caller, got %d", resp.StatusCode)
	}
	if len(svc.sessions) != 0 {
		t.Fatalf("rejected start must not register a session")
	}

	resp = doJSON(t, newTestApp(svc, passThrough), http.MethodPost, "/tracking/sessions", map[string]any{"user_id": "alice", "transport_mode": "bicycle"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a caller, got %d", resp.StatusCode)
	}

	resp = doJSON(t, alice, http.MethodPost, "/tracking/sessions", map[string]any{"transport_mode": "bicycle"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start status: %d", resp.StatusCode)
	}
	var s Session
	_ = json.NewDecoder(resp.Body).Decode(&s)
	path := "/tracking/sessions/" + s.ID

	for _, tc := range []struct {
		method, path string
		body         any
	}{
		{http.MethodPost, path + "/samples", track(1000, 30)},
		{http.MethodPost, path + "/telemetry", map[string]any{"timestamp_ms": 1, "speed_kmh": 10}},
		{http.MethodPost, path + "/stop", nil},
		{http.MethodDelete, path, nil},
	} {
		resp := doJSON(t, bob, tc.method, tc.path, tc.body)
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("%s %s by another user: expected 403, got %d", tc.method, tc.path, resp.StatusCode)
		}
	}

	resp = doJSON(t, alice, http.MethodDelete, path, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("owner reset status: %d", resp.StatusCode)
	}
}

func TestTrackingHandlersBadRequest(t *testing.T) {
	app := newTestApp(NewService(Deps{Logger: zerolog.Nop()}), asUser("u"))

	cases := []struct {
		name string
		body any
	}{
		{"missing mode", map[string]any{"user_id": "u"}},
		{"unknown mode", map[string]any{"user_id": "u", "transport_mode": "rocket"}},
	}
	for _, tc := range cases {
		resp := doJSON(t, app, http.MethodPost, "/tracking/sessions", tc.body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, resp.StatusCode)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/tracking/sessions/x/samples", bytes.NewReader([]byte(`{bad`)))
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed samples, got %d", resp.StatusCode)
	}

	resp = doJSON(t, app, http.MethodPost, "/tracking/sessions/missing/samples", []any{})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", resp.StatusCode)
	}
	resp = doJSON(t, app, http.MethodDelete, "/tracking/sessions/missing", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 reset, got %d", resp.StatusCode)
	}
	resp = doJSON(t, app, http.MethodGet, "/tracking/sessions/missing", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 get, got %d", resp.StatusCode)
	}
}

func TestHTTPErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{ErrSessionNotFound, fiber.StatusNotFound},
		{ErrSessionForbidden, fiber.StatusForbidden},
		{fmt.Errorf("%w: stop while idle", ErrInvalidStateTransition), fiber.StatusConflict},
		{fmt.Errorf("%w: gps off", location.ErrLocationUnavailable), fiber.StatusUnprocessableEntity},
		{emission.ErrUnknownMode, fiber.StatusBadRequest},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		var fe *fiber.Error
		if !errors.As(httpError(tc.err), &fe) || fe.Code != tc.code {
			t.Fatalf("%v: expected %d, got %v", tc.err, tc.code, fe)
		}
	}
}

func TestParseSamples(t *testing.T) {
	if _, err := parseSamples([]byte("  ")); err == nil {
		t.Fatalf("expected error for empty body")
	}
	one, err := parseSamples([]byte(`{"lat":1,"lng":2,"timestamp_ms":3}`))
	if err != nil || len(one) != 1 || one[0].TimestampMs != 3 {
		t.Fatalf("unexpected single parse %v %v", one, err)
	}
	many, err := parseSamples([]byte(` [{"lat":1,"lng":2,"timestamp_ms":3},{"lat":1,"lng":2,"timestamp_ms":4}]`))
	if err != nil || len(many) != 2 {
		t.Fatalf("unexpected array parse %v %v", many, err)
	}
}

func TestParseTelemetry(t *testing.T) {
	if _, err := parseTelemetry(nil); err == nil {
		t.Fatalf("expected error for empty body")
	}
	one, err := parseTelemetry([]byte(`{"timestamp_ms":5,"speed_kmh":40,"rpm":2100,"maf_gs":8.5}`))
	if err != nil || len(one) != 1 || one[0].MAFGs != 8.5 || one[0].RPM != 2100 {
		t.Fatalf("unexpected single parse %v %v", one, err)
	}
	many, err := parseTelemetry([]byte(`[{"timestamp_ms":5},{"timestamp_ms":6}]`))
	if err != nil || len(many) != 2 {
		t.Fatalf("unexpected array parse %v %v", many, err)
	}
	batch, err := parseTelemetry([]byte(`{"data":[{"timestamp_ms":5},{"timestamp_ms":6},{"timestamp_ms":7}]}`))
	if err != nil || len(batch) != 3 || batch[2].TimestampMs != 7 {
		t.Fatalf("unexpected batch parse %v %v", batch, err)
	}
}
