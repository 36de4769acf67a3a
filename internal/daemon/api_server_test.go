package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"blackbox/internal/blackbox"
	"blackbox/internal/config"
	"blackbox/internal/events"
)

type statusStub struct {
	events    []events.MotionEvent
	jobs      []events.Job
	gotCamera int
	gotLimit  int
	gotStates []events.JobState
}

func (s *statusStub) Status(context.Context) Status {
	return Status{Running: true, Blackbox: blackbox.Status{ActiveCameras: 2}}
}

func (s *statusStub) Events(_ context.Context, cameraID, limit int) ([]events.MotionEvent, error) {
	s.gotCamera, s.gotLimit = cameraID, limit
	return s.events, nil
}

func (s *statusStub) Jobs(_ context.Context, limit int, states ...events.JobState) ([]events.Job, error) {
	s.gotLimit, s.gotStates = limit, states
	return s.jobs, nil
}

func testAPI(t *testing.T, token string, stub *statusStub) http.Handler {
	t.Helper()
	cfg := &config.Config{}
	cfg.API.Bind = "127.0.0.1:0"
	cfg.API.Token = token
	srv, err := newAPIServer(cfg, stub, nil)
	if err != nil || srv == nil {
		t.Fatalf("newAPIServer: %v", err)
	}
	return srv.server.Handler
}

func TestNewAPIServerDisabledWithoutBind(t *testing.T) {
	srv, err := newAPIServer(&config.Config{}, &statusStub{}, nil)
	if err != nil || srv != nil {
		t.Fatalf("expected disabled server, got %v, %v", srv, err)
	}
	srv.stop()
	if err := srv.start(context.Background()); err != nil {
		t.Fatalf("start on nil server: %v", err)
	}
}

func TestAPIServerStatus(t *testing.T) {
	handler := testAPI(t, "", &statusStub{})
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp Status
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Running || resp.Blackbox.ActiveCameras != 2 {
		t.Fatalf("unexpected status %+v", resp)
	}
}

func TestAPIServerEventsQuery(t *testing.T) {
	stub := &statusStub{events: []events.MotionEvent{{ID: "ev-1", CameraID: 1, Status: events.EventAccepted}}}
	handler := testAPI(t, "", stub)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events?camera=1&limit=5", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	if stub.gotCamera != 1 || stub.gotLimit != 5 {
		t.Fatalf("unexpected query camera=%d limit=%d", stub.gotCamera, stub.gotLimit)
	}
	var resp struct {
		Events []events.MotionEvent `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Events) != 1 || resp.Events[0].ID != "ev-1" {
		t.Fatalf("unexpected events %+v", resp.Events)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events?camera=x", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad camera, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	if stub.gotCamera != -1 || stub.gotLimit != defaultAPIListLimit {
		t.Fatalf("expected defaults, got camera=%d limit=%d", stub.gotCamera, stub.gotLimit)
	}
}

func TestAPIServerJobsStateFilter(t *testing.T) {
	stub := &statusStub{}
	handler := testAPI(t, "", stub)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs?state=failed&state=pending", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	if len(stub.gotStates) != 2 || stub.gotStates[0] != events.JobFailed {
		t.Fatalf("unexpected states %v", stub.gotStates)
	}
}

func TestAPIServerRejectsNonGet(t *testing.T) {
	handler := testAPI(t, "", &statusStub{})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/status", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestAPIServerRequiresToken(t *testing.T) {
	handler := testAPI(t, "secret", &statusStub{})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
}

func TestAPIServerEchoesRequestID(t *testing.T) {
	handler := testAPI(t, "", &statusStub{})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("X-Request-ID", "req-abc")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "req-abc" {
		t.Fatalf("X-Request-ID = %q, want req-abc", got)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if got := w.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Fatalf("expected generated uuid request id, got %q", got)
	}
}
