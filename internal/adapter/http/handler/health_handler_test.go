package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubPinger struct {
	name string
	err  error
}

func (p stubPinger) Name() string               { return p.name }
func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHealthHandler().Liveness(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected liveness 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	NewHealthHandler(stubPinger{name: "postgres"}, stubPinger{name: "redis"}).
		Readiness(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected readiness 200, got %d", rr.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["postgres"] != "ok" || body["redis"] != "ok" {
		t.Fatalf("unexpected readiness body %+v", body)
	}

	rr = httptest.NewRecorder()
	NewHealthHandler(stubPinger{name: "postgres"}, stubPinger{name: "redis", err: errors.New("down")}).
		Readiness(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected readiness 503, got %d", rr.Code)
	}
}
