package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onnwee/chat-relay/hub"
)

func TestMuxCorrelationHeader(t *testing.T) {
	// A 405 path exercises the full middleware chain without storage.
	mux := NewMux(context.Background(), nil, testConfig(), hub.New(), nil)

	req := httptest.NewRequest(http.MethodDelete, "/chat/api/messages", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Error("correlation id not generated")
	}

	req = httptest.NewRequest(http.MethodDelete, "/chat/api/messages", nil)
	req.Header.Set("X-Correlation-ID", "given-id")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Correlation-ID"); got != "given-id" {
		t.Errorf("correlation id = %q, want the caller's value echoed", got)
	}
}

func TestMuxUnknownRoute(t *testing.T) {
	mux := NewMux(context.Background(), nil, testConfig(), hub.New(), nil)
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
