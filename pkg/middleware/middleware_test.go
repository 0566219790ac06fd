package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/autoshots/core/pkg/logger"
)

func TestCORS(t *testing.T) {
	called := false
	handler := CORS(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	tests := []struct {
		name       string
		method     string
		wantCalled bool
	}{
		{name: "preflight", method: http.MethodOptions, wantCalled: false},
		{name: "get", method: http.MethodGet, wantCalled: true},
		{name: "post", method: http.MethodPost, wantCalled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called = false
			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest(tt.method, "/add", nil))

			if called != tt.wantCalled {
				t.Errorf("next called = %v, want %v", called, tt.wantCalled)
			}
			if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
				t.Error("Missing Access-Control-Allow-Origin")
			}
		})
	}
}

func TestRequestID_GeneratesID(t *testing.T) {
	var inContext bool
	handler := RequestID(logger.Nop(), func(w http.ResponseWriter, r *http.Request) {
		_, inContext = r.Context().Value(logger.LoggerKey).(*logger.Logger)
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	id := rec.Header().Get(RequestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("Expected generated uuid, got %q", id)
	}
	if !inContext {
		t.Error("Expected request logger in context")
	}
}

func TestRequestID_KeepsValidIncomingID(t *testing.T) {
	handler := RequestID(logger.Nop(), func(w http.ResponseWriter, r *http.Request) {})
	incoming := uuid.New().String()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, incoming)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != incoming {
		t.Errorf("Expected %s echoed, got %s", incoming, got)
	}
}

func TestRequestID_ReplacesGarbage(t *testing.T) {
	handler := RequestID(logger.Nop(), func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got == "<script>" {
		t.Error("Invalid incoming id must be replaced")
	}
}
