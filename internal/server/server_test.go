package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pagelapse/pagelapse/internal/loop"
)

type mockLoop struct {
	status loop.Status
	frame  []byte
	events chan loop.Event
}

func (m *mockLoop) Status() loop.Status       { return m.status }
func (m *mockLoop) LatestFrame() []byte       { return m.frame }
func (m *mockLoop) Events() <-chan loop.Event { return m.events }

func newMockLoop() *mockLoop {
	return &mockLoop{
		status: loop.Status{URL: "https://example.com", SegmentLen: 3, DupRun: 1},
		events: make(chan loop.Event),
	}
}

func TestHandleStatus(t *testing.T) {
	srv := New(newMockLoop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got loop.Status
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.URL != "https://example.com" {
		t.Errorf("URL = %q", got.URL)
	}
	if got.SegmentLen != 3 || got.DupRun != 1 {
		t.Errorf("snapshot = %+v", got)
	}
}

func TestHandleFrameEmpty(t *testing.T) {
	srv := New(newMockLoop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/frame", nil)
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleFrame(t *testing.T) {
	ml := newMockLoop()
	ml.frame = []byte{0x89, 'P', 'N', 'G'}
	srv := New(ml)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/frame", nil)
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if rec.Body.Len() != 4 {
		t.Errorf("body length = %d, want 4", rec.Body.Len())
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := New(newMockLoop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/status", nil)
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}
