package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewGeneratesUniqueIDs(t *testing.T) {
	a := New()
	b := New()

	if a.TraceID == b.TraceID {
		t.Error("trace IDs should be unique")
	}
	if len(a.TraceID) != 32 {
		t.Errorf("trace ID length = %d, want 32", len(a.TraceID))
	}
	if len(a.SpanID) != 16 {
		t.Errorf("span ID length = %d, want 16", len(a.SpanID))
	}
}

func TestNewChildKeepsTrace(t *testing.T) {
	parent := New()
	child := NewChild(parent)

	if child.TraceID != parent.TraceID {
		t.Error("child should keep parent trace ID")
	}
	if child.SpanID == parent.SpanID {
		t.Error("child should get a fresh span ID")
	}
	if child.ParentSpanID != parent.SpanID {
		t.Error("child parent span should be the parent's span")
	}
}

func TestContextRoundTrip(t *testing.T) {
	tc := New()
	ctx := WithContext(context.Background(), tc)

	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("FromContext() should find injected context")
	}
	if got.TraceID != tc.TraceID {
		t.Errorf("TraceID = %s, want %s", got.TraceID, tc.TraceID)
	}
}

func TestStartSpanCreatesRoot(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "cycle")
	defer span.End()

	if span.Ctx.TraceID == "" {
		t.Error("root span should create a trace ID")
	}
	tc, ok := FromContext(ctx)
	if !ok || tc.SpanID != span.Ctx.SpanID {
		t.Error("returned context should carry the span")
	}
}

func TestSpanDuration(t *testing.T) {
	_, span := StartSpan(context.Background(), "step")

	if span.Duration() != 0 {
		t.Error("unfinished span should report zero duration")
	}

	time.Sleep(time.Millisecond)
	span.End()
	if span.Duration() <= 0 {
		t.Errorf("Duration() = %v, want > 0", span.Duration())
	}
}

func TestMiddlewareEchoesTraceID(t *testing.T) {
	var seen Context
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set(HeaderTraceID, "inbound-trace")
	h.ServeHTTP(rec, req)

	if seen.TraceID != "inbound-trace" {
		t.Errorf("handler trace ID = %s, want inbound-trace", seen.TraceID)
	}
	if rec.Header().Get(HeaderTraceID) != "inbound-trace" {
		t.Errorf("response header = %s, want inbound-trace", rec.Header().Get(HeaderTraceID))
	}
}
