package trace

import "net/http"

// HeaderTraceID is echoed back on responses for log correlation.
const HeaderTraceID = "X-Trace-Id"

// Middleware gives each request a trace context, honoring an inbound trace
// id when the caller supplies one.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := New()
		if inbound := r.Header.Get(HeaderTraceID); inbound != "" {
			tc.TraceID = inbound
		}
		w.Header().Set(HeaderTraceID, tc.TraceID)
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), tc)))
	})
}
