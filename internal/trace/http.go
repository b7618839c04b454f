package trace

import (
	"net/http"

	"github.com/google/uuid"
)

// Middleware attaches a trace context to status server requests. A caller
// supplied session id is kept so dashboards can correlate requests.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := extractFromHeaders(r)
		ctx := WithContext(r.Context(), tc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractFromHeaders(r *http.Request) Context {
	tc := Context{
		SessionID:    r.Header.Get(SessionIDKey),
		ParentSpanID: r.Header.Get(SpanIDKey),
		SpanID:       generateSpanID(),
	}
	if tc.SessionID == "" {
		tc.SessionID = uuid.NewString()
	}
	return tc
}
