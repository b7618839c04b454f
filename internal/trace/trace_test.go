package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestGenerateSpanID(t *testing.T) {
	id := generateSpanID()
	if len(id) != 16 {
		t.Errorf("span ID should be 16 chars, got %d", len(id))
	}
}

func TestNewSessionIDsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tc := New()
		if _, err := uuid.Parse(tc.SessionID); err != nil {
			t.Fatalf("SessionID %q is not a uuid: %v", tc.SessionID, err)
		}
		if seen[tc.SessionID] {
			t.Error("generated duplicate session ID")
		}
		seen[tc.SessionID] = true
	}
}

func TestNewChild(t *testing.T) {
	parent := New()
	child := NewChild(parent)

	if child.SessionID != parent.SessionID {
		t.Error("child should inherit session ID")
	}
	if child.SpanID == parent.SpanID {
		t.Error("child should have new span ID")
	}
	if child.ParentSpanID != parent.SpanID {
		t.Error("child's parent should be parent's span ID")
	}
}

func TestContextPropagation(t *testing.T) {
	tc := New()
	ctx := WithContext(context.Background(), tc)

	extracted, ok := FromContext(ctx)
	if !ok {
		t.Fatal("should extract trace context")
	}
	if extracted.SessionID != tc.SessionID {
		t.Error("extracted session ID mismatch")
	}
	if SessionID(ctx) != tc.SessionID {
		t.Error("SessionID() mismatch")
	}
	if SessionID(context.Background()) != "" {
		t.Error("SessionID() of empty context should be empty")
	}
}

func TestStartSpan(t *testing.T) {
	_, span := StartSpan(context.Background(), "LOGIN")

	if span.Name != "LOGIN" {
		t.Error("span name mismatch")
	}
	if span.StartTime.IsZero() {
		t.Error("span should have start time")
	}
	if span.Duration() != 0 {
		t.Error("unfinished span should report zero duration")
	}

	span.SetAttr("iteration", 3)
	span.End()

	if span.EndTime.IsZero() {
		t.Error("span should have end time")
	}
	if span.Attrs["iteration"] != 3 {
		t.Error("span attribute mismatch")
	}
}

func TestSpanNested(t *testing.T) {
	ctx, parent := StartSpan(context.Background(), "session")
	_, child := StartSpan(ctx, "CONSULTATION")

	if child.Ctx.SessionID != parent.Ctx.SessionID {
		t.Error("child should inherit session ID")
	}
	if child.Ctx.ParentSpanID != parent.Ctx.SpanID {
		t.Error("child's parent should be parent's span")
	}
}

func TestLogger(t *testing.T) {
	ctx := WithContext(context.Background(), New())
	Logger(ctx).Info("test message")
	Logger(context.Background()).Info("no trace")
}

func TestUnaryClientInterceptor(t *testing.T) {
	tc := New()
	ctx := WithContext(context.Background(), tc)

	var got metadata.MD
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		got, _ = metadata.FromOutgoingContext(ctx)
		return nil
	}

	if err := UnaryClientInterceptor()(ctx, "/cheminotify.OCR/ExtractText", nil, nil, nil, invoker); err != nil {
		t.Fatalf("interceptor error = %v", err)
	}
	if v := got.Get(SessionIDKey); len(v) != 1 || v[0] != tc.SessionID {
		t.Errorf("metadata %s = %v, want %q", SessionIDKey, v, tc.SessionID)
	}
	if v := got.Get(SpanIDKey); len(v) != 1 || v[0] != tc.SpanID {
		t.Errorf("metadata %s = %v, want %q", SpanIDKey, v, tc.SpanID)
	}
}

func TestMiddleware(t *testing.T) {
	var seen Context
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set(SessionIDKey, "abc")
	req.Header.Set(SpanIDKey, "caller")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen.SessionID != "abc" {
		t.Errorf("SessionID = %q, want %q", seen.SessionID, "abc")
	}
	if seen.ParentSpanID != "caller" {
		t.Errorf("ParentSpanID = %q, want %q", seen.ParentSpanID, "caller")
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/status", nil))
	if seen.SessionID == "" {
		t.Error("missing header should yield a generated session ID")
	}
}
