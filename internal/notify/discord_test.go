package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/cheminotify/agent/internal/resilience"
)

type webhook struct {
	mu       sync.Mutex
	requests []captured
	status   func(n int, multipart bool) int
}

type captured struct {
	contentType string
	content     string
	filename    string
	fileType    string
	file        []byte
}

func (w *webhook) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	var c captured
	c.contentType = r.Header.Get("Content-Type")
	multipart := strings.HasPrefix(c.contentType, "multipart/form-data")
	if multipart {
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			c.content = r.FormValue("content")
			if f, h, err := r.FormFile("file"); err == nil {
				c.filename = h.Filename
				c.fileType = h.Header.Get("Content-Type")
				c.file, _ = io.ReadAll(f)
				f.Close()
			}
		}
	} else {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		c.content = payload["content"]
	}

	w.mu.Lock()
	w.requests = append(w.requests, c)
	n := len(w.requests)
	w.mu.Unlock()

	code := http.StatusNoContent
	if w.status != nil {
		code = w.status(n, multipart)
	}
	rw.WriteHeader(code)
}

func (w *webhook) all() []captured {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]captured(nil), w.requests...)
}

func shot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "20250102-150405_course_available.png")
	if err := os.WriteFile(path, []byte("\x89PNG fake"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDiscordText(t *testing.T) {
	hook := &webhook{}
	srv := httptest.NewServer(hook)
	defer srv.Close()

	d := NewDiscord(srv.URL, true)
	if !d.Send(context.Background(), "Course available", "GTI611 is now available!", "") {
		t.Fatal("Send() = false")
	}

	if len(hook.all()) != 1 {
		t.Fatalf("requests = %d, want 1", len(hook.all()))
	}
	got := hook.all()[0]
	if got.contentType != "application/json" {
		t.Errorf("Content-Type = %q", got.contentType)
	}
	if got.content != "**Course available**\nGTI611 is now available!" {
		t.Errorf("content = %q", got.content)
	}
}

func TestDiscordWithImage(t *testing.T) {
	hook := &webhook{}
	srv := httptest.NewServer(hook)
	defer srv.Close()

	path := shot(t)
	if !NewDiscord(srv.URL, true).Send(context.Background(), "Course available", "body", path) {
		t.Fatal("Send() = false")
	}

	got := hook.all()[0]
	if got.filename != filepath.Base(path) || got.fileType != "image/png" {
		t.Errorf("file = %q (%s)", got.filename, got.fileType)
	}
	if string(got.file) != "\x89PNG fake" {
		t.Errorf("file body = %q", got.file)
	}
	if got.content != "**Course available**\nbody" {
		t.Errorf("content = %q", got.content)
	}
}

func TestDiscordScreenshotsDisabled(t *testing.T) {
	hook := &webhook{}
	srv := httptest.NewServer(hook)
	defer srv.Close()

	NewDiscord(srv.URL, false).Send(context.Background(), "s", "b", shot(t))
	if hook.all()[0].filename != "" {
		t.Error("attachment sent although screenshots are disabled")
	}
}

func TestDiscordMissingAttachment(t *testing.T) {
	hook := &webhook{}
	srv := httptest.NewServer(hook)
	defer srv.Close()

	if !NewDiscord(srv.URL, true).Send(context.Background(), "s", "b", "/nonexistent.png") {
		t.Fatal("Send() = false, want text fallback")
	}
	if hook.all()[0].contentType != "application/json" {
		t.Error("missing attachment should fall back to JSON")
	}
}

func TestDiscordImageRejectedFallsBackToText(t *testing.T) {
	hook := &webhook{status: func(_ int, multipart bool) int {
		if multipart {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusOK
	}}
	srv := httptest.NewServer(hook)
	defer srv.Close()

	if !NewDiscord(srv.URL, true).Send(context.Background(), "s", "b", shot(t)) {
		t.Fatal("Send() = false, want text fallback")
	}
	if len(hook.all()) != 2 {
		t.Errorf("requests = %d, want image then text", len(hook.all()))
	}
}

func TestDiscordFailure(t *testing.T) {
	hook := &webhook{status: func(int, bool) int { return http.StatusBadRequest }}
	srv := httptest.NewServer(hook)
	defer srv.Close()

	if NewDiscord(srv.URL, true).Send(context.Background(), "s", "b", "") {
		t.Error("Send() = true on 400")
	}
}

func TestDiscordNoURL(t *testing.T) {
	if NewDiscord("", true).Send(context.Background(), "s", "b", "") {
		t.Error("Send() = true without URL")
	}
}

func TestDiscordBreakerOpens(t *testing.T) {
	hook := &webhook{status: func(int, bool) int { return http.StatusInternalServerError }}
	srv := httptest.NewServer(hook)
	defer srv.Close()

	d := NewDiscord(srv.URL, false)
	for i := 0; i < 10; i++ {
		d.Send(context.Background(), "s", "b", "")
	}
	if n := len(hook.all()); n >= 10 {
		t.Errorf("requests = %d, breaker should have stopped some", n)
	}
}

func TestDiscordOpensCircuitOnRepeatedFailures(t *testing.T) {
	hook := &webhook{status: func(int, bool) int { return http.StatusBadGateway }}
	srv := httptest.NewServer(hook)
	defer srv.Close()

	d := NewDiscord(srv.URL, false)
	var opened bool
	d.Breaker().WithHook(func(_, to resilience.State) { opened = opened || to == resilience.Open })

	for i := 0; i < resilience.WebhookThreshold; i++ {
		if d.Send(context.Background(), "Course available", "GTI611", "") {
			t.Fatalf("Send() #%d = true against a failing webhook", i+1)
		}
	}
	if !opened || d.Breaker().State() != resilience.Open {
		t.Fatalf("circuit state = %v, want open", d.Breaker().State())
	}

	if d.Send(context.Background(), "Course available", "GTI611", "") {
		t.Error("Send() = true while the circuit is open")
	}
	if n := len(hook.all()); n != resilience.WebhookThreshold {
		t.Errorf("requests = %d, want %d (open circuit skips the webhook)", n, resilience.WebhookThreshold)
	}
}
