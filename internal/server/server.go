package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/cheminotify/agent/internal/history"
	"github.com/cheminotify/agent/internal/orchestrator"
	"github.com/cheminotify/agent/internal/trace"
)

// StatusSource reports the current session. *orchestrator.Runner implements it.
type StatusSource interface {
	Status() orchestrator.Status
}

// JournalSource serves recent transitions and streams new ones.
// *orchestrator.Journal implements it.
type JournalSource interface {
	Recent(n int) []orchestrator.Transition
	Events() <-chan orchestrator.Transition
}

// HistorySource reads the audit log. *history.Store implements it.
type HistorySource interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// TransitionMessage is pushed to WebSocket clients on every transition.
type TransitionMessage struct {
	Type       string                  `json:"type"`
	Transition orchestrator.Transition `json:"transition"`
}

// StatusMessage is sent to a WebSocket client when it connects.
type StatusMessage struct {
	Type   string              `json:"type"`
	Status orchestrator.Status `json:"status"`
}

type historyEntry struct {
	Kind      history.Kind `json:"kind"`
	SessionID string       `json:"session_id,omitempty"`
	Time      string       `json:"time"`
	Summary   string       `json:"summary"`
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	status  StatusSource
	journal JournalSource
	history HistorySource

	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithHistory enables /api/history.
func WithHistory(h HistorySource) Option {
	return func(s *Server) { s.history = h }
}

// New creates a server and starts broadcasting journal events.
func New(status StatusSource, journal JournalSource, opts ...Option) *Server {
	s := &Server{
		status:  status,
		journal: journal,
		conns:   make(map[*websocket.Conn]struct{}),
	}
	for _, o := range opts {
		o(s)
	}

	go s.broadcastTransitions()

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/transitions", s.handleTransitions)
	mux.HandleFunc("GET /api/history", s.handleHistory)

	return corsMiddleware(trace.Middleware(mux))
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	slog.Info("status server listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	ctx := r.Context()
	log := trace.Logger(ctx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	if err := wsjson.Write(ctx, conn, StatusMessage{Type: "status", Status: s.status.Status()}); err != nil {
		log.Debug("websocket write error", "error", err)
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	// Clients only listen; reading keeps control frames flowing and notices
	// the close.
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			log.Debug("websocket closed", "error", err)
			return
		}
	}
}

func (s *Server) broadcastTransitions() {
	for evt := range s.journal.Events() {
		msg := TransitionMessage{Type: "transition", Transition: evt}

		s.mu.RLock()
		for conn := range s.conns {
			go func(c *websocket.Conn) {
				ctx, cancel := context.WithTimeout(context.Background(), WriteTimeout)
				defer cancel()
				_ = wsjson.Write(ctx, c, msg)
			}(conn)
		}
		s.mu.RUnlock()
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.status.Status())
}

func (s *Server) handleTransitions(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	writeJSON(w, map[string]any{"transitions": s.journal.Recent(limit)})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		trace.Logger(r.Context()).Error("history query failed", "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}

	out := make([]historyEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntry{
			Kind:      e.Kind,
			SessionID: e.SessionID,
			Time:      e.Time.UTC().Format("2006-01-02T15:04:05Z"),
			Summary:   e.Summary,
		})
	}
	writeJSON(w, map[string]any{"entries": out})
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return DefaultTransitionLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return min(n, MaxLimit), true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
