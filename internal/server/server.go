// Package server exposes the read-only status surface over HTTP and WebSocket
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/pagelapse/pagelapse/internal/loop"
	"github.com/pagelapse/pagelapse/internal/trace"
)

// Loop is the controller surface the server reads from. It never mutates
// loop state.
type Loop interface {
	Status() loop.Status
	LatestFrame() []byte
	Events() <-chan loop.Event
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	loop  Loop
	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}
}

// New creates a server and starts broadcasting loop events.
func New(l Loop) *Server {
	s := &Server{
		loop:  l,
		conns: make(map[*websocket.Conn]struct{}),
	}
	go s.broadcastEvents()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/frame", s.handleFrame)

	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.loop.Status()); err != nil {
		slog.Debug("status encode failed", "error", err)
	}
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	frame := s.loop.LatestFrame()
	if len(frame) == 0 {
		http.Error(w, "no frame captured yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(frame)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	slog.Debug("websocket client connected")

	// The feed is one-way; reading only detects disconnects.
	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}

	s.unregister(conn)
	slog.Debug("websocket client disconnected")
}

// broadcastEvents fans loop events out to all connected clients. It exits
// when the loop closes its feed at the end of the run.
func (s *Server) broadcastEvents() {
	for event := range s.loop.Events() {
		s.mu.RLock()
		conns := make([]*websocket.Conn, 0, len(s.conns))
		for conn := range s.conns {
			conns = append(conns, conn)
		}
		s.mu.RUnlock()

		for _, conn := range conns {
			ctx, cancel := context.WithTimeout(context.Background(), WriteTimeout)
			err := wsjson.Write(ctx, conn, event)
			cancel()
			if err != nil {
				s.unregister(conn)
			}
		}
	}
}

func (s *Server) unregister(conn *websocket.Conn) {
	s.mu.Lock()
	if _, ok := s.conns[conn]; ok {
		delete(s.conns, conn)
		_ = conn.CloseNow()
	}
	s.mu.Unlock()
}
