// Package api exposes the relay's read-only and administrative HTTP
// surface alongside the WebSocket endpoint: health/diagnostics and
// session listing/ending, adapted from the teacher's REST layer
// (internal/api/server.go) onto the new session/diagnostics services.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/classrelay/relay/internal/diagnostics"
	"github.com/classrelay/relay/internal/session"
	"github.com/classrelay/relay/pkg/interfaces"
	"github.com/classrelay/relay/pkg/types"
)

// SessionCloser is the narrow registry view the server needs to notify a
// session's peers before ending it.
type SessionCloser interface {
	CloseSession(sessionID string, code int, reason string)
}

// Server is a pure HTTP front end: no business logic lives here, only
// request parsing, dependency calls, and JSON encoding, mirroring the
// teacher's separation of transport from domain logic.
type Server struct {
	sessions    *session.Service
	repo        interfaces.SessionRepository
	diagnostics *diagnostics.Service
	registry    SessionCloser
	mux         *http.ServeMux
}

func NewServer(sessions *session.Service, repo interfaces.SessionRepository, diag *diagnostics.Service, registry SessionCloser) *Server {
	s := &Server{sessions: sessions, repo: repo, diagnostics: diag, registry: registry, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("/api/sessions", s.cors(s.json(http.HandlerFunc(s.handleSessions))))
	s.mux.Handle("/api/sessions/", s.cors(s.json(http.HandlerFunc(s.handleSessionByID))))
	s.mux.Handle("/health", s.cors(s.json(http.HandlerFunc(s.handleHealth))))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listSessions(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	if id == "" {
		s.sendError(w, "session id required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getSession(w, r, id)
	case http.MethodDelete:
		s.endSession(w, r, id)
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.sendError(w, "session not found", http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(sess)
}

// endSession notifies every connected peer before ending the session in
// the store, the same ordering the teacher's REST layer used so clients
// see a graceful close rather than a dropped socket.
func (s *Server) endSession(w http.ResponseWriter, r *http.Request, id string) {
	if s.registry != nil {
		s.registry.CloseSession(id, 1000, "session ended by teacher")
	}

	sess, err := s.sessions.EndSession(r.Context(), id)
	if err != nil {
		if err == session.ErrSessionAlreadyEnded {
			s.sendError(w, "session already ended", http.StatusBadRequest)
			return
		}
		s.sendError(w, "failed to end session", http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(sess)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	teacherID := r.URL.Query().Get("teacherId")
	if teacherID == "" {
		s.sendError(w, "teacherId query parameter is required", http.StatusBadRequest)
		return
	}

	sess, err := s.sessions.FindActiveByTeacher(r.Context(), teacherID)
	if err != nil {
		_ = json.NewEncoder(w).Encode(struct {
			Sessions []*types.Session `json:"sessions"`
		}{})
		return
	}
	_ = json.NewEncoder(w).Encode(struct {
		Sessions []*types.Session `json:"sessions"`
	}{[]*types.Session{sess}})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	report, err := s.diagnostics.Report(ctx)
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		}{"unhealthy", err.Error()})
		return
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(struct {
		Status string             `json:"status"`
		Report diagnostics.Report `json:"report"`
	}{"healthy", report})
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{message})
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) json(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
