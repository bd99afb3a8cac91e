// Package server exposes a repository session over HTTP under /api/v1/git.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/jonasehrlich/debug-tree/internal/git"
	"github.com/jonasehrlich/debug-tree/internal/logging"
	"github.com/jonasehrlich/debug-tree/internal/session"
	"github.com/jonasehrlich/debug-tree/internal/watcher"
)

const apiPrefix = "/api/v1/git"

type Server struct {
	Session *session.Session
	// Status feeds the status stream. Without it the stream sends a single
	// snapshot per request.
	Status *watcher.Broadcaster
	Mux    *http.ServeMux
	logger logging.Logger
}

func NewServer(s *session.Session, status *watcher.Broadcaster, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	srv := &Server{
		Session: s,
		Status:  status,
		Mux:     http.NewServeMux(),
		logger:  logger,
	}
	srv.routes()
	return srv
}

// HTTPServer returns an http.Server for s listening on addr. Requests run
// under ctx, and Shutdown ends open status streams so it does not wait for
// clients that never disconnect.
func (s *Server) HTTPServer(ctx context.Context, addr string) *http.Server {
	hs := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	if s.Status != nil {
		hs.RegisterOnShutdown(s.Status.Close)
	}
	return hs
}

func (s *Server) routes() {
	s.Mux.HandleFunc("GET /ping", s.handlePing)
	s.Mux.HandleFunc("GET "+apiPrefix+"/commit/{revision...}", s.handleGetCommit)
	s.Mux.HandleFunc("POST "+apiPrefix+"/commit/{revision...}", s.handleCheckout)
	s.Mux.HandleFunc("GET "+apiPrefix+"/commits", s.handleListCommits)
	s.Mux.HandleFunc("GET "+apiPrefix+"/diff", s.handleDiff)
	s.Mux.HandleFunc("GET "+apiPrefix+"/tags", s.handleListTags)
	s.Mux.HandleFunc("POST "+apiPrefix+"/tags", s.handleCreateTag)
	s.Mux.HandleFunc("GET "+apiPrefix+"/branches", s.handleListBranches)
	s.Mux.HandleFunc("POST "+apiPrefix+"/branches", s.handleCreateBranch)
	s.Mux.HandleFunc("GET "+apiPrefix+"/references", s.handleListReferences)
	s.Mux.HandleFunc("GET "+apiPrefix+"/repository/status", s.handleStatus)
	s.Mux.HandleFunc("GET "+apiPrefix+"/repository/status/stream", s.handleStatusStream)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.Mux.ServeHTTP(w, r)
	s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "pong",
		"system":  "debug-tree",
	})
}

// ApiStatusDetailResponse is the body of every error response.
type ApiStatusDetailResponse struct {
	Status  int      `json:"status"`
	Reason  string   `json:"reason"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusCode(err error) int {
	switch git.KindOf(err) {
	case git.NotFound:
		return http.StatusNotFound
	case git.Invalid:
		return http.StatusBadRequest
	case git.Conflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusCode(err)
	var details []string
	for e := errors.Unwrap(err); e != nil; e = errors.Unwrap(e) {
		details = append(details, e.Error())
	}
	if details == nil {
		details = []string{}
	}
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, code, ApiStatusDetailResponse{
		Status:  code,
		Reason:  http.StatusText(code),
		Message: err.Error(),
		Details: details,
	})
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ApiStatusDetailResponse{
		Status:  http.StatusBadRequest,
		Reason:  http.StatusText(http.StatusBadRequest),
		Message: msg,
		Details: []string{},
	})
}
