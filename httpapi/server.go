// Package httpapi implements the HTTP surface spec.md §6 describes as "out
// of scope... a competent engineer reimplements [it] trivially": liveness,
// upload, status, index/document deletion, search, and ask, over a single
// memcore.Core. No example repo in the pack wires a router library into
// the teacher's own go.mod, so this is a plain net/http ServeMux using
// Go's method+pattern route syntax, matching the teacher's flat,
// small-package style rather than reaching for a framework dependency
// nothing else in the module would exercise.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/kestrelai/memoria/memcore"
)

// Server is memoria's HTTP surface, wired to a single memcore.Core
// (spec.md §6).
type Server struct {
	core      *memcore.Core
	logger    *slog.Logger
	startedAt time.Time

	// AccessKeyHeader names the header callers must present (spec.md §6
	// auth: "optional bearer-like header <configured-name>: <accessKey1|
	// accessKey2>"). Empty disables auth entirely.
	AccessKeyHeader string
	AccessKey1      string
	AccessKey2      string
}

// New builds a Server over core. headerName/key1/key2 configure optional
// bearer-like auth (spec.md §6); an empty headerName disables auth.
func New(core *memcore.Core, logger *slog.Logger, headerName, key1, key2 string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		core:            core,
		logger:          logger,
		startedAt:       time.Now(),
		AccessKeyHeader: headerName,
		AccessKey1:      key1,
		AccessKey2:      key2,
	}
}

// Handler returns the routed http.Handler, method-and-path routes matching
// spec.md §6's external interface table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /upload", s.authed(s.handleUpload))
	mux.HandleFunc("GET /upload-status", s.authed(s.handleUploadStatus))
	mux.HandleFunc("GET /indexes", s.authed(s.handleListIndexes))
	mux.HandleFunc("DELETE /indexes", s.authed(s.handleDeleteIndex))
	mux.HandleFunc("DELETE /documents", s.authed(s.handleDeleteDocument))
	mux.HandleFunc("POST /ask", s.authed(s.handleAsk))
	mux.HandleFunc("POST /search", s.authed(s.handleSearch))
	return mux
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(s.startedAt)
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "memoria is up",
		"uptime": uptime.String(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// authed wraps h with the optional access-key check (spec.md §6: "Missing
// -> 401; mismatch -> 403").
func (s *Server) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AccessKeyHeader == "" {
			h(w, r)
			return
		}
		got := r.Header.Get(s.AccessKeyHeader)
		if got == "" {
			writeError(w, http.StatusUnauthorized, "missing access key header")
			return
		}
		if got != s.AccessKey1 && got != s.AccessKey2 {
			writeError(w, http.StatusForbidden, "access key mismatch")
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// ctxWithTimeout bounds a request's handler-level work; handlers call this
// rather than using r.Context() directly raw, so a slow provider call
// cannot hang a request indefinitely (spec.md §5 "Timeouts: per-I/O
// defaults").
func ctxWithTimeout(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}
