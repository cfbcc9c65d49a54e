// Package http is the JSON API the PWA talks to: entry CRUD, summary
// reads and the admin recalculation call. It never computes totals
// itself; summaries are read as-is from the summary store.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"timesheet/internal/auth"
	applog "timesheet/internal/log"
	"timesheet/internal/recalc"
	"timesheet/internal/services"
)

type contextKey string

const principalKey contextKey = "principal"

type Server struct {
	http.Server
	entries   *services.EntryService
	recalc    *recalc.Service
	verifier  auth.Verifier
	directory *auth.Directory
}

func NewServer(addr string, entries *services.EntryService, rec *recalc.Service, verifier auth.Verifier, directory *auth.Directory) *Server {
	s := &Server{
		entries:   entries,
		recalc:    rec,
		verifier:  verifier,
		directory: directory,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/api/entries", s.requireAuth(http.HandlerFunc(s.handleEntries)))
	mux.Handle("/api/entries/", s.requireAuth(http.HandlerFunc(s.handleEntryByID)))
	mux.Handle("/api/summaries", s.requireAuth(http.HandlerFunc(s.handleSummaries)))
	mux.Handle("/api/recalculate", s.requireAuth(http.HandlerFunc(s.handleRecalculate)))

	s.Addr = addr
	s.Handler = withRequestLogging(mux)
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// requireAuth resolves the bearer token to a principal and ensures a
// directory record exists for it. The core never sees raw tokens.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "You must be logged in to perform this action.")
			return
		}

		principal, err := s.verifier.Verify(r.Context(), strings.TrimSpace(token))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "Invalid or expired token.")
			return
		}

		if err := s.directory.Ensure(r.Context(), principal.UID); err != nil {
			slog.ErrorContext(r.Context(), "Failed to ensure user record",
				applog.FieldUserID, principal.UID, applog.FieldError, err)
			writeError(w, http.StatusInternalServerError, "internal", "An internal error occurred.")
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFrom(r *http.Request) auth.Principal {
	p, _ := r.Context().Value(principalKey).(auth.Principal)
	return p
}

// withRequestLogging logs request start/completion with a request id,
// warning on 4xx and erroring on 5xx.
func withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := generateRequestID()

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		level := slog.LevelInfo
		if rw.status >= 500 {
			level = slog.LevelError
		} else if rw.status >= 400 {
			level = slog.LevelWarn
		}

		slog.Log(r.Context(), level, "HTTP request completed",
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rw.status,
			applog.FieldDuration, time.Since(start).Milliseconds(),
			applog.FieldSuccess, rw.status < 400)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
