// Package web assembles the HTTP server of the chat interface.
package web

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/tezansahu/career-mentor-agent/internal/log"
	"github.com/tezansahu/career-mentor-agent/internal/web/handlers"
)

// loggingWriter captures the status code and bytes written for the
// request log. Unwrap keeps http.ResponseController working and Flush
// keeps SSE streaming through the wrapper.
type loggingWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (lw *loggingWriter) WriteHeader(code int) {
	if lw.statusCode == 0 {
		lw.statusCode = code
	}
	lw.ResponseWriter.WriteHeader(code)
}

func (lw *loggingWriter) Write(b []byte) (int, error) {
	if lw.statusCode == 0 {
		lw.statusCode = http.StatusOK
	}
	n, err := lw.ResponseWriter.Write(b)
	lw.bytesWritten += n
	return n, err
}

func (lw *loggingWriter) Flush() {
	if f, ok := lw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (lw *loggingWriter) Unwrap() http.ResponseWriter {
	return lw.ResponseWriter
}

// LoggingMiddleware logs each request after it completes.
func LoggingMiddleware(logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapper := &loggingWriter{ResponseWriter: w}

			next.ServeHTTP(wrapper, r)

			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapper.statusCode,
				"bytes", wrapper.bytesWritten,
				"duration", time.Since(start),
			)
		})
	}
}

// RecoveryMiddleware turns panics into 500s. If the handler already
// started writing the response, the connection is left as-is; the
// client sees a truncated body.
func RecoveryMiddleware(logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapper := &loggingWriter{ResponseWriter: w}
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic in handler",
						"panic", rec,
						"path", r.URL.Path,
						"stack", string(debug.Stack()),
					)
					if wrapper.statusCode == 0 {
						http.Error(wrapper, "internal server error", http.StatusInternalServerError)
					}
				}
			}()
			next.ServeHTTP(wrapper, r)
		})
	}
}

// MethodOverrideMiddleware lets HTML forms issue PUT/PATCH/DELETE via
// a hidden _method field on a POST. ParseForm here also caches the
// body for the CSRF check downstream.
func MethodOverrideMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if err := r.ParseForm(); err == nil {
				switch r.PostFormValue("_method") {
				case http.MethodPut:
					r.Method = http.MethodPut
				case http.MethodPatch:
					r.Method = http.MethodPatch
				case http.MethodDelete:
					r.Method = http.MethodDelete
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCSRF validates the csrf_token form field on every mutating
// request. Pre-session tokens are accepted so fresh visitors can make
// their first request before a session exists; handlers create the
// session afterwards.
func RequireCSRF(sessions *handlers.Sessions, logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			_ = r.ParseForm()
			token := r.FormValue("csrf_token")

			if handlers.IsPreSessionToken(token) {
				if err := sessions.CheckPreSessionCSRF(token); err != nil {
					logger.Warn("pre-session CSRF rejected", "error", err, "path", r.URL.Path)
					http.Error(w, "CSRF validation failed", http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			sessionID, err := sessions.ID(r)
			if err != nil {
				logger.Warn("CSRF check without session", "error", err, "path", r.URL.Path)
				http.Error(w, "CSRF validation failed", http.StatusForbidden)
				return
			}
			if err := sessions.CheckCSRF(sessionID, token); err != nil {
				logger.Warn("CSRF rejected", "error", err, "path", r.URL.Path, "session_id", sessionID)
				http.Error(w, "CSRF validation failed", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
