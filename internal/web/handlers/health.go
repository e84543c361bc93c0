package handlers

import "net/http"

// Health serves liveness and readiness probes.
type Health struct{}

// NewHealth creates a health check handler.
func NewHealth() *Health {
	return &Health{}
}

// RegisterRoutes registers the probe routes.
func (*Health) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", health)
	mux.HandleFunc("GET /ready", health)
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
