package server

import (
	"io"
	"log/slog"
	"net/http"
)

const healthResponse = `{"status":"ok"}`

// NewRouter wires the webhook and health endpoints behind the request-id, logging and
// recovery middleware.
func NewRouter(webhook http.Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /webhook", webhook)
	mux.HandleFunc("GET /healthz", healthHandler)
	mux.HandleFunc("HEAD /healthz", healthHandler)

	var h http.Handler = mux
	h = Recover(logger)(h)
	h = Logging(logger)(h)
	return RequestID(h)
}

// healthHandler returns a simple 200 OK status for readiness/liveness checks.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = io.WriteString(w, healthResponse)
}
