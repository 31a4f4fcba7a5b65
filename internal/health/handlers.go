package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Checker represents dependencies that can be probed for readiness.
type Checker interface {
	PingBackend(ctx context.Context, timeout time.Duration) error
	CatalogLoaded() bool
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker        Checker
	BackendTimeout time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes. The terminal is ready
// once the backend answers and a catalog snapshot has been installed.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Checker == nil {
		http.Error(w, "dependencies unavailable", http.StatusServiceUnavailable)
		return
	}
	backendStatus := "ok"
	if err := h.Checker.PingBackend(r.Context(), h.backendTimeout()); err != nil {
		backendStatus = err.Error()
	}
	catalogStatus := "ok"
	if !h.Checker.CatalogLoaded() {
		catalogStatus = "catalog not loaded"
	}
	status := map[string]string{
		"backend": backendStatus,
		"catalog": catalogStatus,
	}
	w.Header().Set("Content-Type", "application/json")
	if backendStatus != "ok" || catalogStatus != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func (h Handler) backendTimeout() time.Duration {
	if h.BackendTimeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.BackendTimeout
}
