package exporter

import (
	"context"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// healthCheckTimeout bounds an appliance check triggered by /health?host_ip=.
const healthCheckTimeout = 5 * time.Second

// HealthHandler serves /health.
//
// Without parameters it only reports that the process is up. With
// ?host_ip=<host> it also verifies that a token for that appliance is cached
// or can be obtained, answering 503 when the login fails. A cached token is
// reused, so a healthy appliance is not logged in to on every probe.
type HealthHandler struct {
	tokens TokenSource
}

// NewHealthHandler creates a health handler checking appliances through tokens.
func NewHealthHandler(tokens TokenSource) *HealthHandler {
	return &HealthHandler{tokens: tokens}
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(HeaderContentType, "text/plain; charset=utf-8")

	host := r.URL.Query().Get(ParamHostIP)
	if host == "" || h.tokens == nil {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, "OK\n")
		return
	}

	if err := h.CheckAppliance(r.Context(), host); err != nil {
		log.WithField("host", host).Warnf("Health check failed: %v", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = fmt.Fprintf(w, "UNAVAILABLE: %v\n", err)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK\n")
}

// CheckAppliance returns nil when a token for host is available.
// The caller's deadline is kept; without one, healthCheckTimeout applies.
func (h *HealthHandler) CheckAppliance(ctx context.Context, host string) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, healthCheckTimeout)
		defer cancel()
	}

	if _, err := h.tokens.Token(ctx, host, false); err != nil {
		return fmt.Errorf("appliance %s: %w", host, err)
	}
	return nil
}
