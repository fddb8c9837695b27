package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

// HealthHandler reports process liveness and dependency readiness.
type HealthHandler struct {
	version string
	checks  map[string]CheckFunc
	logger  *zap.Logger
}

// NewHealthHandler creates a health handler with no checks registered.
func NewHealthHandler(version string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		version: version,
		checks:  make(map[string]CheckFunc),
		logger:  logger.With(zap.String("component", "health_handler")),
	}
}

// AddCheck registers a named readiness probe.
func (h *HealthHandler) AddCheck(name string, fn CheckFunc) *HealthHandler {
	h.checks[name] = fn
	return h
}

// Live handles GET /healthz: the process is up.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, map[string]string{"status": "ok", "version": h.version})
}

type readyReport struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

// Ready handles GET /readyz: every registered dependency must answer.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	report := readyReport{
		Status:  "ok",
		Version: h.version,
		Checks:  make(map[string]string, len(h.checks)),
	}

	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			healthy = false
			report.Checks[name] = err.Error()
			h.logger.Warn("readiness check failed",
				zap.String("check", name),
				zap.Error(err))
			continue
		}
		report.Checks[name] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		report.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, status, Response{Success: healthy, Data: report, Timestamp: time.Now()})
}
