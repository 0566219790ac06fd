package health

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/autoshots/core/pkg/logger"
	"github.com/autoshots/core/pkg/models/api"
)

// RunLister reports live keeper runs. *jobs.Supervisor implements it.
type RunLister interface {
	Active() []string
}

// Handler handles health check requests
type Handler struct {
	runs   RunLister
	stats  func() interface{}
	logger *logger.Logger
}

// NewHandler creates a new health handler. stats may be nil; when set its
// result is reported under "database".
func NewHandler(runs RunLister, stats func() interface{}, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		runs:   runs,
		stats:  stats,
		logger: log,
	}
}

// HealthCheck handles the /health endpoint
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	response := api.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	}
	if h.runs != nil {
		response.ActiveRuns = len(h.runs.Active())
	}
	if h.stats != nil {
		response.Database = h.stats()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error().
			Err(err).
			Str("action", "health_check_failed").
			Str("endpoint", "/health").
			Msg("Failed to encode health response")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	h.logger.Debug().
		Str("action", "health_check").
		Str("endpoint", "/health").
		Str("method", r.Method).
		Str("remote_addr", r.RemoteAddr).
		Int("active_runs", response.ActiveRuns).
		Dur("duration", time.Since(start)).
		Msg("Health check completed")
}
