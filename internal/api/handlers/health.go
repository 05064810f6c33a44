package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/eshaffer321/freight-reconcile/internal/api/dto"
)

const healthPingTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	*Base
	db Pinger
}

// NewHealthHandler creates a new health handler. A nil db skips the database check.
func NewHealthHandler(db Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		Base: NewBase(nil, logger),
		db:   db,
	}
}

// ServeHTTP handles the health check request.
// Responds 503 when the database does not answer a ping.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var dbErr error
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		dbErr = h.db.Ping(ctx)
	}

	if dbErr != nil {
		h.logger.Warn("health check failed", "error", dbErr)
		h.WriteJSON(w, http.StatusServiceUnavailable, dto.NewHealthResponse(dbErr))
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.NewHealthResponse(nil))
}
