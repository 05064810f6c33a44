package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/eshaffer321/freight-reconcile/internal/api/dto"
	"github.com/eshaffer321/freight-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/freight-reconcile/internal/infrastructure/storage"
)

// Base provides shared functionality for all handlers.
type Base struct {
	repo   storage.Repository
	logger *slog.Logger
}

// NewBase creates a new base handler with the given repository.
func NewBase(repo storage.Repository, logger *slog.Logger) *Base {
	if logger == nil {
		logger = slog.Default()
	}
	return &Base{repo: repo, logger: logger}
}

// WriteJSON writes a JSON response with the given status code.
func (b *Base) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes an error response with the given status code.
func (b *Base) WriteError(w http.ResponseWriter, status int, err dto.APIError) {
	b.WriteJSON(w, status, err)
}

// WriteDomainError maps matcher and storage errors to API errors.
// Unrecognised errors are logged and reported as 500.
func (b *Base) WriteDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, matcher.ErrObligationNotFound):
		b.WriteError(w, http.StatusNotFound, dto.NotFoundError("obligation"))
	case errors.Is(err, matcher.ErrConflict):
		b.WriteError(w, http.StatusConflict, dto.ConflictError("obligation is no longer pending"))
	case errors.Is(err, matcher.ErrInvalidKind), errors.Is(err, matcher.ErrInvalidDate),
		errors.Is(err, matcher.ErrInvalidAmount):
		b.WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
	case errors.Is(err, matcher.ErrBatchTooLarge):
		b.WriteError(w, http.StatusRequestEntityTooLarge, dto.NewAPIError(dto.ErrCodePayloadTooLarge, err.Error()))
	case errors.Is(err, context.DeadlineExceeded):
		b.logger.Warn("request timed out", "path", r.URL.Path)
		b.WriteError(w, http.StatusGatewayTimeout, dto.NewAPIError(dto.ErrCodeTimeout, "request timed out"))
	default:
		b.logger.Error("request failed", "path", r.URL.Path, "error", err)
		b.WriteError(w, http.StatusInternalServerError, dto.InternalError())
	}
}

// ParseIntParam parses an integer query parameter with a default value.
func ParseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}
