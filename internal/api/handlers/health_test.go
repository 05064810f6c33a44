package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/freight-reconcile/internal/api/dto"
	"github.com/eshaffer321/freight-reconcile/internal/api/handlers"
	"github.com/eshaffer321/freight-reconcile/internal/infrastructure/storage"
)

func TestHealthHandler_ServeHTTP(t *testing.T) {
	t.Run("returns 200 OK with health status", func(t *testing.T) {
		handler := handlers.NewHealthHandler(storage.NewMockRepository(), quietLogger())

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var response dto.HealthResponse
		err := json.NewDecoder(rec.Body).Decode(&response)
		require.NoError(t, err)

		assert.Equal(t, "ok", response.Status)
		assert.Equal(t, "ok", response.Database)
		assert.NotEmpty(t, response.Timestamp)
	})

	t.Run("returns 503 when the database is unreachable", func(t *testing.T) {
		repo := storage.NewMockRepository()
		repo.PingErr = errors.New("database is closed")
		handler := handlers.NewHealthHandler(repo, quietLogger())

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var response dto.HealthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, "degraded", response.Status)
		assert.Equal(t, "unavailable", response.Database)
	})

	t.Run("skips the database check without a pinger", func(t *testing.T) {
		handler := handlers.NewHealthHandler(nil, nil)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
