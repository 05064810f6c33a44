package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/eshaffer321/freight-reconcile/internal/api/dto"
	"github.com/eshaffer321/freight-reconcile/internal/api/middleware"
	"github.com/eshaffer321/freight-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/freight-reconcile/internal/domain/statement"
	"github.com/eshaffer321/freight-reconcile/internal/infrastructure/export"
	"github.com/eshaffer321/freight-reconcile/internal/infrastructure/storage"
)

// MaxStatementBytes caps the size of an uploaded statement
const MaxStatementBytes = 10 << 20

// StatementFormField is the multipart field carrying the statement file
const StatementFormField = "file"

var errNoStatement = errors.New("statement file is required")

// ReconciliationHandler handles statement matching and confirmation requests.
type ReconciliationHandler struct {
	*Base
	matcher *matcher.Matcher
	timeout time.Duration
}

// NewReconciliationHandler creates a new reconciliation handler.
// A zero timeout leaves requests bounded only by the client.
func NewReconciliationHandler(repo storage.Repository, m *matcher.Matcher, timeout time.Duration, logger *slog.Logger) *ReconciliationHandler {
	return &ReconciliationHandler{
		Base:    NewBase(repo, logger),
		matcher: m,
		timeout: timeout,
	}
}

// ProcessStatement handles POST /api/conciliacao/extrato - returns ranked
// candidates for every transaction of the uploaded statement.
func (h *ReconciliationHandler) ProcessStatement(w http.ResponseWriter, r *http.Request) {
	suggestions, ok := h.matchUpload(w, r)
	if !ok {
		return
	}

	statementID := uuid.NewString()
	h.logger.Info("statement processed",
		"statement_id", statementID,
		"transactions", len(suggestions),
		"request_id", middleware.RequestIDFromContext(r.Context()))

	h.WriteJSON(w, http.StatusOK, dto.NewStatementResponse(statementID, suggestions))
}

// ExportStatement handles POST /api/conciliacao/extrato/export - same input
// as ProcessStatement, answered with an XLSX workbook.
func (h *ReconciliationHandler) ExportStatement(w http.ResponseWriter, r *http.Request) {
	suggestions, ok := h.matchUpload(w, r)
	if !ok {
		return
	}

	filename := fmt.Sprintf("conciliacao-%s.xlsx", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)

	if err := export.WriteSuggestions(w, suggestions); err != nil {
		// Headers are already sent
		h.logger.Error("failed to write workbook", "error", err)
	}
}

// ConfirmMatch handles POST /api/conciliacao/confirmar-match - settles the
// chosen obligation and returns its new state.
func (h *ReconciliationHandler) ConfirmMatch(w http.ResponseWriter, r *http.Request) {
	var req dto.ConfirmMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
		return
	}
	if req.ObligationID <= 0 {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("obligation_id is required"))
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	confirmation := matcher.Confirmation{
		Transaction: statement.Transaction{
			Date:        req.Transaction.Date,
			Amount:      req.Transaction.Amount,
			Description: req.Transaction.Description,
		},
		ObligationID: req.ObligationID,
		Kind:         matcher.Kind(req.Kind),
		StatementID:  req.StatementID,
	}
	if p, ok := middleware.PrincipalFromContext(r.Context()); ok {
		confirmation.ConfirmedBy = p.Name()
	}

	updated, err := h.matcher.ConfirmMatch(ctx, confirmation)
	if err != nil {
		h.WriteDomainError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.NewObligationResponse(*updated))
}

// ListMatchLog handles GET /api/conciliacao/log - returns recent confirmations.
func (h *ReconciliationHandler) ListMatchLog(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", storage.DefaultMatchLogLimit)

	entries, err := h.repo.ListMatchLog(r.Context(), limit)
	if err != nil {
		h.WriteDomainError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.NewMatchLogResponse(entries))
}

// matchUpload reads the statement and runs the matcher, writing the error
// response itself when it returns false.
func (h *ReconciliationHandler) matchUpload(w http.ResponseWriter, r *http.Request) ([]matcher.MatchSuggestion, bool) {
	raw, err := readStatement(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			h.WriteError(w, http.StatusRequestEntityTooLarge,
				dto.NewAPIError(dto.ErrCodePayloadTooLarge, fmt.Sprintf("statement exceeds %d bytes", tooLarge.Limit)))
		case errors.Is(err, errNoStatement):
			h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		default:
			h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("could not read statement: "+err.Error()))
		}
		return nil, false
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	suggestions, err := h.matcher.ProcessStatement(ctx, raw)
	if err != nil {
		h.WriteDomainError(w, r, err)
		return nil, false
	}
	return suggestions, true
}

func (h *ReconciliationHandler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.timeout)
}

// readStatement returns the statement text from a multipart "file" part or,
// for any other content type, from the raw request body.
func readStatement(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxStatementBytes)

	var src io.Reader = r.Body
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(MaxStatementBytes); err != nil {
			return "", err
		}
		file, _, err := r.FormFile(StatementFormField)
		if errors.Is(err, http.ErrMissingFile) {
			return "", errNoStatement
		}
		if err != nil {
			return "", err
		}
		defer file.Close()
		src = file
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errNoStatement
	}
	return string(data), nil
}
