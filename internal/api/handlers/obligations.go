package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/freight-reconcile/internal/api/dto"
	"github.com/eshaffer321/freight-reconcile/internal/api/middleware"
	"github.com/eshaffer321/freight-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/freight-reconcile/internal/domain/statement"
	"github.com/eshaffer321/freight-reconcile/internal/infrastructure/storage"
)

// ObligationsHandler handles payable and receivable requests.
type ObligationsHandler struct {
	*Base
}

// NewObligationsHandler creates a new obligations handler.
func NewObligationsHandler(repo storage.Repository) *ObligationsHandler {
	return &ObligationsHandler{
		Base: NewBase(repo, nil),
	}
}

// List handles GET /api/obligations - returns paginated obligations of both kinds.
func (h *ObligationsHandler) List(w http.ResponseWriter, r *http.Request) {
	defaults := dto.DefaultObligationListParams()
	params := dto.ObligationListParams{
		Kind:   r.URL.Query().Get("kind"),
		Status: r.URL.Query().Get("status"),
		Limit:  ParseIntParam(r, "limit", defaults.Limit),
		Offset: ParseIntParam(r, "offset", defaults.Offset),
	}

	kind := matcher.Kind(params.Kind)
	if kind != "" && !kind.Valid() {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("kind must be pagar or receber"))
		return
	}

	result, err := h.repo.ListObligations(r.Context(), storage.ObligationFilters{
		Kind:   kind,
		Status: matcher.Status(params.Status),
		Limit:  params.Limit,
		Offset: params.Offset,
	})
	if err != nil {
		h.WriteDomainError(w, r, err)
		return
	}

	response := dto.ObligationListResponse{
		Obligations: make([]dto.ObligationResponse, 0, len(result.Obligations)),
		TotalCount:  result.TotalCount,
		Limit:       result.Limit,
		Offset:      result.Offset,
	}
	for _, o := range result.Obligations {
		response.Obligations = append(response.Obligations, dto.NewObligationResponse(o))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/obligations/{kind}/{id} - returns a single obligation.
func (h *ObligationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	kind := matcher.Kind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("kind must be pagar or receber"))
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid obligation ID"))
		return
	}

	o, err := h.repo.GetObligation(r.Context(), kind, id)
	if err != nil {
		h.WriteDomainError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.NewObligationResponse(*o))
}

// Create handles POST /api/obligations - registers a pending obligation.
func (h *ObligationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateObligationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body"))
		return
	}

	kind := matcher.Kind(req.Kind)
	if !kind.Valid() {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("kind must be pagar or receber"))
		return
	}
	// Without a principal the route is unauthenticated
	if p, ok := middleware.PrincipalFromContext(r.Context()); ok && !p.Can(middleware.CreatePermission(req.Kind)) {
		h.WriteError(w, http.StatusForbidden, dto.ForbiddenError("permission '"+middleware.CreatePermission(req.Kind)+"' required"))
		return
	}
	if !statement.AmountInRange(req.Amount) || !req.Amount.IsPositive() {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("amount must be positive"))
		return
	}
	if !req.Amount.Equal(req.Amount.Round(2)) {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("amount must have at most 2 decimal places"))
		return
	}
	due, err := statement.ParseDate(req.DueDate)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("due_date must be YYYY-MM-DD"))
		return
	}

	o := &matcher.Obligation{
		Kind:        kind,
		Description: req.Description,
		Amount:      req.Amount,
		DueDate:     &due,
		Status:      matcher.StatusPending,
	}
	if err := h.repo.CreateObligation(r.Context(), o); err != nil {
		h.WriteDomainError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, dto.NewObligationResponse(*o))
}
