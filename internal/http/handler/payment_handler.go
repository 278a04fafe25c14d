package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nexhr/sales-api/internal/auth"
	"github.com/nexhr/sales-api/internal/domain"
	"github.com/nexhr/sales-api/internal/service"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	ledgerService *service.LedgerService
	logger        *zap.Logger
}

func NewPaymentHandler(ledgerService *service.LedgerService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		ledgerService: ledgerService,
		logger:        logger,
	}
}

// @Summary Add payment milestone
// @Description Add a pending payment milestone to a lead
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Lead ID"
// @Param milestone body domain.AddMilestoneRequest true "Milestone data"
// @Success 200 {object} domain.PaymentMilestoneDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /leads/{id}/payment-milestones [post]
func (h *PaymentHandler) AddMilestone(w http.ResponseWriter, r *http.Request) {
	actor := auth.MustFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid lead ID")
		return
	}

	var req domain.AddMilestoneRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	milestone, err := h.ledgerService.AddMilestone(r.Context(), id, &req, actor)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Lead not found")
			return
		}
		if errors.Is(err, service.ErrPermissionDenied) {
			respondWithError(w, http.StatusForbidden, "Insufficient permissions to modify this lead")
			return
		}
		if errors.Is(err, service.ErrInvalidInput) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to add milestone", zap.Error(err), zap.String("lead_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to add milestone")
		return
	}

	respondJSON(w, http.StatusOK, milestone)
}

// @Summary Record payment
// @Description Record a received payment against a lead's ledger. Full payment closes the lead as won and converts it.
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Lead ID"
// @Param payment body domain.RecordPaymentRequest true "Payment data"
// @Success 200 {object} domain.PaymentSummaryDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /leads/{id}/payments [post]
func (h *PaymentHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	actor := auth.MustFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid lead ID")
		return
	}

	var req domain.RecordPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	summary, err := h.ledgerService.RecordPayment(r.Context(), id, &req, actor)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Lead not found")
			return
		}
		if errors.Is(err, service.ErrMilestoneNotFound) {
			respondWithError(w, http.StatusNotFound, "Milestone not found on this lead")
			return
		}
		if errors.Is(err, service.ErrPermissionDenied) {
			respondWithError(w, http.StatusForbidden, "Insufficient permissions to modify this lead")
			return
		}
		if errors.Is(err, service.ErrInvalidInput) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to record payment", zap.Error(err), zap.String("lead_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to record payment")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// @Summary Get payment summary
// @Description Read the reconciled payment ledger for a lead
// @Tags Payments
// @Produce json
// @Param id path string true "Lead ID"
// @Success 200 {object} domain.PaymentSummaryDTO
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /leads/{id}/payment-summary [get]
func (h *PaymentHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	actor := auth.MustFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid lead ID")
		return
	}

	summary, err := h.ledgerService.GetSummary(r.Context(), id, actor)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Lead not found")
			return
		}
		if errors.Is(err, service.ErrPermissionDenied) {
			respondWithError(w, http.StatusForbidden, "Insufficient permissions to view this lead")
			return
		}
		h.logger.Error("failed to get payment summary", zap.Error(err), zap.String("lead_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to get payment summary")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}
