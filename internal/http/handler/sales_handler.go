package handler

import (
	"net/http"

	"github.com/nexhr/sales-api/internal/service"
	"go.uber.org/zap"
)

type SalesHandler struct {
	leadService *service.LeadService
	logger      *zap.Logger
}

func NewSalesHandler(leadService *service.LeadService, logger *zap.Logger) *SalesHandler {
	return &SalesHandler{
		leadService: leadService,
		logger:      logger,
	}
}

// @Summary Conversion statistics
// @Description Aggregate conversion counts, rates and value across the pipeline
// @Tags Sales
// @Produce json
// @Success 200 {object} domain.ConversionStatsDTO
// @Security BearerAuth
// @Router /sales/conversion-stats [get]
func (h *SalesHandler) ConversionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.leadService.ConversionStats(r.Context())
	if err != nil {
		h.logger.Error("failed to compute conversion stats", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to compute conversion stats")
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// @Summary Sales statistics
// @Description Dashboard totals for leads and the payment ledger
// @Tags Sales
// @Produce json
// @Success 200 {object} domain.SalesStatsDTO
// @Security BearerAuth
// @Router /sales/stats [get]
func (h *SalesHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.leadService.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to compute sales stats", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to compute sales stats")
		return
	}

	respondJSON(w, http.StatusOK, stats)
}
