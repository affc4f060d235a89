package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/portrec/portrec/internal/contracts"
	"github.com/portrec/portrec/pkg/logger"
)

// SecurityHandler handles security and holdings endpoints
type SecurityHandler struct {
	securities contracts.SecurityRepository
	holdings   contracts.HoldingsRepository
	logger     *logger.Logger
}

// NewSecurityHandler creates a new security handler
func NewSecurityHandler(securities contracts.SecurityRepository, holdings contracts.HoldingsRepository, log *logger.Logger) *SecurityHandler {
	return &SecurityHandler{
		securities: securities,
		holdings:   holdings,
		logger:     log,
	}
}

// Get returns the canonical record for one symbol
// GET /api/securities/{symbol}
func (h *SecurityHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	security, err := h.securities.Get(ctx, symbol)
	if err != nil {
		h.logger.WithError(err).WithField("symbol", symbol).Error("Failed to get security")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve security")
		return
	}
	if security == nil {
		respondError(w, http.StatusNotFound, "Security not found")
		return
	}

	respondJSON(w, http.StatusOK, security)
}

// GetHoldings returns the stored constituent snapshot for an ETF
// GET /api/securities/{symbol}/holdings
func (h *SecurityHandler) GetHoldings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	holdings, err := h.holdings.GetByETF(ctx, symbol)
	if err != nil {
		h.logger.WithError(err).WithField("symbol", symbol).Error("Failed to get holdings")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve holdings")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"etf":      symbol,
		"count":    len(holdings),
		"holdings": holdings,
	})
}
