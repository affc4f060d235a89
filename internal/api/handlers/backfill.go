package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/portrec/portrec/internal/contracts"
	"github.com/portrec/portrec/pkg/logger"
)

// BackfillHandler handles backfill progress endpoints
type BackfillHandler struct {
	state  contracts.BackfillStateRepository
	logger *logger.Logger
}

// NewBackfillHandler creates a new backfill handler
func NewBackfillHandler(state contracts.BackfillStateRepository, log *logger.Logger) *BackfillHandler {
	return &BackfillHandler{
		state:  state,
		logger: log,
	}
}

type backfillStatusResponse struct {
	TaskKind        string  `json:"task_kind"`
	Pending         int     `json:"pending"`
	InProgress      int     `json:"in_progress"`
	Done            int     `json:"done"`
	FailedRetryable int     `json:"failed_retryable"`
	FailedPermanent int     `json:"failed_permanent"`
	Total           int     `json:"total"`
	Progress        float64 `json:"progress"`
}

// GetStatus returns backfill progress counts for every task kind
// GET /api/backfill/status
func (h *BackfillHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	kinds := []contracts.TaskKind{contracts.TaskETFMetadata, contracts.TaskConstituentEnrich}
	statuses := make([]backfillStatusResponse, 0, len(kinds))

	for _, kind := range kinds {
		counts, err := h.state.Counts(ctx, kind)
		if err != nil {
			h.logger.WithError(err).Error("Failed to get backfill counts")
			respondError(w, http.StatusInternalServerError, "Failed to retrieve backfill status")
			return
		}

		statuses = append(statuses, backfillStatusResponse{
			TaskKind:        string(kind),
			Pending:         counts.Pending,
			InProgress:      counts.InProgress,
			Done:            counts.Done,
			FailedRetryable: counts.FailedRetryable,
			FailedPermanent: counts.FailedPermanent,
			Total:           counts.Total(),
			Progress:        counts.Progress(),
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": statuses,
	})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
