package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/portrec/portrec/internal/contracts"
	"github.com/portrec/portrec/pkg/logger"
)

// ThesisHandler handles thesis and alignment endpoints
type ThesisHandler struct {
	theses contracts.ThesisRepository
	logger *logger.Logger
}

// NewThesisHandler creates a new thesis handler
func NewThesisHandler(theses contracts.ThesisRepository, log *logger.Logger) *ThesisHandler {
	return &ThesisHandler{
		theses: theses,
		logger: log,
	}
}

// List returns all theses, or only selected ones with ?selected=true
// GET /api/theses
func (h *ThesisHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	selectedOnly := r.URL.Query().Get("selected") == "true"

	theses, err := h.theses.List(ctx, selectedOnly)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list theses")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve theses")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(theses),
		"theses": theses,
	})
}

// GetAlignments returns recent alignment results for a thesis
// GET /api/theses/{id}/alignments
func (h *ThesisHandler) GetAlignments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid thesis id")
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	thesis, err := h.theses.Get(ctx, id)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get thesis")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve thesis")
		return
	}
	if thesis == nil {
		respondError(w, http.StatusNotFound, "Thesis not found")
		return
	}

	alignments, err := h.theses.ListAlignments(ctx, id, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list alignments")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve alignments")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"thesis":     thesis.Title,
		"count":      len(alignments),
		"alignments": alignments,
	})
}
