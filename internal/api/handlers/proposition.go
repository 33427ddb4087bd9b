package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Harshitk-cp/doxa/internal/domain"
	"github.com/Harshitk-cp/doxa/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// decayWeight scales how strongly accumulated decay discounts confidence on
// the read path. Stored confidence is never rewritten.
const decayWeight = 0.5

type PropositionHandler struct {
	propositions domain.PropositionStore
	decisions    domain.DecisionStore
}

func NewPropositionHandler(propositions domain.PropositionStore, decisions domain.DecisionStore) *PropositionHandler {
	return &PropositionHandler{propositions: propositions, decisions: decisions}
}

type scoredPropositionResponse struct {
	domain.ScoredProposition
	EffectiveConfidence float32 `json:"effective_confidence"`
}

type searchResponse struct {
	Propositions []scoredPropositionResponse `json:"propositions"`
	Query        string                      `json:"query"`
	Count        int                         `json:"count"`
}

func (h *PropositionHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q parameter is required")
		return
	}

	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	results, err := h.propositions.SearchPropositions(r.Context(), query, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	scored := make([]scoredPropositionResponse, 0, len(results))
	for _, sp := range results {
		scored = append(scored, scoredPropositionResponse{
			ScoredProposition:   sp,
			EffectiveConfidence: sp.EffectiveConfidence(decayWeight),
		})
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Propositions: scored,
		Query:        query,
		Count:        len(scored),
	})
}

type propositionResponse struct {
	domain.Proposition
	EffectiveConfidence float32              `json:"effective_confidence"`
	Evidence            []domain.Observation `json:"evidence"`
}

func (h *PropositionHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid proposition id")
		return
	}

	prop, err := h.propositions.GetProposition(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "proposition not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get proposition")
		return
	}

	evidence, err := h.propositions.ListEvidence(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list evidence")
		return
	}
	if evidence == nil {
		evidence = []domain.Observation{}
	}

	writeJSON(w, http.StatusOK, propositionResponse{
		Proposition:         *prop,
		EffectiveConfidence: prop.EffectiveConfidence(decayWeight),
		Evidence:            evidence,
	})
}

type historyResponse struct {
	GroupID  string               `json:"group_id"`
	Versions []domain.Proposition `json:"versions"`
	Count    int                  `json:"count"`
}

func (h *PropositionHandler) GroupHistory(w http.ResponseWriter, r *http.Request) {
	groupID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid group id")
		return
	}

	versions, err := h.propositions.GetGroupHistory(r.Context(), groupID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get history")
		return
	}
	if len(versions) == 0 {
		writeError(w, http.StatusNotFound, "revision group not found")
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{
		GroupID:  groupID.String(),
		Versions: versions,
		Count:    len(versions),
	})
}

type decisionsResponse struct {
	GroupID   string                  `json:"group_id"`
	Decisions []domain.DecisionRecord `json:"decisions"`
	Count     int                     `json:"count"`
}

func (h *PropositionHandler) GroupDecisions(w http.ResponseWriter, r *http.Request) {
	groupID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid group id")
		return
	}

	records, err := h.decisions.ListDecisions(r.Context(), groupID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list decisions")
		return
	}
	if records == nil {
		records = []domain.DecisionRecord{}
	}

	writeJSON(w, http.StatusOK, decisionsResponse{
		GroupID:   groupID.String(),
		Decisions: records,
		Count:     len(records),
	})
}
