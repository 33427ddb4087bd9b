package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/doxa/internal/domain"
)

type AttentionHandler struct {
	sampler domain.AttentionSampler
}

func NewAttentionHandler(sampler domain.AttentionSampler) *AttentionHandler {
	return &AttentionHandler{sampler: sampler}
}

// Get returns the latest attention snapshot. Sampling never blocks; the
// snapshot is at most one refresh interval stale.
func (h *AttentionHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sampler.Sample())
}
