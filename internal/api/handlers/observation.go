package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Harshitk-cp/doxa/internal/domain"
	"github.com/Harshitk-cp/doxa/internal/service"
	"github.com/google/uuid"
)

// ObservationHandler is the producer ingress. A 202 means the observation
// survived a durable write; anything less is an error the producer must
// retry.
type ObservationHandler struct {
	queue    domain.ObservationQueue
	activity *service.ManualActivitySource
}

// NewObservationHandler builds the handler. activity may be nil; when set,
// every accepted observation also registers as an input-activity event so
// the attention monitor sees ingress-driven activity.
func NewObservationHandler(queue domain.ObservationQueue, activity *service.ManualActivitySource) *ObservationHandler {
	return &ObservationHandler{queue: queue, activity: activity}
}

type enqueueResponse struct {
	ID         string    `json:"id"`
	CapturedAt time.Time `json:"captured_at"`
}

func (h *ObservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.Update
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if !domain.ValidContentType(req.ContentType) {
		writeError(w, http.StatusBadRequest, "invalid content_type")
		return
	}
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, "source is required")
		return
	}

	capturedAt := time.Now().UTC()
	if req.CapturedAt != nil {
		capturedAt = req.CapturedAt.UTC()
	}

	obs := domain.Observation{
		ID:          uuid.New(),
		CapturedAt:  capturedAt,
		Content:     req.Content,
		ContentType: domain.ContentType(req.ContentType),
		Source:      req.Source,
	}

	if err := h.queue.Enqueue(r.Context(), obs); err != nil {
		if errors.Is(err, domain.ErrQueueClosed) {
			writeError(w, http.StatusServiceUnavailable, "shutting down")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "durable write failed, retry")
		return
	}

	if h.activity != nil {
		h.activity.Record()
	}

	writeJSON(w, http.StatusAccepted, enqueueResponse{
		ID:         obs.ID.String(),
		CapturedAt: obs.CapturedAt,
	})
}
