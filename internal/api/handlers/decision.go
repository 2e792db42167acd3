package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/neverl0se/forgeModsConflictMediator/internal/presenter"
)

// DecisionHandler exposes sessions waiting on an operator.
type DecisionHandler struct {
	queue *presenter.DecisionQueue
}

func NewDecisionHandler(queue *presenter.DecisionQueue) *DecisionHandler {
	return &DecisionHandler{queue: queue}
}

func (h *DecisionHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"decisions": h.queue.Pending()})
}

func (h *DecisionHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	d, ok := h.queue.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "decision not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type resolveRequest struct {
	Selected []int `json:"selected"`
}

// Resolve submits the operator's selection. An empty list dismisses every option.
func (h *DecisionHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	var req resolveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		bodyError(w, err)
		return
	}
	if err := h.queue.Resolve(id, req.Selected); err != nil {
		decisionError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"session_id": id, "selected": req.Selected})
}

func (h *DecisionHandler) Skip(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	if err := h.queue.Skip(id); err != nil {
		decisionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decisionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, presenter.ErrDecisionNotFound):
		writeError(w, http.StatusNotFound, "decision not found")
	case errors.Is(err, presenter.ErrInvalidSelection):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "failed to record decision")
	}
}
