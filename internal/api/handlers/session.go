package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/neverl0se/forgeModsConflictMediator/internal/domain"
	"github.com/neverl0se/forgeModsConflictMediator/internal/store"
)

const defaultSessionLimit = 50

// SessionHandler reads the mediation journal.
type SessionHandler struct {
	journal domain.JournalStore
}

func NewSessionHandler(journal domain.JournalStore) *SessionHandler {
	return &SessionHandler{journal: journal}
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	outcomes, err := h.journal.List(r.Context(), queryInt(r, "limit", defaultSessionLimit))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if outcomes == nil {
		outcomes = []domain.MediationOutcome{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": outcomes})
}

func (h *SessionHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	out, err := h.journal.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get session")
		return
	}
	writeJSON(w, http.StatusOK, out)
}
