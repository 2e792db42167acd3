package handlers

import (
	"net/http"
	"strings"

	"github.com/neverl0se/forgeModsConflictMediator/internal/domain"
	"github.com/neverl0se/forgeModsConflictMediator/internal/service"
)

type SignalHandler struct {
	reporter *service.Reporter
}

func NewSignalHandler(reporter *service.Reporter) *SignalHandler {
	return &SignalHandler{reporter: reporter}
}

// Create accepts a host-reported conflict between two known owners.
func (h *SignalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var sig domain.ConflictSignal
	if err := decodeJSON(w, r, &sig); err != nil {
		bodyError(w, err)
		return
	}
	if strings.TrimSpace(sig.OwnerA) == "" && strings.TrimSpace(sig.OwnerB) == "" {
		writeError(w, http.StatusBadRequest, "owner_a or owner_b is required")
		return
	}
	if sig.Kind != "" && !domain.ValidConflictKind(string(sig.Kind)) {
		writeError(w, http.StatusBadRequest, "invalid conflict kind")
		return
	}

	if queryBool(r, "wait") {
		out := h.reporter.ReportSignal(r.Context(), sig)
		if out == nil {
			writeError(w, http.StatusInternalServerError, "mediation failed")
			return
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	id, err := h.reporter.SubmitSignal(sig)
	if err != nil {
		submitError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse{SessionID: id.String(), Status: "queued"})
}
