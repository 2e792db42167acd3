package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/neverl0se/forgeModsConflictMediator/internal/analysis"
	"github.com/neverl0se/forgeModsConflictMediator/internal/domain"
	"github.com/neverl0se/forgeModsConflictMediator/internal/service"
)

// FailureHandler is the inbound reportFailure port over HTTP.
type FailureHandler struct {
	svc      *service.MediationService
	reporter *service.Reporter
}

func NewFailureHandler(svc *service.MediationService, reporter *service.Reporter) *FailureHandler {
	return &FailureHandler{svc: svc, reporter: reporter}
}

type acceptedResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// Report queues a JSON failure descriptor for mediation. With ?wait=true the
// session runs in the request goroutine and the outcome is returned.
func (h *FailureHandler) Report(w http.ResponseWriter, r *http.Request) {
	var f domain.FailureDescriptor
	if err := decodeJSON(w, r, &f); err != nil {
		bodyError(w, err)
		return
	}
	h.mediate(w, r, &f)
}

// ReportText accepts a raw textual stack dump.
func (h *FailureHandler) ReportText(w http.ResponseWriter, r *http.Request) {
	text, err := readText(w, r)
	if err != nil {
		bodyError(w, err)
		return
	}
	if strings.TrimSpace(text) == "" {
		writeError(w, http.StatusBadRequest, "empty trace")
		return
	}
	h.mediate(w, r, analysis.ParseTraceText(text))
}

// Analyze returns the conflict records for a descriptor without starting a session.
func (h *FailureHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var f domain.FailureDescriptor
	if err := decodeJSON(w, r, &f); err != nil {
		bodyError(w, err)
		return
	}
	records := h.svc.Analyze(&f)
	if records == nil {
		records = []domain.ConflictRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (h *FailureHandler) mediate(w http.ResponseWriter, r *http.Request, f *domain.FailureDescriptor) {
	if f == nil || (f.Message == "" && len(f.Frames) == 0 && f.Cause == nil) {
		writeError(w, http.StatusBadRequest, "failure has no message or frames")
		return
	}

	if queryBool(r, "wait") {
		out := h.reporter.ReportFailure(r.Context(), f)
		if out == nil {
			writeError(w, http.StatusInternalServerError, "mediation failed")
			return
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	id, err := h.reporter.Submit(f)
	if err != nil {
		submitError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse{SessionID: id.String(), Status: "queued"})
}

func submitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrQueueFull):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, service.ErrReporterStopped):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, service.ErrEmptyReport):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "failed to queue report")
	}
}
