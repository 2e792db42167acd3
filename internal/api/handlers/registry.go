package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/neverl0se/forgeModsConflictMediator/internal/registry"
	"go.uber.org/zap"
)

// RegistryHandler lets an operator inspect and edit the disablement registry.
// Every successful edit is saved immediately.
type RegistryHandler struct {
	reg    *registry.Registry
	logger *zap.Logger
}

func NewRegistryHandler(reg *registry.Registry, logger *zap.Logger) *RegistryHandler {
	return &RegistryHandler{reg: reg, logger: logger}
}

func (h *RegistryHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reg.Snapshot())
}

func (h *RegistryHandler) DisableArtifact(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := ownerArtifactParams(w, r)
	if !ok {
		return
	}
	h.commit(w, h.reg.Disable(owner, id))
}

func (h *RegistryHandler) EnableArtifact(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := ownerArtifactParams(w, r)
	if !ok {
		return
	}
	h.commit(w, h.reg.Enable(owner, id))
}

func (h *RegistryHandler) DisablePatch(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "patch id is required")
		return
	}
	h.commit(w, h.reg.DisablePatch(id))
}

func (h *RegistryHandler) EnablePatch(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "patch id is required")
		return
	}
	h.commit(w, h.reg.EnablePatch(id))
}

func (h *RegistryHandler) commit(w http.ResponseWriter, changed bool) {
	if changed {
		if err := h.reg.Save(); err != nil {
			h.logger.Error("failed to persist registry edit", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "registry updated in memory but could not be saved")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"changed":          changed,
		"restart_required": changed,
		"registry":         h.reg.Snapshot(),
	})
}

func ownerArtifactParams(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	owner := strings.TrimSpace(chi.URLParam(r, "owner"))
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if owner == "" || id == "" {
		writeError(w, http.StatusBadRequest, "owner and artifact id are required")
		return "", "", false
	}
	return owner, id, true
}
