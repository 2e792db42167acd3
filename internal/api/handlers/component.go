package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/neverl0se/forgeModsConflictMediator/internal/catalog"
	"github.com/neverl0se/forgeModsConflictMediator/internal/registry"
)

// ComponentHandler maintains the loaded-component list used for owner attribution.
type ComponentHandler struct {
	catalog *catalog.Catalog
	reg     *registry.Registry
}

func NewComponentHandler(c *catalog.Catalog, reg *registry.Registry) *ComponentHandler {
	return &ComponentHandler{catalog: c, reg: reg}
}

type componentView struct {
	ID        string   `json:"id"`
	Artifacts []string `json:"artifacts"`
}

func (h *ComponentHandler) List(w http.ResponseWriter, r *http.Request) {
	ids := h.catalog.LoadedComponents()
	out := make([]componentView, 0, len(ids))
	for _, id := range ids {
		arts := h.reg.RegisteredArtifacts(id)
		if arts == nil {
			arts = []string{}
		}
		out = append(out, componentView{ID: id, Artifacts: arts})
	}
	writeJSON(w, http.StatusOK, map[string]any{"components": out})
}

type setComponentsRequest struct {
	Components []string `json:"components"`
}

// Replace sets the loaded-component list; order is attribution priority.
func (h *ComponentHandler) Replace(w http.ResponseWriter, r *http.Request) {
	var req setComponentsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		bodyError(w, err)
		return
	}
	h.catalog.Set(req.Components)
	writeJSON(w, http.StatusOK, map[string]any{"components": h.catalog.LoadedComponents()})
}

type registerArtifactsRequest struct {
	Artifacts []string `json:"artifacts"`
}

// RegisterArtifacts declares disableable modules for an owner.
func (h *ComponentHandler) RegisterArtifacts(w http.ResponseWriter, r *http.Request) {
	owner := strings.TrimSpace(chi.URLParam(r, "owner"))
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner is required")
		return
	}
	var req registerArtifactsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		bodyError(w, err)
		return
	}
	if len(req.Artifacts) == 0 {
		writeError(w, http.StatusBadRequest, "artifacts is required")
		return
	}
	h.catalog.Add(owner)
	for _, id := range req.Artifacts {
		if id = strings.TrimSpace(id); id != "" {
			h.reg.RegisterArtifact(owner, id)
		}
	}
	writeJSON(w, http.StatusOK, componentView{ID: owner, Artifacts: h.reg.RegisteredArtifacts(owner)})
}
