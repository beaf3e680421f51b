package handler

import (
	"net/http"

	"github.com/sandeepkv93/realtime-hub/internal/http/middleware"
	"github.com/sandeepkv93/realtime-hub/internal/http/response"
	"github.com/sandeepkv93/realtime-hub/internal/observability"
	"github.com/sandeepkv93/realtime-hub/internal/service"
)

type CatalogHandler struct {
	catalog *service.CatalogService
}

func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

func (h *CatalogHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	models, err := h.catalog.ModelsFor(r.Context(), *user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models)
}

func (h *CatalogHandler) CreateModel(w http.ResponseWriter, r *http.Request) {
	var in service.ModelConfigInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.catalog.CreateModel(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	observability.Audit(r, "admin.model_config.create", "model_config_id", m.ID)
	response.JSON(w, r, http.StatusCreated, m)
}

func (h *CatalogHandler) ListRolePrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := h.catalog.RolePrompts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, prompts)
}

func (h *CatalogHandler) CreateRolePrompt(w http.ResponseWriter, r *http.Request) {
	var in service.RolePromptInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.catalog.CreateRolePrompt(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	observability.Audit(r, "admin.role_prompt.create", "role_prompt_id", p.ID)
	response.JSON(w, r, http.StatusCreated, p)
}
