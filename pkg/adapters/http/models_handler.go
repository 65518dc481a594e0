// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"net/http"

	"github.com/leseb/bedrock-gw/pkg/core/profile"
)

// handleListModels handles GET /v1/models. An optional category query
// parameter narrows the list to text, image or embedding models.
func (h *Handler) handleListModels(w http.ResponseWriter, r *http.Request) {
	category := profile.Category(r.URL.Query().Get("category"))
	switch category {
	case "", profile.CategoryText, profile.CategoryImage, profile.CategoryEmbedding:
	default:
		h.writeError(w, http.StatusBadRequest, "invalid_request", "category must be text, image or embedding")
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Models.ListModels(r.Context(), category))
}

// handleGetModel handles GET /v1/models/{id}
func (h *Handler) handleGetModel(w http.ResponseWriter, r *http.Request) {
	modelID := r.PathValue("id")
	if modelID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Model ID is required")
		return
	}

	model, err := h.svc.Models.GetModel(r.Context(), modelID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model)
}
