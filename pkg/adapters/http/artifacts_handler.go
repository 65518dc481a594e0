// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"net/http"
	"strconv"

	"github.com/leseb/bedrock-gw/pkg/artifact"
	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
)

var errArtifactsDisabled = errdefs.Unsupported("artifacts", "storage is disabled")

// handleUploadArtifact handles POST /v1/artifacts. Uploads are stored as
// documents for later ingestion by id.
func (h *Handler) handleUploadArtifact(w http.ResponseWriter, r *http.Request) {
	if h.svc.Artifacts == nil {
		h.writeErr(w, errArtifactsDisabled)
		return
	}
	content, name, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	a := artifact.New(name, artifact.KindDocument, content)
	if err := h.svc.Artifacts.Put(r.Context(), a); err != nil {
		h.writeErr(w, err)
		return
	}

	h.logger.Info("Artifact uploaded", "artifact_id", a.ID, "name", name, "bytes", a.Bytes)
	writeJSON(w, http.StatusCreated, a)
}

// handleListArtifacts handles GET /v1/artifacts
func (h *Handler) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	if h.svc.Artifacts == nil {
		h.writeErr(w, errArtifactsDisabled)
		return
	}
	kind := artifact.Kind(r.URL.Query().Get("kind"))
	switch kind {
	case "", artifact.KindImage, artifact.KindDocument:
	default:
		h.writeError(w, http.StatusBadRequest, "invalid_request", "kind must be image or document")
		return
	}
	limit, ok := h.queryInt(w, r, "limit")
	if !ok {
		return
	}

	items, err := h.svc.Artifacts.List(r.Context(), kind, limit)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(items))
}

// handleGetArtifact handles GET /v1/artifacts/{id}
func (h *Handler) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	if h.svc.Artifacts == nil {
		h.writeErr(w, errArtifactsDisabled)
		return
	}
	a, err := h.svc.Artifacts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleGetArtifactContent handles GET /v1/artifacts/{id}/content
func (h *Handler) handleGetArtifactContent(w http.ResponseWriter, r *http.Request) {
	if h.svc.Artifacts == nil {
		h.writeErr(w, errArtifactsDisabled)
		return
	}
	id := r.PathValue("id")
	a, err := h.svc.Artifacts.Get(r.Context(), id)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	content, err := h.svc.Artifacts.Content(r.Context(), id)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	w.Header().Set("Content-Type", a.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(a.Name))
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}

// handleDeleteArtifact handles DELETE /v1/artifacts/{id}
func (h *Handler) handleDeleteArtifact(w http.ResponseWriter, r *http.Request) {
	if h.svc.Artifacts == nil {
		h.writeErr(w, errArtifactsDisabled)
		return
	}
	id := r.PathValue("id")
	if err := h.svc.Artifacts.Delete(r.Context(), id); err != nil {
		h.writeErr(w, err)
		return
	}
	h.logger.Info("Artifact deleted", "artifact_id", id)
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}
