// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"net/http"
	"strconv"

	"github.com/leseb/bedrock-gw/pkg/core/schema"
)

type listResponse[T any] struct {
	Object string `json:"object"` // Always "list"
	Data   []T    `json:"data"`
}

func newList[T any](data []T) listResponse[T] {
	if data == nil {
		data = []T{}
	}
	return listResponse[T]{Object: "list", Data: data}
}

type batchInsertRequest struct {
	Records []schema.VectorRecord `json:"records"`
}

type batchDeleteRequest struct {
	IDs       []string `json:"ids"`
	Namespace string   `json:"namespace,omitempty"`
}

// vectorSearchRequest carries the filter as raw JSON; the typed filter on
// the embedded query is not serializable.
type vectorSearchRequest struct {
	schema.VectorSearchQuery
	Filter map[string]any `json:"filter,omitempty"`
}

// handleInsertVector handles POST /v1/vectors
func (h *Handler) handleInsertVector(w http.ResponseWriter, r *http.Request) {
	var rec schema.VectorRecord
	if !h.decodeJSON(w, r, &rec) {
		return
	}
	id, err := h.svc.Vectors.Insert(r.Context(), rec)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.logger.Info("Vector inserted", "id", id, "namespace", rec.Namespace)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// handleBatchInsertVectors handles POST /v1/vectors/batch
func (h *Handler) handleBatchInsertVectors(w http.ResponseWriter, r *http.Request) {
	var req batchInsertRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	ids, err := h.svc.Vectors.BatchInsert(r.Context(), req.Records)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.logger.Info("Vectors inserted", "count", len(ids))
	writeJSON(w, http.StatusCreated, map[string][]string{"ids": ids})
}

// handleSearchVectors handles POST /v1/vectors/search
func (h *Handler) handleSearchVectors(w http.ResponseWriter, r *http.Request) {
	var req vectorSearchRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	filter, err := schema.ParseFilter(anyOrNil(req.Filter))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	q := req.VectorSearchQuery
	q.Filter = filter

	results, err := h.svc.Vectors.Search(r.Context(), q)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(results))
}

// handleGetVector handles GET /v1/vectors/{id}
func (h *Handler) handleGetVector(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Vectors.Get(r.Context(), r.PathValue("id"), r.URL.Query().Get("namespace"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleUpdateVector handles PATCH /v1/vectors/{id}. The path id wins over
// any id in the body.
func (h *Handler) handleUpdateVector(w http.ResponseWriter, r *http.Request) {
	var upd schema.VectorUpdate
	if !h.decodeJSON(w, r, &upd) {
		return
	}
	upd.ID = r.PathValue("id")
	if upd.Namespace == "" {
		upd.Namespace = r.URL.Query().Get("namespace")
	}
	rec, err := h.svc.Vectors.Update(r.Context(), upd)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleDeleteVector handles DELETE /v1/vectors/{id}
func (h *Handler) handleDeleteVector(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	deleted, err := h.svc.Vectors.Delete(r.Context(), id, r.URL.Query().Get("namespace"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": deleted})
}

// handleDeleteVectors handles POST /v1/vectors/delete
func (h *Handler) handleDeleteVectors(w http.ResponseWriter, r *http.Request) {
	var req batchDeleteRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	n, err := h.svc.Vectors.DeleteBatch(r.Context(), req.IDs, req.Namespace)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

// handleListVectors handles GET /v1/vectors
func (h *Handler) handleListVectors(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.queryInt(w, r, "limit")
	if !ok {
		return
	}
	recs, err := h.svc.Vectors.List(r.Context(), r.URL.Query().Get("namespace"), limit)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(recs))
}

// handleVectorStats handles GET /v1/vectors/stats
func (h *Handler) handleVectorStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Vectors.Stats(r.Context(), r.URL.Query().Get("namespace"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// queryInt parses an optional integer query parameter. Absent means 0.
func (h *Handler) queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", name+" must be an integer")
		return 0, false
	}
	return n, true
}

// anyOrNil keeps an absent filter nil once boxed in an interface.
func anyOrNil(m map[string]any) any {
	if m == nil {
		return nil
	}
	return m
}
