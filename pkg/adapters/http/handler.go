// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/leseb/bedrock-gw/pkg/artifact"
	"github.com/leseb/bedrock-gw/pkg/core/api"
	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/services"
	"github.com/leseb/bedrock-gw/pkg/observability/logging"
	"github.com/leseb/bedrock-gw/pkg/vectorstore"
)

// defaultMaxUploadBytes bounds multipart uploads when Options leaves it unset.
const defaultMaxUploadBytes = 32 << 20

// Services are the components the HTTP adapter exposes. Artifacts is
// optional; every other field is required.
type Services struct {
	Text      *api.TextClient
	Images    *api.ImageClient
	Embedder  api.EmbeddingClient
	Vectors   *vectorstore.Store
	RAG       *services.RAGService
	Models    *services.ModelsService
	Artifacts artifact.Store
}

// Options tunes request handling.
type Options struct {
	MaxUploadBytes int64
}

// Handler implements the HTTP adapter
type Handler struct {
	svc    Services
	opts   Options
	logger *logging.Logger
	mux    *http.ServeMux
}

// New creates a new HTTP handler
func New(svc Services, logger *logging.Logger, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	h := &Handler{
		svc:    svc,
		opts:   opts,
		logger: logger,
		mux:    http.NewServeMux(),
	}

	// Register routes
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /openapi.json", h.handleOpenAPI)

	// Models API
	h.mux.HandleFunc("GET /v1/models", h.handleListModels)
	h.mux.HandleFunc("GET /v1/models/{id}", h.handleGetModel)

	// Generation API
	h.mux.HandleFunc("POST /v1/text/generate", h.handleGenerateText)
	h.mux.HandleFunc("POST /v1/images/generate", h.handleGenerateImage)
	h.mux.HandleFunc("POST /v1/embeddings", h.handleEmbeddings)

	// Vectors API
	h.mux.HandleFunc("POST /v1/vectors", h.handleInsertVector)
	h.mux.HandleFunc("POST /v1/vectors/batch", h.handleBatchInsertVectors)
	h.mux.HandleFunc("POST /v1/vectors/search", h.handleSearchVectors)
	h.mux.HandleFunc("POST /v1/vectors/delete", h.handleDeleteVectors)
	h.mux.HandleFunc("GET /v1/vectors", h.handleListVectors)
	h.mux.HandleFunc("GET /v1/vectors/stats", h.handleVectorStats)
	h.mux.HandleFunc("GET /v1/vectors/{id}", h.handleGetVector)
	h.mux.HandleFunc("PATCH /v1/vectors/{id}", h.handleUpdateVector)
	h.mux.HandleFunc("DELETE /v1/vectors/{id}", h.handleDeleteVector)

	// RAG API
	h.mux.HandleFunc("POST /v1/rag/generate", h.handleRAGGenerate)
	h.mux.HandleFunc("POST /v1/rag/documents", h.handleRAGStoreDocument)
	h.mux.HandleFunc("POST /v1/rag/search", h.handleRAGSearch)
	h.mux.HandleFunc("POST /v1/rag/ingest", h.handleRAGIngest)

	// Artifacts API
	h.mux.HandleFunc("POST /v1/artifacts", h.handleUploadArtifact)
	h.mux.HandleFunc("GET /v1/artifacts", h.handleListArtifacts)
	h.mux.HandleFunc("GET /v1/artifacts/{id}", h.handleGetArtifact)
	h.mux.HandleFunc("GET /v1/artifacts/{id}/content", h.handleGetArtifactContent)
	h.mux.HandleFunc("DELETE /v1/artifacts/{id}", h.handleDeleteArtifact)

	return h
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Request",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)

	h.mux.ServeHTTP(w, r)
}

// handleHealth reports the vector store's reachability.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Vectors.HealthCheck(r.Context()); err != nil {
		h.logger.Warn("Health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":       "unhealthy",
			"vector_store": h.svc.Vectors.Backend(),
			"error":        err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":       "healthy",
		"vector_store": h.svc.Vectors.Backend(),
	})
}

// decodeJSON reads the request body into v. A malformed body is reported
// as a request error.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.Error("Failed to parse request", "error", err)
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, errorBody(errType, message))
}

// writeErr maps err onto a status and error type and writes it.
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	status, errType := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "error", err, "status", status)
	} else {
		h.logger.Debug("Request rejected", "error", err, "status", status)
	}
	h.writeError(w, status, errType, err.Error())
}

func errorBody(errType, message string) map[string]any {
	return map[string]any{
		"error": map[string]string{
			"type":    errType,
			"message": message,
		},
	}
}

// statusFor translates the error taxonomy into HTTP terms. Missing
// resources and unsupported operations are checked before the kind.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, vectorstore.ErrNotFound),
		errors.Is(err, artifact.ErrNotFound),
		errors.Is(err, services.ErrModelNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, errdefs.ErrUnsupported):
		return http.StatusNotImplemented, "unsupported"
	}

	switch errdefs.KindOf(err) {
	case errdefs.KindRequest:
		return http.StatusBadRequest, "invalid_request"
	case errdefs.KindConfig:
		return http.StatusBadRequest, "config_error"
	case errdefs.KindResponse:
		return http.StatusBadGateway, "response_error"
	case errdefs.KindTransport:
		if errdefs.IsRetryable(err) {
			return http.StatusServiceUnavailable, "transport_error"
		}
		return http.StatusBadGateway, "transport_error"
	case errdefs.KindStorage:
		return http.StatusInternalServerError, "storage_error"
	}
	return http.StatusInternalServerError, "internal_error"
}
