// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/leseb/bedrock-gw/pkg/core/schema"
)

type ragGenerateRequest struct {
	schema.RAGRequest
	Filter map[string]any `json:"filter,omitempty"`
}

type ragDocumentRequest struct {
	Text       string         `json:"text"`
	EmbedModel string         `json:"embed_model,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Namespace  string         `json:"namespace,omitempty"`
}

type ragSearchRequest struct {
	Query      string         `json:"query"`
	Limit      int            `json:"limit,omitempty"`
	EmbedModel string         `json:"embed_model,omitempty"`
	Namespace  string         `json:"namespace,omitempty"`
	Filter     map[string]any `json:"filter,omitempty"`
}

// ragIngestRequest is the JSON form of an ingestion: either an artifact id
// or inline text with a file name.
type ragIngestRequest struct {
	schema.IngestRequest
	Text string `json:"text,omitempty"`
}

// handleRAGGenerate handles POST /v1/rag/generate
func (h *Handler) handleRAGGenerate(w http.ResponseWriter, r *http.Request) {
	var req ragGenerateRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	filter, err := schema.ParseFilter(anyOrNil(req.Filter))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	ragReq := req.RAGRequest
	ragReq.Filter = filter

	resp, err := h.svc.RAG.GenerateWithContext(r.Context(), ragReq)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.logger.Info("RAG answer generated", "model", resp.Model, "context", resp.Context.Len())
	writeJSON(w, http.StatusOK, resp)
}

// handleRAGStoreDocument handles POST /v1/rag/documents
func (h *Handler) handleRAGStoreDocument(w http.ResponseWriter, r *http.Request) {
	var req ragDocumentRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	rec, err := h.svc.RAG.EmbedAndStore(r.Context(), req.Text, req.EmbedModel, req.Metadata, req.Namespace)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": rec.ID, "namespace": rec.Namespace})
}

// handleRAGSearch handles POST /v1/rag/search
func (h *Handler) handleRAGSearch(w http.ResponseWriter, r *http.Request) {
	var req ragSearchRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	filter, err := schema.ParseFilter(anyOrNil(req.Filter))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	results, err := h.svc.RAG.SemanticSearch(r.Context(), req.Query, req.Limit, req.EmbedModel, req.Namespace, filter)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(results))
}

// handleRAGIngest handles POST /v1/rag/ingest. A multipart body uploads
// the document in its "file" part; a JSON body names a stored artifact or
// carries the text inline.
func (h *Handler) handleRAGIngest(w http.ResponseWriter, r *http.Request) {
	var req schema.IngestRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		var ok bool
		if req, ok = h.parseIngestForm(w, r); !ok {
			return
		}
	} else {
		var body ragIngestRequest
		if !h.decodeJSON(w, r, &body) {
			return
		}
		req = body.IngestRequest
		if body.Text != "" {
			req.Content = []byte(body.Text)
			if req.Name == "" {
				req.Name = "document.txt"
			}
		}
	}

	resp, err := h.svc.RAG.IngestDocument(r.Context(), req)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.logger.Info("Document ingested", "source", resp.Source, "chunks", resp.Chunks, "namespace", resp.Namespace)
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) parseIngestForm(w http.ResponseWriter, r *http.Request) (schema.IngestRequest, bool) {
	var req schema.IngestRequest
	content, name, ok := h.readUpload(w, r)
	if !ok {
		return req, false
	}
	req.Name = name
	req.Content = content
	req.Namespace = r.FormValue("namespace")
	req.EmbedModel = r.FormValue("embed_model")

	for field, dst := range map[string]*int{"chunk_size": &req.ChunkSize, "overlap": &req.Overlap} {
		raw := r.FormValue(field)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", field+" must be an integer")
			return req, false
		}
		*dst = n
	}

	if raw := r.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Metadata); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "metadata must be a JSON object")
			return req, false
		}
	}
	return req, true
}

// readUpload reads the "file" part of a multipart request, bounded by the
// configured upload limit.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "invalid_request",
				"Upload exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return nil, "", false
		}
		h.logger.Error("Failed to parse multipart form", "error", err)
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Failed to parse multipart form")
		return nil, "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "File is required")
		return nil, "", false
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("Failed to read file content", "error", err)
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Failed to read file content")
		return nil, "", false
	}
	return content, header.Filename, true
}
