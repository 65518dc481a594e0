// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/leseb/bedrock-gw/pkg/artifact"
	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
)

type imageRequest struct {
	schema.ImageGenerationRequest
	Save bool `json:"save,omitempty"`
}

type imageResponse struct {
	*schema.ImageGenerationResponse
	ArtifactIDs []string `json:"artifact_ids,omitempty"`
}

// handleGenerateText handles POST /v1/text/generate
func (h *Handler) handleGenerateText(w http.ResponseWriter, r *http.Request) {
	var req schema.TextGenerationRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	h.logger.Info("Processing text request", "model", req.ModelID, "stream", req.Stream)

	if req.Stream {
		h.handleStreamingText(w, r, req)
		return
	}

	resp, err := h.svc.Text.Generate(r.Context(), req)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStreamingText relays stream chunks as SSE data events. Errors
// before the first byte get a regular error response; later errors are
// sent as a final error event.
func (h *Handler) handleStreamingText(w http.ResponseWriter, r *http.Request, req schema.TextGenerationRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "streaming_not_supported", "Streaming not supported")
		return
	}

	reader, err := h.svc.Text.GenerateStream(r.Context(), req)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	chunks := 0
	for chunk, err := range reader.All(r.Context()) {
		if err != nil {
			h.logger.Error("Stream failed", "error", err, "chunks", chunks)
			_, errType := statusFor(err)
			data, _ := json.Marshal(errorBody(errType, err.Error()))
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
			return
		}
		data, err := json.Marshal(chunk)
		if err != nil {
			h.logger.Error("Failed to marshal chunk", "error", err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
		chunks++
	}

	h.logger.Info("Streaming completed", "chunks", chunks)
}

// handleGenerateImage handles POST /v1/images/generate. With save set,
// every image is decoded and stored as a PNG artifact.
func (h *Handler) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.Save && h.svc.Artifacts == nil {
		h.writeErr(w, errArtifactsDisabled)
		return
	}

	resp, err := h.svc.Images.Generate(r.Context(), req.ImageGenerationRequest)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	out := imageResponse{ImageGenerationResponse: resp}
	if req.Save {
		ids, err := h.saveImages(r, resp)
		if err != nil {
			h.writeErr(w, err)
			return
		}
		out.ArtifactIDs = ids
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) saveImages(r *http.Request, resp *schema.ImageGenerationResponse) ([]string, error) {
	ids := make([]string, 0, len(resp.Images))
	for i, img := range resp.Images {
		content, err := base64.StdEncoding.DecodeString(img)
		if err != nil {
			return nil, errdefs.Wrap(errdefs.KindResponse, err, "image %d is not valid base64", i)
		}
		a := artifact.New(fmt.Sprintf("image-%d.png", i+1), artifact.KindImage, content)
		a.Model = resp.Model
		if err := h.svc.Artifacts.Put(r.Context(), a); err != nil {
			return nil, err
		}
		h.logger.Info("Image saved", "artifact_id", a.ID, "bytes", a.Bytes, "model", a.Model)
		ids = append(ids, a.ID)
	}
	return ids, nil
}

// handleEmbeddings handles POST /v1/embeddings
func (h *Handler) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req schema.EmbeddingRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.svc.Embedder.Embed(r.Context(), req)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
