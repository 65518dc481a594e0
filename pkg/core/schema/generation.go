// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// TextGenerationRequest is the provider-neutral text generation input.
// Nil optional fields are filled with family defaults by the request builder.
type TextGenerationRequest struct {
	Prompt      string   `json:"prompt"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	ModelID     string   `json:"model_id,omitempty"`
	Stream      bool     `json:"stream,omitempty"`
	Provider    string   `json:"provider,omitempty"`
}

// Usage is the token accounting reported by the provider, when available.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// TextGenerationResponse is a completed, non-streamed text result.
type TextGenerationResponse struct {
	Text         string `json:"text"`
	Model        string `json:"model"`
	FinishReason string `json:"finish_reason,omitempty"`
	Usage        *Usage `json:"usage,omitempty"`
}

// StreamChunk is one increment of a streamed text result. Exactly one chunk
// of a stream has Done set and it is always the last.
type StreamChunk struct {
	Chunk        string `json:"chunk"`
	Done         bool   `json:"done"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Embedding input types understood by families that distinguish them.
const (
	InputTypeDocument = "search_document"
	InputTypeQuery    = "search_query"
)

// EmbeddingRequest asks for the vector representation of Text.
type EmbeddingRequest struct {
	Text      string `json:"text"`
	ModelID   string `json:"model_id,omitempty"`
	Provider  string `json:"provider,omitempty"`
	InputType string `json:"input_type,omitempty"`
}

// EmbeddingResponse carries one embedding. Its length is fixed per model.
type EmbeddingResponse struct {
	Embedding   []float32 `json:"embedding"`
	Model       string    `json:"model"`
	InputTokens int       `json:"input_tokens,omitempty"`
}

// ImageGenerationRequest is the provider-neutral image synthesis input.
type ImageGenerationRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Width          *int   `json:"width,omitempty"`
	Height         *int   `json:"height,omitempty"`
	NumImages      *int   `json:"num_images,omitempty"`
	Seed           *int64 `json:"seed,omitempty"`
	ModelID        string `json:"model_id,omitempty"`
	Provider       string `json:"provider,omitempty"`
}

// ImageGenerationResponse holds every returned image, base64 encoded, in
// provider order.
type ImageGenerationResponse struct {
	Images []string `json:"images"`
	Model  string   `json:"model"`
}

// First returns the first image or "" when there is none.
func (r *ImageGenerationResponse) First() string {
	if r == nil || len(r.Images) == 0 {
		return ""
	}
	return r.Images[0]
}
