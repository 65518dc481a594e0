// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// Model describes one entry of the supported model catalog.
type Model struct {
	ID       string `json:"id"`       // Bedrock model identifier, e.g. "anthropic.claude-3-haiku-20240307-v1:0"
	Object   string `json:"object"`   // Always "model"
	OwnedBy  string `json:"owned_by"` // Provider family
	Name     string `json:"name"`
	Category string `json:"category"` // "text", "image" or "embedding"

	// Optional metadata
	ContextWindow int  `json:"context_window,omitempty"`
	Dimensions    int  `json:"dimensions,omitempty"`
	Streaming     bool `json:"streaming"`
}

// ListModelsResponse represents a list of models
type ListModelsResponse struct {
	Object string  `json:"object"` // Always "list"
	Data   []Model `json:"data"`
}
