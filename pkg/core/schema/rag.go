// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// RAGRequest asks for an answer grounded in stored documents.
type RAGRequest struct {
	Query        string   `json:"query"`
	ContextLimit int      `json:"context_limit,omitempty"`
	GenModel     string   `json:"gen_model,omitempty"`
	EmbedModel   string   `json:"embed_model,omitempty"`
	Namespace    string   `json:"namespace,omitempty"`
	MaxTokens    *int     `json:"max_tokens,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	Filter       Filter   `json:"-"`
}

// RAGResponse is the generated answer plus the evidence it was given.
type RAGResponse struct {
	Text         string     `json:"text"`
	Model        string     `json:"model"`
	FinishReason string     `json:"finish_reason,omitempty"`
	Usage        *Usage     `json:"usage,omitempty"`
	Context      RagContext `json:"context"`
}

// IngestRequest describes one document to chunk, embed and store. Either
// ArtifactID or Name and Content must be set.
type IngestRequest struct {
	ArtifactID string         `json:"artifact_id,omitempty"`
	Name       string         `json:"name,omitempty"`
	Content    []byte         `json:"-"`
	Namespace  string         `json:"namespace,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	ChunkSize  int            `json:"chunk_size,omitempty"`
	Overlap    int            `json:"overlap,omitempty"`
	EmbedModel string         `json:"embed_model,omitempty"`
}

// IngestResponse reports what an ingestion stored.
type IngestResponse struct {
	ArtifactID string   `json:"artifact_id,omitempty"`
	Source     string   `json:"source"`
	Namespace  string   `json:"namespace"`
	Chunks     int      `json:"chunks"`
	IDs        []string `json:"ids"`
}
