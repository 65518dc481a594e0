// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "time"

// DefaultNamespace is used whenever a record or query names no namespace.
const DefaultNamespace = "default"

// VectorRecord is a stored, searchable unit.
type VectorRecord struct {
	ID        string         `json:"id,omitempty"`
	Vector    []float32      `json:"vector"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Content   string         `json:"content,omitempty"`
	Namespace string         `json:"namespace,omitempty"`
	CreatedAt time.Time      `json:"created_at,omitzero"`
	UpdatedAt time.Time      `json:"updated_at,omitzero"`
}

// VectorSearchQuery is a similarity request scoped to one namespace.
type VectorSearchQuery struct {
	Vector          []float32 `json:"vector"`
	Limit           int       `json:"limit"`
	Namespace       string    `json:"namespace,omitempty"`
	Filter          Filter    `json:"-"`
	IncludeMetadata bool      `json:"include_metadata,omitempty"`
	IncludeContent  bool      `json:"include_content,omitempty"`
	IncludeVector   bool      `json:"include_vector,omitempty"`
}

// VectorSearchResult is one ranked hit. Higher scores are more similar.
type VectorSearchResult struct {
	ID       string         `json:"id"`
	Score    float32        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Content  string         `json:"content,omitempty"`
	Vector   []float32      `json:"vector,omitempty"`
}

// VectorUpdate is a partial update. Nil fields are left unchanged.
type VectorUpdate struct {
	ID        string          `json:"id"`
	Namespace string          `json:"namespace,omitempty"`
	Vector    []float32       `json:"vector,omitempty"`
	Metadata  *map[string]any `json:"metadata,omitempty"`
	Content   *string         `json:"content,omitempty"`
}

// StorageStats summarizes one namespace of the active backend.
type StorageStats struct {
	Namespace    string `json:"namespace"`
	TotalVectors int64  `json:"total_vectors"`
	Dimensions   int    `json:"dimensions"`
	Backend      string `json:"backend"`
}

// RagContext is the evidence assembled for one retrieval-augmented call,
// in ranked order.
type RagContext struct {
	Contents  []string  `json:"contents"`
	SourceIDs []string  `json:"source_ids"`
	Scores    []float32 `json:"scores"`
}

// Len returns the number of retrieved entries.
func (c *RagContext) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Contents)
}
