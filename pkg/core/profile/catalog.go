// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package profile

// Category is the modality a model serves.
type Category string

const (
	CategoryText      Category = "text"
	CategoryImage     Category = "image"
	CategoryEmbedding Category = "embedding"
)

// Default model ids used when a request names none.
const (
	DefaultTextModel      = "amazon.titan-text-express-v1"
	DefaultImageModel     = "amazon.titan-image-generator-v1"
	DefaultEmbeddingModel = "amazon.titan-embed-text-v1"
)

// ModelInfo describes a catalog entry.
type ModelInfo struct {
	ID            string
	Name          string
	Provider      Provider
	Category      Category
	ContextWindow int
	Dimensions    int
}

var catalog = []ModelInfo{
	{ID: "amazon.titan-text-express-v1", Name: "Titan Text G1 - Express", Provider: Amazon, Category: CategoryText, ContextWindow: 8192},
	{ID: "amazon.titan-text-lite-v1", Name: "Titan Text G1 - Lite", Provider: Amazon, Category: CategoryText, ContextWindow: 4096},
	{ID: "anthropic.claude-3-5-sonnet-20240620-v1:0", Name: "Claude 3.5 Sonnet", Provider: Anthropic, Category: CategoryText, ContextWindow: 200000},
	{ID: "anthropic.claude-3-haiku-20240307-v1:0", Name: "Claude 3 Haiku", Provider: Anthropic, Category: CategoryText, ContextWindow: 200000},
	{ID: "anthropic.claude-3-sonnet-20240229-v1:0", Name: "Claude 3 Sonnet", Provider: Anthropic, Category: CategoryText, ContextWindow: 200000},
	{ID: "meta.llama3-8b-instruct-v1:0", Name: "Llama 3 8B Instruct", Provider: Meta, Category: CategoryText, ContextWindow: 8192},
	{ID: "meta.llama3-70b-instruct-v1:0", Name: "Llama 3 70B Instruct", Provider: Meta, Category: CategoryText, ContextWindow: 8192},
	{ID: "meta.llama2-13b-chat-v1", Name: "Llama 2 Chat 13B", Provider: Meta, Category: CategoryText, ContextWindow: 4096},
	{ID: "mistral.mistral-7b-instruct-v0:2", Name: "Mistral 7B Instruct", Provider: Mistral, Category: CategoryText, ContextWindow: 32000},
	{ID: "mistral.mixtral-8x7b-instruct-v0:1", Name: "Mixtral 8x7B Instruct", Provider: Mistral, Category: CategoryText, ContextWindow: 32000},
	{ID: "mistral.mistral-large-2402-v1:0", Name: "Mistral Large", Provider: Mistral, Category: CategoryText, ContextWindow: 32000},
	{ID: "ai21.jamba-1-5-mini-v1:0", Name: "Jamba 1.5 Mini", Provider: AI21, Category: CategoryText, ContextWindow: 256000},
	{ID: "ai21.j2-ultra-v1", Name: "Jurassic-2 Ultra", Provider: AI21, Category: CategoryText, ContextWindow: 8191},
	{ID: "cohere.command-r-v1:0", Name: "Command R", Provider: Cohere, Category: CategoryText, ContextWindow: 128000},
	{ID: "cohere.command-text-v14", Name: "Command", Provider: Cohere, Category: CategoryText, ContextWindow: 4000},
	{ID: "amazon.titan-image-generator-v1", Name: "Titan Image Generator G1", Provider: Amazon, Category: CategoryImage},
	{ID: "stability.stable-diffusion-xl-v1", Name: "SDXL 1.0", Provider: StabilityAI, Category: CategoryImage},
	{ID: "amazon.titan-embed-text-v1", Name: "Titan Embeddings G1 - Text", Provider: Amazon, Category: CategoryEmbedding, ContextWindow: 8192, Dimensions: 1536},
	{ID: "amazon.titan-embed-text-v2:0", Name: "Titan Text Embeddings V2", Provider: Amazon, Category: CategoryEmbedding, ContextWindow: 8192, Dimensions: 1024},
	{ID: "cohere.embed-english-v3", Name: "Cohere Embed English", Provider: Cohere, Category: CategoryEmbedding, ContextWindow: 512, Dimensions: 1024},
	{ID: "cohere.embed-multilingual-v3", Name: "Cohere Embed Multilingual", Provider: Cohere, Category: CategoryEmbedding, ContextWindow: 512, Dimensions: 1024},
}

// Catalog returns a copy of the supported model list.
func Catalog() []ModelInfo {
	out := make([]ModelInfo, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a catalog entry by id. Cross-region profile ids resolve to
// their base model.
func Lookup(id string) (ModelInfo, bool) {
	base := id
	if prof, err := Resolve(id, ""); err == nil && prof.BaseID != "" {
		base = prof.BaseID
	}
	for _, m := range catalog {
		if m.ID == base {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// EmbeddingDimensions returns the vector length produced by an embedding
// model, or 0 when unknown.
func EmbeddingDimensions(id string) int {
	m, ok := Lookup(id)
	if !ok {
		return 0
	}
	return m.Dimensions
}
