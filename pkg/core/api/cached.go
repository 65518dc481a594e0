// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"log/slog"

	"github.com/leseb/bedrock-gw/pkg/cache"
	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
)

// CachedEmbeddingClient serves repeated texts from an EmbeddingCache.
// Cache failures are logged and fall through to the wrapped client.
type CachedEmbeddingClient struct {
	next   EmbeddingClient
	cache  cache.EmbeddingCache
	logger *slog.Logger
}

var _ EmbeddingClient = (*CachedEmbeddingClient)(nil)

func NewCachedEmbeddingClient(next EmbeddingClient, c cache.EmbeddingCache, logger *slog.Logger) *CachedEmbeddingClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedEmbeddingClient{next: next, cache: c, logger: logger}
}

func (c *CachedEmbeddingClient) DefaultModel() string { return c.next.DefaultModel() }

// model names the entry a request maps to. Keys always carry a model so a
// changed default never serves vectors of the old one.
func (c *CachedEmbeddingClient) model(model string) string {
	if model == "" {
		return c.next.DefaultModel()
	}
	return model
}

func (c *CachedEmbeddingClient) Embed(ctx context.Context, req schema.EmbeddingRequest) (*schema.EmbeddingResponse, error) {
	model := c.model(req.ModelID)
	key := cache.Key(model, req.InputType, req.Text)
	if vec, ok := c.lookup(ctx, key); ok {
		return &schema.EmbeddingResponse{Embedding: vec, Model: model}, nil
	}
	resp, err := c.next.Embed(ctx, req)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, resp.Embedding)
	return resp, nil
}

// EmbedBatch only forwards the texts missing from the cache.
func (c *CachedEmbeddingClient) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	model = c.model(model)
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, t := range texts {
		if vec, ok := c.lookup(ctx, cache.Key(model, schema.InputTypeDocument, t)); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := c.next.EmbedBatch(ctx, model, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, errdefs.Responsef("embeddings: got %d vectors for %d texts", len(vecs), len(missing))
	}
	for j, vec := range vecs {
		out[missingIdx[j]] = vec
		c.store(ctx, cache.Key(model, schema.InputTypeDocument, missing[j]), vec)
	}
	return out, nil
}

func (c *CachedEmbeddingClient) lookup(ctx context.Context, key string) ([]float32, bool) {
	vec, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("Embedding cache lookup failed", "error", err)
		return nil, false
	}
	return vec, ok
}

func (c *CachedEmbeddingClient) store(ctx context.Context, key string, vec []float32) {
	if err := c.cache.Set(ctx, key, vec); err != nil {
		c.logger.Warn("Embedding cache store failed", "error", err)
	}
}
