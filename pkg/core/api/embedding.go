// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"log/slog"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/family"
	"github.com/leseb/bedrock-gw/pkg/core/profile"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
	"github.com/leseb/bedrock-gw/pkg/transport"
)

// BedrockEmbeddingClient embeds text with Titan or Cohere embedding models.
type BedrockEmbeddingClient struct {
	transport    transport.Transport
	defaultModel string
	// dimensions is forwarded to models with a configurable output size.
	dimensions int
	logger     *slog.Logger
}

var _ EmbeddingClient = (*BedrockEmbeddingClient)(nil)

func NewBedrockEmbeddingClient(t transport.Transport, defaultModel string, dimensions int, logger *slog.Logger) *BedrockEmbeddingClient {
	if defaultModel == "" {
		defaultModel = profile.DefaultEmbeddingModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BedrockEmbeddingClient{transport: t, defaultModel: defaultModel, dimensions: dimensions, logger: logger}
}

func (c *BedrockEmbeddingClient) DefaultModel() string { return c.defaultModel }

func (c *BedrockEmbeddingClient) Embed(ctx context.Context, req schema.EmbeddingRequest) (*schema.EmbeddingResponse, error) {
	if req.Text == "" {
		return nil, errdefs.Requestf("text is required")
	}
	prof, codec, err := c.codec(req.ModelID, req.Provider)
	if err != nil {
		return nil, err
	}
	out, err := c.invoke(ctx, prof, codec, family.EmbeddingInput{
		Texts:      []string{req.Text},
		InputType:  req.InputType,
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, err
	}
	return &schema.EmbeddingResponse{
		Embedding:   out.Vectors[0],
		Model:       prof.ModelID,
		InputTokens: out.InputTokens,
	}, nil
}

// EmbedBatch sends texts in the largest batches the family accepts.
func (c *BedrockEmbeddingClient) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	prof, codec, err := c.codec(model, "")
	if err != nil {
		return nil, err
	}
	vecs := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += codec.MaxBatch() {
		end := min(start+codec.MaxBatch(), len(texts))
		out, err := c.invoke(ctx, prof, codec, family.EmbeddingInput{
			Texts:      texts[start:end],
			InputType:  schema.InputTypeDocument,
			Dimensions: c.dimensions,
		})
		if err != nil {
			return nil, err
		}
		vecs = append(vecs, out.Vectors...)
	}
	c.logger.Debug("Embedded batch", "model", prof.ModelID, "texts", len(texts))
	return vecs, nil
}

func (c *BedrockEmbeddingClient) codec(model, provider string) (profile.ModelProfile, family.EmbeddingCodec, error) {
	prof, err := resolveProfile(model, c.defaultModel, provider)
	if err != nil {
		return profile.ModelProfile{}, nil, err
	}
	codec, err := family.Embedding(prof.Provider)
	if err != nil {
		return profile.ModelProfile{}, nil, err
	}
	return prof, codec, nil
}

func (c *BedrockEmbeddingClient) invoke(ctx context.Context, prof profile.ModelProfile, codec family.EmbeddingCodec, in family.EmbeddingInput) (*family.EmbeddingOutput, error) {
	body, err := codec.BuildEmbedding(in, prof)
	if err != nil {
		return nil, err
	}
	raw, err := c.transport.Invoke(ctx, prof.ModelID, body)
	if err != nil {
		return nil, err
	}
	out, err := codec.ParseEmbedding(raw, prof)
	if err != nil {
		return nil, err
	}
	if len(out.Vectors) != len(in.Texts) {
		return nil, errdefs.Responsef("%s: got %d embeddings for %d texts", prof.Provider, len(out.Vectors), len(in.Texts))
	}
	return out, nil
}
