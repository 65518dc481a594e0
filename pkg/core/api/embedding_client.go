// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
)

// EmbeddingClient turns text into vectors.
type EmbeddingClient interface {
	// Embed returns the vector of one text.
	Embed(ctx context.Context, req schema.EmbeddingRequest) (*schema.EmbeddingResponse, error)
	// EmbedBatch embeds texts as documents and returns one vector per text,
	// in order.
	EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error)
	// DefaultModel names the model used when a request names none.
	DefaultModel() string
}

// OpenAIEmbeddingClient implements EmbeddingClient against an
// OpenAI-compatible embeddings endpoint (OpenAI, vLLM, Ollama).
type OpenAIEmbeddingClient struct {
	client     openai.Client
	model      string
	dimensions int
}

var _ EmbeddingClient = (*OpenAIEmbeddingClient)(nil)

// NewOpenAIEmbeddingClient creates an embedding client with its own base URL and API key.
func NewOpenAIEmbeddingClient(baseURL, apiKey, model string, dimensions int) *OpenAIEmbeddingClient {
	opts := []option.RequestOption{}

	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	} else {
		// Local servers accept any key.
		opts = append(opts, option.WithAPIKey("dummy"))
	}

	return &OpenAIEmbeddingClient{
		client:     openai.NewClient(opts...),
		model:      model,
		dimensions: dimensions,
	}
}

func (c *OpenAIEmbeddingClient) DefaultModel() string { return c.model }

func (c *OpenAIEmbeddingClient) Embed(ctx context.Context, req schema.EmbeddingRequest) (*schema.EmbeddingResponse, error) {
	if req.Text == "" {
		return nil, errdefs.Requestf("text is required")
	}
	model := req.ModelID
	if model == "" {
		model = c.model
	}
	vecs, tokens, err := c.embed(ctx, model, []string{req.Text})
	if err != nil {
		return nil, err
	}
	return &schema.EmbeddingResponse{Embedding: vecs[0], Model: model, InputTokens: tokens}, nil
}

func (c *OpenAIEmbeddingClient) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if model == "" {
		model = c.model
	}
	vecs, _, err := c.embed(ctx, model, texts)
	return vecs, err
}

func (c *OpenAIEmbeddingClient) embed(ctx context.Context, model string, inputs []string) ([][]float32, int, error) {
	// A single input is sent as a plain string for servers that reject arrays.
	var input openai.EmbeddingNewParamsInputUnion
	if len(inputs) == 1 {
		input = openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(inputs[0]),
		}
	} else {
		input = openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: inputs,
		}
	}

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(model),
		Input: input,
	}
	if c.dimensions > 0 {
		params.Dimensions = openai.Int(int64(c.dimensions))
	}

	resp, err := c.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, 0, classifyOpenAI(err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, 0, errdefs.Responsef("embeddings: got %d vectors for %d inputs", len(resp.Data), len(inputs))
	}

	results := make([][]float32, len(inputs))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(inputs) {
			return nil, 0, errdefs.Responsef("embeddings: vector index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		results[d.Index] = vec
	}
	return results, int(resp.Usage.PromptTokens), nil
}

func classifyOpenAI(err error) error {
	e := &errdefs.Error{Kind: errdefs.KindTransport, Msg: "embedding request failed", Err: err}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		e.Retryable = apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return e
}
