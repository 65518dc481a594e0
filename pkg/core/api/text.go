// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package api holds the model clients. Each client resolves a model profile,
// builds the family payload, sends it through a transport and parses the
// family response.
package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/leseb/bedrock-gw/pkg/core/family"
	"github.com/leseb/bedrock-gw/pkg/core/profile"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
	"github.com/leseb/bedrock-gw/pkg/core/stream"
	"github.com/leseb/bedrock-gw/pkg/transport"
)

// TextClient generates text with any text-capable model family.
type TextClient struct {
	transport    transport.Transport
	defaultModel string
	logger       *slog.Logger
}

// NewTextClient returns a client using defaultModel for requests that name
// no model.
func NewTextClient(t transport.Transport, defaultModel string, logger *slog.Logger) *TextClient {
	if defaultModel == "" {
		defaultModel = profile.DefaultTextModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TextClient{transport: t, defaultModel: defaultModel, logger: logger}
}

// DefaultModel returns the model used when a request names none.
func (c *TextClient) DefaultModel() string { return c.defaultModel }

func (c *TextClient) prepare(req schema.TextGenerationRequest, streaming bool) (profile.ModelProfile, family.TextCodec, []byte, error) {
	prof, err := resolveProfile(req.ModelID, c.defaultModel, req.Provider)
	if err != nil {
		return profile.ModelProfile{}, nil, nil, err
	}
	if prof, err = prof.WithStreaming(streaming); err != nil {
		return profile.ModelProfile{}, nil, nil, err
	}
	codec, err := family.Text(prof.Provider)
	if err != nil {
		return profile.ModelProfile{}, nil, nil, err
	}
	body, err := codec.BuildText(req, prof)
	if err != nil {
		return profile.ModelProfile{}, nil, nil, err
	}
	return prof, codec, body, nil
}

// Generate returns the complete text for req. A request with Stream set is
// streamed and collected.
func (c *TextClient) Generate(ctx context.Context, req schema.TextGenerationRequest) (*schema.TextGenerationResponse, error) {
	if req.Stream {
		r, err := c.GenerateStream(ctx, req)
		if err != nil {
			return nil, err
		}
		model := req.ModelID
		if model == "" {
			model = c.defaultModel
		}
		return r.Collect(ctx, model)
	}

	prof, codec, body, err := c.prepare(req, false)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	raw, err := c.transport.Invoke(ctx, prof.ModelID, body)
	if err != nil {
		return nil, err
	}
	resp, err := codec.ParseText(raw, prof)
	if err != nil {
		c.logger.Warn("Failed to parse model response", "model", prof.ModelID, "error", err)
		return nil, err
	}
	c.logger.Debug("Generated text", "model", prof.ModelID, "provider", prof.Provider,
		"chars", len(resp.Text), "duration", time.Since(start))
	return resp, nil
}

// GenerateStream starts a streamed generation. The caller must drain or
// close the returned reader.
func (c *TextClient) GenerateStream(ctx context.Context, req schema.TextGenerationRequest) (*stream.Reader, error) {
	prof, codec, body, err := c.prepare(req, true)
	if err != nil {
		return nil, err
	}
	rc, framer, err := c.transport.InvokeStream(ctx, prof.ModelID, body)
	if err != nil {
		return nil, err
	}
	return stream.NewReader(rc, framer, func(frame []byte) (*schema.StreamChunk, error) {
		return codec.ParseChunk(frame, prof)
	}), nil
}

// resolveProfile applies the default model and an optional provider name.
func resolveProfile(modelID, defaultModel, provider string) (profile.ModelProfile, error) {
	if modelID == "" {
		modelID = defaultModel
	}
	p, err := profile.ParseProvider(provider)
	if err != nil {
		return profile.ModelProfile{}, err
	}
	return profile.Resolve(modelID, p)
}
