// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"log/slog"

	"github.com/leseb/bedrock-gw/pkg/core/family"
	"github.com/leseb/bedrock-gw/pkg/core/profile"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
	"github.com/leseb/bedrock-gw/pkg/transport"
)

// ImageClient generates images with Titan Image or Stability models.
type ImageClient struct {
	transport    transport.Transport
	defaultModel string
	logger       *slog.Logger
}

func NewImageClient(t transport.Transport, defaultModel string, logger *slog.Logger) *ImageClient {
	if defaultModel == "" {
		defaultModel = profile.DefaultImageModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageClient{transport: t, defaultModel: defaultModel, logger: logger}
}

// Generate returns the base64-encoded images for req.
func (c *ImageClient) Generate(ctx context.Context, req schema.ImageGenerationRequest) (*schema.ImageGenerationResponse, error) {
	prof, err := resolveProfile(req.ModelID, c.defaultModel, req.Provider)
	if err != nil {
		return nil, err
	}
	codec, err := family.Image(prof.Provider)
	if err != nil {
		return nil, err
	}
	body, err := codec.BuildImage(req, prof)
	if err != nil {
		return nil, err
	}
	raw, err := c.transport.Invoke(ctx, prof.ModelID, body)
	if err != nil {
		return nil, err
	}
	resp, err := codec.ParseImage(raw, prof)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Generated images", "model", prof.ModelID, "count", len(resp.Images))
	return resp, nil
}
