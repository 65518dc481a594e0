// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"context"
	"errors"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/profile"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
)

// ErrModelNotFound is wrapped by GetModel for ids outside the catalog.
var ErrModelNotFound = errors.New("model not found")

// ModelsService handles model listing and information
type ModelsService struct{}

// NewModelsService creates a new models service
func NewModelsService() *ModelsService {
	return &ModelsService{}
}

// ListModels returns the supported models, optionally limited to one
// category.
func (s *ModelsService) ListModels(_ context.Context, category profile.Category) *schema.ListModelsResponse {
	resp := &schema.ListModelsResponse{Object: "list", Data: []schema.Model{}}
	for _, m := range profile.Catalog() {
		if category != "" && m.Category != category {
			continue
		}
		resp.Data = append(resp.Data, toModel(m))
	}
	return resp
}

// GetModel returns information about a specific model. Cross-region
// inference profile ids resolve to their base model.
func (s *ModelsService) GetModel(_ context.Context, modelID string) (*schema.Model, error) {
	m, ok := profile.Lookup(modelID)
	if !ok {
		return nil, errdefs.Wrap(errdefs.KindRequest, ErrModelNotFound, "model %s", modelID)
	}
	model := toModel(m)
	return &model, nil
}

func toModel(m profile.ModelInfo) schema.Model {
	streaming := false
	if prof, err := profile.Resolve(m.ID, m.Provider); err == nil {
		streaming = m.Category == profile.CategoryText && prof.CanStream()
	}
	return schema.Model{
		ID:            m.ID,
		Object:        "model",
		OwnedBy:       string(m.Provider),
		Name:          m.Name,
		Category:      string(m.Category),
		ContextWindow: m.ContextWindow,
		Dimensions:    m.Dimensions,
		Streaming:     streaming,
	}
}
