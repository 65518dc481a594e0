// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package pinecone declares the Pinecone backend. Configuration is
// validated, but no data operation is implemented: each one returns an
// error matching errdefs.ErrUnsupported.
package pinecone

import (
	"context"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
	"github.com/leseb/bedrock-gw/pkg/provider"
	"github.com/leseb/bedrock-gw/pkg/vectorstore"
)

const name = "pinecone"

func init() {
	vectorstore.Providers.Register(name, func(_ context.Context, p provider.Params) (vectorstore.Backend, error) {
		apiKey, err := p.Required(name, "api_key")
		if err != nil {
			return nil, err
		}
		index, err := p.Required(name, "index")
		if err != nil {
			return nil, err
		}
		return &Backend{apiKey: apiKey, index: index, environment: p.Get("environment")}, nil
	})
}

// Backend is the unimplemented Pinecone backend.
type Backend struct {
	apiKey      string
	index       string
	environment string
}

var _ vectorstore.Backend = (*Backend)(nil)

// Index returns the configured index name.
func (b *Backend) Index() string { return b.index }

func (b *Backend) Name() string { return name }

func (b *Backend) Upsert(context.Context, []schema.VectorRecord) error {
	return errdefs.Unsupported(name, "upsert")
}

func (b *Backend) Search(context.Context, schema.VectorSearchQuery) ([]schema.VectorSearchResult, error) {
	return nil, errdefs.Unsupported(name, "search")
}

func (b *Backend) Get(context.Context, string, string) (*schema.VectorRecord, error) {
	return nil, errdefs.Unsupported(name, "get")
}

func (b *Backend) Delete(context.Context, []string, string) (int, error) {
	return 0, errdefs.Unsupported(name, "delete")
}

func (b *Backend) List(context.Context, string, int) ([]schema.VectorRecord, error) {
	return nil, errdefs.Unsupported(name, "list")
}

func (b *Backend) Count(context.Context, string) (int64, error) {
	return 0, errdefs.Unsupported(name, "count")
}

func (b *Backend) Ping(context.Context) error {
	return errdefs.Unsupported(name, "ping")
}

func (b *Backend) Close(context.Context) error { return nil }
