// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package upstash declares the Upstash Vector backend. Only configuration is
// implemented; data operations report errdefs.ErrUnsupported.
package upstash

import (
	"context"
	"net/url"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
	"github.com/leseb/bedrock-gw/pkg/provider"
	"github.com/leseb/bedrock-gw/pkg/vectorstore"
)

const name = "upstash"

func init() {
	vectorstore.Providers.Register(name, func(_ context.Context, p provider.Params) (vectorstore.Backend, error) {
		rawURL, err := p.Required(name, "url")
		if err != nil {
			return nil, err
		}
		u, err := url.Parse(rawURL)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			return nil, errdefs.Configf("%s: url must be an https REST endpoint, got %q", name, rawURL)
		}
		token, err := p.Required(name, "token")
		if err != nil {
			return nil, err
		}
		return &Backend{endpoint: u, token: token}, nil
	})
}

// Backend is the unimplemented Upstash Vector backend.
type Backend struct {
	endpoint *url.URL
	token    string
}

var _ vectorstore.Backend = (*Backend)(nil)

// Endpoint returns the configured REST endpoint.
func (b *Backend) Endpoint() string { return b.endpoint.String() }

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
