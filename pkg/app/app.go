// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package app wires the gateway's components from a loaded configuration.
// The server and the command-line client share it.
package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/leseb/bedrock-gw/pkg/artifact"
	"github.com/leseb/bedrock-gw/pkg/cache"
	"github.com/leseb/bedrock-gw/pkg/core/api"
	"github.com/leseb/bedrock-gw/pkg/core/config"
	"github.com/leseb/bedrock-gw/pkg/core/services"
	"github.com/leseb/bedrock-gw/pkg/transport"
	"github.com/leseb/bedrock-gw/pkg/transport/bedrock"
	"github.com/leseb/bedrock-gw/pkg/vectorstore"

	// Artifact store backends.
	_ "github.com/leseb/bedrock-gw/pkg/artifact/filesystem"
	_ "github.com/leseb/bedrock-gw/pkg/artifact/memory"
	_ "github.com/leseb/bedrock-gw/pkg/artifact/s3"

	// Vector store backends. The in-memory backend registers itself.
	_ "github.com/leseb/bedrock-gw/pkg/vectorstore/milvus"
	_ "github.com/leseb/bedrock-gw/pkg/vectorstore/pinecone"
	_ "github.com/leseb/bedrock-gw/pkg/vectorstore/postgres"
	_ "github.com/leseb/bedrock-gw/pkg/vectorstore/qdrant"
	_ "github.com/leseb/bedrock-gw/pkg/vectorstore/sqlite"
	_ "github.com/leseb/bedrock-gw/pkg/vectorstore/upstash"
)

// App holds every wired component. Artifacts is nil when artifact storage
// is disabled.
type App struct {
	Config    *config.Config
	Transport transport.Transport
	Text      *api.TextClient
	Images    *api.ImageClient
	Embedder  api.EmbeddingClient
	Vectors   *vectorstore.Store
	Artifacts artifact.Store
	RAG       *services.RAGService
	Models    *services.ModelsService

	closers []func(context.Context) error
	logger  *slog.Logger
}

// Option customizes New.
type Option func(*options)

type options struct {
	transport transport.Transport
}

// WithTransport replaces the Bedrock transport, e.g. with a scripted one.
func WithTransport(t transport.Transport) Option {
	return func(o *options) { o.transport = t }
}

// New builds the components described by cfg. Components built before a
// failure are closed.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	a := &App{Config: cfg, Models: services.NewModelsService(), logger: logger}

	if err := a.build(ctx, o); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, o options) error {
	cfg := a.Config

	a.Transport = o.transport
	if a.Transport == nil {
		t, err := bedrock.New(ctx, bedrock.Options{
			Region:          cfg.Bedrock.Region,
			Endpoint:        cfg.Bedrock.Endpoint,
			AccessKeyID:     cfg.Bedrock.AccessKeyID,
			SecretAccessKey: cfg.Bedrock.SecretAccessKey,
			SessionToken:    cfg.Bedrock.SessionToken,
			Timeout:         cfg.Bedrock.Timeout,
			MaxAttempts:     cfg.Bedrock.MaxAttempts,
		}, a.logger)
		if err != nil {
			return err
		}
		a.Transport = t
	}

	a.Text = api.NewTextClient(a.Transport, cfg.Bedrock.TextModel, a.logger)
	a.Images = api.NewImageClient(a.Transport, cfg.Bedrock.ImageModel, a.logger)

	if err := a.buildEmbedder(ctx); err != nil {
		return err
	}

	vectors, err := vectorstore.Open(ctx, cfg.VectorStore.Type, cfg.VectorStore.Params(), cfg.Embedding.Dimensions, a.logger)
	if err != nil {
		return err
	}
	a.Vectors = vectors
	a.closers = append(a.closers, vectors.Close)
	a.logger.Info("Initialized vector store", "backend", vectors.Backend(), "dimensions", vectors.Dimensions())

	if cfg.Artifacts.Type != "none" {
		store, err := artifact.Providers.New(ctx, cfg.Artifacts.Type, cfg.Artifacts.Params())
		if err != nil {
			return err
		}
		a.Artifacts = store
		a.closers = append(a.closers, store.Close)
		a.logger.Info("Initialized artifact store", "type", cfg.Artifacts.Type)
	}

	a.RAG, err = services.NewRAGService(a.Text, a.Embedder, a.Vectors, a.Artifacts, services.RAGOptions{
		ContextLimit:      cfg.RAG.ContextLimit,
		MaxContextChars:   cfg.RAG.MaxContextChars,
		ChunkSize:         cfg.RAG.ChunkSize,
		ChunkOverlap:      cfg.RAG.ChunkOverlap,
		ContextTemplate:   cfg.RAG.ContextTemplate,
		NoContextTemplate: cfg.RAG.NoContextTemplate,
	}, a.logger)
	return err
}

func (a *App) buildEmbedder(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Embedding.Provider {
	case config.EmbeddingOpenAI:
		a.Embedder = api.NewOpenAIEmbeddingClient(cfg.Embedding.Endpoint, cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.Dimensions)
		a.logger.Info("Initialized embedding client", "provider", "openai", "endpoint", cfg.Embedding.Endpoint, "model", cfg.Embedding.Model)
	default:
		a.Embedder = api.NewBedrockEmbeddingClient(a.Transport, cfg.Embedding.Model, cfg.Embedding.Dimensions, a.logger)
		a.logger.Info("Initialized embedding client", "provider", "bedrock", "model", cfg.Embedding.Model)
	}

	if cfg.Cache.Type != "redis" {
		return nil
	}
	rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
		Address:  cfg.Cache.Redis.Address,
		Password: cfg.Cache.Redis.Password,
		Database: cfg.Cache.Redis.DB,
		TTL:      cfg.Cache.Redis.TTL,
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func(context.Context) error { return rc.Close() })
	a.Embedder = api.NewCachedEmbeddingClient(a.Embedder, rc, a.logger)
	a.logger.Info("Initialized embedding cache", "address", cfg.Cache.Redis.Address, "ttl", cfg.Cache.Redis.TTL)
	return nil
}

// Close releases the components in reverse order of construction.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}
