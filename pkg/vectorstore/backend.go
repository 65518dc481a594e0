// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package vectorstore

import (
	"context"

	"github.com/leseb/bedrock-gw/pkg/core/schema"
	"github.com/leseb/bedrock-gw/pkg/provider"
)

// Providers is the registry of vector store backend implementations.
// Import implementation packages with blank imports to register them:
//
//	import _ "github.com/leseb/bedrock-gw/pkg/vectorstore/postgres"
//
// Every factory receives the collection dimension under the "dimensions"
// parameter in addition to its own settings.
var Providers = provider.NewRegistry[Backend]("vector_store")

// ParamDimensions is the parameter carrying the fixed vector dimension.
const ParamDimensions = "dimensions"

// Backend is the interface for vector storage backends.
//
// Backends only see validated input: ids and namespaces are filled in,
// every vector has the configured dimension and limits are positive. The
// Store wrapper enforces all of that before calling in.
type Backend interface {
	// Name is the registry name of the backend, e.g. "postgres".
	Name() string

	// Upsert writes records, replacing any existing record with the same id.
	// A multi-record call is applied atomically where the backend allows it.
	Upsert(ctx context.Context, recs []schema.VectorRecord) error

	// Search returns at most q.Limit hits from q.Namespace that match
	// q.Filter, ordered by descending cosine similarity.
	Search(ctx context.Context, q schema.VectorSearchQuery) ([]schema.VectorSearchResult, error)

	// Get returns the record or nil when no record with that id exists in
	// the namespace.
	Get(ctx context.Context, id, namespace string) (*schema.VectorRecord, error)

	// Delete removes the listed ids from the namespace and reports how many
	// records were removed.
	Delete(ctx context.Context, ids []string, namespace string) (int, error)

	// List returns up to limit records of the namespace, newest first.
	List(ctx context.Context, namespace string, limit int) ([]schema.VectorRecord, error)

	// Count returns the number of records in the namespace.
	Count(ctx context.Context, namespace string) (int64, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the backend.
	Close(ctx context.Context) error
}
