// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package vectorstore

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
	"github.com/leseb/bedrock-gw/pkg/provider"
)

// ErrNotFound is wrapped by storage errors for ids that do not exist in the
// requested namespace.
var ErrNotFound = errors.New("vector not found")

// DefaultListLimit bounds List when the caller passes no limit.
const DefaultListLimit = 100

// Store is the process-wide vector storage abstraction. It validates input
// against the fixed collection dimension and delegates to one Backend.
// A Store is safe for concurrent use if its backend is.
type Store struct {
	backend    Backend
	dimensions int
	logger     *slog.Logger
	now        func() time.Time
}

// New wraps backend. dimensions is the fixed vector length of the collection.
func New(backend Backend, dimensions int, logger *slog.Logger) (*Store, error) {
	if backend == nil {
		return nil, errdefs.Configf("vector store: backend is nil")
	}
	if dimensions <= 0 {
		return nil, errdefs.Configf("vector store: dimensions must be positive, got %d", dimensions)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend:    backend,
		dimensions: dimensions,
		logger:     logger.With("component", "vectorstore", "backend", backend.Name()),
		now:        time.Now,
	}, nil
}

// Open builds the backend registered as name and wraps it in a Store.
func Open(ctx context.Context, name string, params provider.Params, dimensions int, logger *slog.Logger) (*Store, error) {
	p := make(provider.Params, len(params)+1)
	for k, v := range params {
		p[k] = v
	}
	p[ParamDimensions] = strconv.Itoa(dimensions)

	backend, err := Providers.New(ctx, name, p)
	if err != nil {
		return nil, err
	}
	s, err := New(backend, dimensions, logger)
	if err != nil {
		_ = backend.Close(ctx)
		return nil, err
	}
	return s, nil
}

// Backend returns the registry name of the active backend.
func (s *Store) Backend() string { return s.backend.Name() }

// Dimensions returns the fixed vector dimension.
func (s *Store) Dimensions() int { return s.dimensions }

// Insert stores rec and returns its id. An absent id is generated; a present
// id replaces the existing record.
func (s *Store) Insert(ctx context.Context, rec schema.VectorRecord) (string, error) {
	ids, err := s.BatchInsert(ctx, []schema.VectorRecord{rec})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// BatchInsert stores recs and returns their ids in input order. Every record
// is validated before the backend is called, so a bad record leaves storage
// untouched.
func (s *Store) BatchInsert(ctx context.Context, recs []schema.VectorRecord) ([]string, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	now := s.now().UTC()
	prepared := make([]schema.VectorRecord, len(recs))
	ids := make([]string, len(recs))
	for i, rec := range recs {
		if err := s.checkVector(rec.Vector); err != nil {
			return nil, errdefs.Wrap(errdefs.KindStorage, err, "record %d", i)
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		rec.Namespace = namespaceOr(rec.Namespace)
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
		prepared[i] = rec
		ids[i] = rec.ID
	}

	if err := s.backend.Upsert(ctx, prepared); err != nil {
		return nil, errdefs.Wrap(errdefs.KindStorage, err, "%s: insert", s.backend.Name())
	}
	s.logger.Debug("Inserted vectors", "count", len(prepared), "namespace", prepared[0].Namespace)
	return ids, nil
}

// Search ranks records of q.Namespace by cosine similarity to q.Vector.
// Fields the caller did not ask for are stripped from the results.
func (s *Store) Search(ctx context.Context, q schema.VectorSearchQuery) ([]schema.VectorSearchResult, error) {
	if q.Limit <= 0 {
		return nil, errdefs.Requestf("vector search: limit must be positive, got %d", q.Limit)
	}
	if err := s.checkVector(q.Vector); err != nil {
		return nil, errdefs.Wrap(errdefs.KindStorage, err, "vector search")
	}
	q.Namespace = namespaceOr(q.Namespace)

	results, err := s.backend.Search(ctx, q)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindStorage, err, "%s: search", s.backend.Name())
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > q.Limit {
		results = results[:q.Limit]
	}
	for i := range results {
		if !q.IncludeMetadata {
			results[i].Metadata = nil
		}
		if !q.IncludeContent {
			results[i].Content = ""
		}
		if !q.IncludeVector {
			results[i].Vector = nil
		}
	}
	return results, nil
}

// Get returns one record. A missing record is a storage error wrapping
// ErrNotFound.
func (s *Store) Get(ctx context.Context, id, namespace string) (*schema.VectorRecord, error) {
	namespace = namespaceOr(namespace)
	rec, err := s.backend.Get(ctx, id, namespace)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindStorage, err, "%s: get %s", s.backend.Name(), id)
	}
	if rec == nil {
		return nil, notFound(id, namespace)
	}
	return rec, nil
}

// Update applies a partial update and returns the stored record.
func (s *Store) Update(ctx context.Context, upd schema.VectorUpdate) (*schema.VectorRecord, error) {
	if upd.ID == "" {
		return nil, errdefs.Requestf("vector update: id is required")
	}
	if upd.Vector != nil {
		if err := s.checkVector(upd.Vector); err != nil {
			return nil, errdefs.Wrap(errdefs.KindStorage, err, "vector update")
		}
	}
	rec, err := s.Get(ctx, upd.ID, upd.Namespace)
	if err != nil {
		return nil, err
	}
	if upd.Vector != nil {
		rec.Vector = upd.Vector
	}
	if upd.Metadata != nil {
		rec.Metadata = *upd.Metadata
	}
	if upd.Content != nil {
		rec.Content = *upd.Content
	}
	rec.UpdatedAt = s.now().UTC()

	if err := s.backend.Upsert(ctx, []schema.VectorRecord{*rec}); err != nil {
		return nil, errdefs.Wrap(errdefs.KindStorage, err, "%s: update %s", s.backend.Name(), upd.ID)
	}
	return rec, nil
}

// Delete removes one record and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id, namespace string) (bool, error) {
	n, err := s.DeleteBatch(ctx, []string{id}, namespace)
	return n > 0, err
}

// DeleteBatch removes the listed ids from the namespace and returns how many
// existed.
func (s *Store) DeleteBatch(ctx context.Context, ids []string, namespace string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	namespace = namespaceOr(namespace)
	n, err := s.backend.Delete(ctx, ids, namespace)
	if err != nil {
		return 0, errdefs.Wrap(errdefs.KindStorage, err, "%s: delete", s.backend.Name())
	}
	s.logger.Debug("Deleted vectors", "requested", len(ids), "deleted", n, "namespace", namespace)
	return n, nil
}

// List returns up to limit records of the namespace, newest first.
func (s *Store) List(ctx context.Context, namespace string, limit int) ([]schema.VectorRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	recs, err := s.backend.List(ctx, namespaceOr(namespace), limit)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindStorage, err, "%s: list", s.backend.Name())
	}
	return recs, nil
}

// Stats summarizes the namespace.
func (s *Store) Stats(ctx context.Context, namespace string) (*schema.StorageStats, error) {
	namespace = namespaceOr(namespace)
	n, err := s.backend.Count(ctx, namespace)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindStorage, err, "%s: count", s.backend.Name())
	}
	return &schema.StorageStats{
		Namespace:    namespace,
		TotalVectors: n,
		Dimensions:   s.dimensions,
		Backend:      s.backend.Name(),
	}, nil
}

// HealthCheck reports whether the backend is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.backend.Ping(ctx); err != nil {
		return errdefs.Wrap(errdefs.KindStorage, err, "%s: health check", s.backend.Name())
	}
	return nil
}

// Close releases the backend.
func (s *Store) Close(ctx context.Context) error {
	return s.backend.Close(ctx)
}

func (s *Store) checkVector(v []float32) error {
	if len(v) != s.dimensions {
		return errdefs.Storagef("dimension mismatch: expected %d, got %d", s.dimensions, len(v))
	}
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return errdefs.Storagef("vector component %d is not finite", i)
		}
	}
	return nil
}

func notFound(id, namespace string) error {
	return &errdefs.Error{
		Kind: errdefs.KindStorage,
		Msg:  "id " + strconv.Quote(id) + " in namespace " + strconv.Quote(namespace),
		Err:  ErrNotFound,
	}
}

func namespaceOr(ns string) string {
	if ns == "" {
		return schema.DefaultNamespace
	}
	return ns
}
