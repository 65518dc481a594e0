// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package vectorstoretest provides a shared conformance test suite for
// vectorstore.Backend implementations. Each backend should call
// RunConformanceTests from its own _test.go file.
package vectorstoretest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
	"github.com/leseb/bedrock-gw/pkg/vectorstore"
)

// Dimensions is the vector length newBackend must be configured for.
const Dimensions = 3

// RunConformanceTests exercises a Backend through vectorstore.Store. The
// newBackend function is called once per sub-test and must return an empty
// backend configured for Dimensions.
func RunConformanceTests(t *testing.T, newBackend func(t *testing.T) vectorstore.Backend) {
	t.Helper()

	open := func(t *testing.T) (*vectorstore.Store, context.Context) {
		t.Helper()
		store, err := vectorstore.New(newBackend(t), Dimensions, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close(context.Background()) })
		return store, context.Background()
	}

	t.Run("InsertGeneratesIDAndSearchFindsIt", func(t *testing.T) {
		store, ctx := open(t)

		id, err := store.Insert(ctx, schema.VectorRecord{Vector: []float32{1, 0, 0}, Namespace: "t", Content: "unit"})
		require.NoError(t, err)
		_, err = uuid.Parse(id)
		require.NoError(t, err, "generated id must be a UUID")

		hits, err := store.Search(ctx, schema.VectorSearchQuery{Vector: []float32{1, 0, 0}, Limit: 1, Namespace: "t", IncludeContent: true})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, id, hits[0].ID)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-4)
		assert.Equal(t, "unit", hits[0].Content)
	})

	t.Run("GeneratedIDsAreUnique", func(t *testing.T) {
		store, ctx := open(t)

		ids, err := store.BatchInsert(ctx, []schema.VectorRecord{
			{Vector: []float32{1, 0, 0}},
			{Vector: []float32{1, 0, 0}},
			{Vector: []float32{1, 0, 0}},
		})
		require.NoError(t, err)
		require.Len(t, ids, 3)
		assert.NotEqual(t, ids[0], ids[1])
		assert.NotEqual(t, ids[1], ids[2])

		stats, err := store.Stats(ctx, "")
		require.NoError(t, err)
		assert.EqualValues(t, 3, stats.TotalVectors)
		assert.Equal(t, schema.DefaultNamespace, stats.Namespace)
		assert.Equal(t, Dimensions, stats.Dimensions)
	})

	t.Run("NamespaceIsolation", func(t *testing.T) {
		store, ctx := open(t)

		_, err := store.Insert(ctx, schema.VectorRecord{Vector: []float32{0, 1, 0}, Namespace: "a"})
		require.NoError(t, err)

		hits, err := store.Search(ctx, schema.VectorSearchQuery{Vector: []float32{0, 1, 0}, Limit: 10, Namespace: "b"})
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("UpsertReplaces", func(t *testing.T) {
		store, ctx := open(t)
		id := uuid.NewString()

		_, err := store.Insert(ctx, schema.VectorRecord{ID: id, Vector: []float32{1, 0, 0}, Content: "first", Namespace: "u"})
		require.NoError(t, err)
		_, err = store.Insert(ctx, schema.VectorRecord{ID: id, Vector: []float32{0, 0, 1}, Content: "second", Namespace: "u"})
		require.NoError(t, err)

		got, err := store.Get(ctx, id, "u")
		require.NoError(t, err)
		assert.Equal(t, "second", got.Content)
		assert.InDeltaSlice(t, []float32{0, 0, 1}, got.Vector, 1e-6)

		n, err := store.Stats(ctx, "u")
		require.NoError(t, err)
		assert.EqualValues(t, 1, n.TotalVectors)
	})

	t.Run("DimensionMismatchLeavesStoreUntouched", func(t *testing.T) {
		store, ctx := open(t)

		_, err := store.Insert(ctx, schema.VectorRecord{Vector: []float32{1, 0, 0}})
		require.NoError(t, err)

		_, err = store.Insert(ctx, schema.VectorRecord{Vector: []float32{1, 0}})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errdefs.ErrStorage), "got %v", err)

		_, err = store.BatchInsert(ctx, []schema.VectorRecord{
			{Vector: []float32{0, 1, 0}},
			{Vector: []float32{0, 1, 0, 0}},
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errdefs.ErrStorage), "got %v", err)

		stats, err := store.Stats(ctx, "")
		require.NoError(t, err)
		assert.EqualValues(t, 1, stats.TotalVectors)

		_, err = store.Search(ctx, schema.VectorSearchQuery{Vector: []float32{1}, Limit: 1})
		assert.True(t, errors.Is(err, errdefs.ErrStorage), "got %v", err)
	})

	t.Run("SearchRanksByDescendingScore", func(t *testing.T) {
		store, ctx := open(t)

		_, err := store.BatchInsert(ctx, []schema.VectorRecord{
			{Vector: []float32{0, 1, 0}, Content: "orthogonal"},
			{Vector: []float32{1, 0, 0}, Content: "same"},
			{Vector: []float32{1, 1, 0}, Content: "close"},
			{Vector: []float32{-1, 0, 0}, Content: "opposite"},
		})
		require.NoError(t, err)

		hits, err := store.Search(ctx, schema.VectorSearchQuery{Vector: []float32{1, 0, 0}, Limit: 3, IncludeContent: true})
		require.NoError(t, err)
		require.Len(t, hits, 3)
		assert.Equal(t, "same", hits[0].Content)
		assert.Equal(t, "close", hits[1].Content)
		assert.Equal(t, "orthogonal", hits[2].Content)
		for i := 1; i < len(hits); i++ {
			assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
		}
	})

	t.Run("SearchStripsUnrequestedFields", func(t *testing.T) {
		store, ctx := open(t)

		_, err := store.Insert(ctx, schema.VectorRecord{
			Vector:   []float32{1, 0, 0},
			Content:  "body",
			Metadata: map[string]any{"source": "doc"},
		})
		require.NoError(t, err)

		hits, err := store.Search(ctx, schema.VectorSearchQuery{Vector: []float32{1, 0, 0}, Limit: 1})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Nil(t, hits[0].Metadata)
		assert.Empty(t, hits[0].Content)
		assert.Nil(t, hits[0].Vector)

		hits, err = store.Search(ctx, schema.VectorSearchQuery{
			Vector: []float32{1, 0, 0}, Limit: 1,
			IncludeMetadata: true, IncludeContent: true, IncludeVector: true,
		})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "doc", hits[0].Metadata["source"])
		assert.Equal(t, "body", hits[0].Content)
		assert.Len(t, hits[0].Vector, Dimensions)
	})

	t.Run("SearchAppliesMetadataFilter", func(t *testing.T) {
		store, ctx := open(t)

		_, err := store.BatchInsert(ctx, []schema.VectorRecord{
			{Vector: []float32{1, 0, 0}, Content: "guide", Metadata: map[string]any{"kind": "guide", "year": 2021}},
			{Vector: []float32{1, 0, 0}, Content: "blog", Metadata: map[string]any{"kind": "blog", "year": 2019}},
		})
		require.NoError(t, err)

		filter := schema.ComparisonFilter{Type: schema.OpEq, Key: "kind", Value: "blog"}
		hits, err := store.Search(ctx, schema.VectorSearchQuery{Vector: []float32{1, 0, 0}, Limit: 5, Filter: filter, IncludeContent: true})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "blog", hits[0].Content)

		gte := schema.ComparisonFilter{Type: schema.OpGte, Key: "year", Value: float64(2020)}
		hits, err = store.Search(ctx, schema.VectorSearchQuery{Vector: []float32{1, 0, 0}, Limit: 5, Filter: gte, IncludeContent: true})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "guide", hits[0].Content)
	})

	t.Run("SearchRejectsNonPositiveLimit", func(t *testing.T) {
		store, ctx := open(t)

		_, err := store.Search(ctx, schema.VectorSearchQuery{Vector: []float32{1, 0, 0}})
		assert.True(t, errors.Is(err, errdefs.ErrRequest), "got %v", err)
	})

	t.Run("DeleteRequiresNamespaceMatch", func(t *testing.T) {
		store, ctx := open(t)

		id, err := store.Insert(ctx, schema.VectorRecord{Vector: []float32{1, 0, 0}, Namespace: "keep"})
		require.NoError(t, err)

		ok, err := store.Delete(ctx, id, "other")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = store.Delete(ctx, id, "keep")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Delete(ctx, id, "keep")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = store.Get(ctx, id, "keep")
		assert.True(t, errors.Is(err, vectorstore.ErrNotFound), "got %v", err)
	})

	t.Run("DeleteBatch", func(t *testing.T) {
		store, ctx := open(t)

		ids, err := store.BatchInsert(ctx, []schema.VectorRecord{
			{Vector: []float32{1, 0, 0}},
			{Vector: []float32{0, 1, 0}},
			{Vector: []float32{0, 0, 1}},
		})
		require.NoError(t, err)

		n, err := store.DeleteBatch(ctx, append(ids[:2:2], uuid.NewString()), "")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		stats, err := store.Stats(ctx, "")
		require.NoError(t, err)
		assert.EqualValues(t, 1, stats.TotalVectors)
	})

	t.Run("UpdateMergesFields", func(t *testing.T) {
		store, ctx := open(t)

		id, err := store.Insert(ctx, schema.VectorRecord{
			Vector:   []float32{1, 0, 0},
			Content:  "old",
			Metadata: map[string]any{"v": "1"},
		})
		require.NoError(t, err)

		content := "new"
		got, err := store.Update(ctx, schema.VectorUpdate{ID: id, Content: &content})
		require.NoError(t, err)
		assert.Equal(t, "new", got.Content)
		assert.Equal(t, "1", got.Metadata["v"])

		again, err := store.Get(ctx, id, "")
		require.NoError(t, err)
		assert.Equal(t, "new", again.Content)
		assert.InDeltaSlice(t, []float32{1, 0, 0}, again.Vector, 1e-6)

		_, err = store.Update(ctx, schema.VectorUpdate{ID: id, Vector: []float32{1}})
		assert.True(t, errors.Is(err, errdefs.ErrStorage), "got %v", err)

		_, err = store.Update(ctx, schema.VectorUpdate{ID: uuid.NewString(), Content: &content})
		assert.True(t, errors.Is(err, vectorstore.ErrNotFound), "got %v", err)
	})

	t.Run("ListScopedToNamespace", func(t *testing.T) {
		store, ctx := open(t)

		_, err := store.BatchInsert(ctx, []schema.VectorRecord{
			{Vector: []float32{1, 0, 0}, Namespace: "l"},
			{Vector: []float32{0, 1, 0}, Namespace: "l"},
			{Vector: []float32{0, 0, 1}, Namespace: "m"},
		})
		require.NoError(t, err)

		recs, err := store.List(ctx, "l", 10)
		require.NoError(t, err)
		assert.Len(t, recs, 2)
		for _, r := range recs {
			assert.Equal(t, "l", r.Namespace)
		}

		recs, err = store.List(ctx, "l", 1)
		require.NoError(t, err)
		assert.Len(t, recs, 1)
	})

	t.Run("HealthCheck", func(t *testing.T) {
		store, ctx := open(t)
		assert.NoError(t, store.HealthCheck(ctx))
	})
}
