// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
	"github.com/leseb/bedrock-gw/pkg/provider"
	"github.com/leseb/bedrock-gw/pkg/vectorstore"
	"github.com/leseb/bedrock-gw/pkg/vectorstore/vectorstoretest"
)

func TestConformance(t *testing.T) {
	vectorstoretest.RunConformanceTests(t, func(t *testing.T) vectorstore.Backend {
		b, err := New(context.Background(), ":memory:", "", vectorstoretest.Dimensions)
		require.NoError(t, err)
		return b
	})
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.db")

	store, err := vectorstore.Open(ctx, "sqlite", provider.Params{"path": path}, 2, nil)
	require.NoError(t, err)
	id, err := store.Insert(ctx, schema.VectorRecord{Vector: []float32{0.5, 0.5}, Content: "kept"})
	require.NoError(t, err)
	require.NoError(t, store.Close(ctx))

	store, err = vectorstore.Open(ctx, "sqlite", provider.Params{"path": path}, 2, nil)
	require.NoError(t, err)
	defer store.Close(ctx)

	rec, err := store.Get(ctx, id, "")
	require.NoError(t, err)
	assert.Equal(t, "kept", rec.Content)
	assert.Equal(t, []float32{0.5, 0.5}, rec.Vector)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestReopenWithOtherDimensions(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.db")

	b, err := New(ctx, path, "", 2)
	require.NoError(t, err)
	require.NoError(t, b.Upsert(ctx, []schema.VectorRecord{{
		ID: "a", Vector: []float32{1, 0}, Namespace: schema.DefaultNamespace,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}}))
	require.NoError(t, b.Close(ctx))

	_, err = New(ctx, path, "", 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errdefs.ErrConfig))
	assert.Contains(t, err.Error(), "2-dimensional")

	b, err = New(ctx, path, "", 2)
	require.NoError(t, err)
	defer b.Close(ctx)

	_, err = b.Search(ctx, schema.VectorSearchQuery{Vector: []float32{1, 0, 0}, Limit: 1, Namespace: schema.DefaultNamespace})
	assert.True(t, errors.Is(err, errdefs.ErrStorage))
}

func TestNew_InvalidTable(t *testing.T) {
	_, err := New(context.Background(), ":memory:", "bad-name", 3)
	assert.True(t, errors.Is(err, errdefs.ErrConfig))
}

func TestVectorBlob(t *testing.T) {
	v := []float32{1.5, -2, 0}
	got, err := decodeVector(encodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.True(t, errors.Is(err, errdefs.ErrStorage))
}
