// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package qdrant

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
	"github.com/leseb/bedrock-gw/pkg/vectorstore"
	"github.com/leseb/bedrock-gw/pkg/vectorstore/vectorstoretest"
)

func TestPointIDIsStable(t *testing.T) {
	a := pointID("doc-1").GetUuid()
	b := pointID("doc-1").GetUuid()
	c := pointID("doc-2").GetUuid()
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestPayloadRoundTrip(t *testing.T) {
	payload, err := qdrant.TryValueMap(map[string]any{
		payloadRecordID:  "r1",
		payloadNamespace: "docs",
		payloadContent:   "body",
		payloadMetadata:  map[string]any{"kind": "guide", "year": 2021, "tags": []any{"a", "b"}, "ok": true},
		payloadCreatedAt: int64(1700000000000000000),
		payloadUpdatedAt: int64(1700000000000000001),
	})
	require.NoError(t, err)

	rec := fromPayload(payload)
	assert.Equal(t, "r1", rec.ID)
	assert.Equal(t, "docs", rec.Namespace)
	assert.Equal(t, "body", rec.Content)
	assert.Equal(t, "guide", rec.Metadata["kind"])
	assert.EqualValues(t, 2021, rec.Metadata["year"])
	assert.Equal(t, []any{"a", "b"}, rec.Metadata["tags"])
	assert.Equal(t, true, rec.Metadata["ok"])
	assert.Equal(t, int64(1700000000000000000), rec.CreatedAt.UnixNano())
}

func TestCondition(t *testing.T) {
	c, err := condition(schema.ComparisonFilter{Type: schema.OpEq, Key: "kind", Value: "guide"})
	require.NoError(t, err)
	field := c.GetField()
	require.NotNil(t, field)
	assert.Equal(t, "metadata.kind", field.GetKey())
	assert.Equal(t, "guide", field.GetMatch().GetKeyword())

	c, err = condition(schema.ComparisonFilter{Type: schema.OpEq, Key: "year", Value: float64(2021)})
	require.NoError(t, err)
	assert.Equal(t, int64(2021), c.GetField().GetMatch().GetInteger())

	c, err = condition(schema.ComparisonFilter{Type: schema.OpGte, Key: "year", Value: 2020})
	require.NoError(t, err)
	assert.Equal(t, float64(2020), c.GetField().GetRange().GetGte())

	c, err = condition(schema.ComparisonFilter{Type: schema.OpNe, Key: "kind", Value: "blog"})
	require.NoError(t, err)
	assert.Len(t, c.GetFilter().GetMustNot(), 2)

	c, err = condition(schema.CompoundFilter{Type: schema.OpOr, Filters: []schema.Filter{
		schema.ComparisonFilter{Type: schema.OpEq, Key: "a", Value: true},
		schema.ComparisonFilter{Type: schema.OpLt, Key: "b", Value: 1.5},
	}})
	require.NoError(t, err)
	assert.Len(t, c.GetFilter().GetShould(), 2)
}

func TestCondition_RangeNeedsNumber(t *testing.T) {
	_, err := condition(schema.ComparisonFilter{Type: schema.OpGt, Key: "kind", Value: "guide"})
	assert.True(t, errors.Is(err, errdefs.ErrRequest))
}

// TestConformance runs against a live Qdrant when QDRANT_TEST_HOST is set.
// QDRANT_TEST_PORT defaults to the gRPC port 6334.
func TestConformance(t *testing.T) {
	host := os.Getenv("QDRANT_TEST_HOST")
	if host == "" {
		t.Skip("QDRANT_TEST_HOST not set")
	}
	port := DefaultPort
	if p := os.Getenv("QDRANT_TEST_PORT"); p != "" {
		n, err := strconv.Atoi(p)
		require.NoError(t, err)
		port = n
	}
	vectorstoretest.RunConformanceTests(t, func(t *testing.T) vectorstore.Backend {
		coll := "conformance_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		b, err := New(context.Background(), Config{Host: host, Port: port, Collection: coll, Dimensions: vectorstoretest.Dimensions})
		require.NoError(t, err)
		t.Cleanup(func() {
			c, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
			if err != nil {
				return
			}
			defer c.Close()
			_ = c.DeleteCollection(context.Background(), coll)
		})
		return b
	})
}
