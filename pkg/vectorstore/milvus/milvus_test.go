// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package milvus

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	milvusclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
	"github.com/leseb/bedrock-gw/pkg/vectorstore"
	"github.com/leseb/bedrock-gw/pkg/vectorstore/vectorstoretest"
)

func TestFilterExpr(t *testing.T) {
	tests := []struct {
		name   string
		filter schema.Filter
		want   string
	}{
		{
			name:   "string equality",
			filter: schema.ComparisonFilter{Type: schema.OpEq, Key: "kind", Value: "guide"},
			want:   `(metadata["kind"] == "guide")`,
		},
		{
			name:   "numeric comparison",
			filter: schema.ComparisonFilter{Type: schema.OpGte, Key: "year", Value: 2020},
			want:   `(metadata["year"] >= 2020)`,
		},
		{
			name:   "bool",
			filter: schema.ComparisonFilter{Type: schema.OpNe, Key: "draft", Value: true},
			want:   `(metadata["draft"] != true)`,
		},
		{
			name: "compound",
			filter: schema.CompoundFilter{Type: schema.OpOr, Filters: []schema.Filter{
				schema.ComparisonFilter{Type: schema.OpLt, Key: "score", Value: 0.5},
				schema.ComparisonFilter{Type: schema.OpEq, Key: "title", Value: `say "hi"`},
			}},
			want: `((metadata["score"] < 0.5) || (metadata["title"] == "say \"hi\""))`,
		},
		{
			name:   "empty and",
			filter: schema.CompoundFilter{Type: schema.OpAnd},
			want:   "true",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := filterExpr(tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterExpr_UnknownOperator(t *testing.T) {
	_, err := filterExpr(schema.ComparisonFilter{Type: "in", Key: "k", Value: "v"})
	assert.True(t, errors.Is(err, errdefs.ErrRequest))
}

func TestExpressions(t *testing.T) {
	assert.Equal(t, `namespace == "a\"b"`, eq(fieldNamespace, `a"b`))
	assert.Equal(t, `id in ["x", "y\\z"]`, idIn([]string{"x", `y\z`}))
}

func TestUpsertRejectsOversizedContent(t *testing.T) {
	// No client: the check must fail before any call reaches Milvus.
	b := &Backend{coll: "vectors", dims: 2}
	err := b.Upsert(context.Background(), []schema.VectorRecord{{
		ID:      uuid.NewString(),
		Content: strings.Repeat("x", maxContentLength+1),
		Vector:  []float32{1, 0},
	}})
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrStorage)
	assert.Contains(t, err.Error(), "content exceeds")

	err = b.Upsert(context.Background(), []schema.VectorRecord{{
		ID:     strings.Repeat("i", maxIDLength+1),
		Vector: []float32{1, 0},
	}})
	assert.ErrorIs(t, err, errdefs.ErrStorage)
}

// TestConformance runs against a live Milvus when MILVUS_TEST_ADDRESS is set.
func TestConformance(t *testing.T) {
	addr := os.Getenv("MILVUS_TEST_ADDRESS")
	if addr == "" {
		t.Skip("MILVUS_TEST_ADDRESS not set")
	}
	vectorstoretest.RunConformanceTests(t, func(t *testing.T) vectorstore.Backend {
		coll := "conformance_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		b, err := NewBackend(context.Background(), Config{Address: addr, Collection: coll, Dimensions: vectorstoretest.Dimensions})
		require.NoError(t, err)
		t.Cleanup(func() {
			c, err := milvusclient.NewClient(context.Background(), milvusclient.Config{Address: addr})
			if err != nil {
				return
			}
			defer c.Close()
			_ = c.DropCollection(context.Background(), coll)
		})
		return b
	})
}
