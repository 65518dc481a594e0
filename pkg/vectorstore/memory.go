// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package vectorstore

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/leseb/bedrock-gw/pkg/core/schema"
	"github.com/leseb/bedrock-gw/pkg/provider"
)

func init() {
	Providers.Register("memory", func(_ context.Context, _ provider.Params) (Backend, error) {
		return NewMemoryBackend(), nil
	})
}

// MemoryBackend keeps records in process memory and searches them by brute
// force. It is the default for development and tests.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]schema.VectorRecord
}

var _ Backend = (*MemoryBackend)(nil)

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]schema.VectorRecord)}
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Upsert(_ context.Context, recs []schema.VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range recs {
		if old, ok := m.records[rec.ID]; ok {
			rec.CreatedAt = old.CreatedAt
		}
		m.records[rec.ID] = cloneRecord(rec)
	}
	return nil
}

func (m *MemoryBackend) Search(_ context.Context, q schema.VectorSearchQuery) ([]schema.VectorSearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	top := NewTopK(q.Limit)
	for _, rec := range m.records {
		if rec.Namespace != q.Namespace {
			continue
		}
		if q.Filter != nil && !schema.EvaluateFilter(q.Filter, rec.Metadata) {
			continue
		}
		r := schema.VectorSearchResult{
			ID:       rec.ID,
			Score:    CosineSimilarity(q.Vector, rec.Vector),
			Metadata: maps.Clone(rec.Metadata),
			Content:  rec.Content,
		}
		if q.IncludeVector {
			r.Vector = slices.Clone(rec.Vector)
		}
		top.Push(r)
	}
	return top.Results(), nil
}

func (m *MemoryBackend) Get(_ context.Context, id, namespace string) (*schema.VectorRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok || rec.Namespace != namespace {
		return nil, nil
	}
	out := cloneRecord(rec)
	return &out, nil
}

func (m *MemoryBackend) Delete(_ context.Context, ids []string, namespace string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range ids {
		if rec, ok := m.records[id]; ok && rec.Namespace == namespace {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryBackend) List(_ context.Context, namespace string, limit int) ([]schema.VectorRecord, error) {
	m.mu.RLock()
	var out []schema.VectorRecord
	for _, rec := range m.records {
		if rec.Namespace == namespace {
			out = append(out, cloneRecord(rec))
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b schema.VectorRecord) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryBackend) Count(_ context.Context, namespace string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, rec := range m.records {
		if rec.Namespace == namespace {
			n++
		}
	}
	return n, nil
}

func (m *MemoryBackend) Ping(context.Context) error { return nil }

func (m *MemoryBackend) Close(context.Context) error { return nil }

func cloneRecord(rec schema.VectorRecord) schema.VectorRecord {
	rec.Vector = slices.Clone(rec.Vector)
	rec.Metadata = maps.Clone(rec.Metadata)
	return rec
}
