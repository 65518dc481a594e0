// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package qdrant stores vectors as points of a single Qdrant collection.
// The record id, namespace, content and metadata travel in the payload; the
// point id is a UUIDv5 derived from the record id.
package qdrant

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
	"github.com/leseb/bedrock-gw/pkg/provider"
	"github.com/leseb/bedrock-gw/pkg/vectorstore"
)

const (
	payloadRecordID  = "record_id"
	payloadNamespace = "namespace"
	payloadContent   = "content"
	payloadMetadata  = "metadata"
	payloadCreatedAt = "created_at"
	payloadUpdatedAt = "updated_at"

	DefaultCollection = "vector_records"
	DefaultPort       = 6334
)

func init() {
	vectorstore.Providers.Register("qdrant", func(ctx context.Context, p provider.Params) (vectorstore.Backend, error) {
		host, err := p.Required("qdrant", "host")
		if err != nil {
			return nil, err
		}
		port, err := p.Int("port", DefaultPort)
		if err != nil {
			return nil, err
		}
		tls, err := p.Bool("tls", false)
		if err != nil {
			return nil, err
		}
		dims, err := p.Int(vectorstore.ParamDimensions, 0)
		if err != nil {
			return nil, err
		}
		return New(ctx, Config{
			Host:       host,
			Port:       port,
			APIKey:     p.Get("api_key"),
			UseTLS:     tls,
			Collection: p.Get("collection"),
			Dimensions: dims,
		})
	})
}

// Config configures the backend.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimensions int
}

// Backend implements vectorstore.Backend using Qdrant over gRPC.
type Backend struct {
	client *qdrant.Client
	coll   string
	dims   int
}

var _ vectorstore.Backend = (*Backend)(nil)

// New connects to Qdrant and creates the collection and its payload
// indexes when missing.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Dimensions <= 0 {
		return nil, errdefs.Configf("qdrant: dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	c, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindStorage, err, "qdrant connect %s:%d", cfg.Host, cfg.Port)
	}
	b := &Backend{client: c, coll: cfg.Collection, dims: cfg.Dimensions}
	if err := b.ensureCollection(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) ensureCollection(ctx context.Context) error {
	exists, err := b.client.CollectionExists(ctx, b.coll)
	if err != nil {
		return errdefs.Wrap(errdefs.KindStorage, err, "qdrant: check collection %s", b.coll)
	}
	if exists {
		info, err := b.client.GetCollectionInfo(ctx, b.coll)
		if err != nil {
			return errdefs.Wrap(errdefs.KindStorage, err, "qdrant: collection info %s", b.coll)
		}
		size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if int(size) != b.dims {
			return errdefs.Configf("qdrant: collection %s stores %d-dimensional vectors, configured for %d", b.coll, size, b.dims)
		}
		return nil
	}

	err = b.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: b.coll,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(b.dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return errdefs.Wrap(errdefs.KindStorage, err, "qdrant: create collection %s", b.coll)
	}

	indexes := []struct {
		field string
		typ   qdrant.FieldType
	}{
		{payloadNamespace, qdrant.FieldType_FieldTypeKeyword},
		{payloadRecordID, qdrant.FieldType_FieldTypeKeyword},
		{payloadCreatedAt, qdrant.FieldType_FieldTypeInteger},
	}
	for _, idx := range indexes {
		_, err := b.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: b.coll,
			FieldName:      idx.field,
			FieldType:      idx.typ.Enum(),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return errdefs.Wrap(errdefs.KindStorage, err, "qdrant: index %s", idx.field)
		}
	}
	return nil
}

func (b *Backend) Name() string { return "qdrant" }

func (b *Backend) Upsert(ctx context.Context, recs []schema.VectorRecord) error {
	if len(recs) == 0 {
		return nil
	}
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	existing, err := b.retrieve(ctx, ids, false)
	if err != nil {
		return err
	}
	created := make(map[string]time.Time, len(existing))
	for _, rec := range existing {
		created[rec.ID] = rec.CreatedAt
	}

	points := make([]*qdrant.PointStruct, len(recs))
	for i, rec := range recs {
		if ts, ok := created[rec.ID]; ok {
			rec.CreatedAt = ts
		}
		payload, err := qdrant.TryValueMap(map[string]any{
			payloadRecordID:  rec.ID,
			payloadNamespace: rec.Namespace,
			payloadContent:   rec.Content,
			payloadMetadata:  orEmpty(rec.Metadata),
			payloadCreatedAt: rec.CreatedAt.UnixNano(),
			payloadUpdatedAt: rec.UpdatedAt.UnixNano(),
		})
		if err != nil {
			return errdefs.Wrap(errdefs.KindStorage, err, "qdrant: encode payload for %s", rec.ID)
		}
		points[i] = &qdrant.PointStruct{
			Id:      pointID(rec.ID),
			Vectors: qdrant.NewVectors(rec.Vector...),
			Payload: payload,
		}
	}

	_, err = b.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: b.coll,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return errdefs.Wrap(errdefs.KindStorage, err, "qdrant: upsert into %s", b.coll)
	}
	return nil
}

func (b *Backend) Search(ctx context.Context, q schema.VectorSearchQuery) ([]schema.VectorSearchResult, error) {
	filter, err := b.namespaceFilter(q.Namespace, q.Filter)
	if err != nil {
		return nil, err
	}
	points, err := b.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: b.coll,
		Query:          qdrant.NewQuery(q.Vector...),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(q.Limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(q.IncludeVector),
	})
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindStorage, err, "qdrant: query %s", b.coll)
	}

	out := make([]schema.VectorSearchResult, 0, len(points))
	for _, p := range points {
		rec := fromPayload(p.GetPayload())
		r := schema.VectorSearchResult{
			ID:       rec.ID,
			Score:    p.GetScore(),
			Metadata: rec.Metadata,
			Content:  rec.Content,
		}
		if q.IncludeVector {
			r.Vector = p.GetVectors().GetVector().GetData()
		}
		out = append(out, r)
	}
	return out, nil
}

func (b *Backend) Get(ctx context.Context, id, namespace string) (*schema.VectorRecord, error) {
	recs, err := b.retrieve(ctx, []string{id}, true)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if rec.ID == id && rec.Namespace == namespace {
			return &rec, nil
		}
	}
	return nil, nil
}

func (b *Backend) Delete(ctx context.Context, ids []string, namespace string) (int, error) {
	recs, err := b.retrieve(ctx, ids, false)
	if err != nil {
		return 0, err
	}
	var doomed []*qdrant.PointId
	for _, rec := range recs {
		if rec.Namespace == namespace {
			doomed = append(doomed, pointID(rec.ID))
		}
	}
	if len(doomed) == 0 {
		return 0, nil
	}
	_, err = b.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: b.coll,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(doomed...),
	})
	if err != nil {
		return 0, errdefs.Wrap(errdefs.KindStorage, err, "qdrant: delete from %s", b.coll)
	}
	return len(doomed), nil
}

func (b *Backend) List(ctx context.Context, namespace string, limit int) ([]schema.VectorRecord, error) {
	filter, err := b.namespaceFilter(namespace, nil)
	if err != nil {
		return nil, err
	}
	points, err := b.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: b.coll,
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint32(limit)),
		OrderBy: &qdrant.OrderBy{
			Key:       payloadCreatedAt,
			Direction: qdrant.Direction_Desc.Enum(),
		},
		WithPayload: qdrant.NewWithPayload(true),
		WithVectors: qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindStorage, err, "qdrant: scroll %s", b.coll)
	}
	out := make([]schema.VectorRecord, 0, len(points))
	for _, p := range points {
		rec := fromPayload(p.GetPayload())
		rec.Vector = p.GetVectors().GetVector().GetData()
		out = append(out, rec)
	}
	return out, nil
}

func (b *Backend) Count(ctx context.Context, namespace string) (int64, error) {
	filter, err := b.namespaceFilter(namespace, nil)
	if err != nil {
		return 0, err
	}
	n, err := b.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: b.coll,
		Filter:         filter,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, errdefs.Wrap(errdefs.KindStorage, err, "qdrant: count %s", b.coll)
	}
	return int64(n), nil
}

func (b *Backend) Ping(ctx context.Context) error {
	_, err := b.client.HealthCheck(ctx)
	return err
}

func (b *Backend) Close(context.Context) error {
	return b.client.Close()
}

func (b *Backend) retrieve(ctx context.Context, ids []string, withVectors bool) ([]schema.VectorRecord, error) {
	pids := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pids[i] = pointID(id)
	}
	points, err := b.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: b.coll,
		Ids:            pids,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(withVectors),
	})
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindStorage, err, "qdrant: get from %s", b.coll)
	}
	out := make([]schema.VectorRecord, 0, len(points))
	for _, p := range points {
		rec := fromPayload(p.GetPayload())
		if withVectors {
			rec.Vector = p.GetVectors().GetVector().GetData()
		}
		out = append(out, rec)
	}
	return out, nil
}

func (b *Backend) namespaceFilter(namespace string, f schema.Filter) (*qdrant.Filter, error) {
	must := []*qdrant.Condition{qdrant.NewMatch(payloadNamespace, namespace)}
	if f != nil {
		cond, err := condition(f)
		if err != nil {
			return nil, err
		}
		must = append(must, cond)
	}
	return &qdrant.Filter{Must: must}, nil
}

// pointIDSpace scopes the UUIDv5 point ids derived from record ids.
var pointIDSpace = uuid.MustParse("6f1c5a52-8d0e-4f4a-9a57-3d6b2c7e9b10")

func pointID(recordID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(pointIDSpace, []byte(recordID)).String())
}

func fromPayload(p map[string]*qdrant.Value) schema.VectorRecord {
	rec := schema.VectorRecord{
		ID:        p[payloadRecordID].GetStringValue(),
		Namespace: p[payloadNamespace].GetStringValue(),
		Content:   p[payloadContent].GetStringValue(),
		CreatedAt: time.Unix(0, p[payloadCreatedAt].GetIntegerValue()).UTC(),
		UpdatedAt: time.Unix(0, p[payloadUpdatedAt].GetIntegerValue()).UTC(),
	}
	if m, ok := fromValue(p[payloadMetadata]).(map[string]any); ok && len(m) > 0 {
		rec.Metadata = m
	}
	return rec
}

// fromValue converts a payload value back to the shapes encoding/json
// produces, except that integers stay int64.
func fromValue(v *qdrant.Value) any {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	case *qdrant.Value_StructValue:
		m := make(map[string]any, len(k.StructValue.GetFields()))
		for key, val := range k.StructValue.GetFields() {
			m[key] = fromValue(val)
		}
		return m
	case *qdrant.Value_ListValue:
		vals := k.ListValue.GetValues()
		out := make([]any, len(vals))
		for i, val := range vals {
			out[i] = fromValue(val)
		}
		return out
	default:
		return nil
	}
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
