// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package milvus

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	milvusclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
	"github.com/leseb/bedrock-gw/pkg/provider"
	"github.com/leseb/bedrock-gw/pkg/vectorstore"
)

const (
	fieldID        = "id"
	fieldNamespace = "namespace"
	fieldContent   = "content"
	fieldMetadata  = "metadata"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
	fieldEmbedding = "embedding"

	maxContentLength   = 65535
	maxIDLength        = 256
	maxNamespaceLength = 256

	// DefaultCollection is used when none is configured.
	DefaultCollection = "vector_records"
)

var recordFields = []string{fieldID, fieldNamespace, fieldContent, fieldMetadata, fieldCreatedAt, fieldUpdatedAt, fieldEmbedding}

func init() {
	vectorstore.Providers.Register("milvus", func(ctx context.Context, p provider.Params) (vectorstore.Backend, error) {
		addr, err := p.Required("milvus", "address")
		if err != nil {
			return nil, err
		}
		dims, err := p.Int(vectorstore.ParamDimensions, 0)
		if err != nil {
			return nil, err
		}
		return NewBackend(ctx, Config{
			Address:    addr,
			Username:   p.Get("username"),
			Password:   p.Get("password"),
			Collection: p.Get("collection"),
			Dimensions: dims,
		})
	})
}

// Config configures the backend.
type Config struct {
	Address    string
	Username   string
	Password   string
	Collection string
	Dimensions int
}

// Backend implements vectorstore.Backend using Milvus.
// All namespaces share one collection; the namespace is a scalar field
// applied as a filter expression.
type Backend struct {
	client milvusclient.Client
	coll   string
	dims   int
}

var _ vectorstore.Backend = (*Backend)(nil)

// NewBackend connects to Milvus and makes sure the collection exists with
// the configured dimension, an HNSW index and is loaded.
func NewBackend(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Dimensions <= 0 {
		return nil, errdefs.Configf("milvus: dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	c, err := milvusclient.NewClient(ctx, milvusclient.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindStorage, err, "milvus connect %s", cfg.Address)
	}
	b := &Backend{client: c, coll: cfg.Collection, dims: cfg.Dimensions}
	if err := b.ensureCollection(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) ensureCollection(ctx context.Context) error {
	exists, err := b.client.HasCollection(ctx, b.coll)
	if err != nil {
		return errdefs.Wrap(errdefs.KindStorage, err, "milvus: check collection %s", b.coll)
	}
	if exists {
		return b.checkDimension(ctx)
	}

	sch := entity.NewSchema().
		WithName(b.coll).
		WithField(entity.NewField().
			WithName(fieldID).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxIDLength).
			WithIsPrimaryKey(true)).
		WithField(entity.NewField().
			WithName(fieldNamespace).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxNamespaceLength)).
		WithField(entity.NewField().
			WithName(fieldContent).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxContentLength)).
		WithField(entity.NewField().
			WithName(fieldMetadata).
			WithDataType(entity.FieldTypeJSON)).
		WithField(entity.NewField().
			WithName(fieldCreatedAt).
			WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().
			WithName(fieldUpdatedAt).
			WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().
			WithName(fieldEmbedding).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(b.dims)))

	if err := b.client.CreateCollection(ctx, sch, 1); err != nil {
		return errdefs.Wrap(errdefs.KindStorage, err, "milvus: create collection %s", b.coll)
	}

	idx, err := entity.NewIndexHNSW(entity.COSINE, 16, 200)
	if err != nil {
		return errdefs.Wrap(errdefs.KindStorage, err, "milvus: HNSW index params")
	}
	if err := b.client.CreateIndex(ctx, b.coll, fieldEmbedding, idx, false); err != nil {
		return errdefs.Wrap(errdefs.KindStorage, err, "milvus: create index on %s", b.coll)
	}
	if err := b.client.LoadCollection(ctx, b.coll, false); err != nil {
		return errdefs.Wrap(errdefs.KindStorage, err, "milvus: load collection %s", b.coll)
	}
	return nil
}

func (b *Backend) checkDimension(ctx context.Context) error {
	coll, err := b.client.DescribeCollection(ctx, b.coll)
	if err != nil {
		return errdefs.Wrap(errdefs.KindStorage, err, "milvus: describe collection %s", b.coll)
	}
	for _, f := range coll.Schema.Fields {
		if f.Name != fieldEmbedding {
			continue
		}
		dim, _ := strconv.Atoi(f.TypeParams[entity.TypeParamDim])
		if dim != b.dims {
			return errdefs.Configf("milvus: collection %s stores %d-dimensional vectors, configured for %d", b.coll, dim, b.dims)
		}
		return nil
	}
	return errdefs.Configf("milvus: collection %s has no %s field", b.coll, fieldEmbedding)
}

func (b *Backend) Name() string { return "milvus" }

func (b *Backend) Upsert(ctx context.Context, recs []schema.VectorRecord) error {
	if len(recs) == 0 {
		return nil
	}
	for _, rec := range recs {
		if len(rec.ID) > maxIDLength {
			return errdefs.Storagef("milvus: id longer than %d bytes", maxIDLength)
		}
		if len(rec.Content) > maxContentLength {
			return errdefs.Storagef("milvus: content exceeds %d bytes", maxContentLength)
		}
	}
	existing, err := b.createdAt(ctx, recs)
	if err != nil {
		return err
	}

	n := len(recs)
	ids := make([]string, n)
	namespaces := make([]string, n)
	contents := make([]string, n)
	metas := make([][]byte, n)
	created := make([]int64, n)
	updated := make([]int64, n)
	vectors := make([][]float32, n)

	for i, rec := range recs {
		ids[i] = rec.ID
		namespaces[i] = rec.Namespace
		contents[i] = rec.Content
		meta, err := json.Marshal(orEmpty(rec.Metadata))
		if err != nil {
			return errdefs.Wrap(errdefs.KindStorage, err, "milvus: encode metadata")
		}
		metas[i] = meta
		created[i] = rec.CreatedAt.UnixNano()
		if ts, ok := existing[rec.ID]; ok {
			created[i] = ts
		}
		updated[i] = rec.UpdatedAt.UnixNano()
		vectors[i] = rec.Vector
	}

	_, err = b.client.Upsert(ctx, b.coll, "",
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnVarChar(fieldNamespace, namespaces),
		entity.NewColumnVarChar(fieldContent, contents),
		entity.NewColumnJSONBytes(fieldMetadata, metas),
		entity.NewColumnInt64(fieldCreatedAt, created),
		entity.NewColumnInt64(fieldUpdatedAt, updated),
		entity.NewColumnFloatVector(fieldEmbedding, b.dims, vectors),
	)
	if err != nil {
		return errdefs.Wrap(errdefs.KindStorage, err, "milvus: upsert into %s", b.coll)
	}
	if err := b.client.Flush(ctx, b.coll, false); err != nil {
		return errdefs.Wrap(errdefs.KindStorage, err, "milvus: flush %s", b.coll)
	}
	return nil
}

// createdAt returns the stored creation time of records that already exist,
// so that an upsert keeps it.
func (b *Backend) createdAt(ctx context.Context, recs []schema.VectorRecord) (map[string]int64, error) {
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	rs, err := b.client.Query(ctx, b.coll, nil, idIn(ids), []string{fieldID, fieldCreatedAt}, strong())
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindStorage, err, "milvus: query %s", b.coll)
	}
	out := make(map[string]int64)
	idCol, tsCol := rs.GetColumn(fieldID), rs.GetColumn(fieldCreatedAt)
	if idCol == nil || tsCol == nil {
		return out, nil
	}
	for i := 0; i < idCol.Len(); i++ {
		id, _ := idCol.GetAsString(i)
		ts, _ := tsCol.GetAsInt64(i)
		out[id] = ts
	}
	return out, nil
}

func (b *Backend) Search(ctx context.Context, q schema.VectorSearchQuery) ([]schema.VectorSearchResult, error) {
	expr := eq(fieldNamespace, q.Namespace)
	if q.Filter != nil {
		f, err := filterExpr(q.Filter)
		if err != nil {
			return nil, err
		}
		expr += " && " + f
	}

	sp, err := entity.NewIndexHNSWSearchParam(max(64, q.Limit))
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindStorage, err, "milvus: search params")
	}
	out := []string{fieldID, fieldContent, fieldMetadata}
	if q.IncludeVector {
		out = append(out, fieldEmbedding)
	}

	results, err := b.client.Search(
		ctx,
		b.coll,
		nil,
		expr,
		out,
		[]entity.Vector{entity.FloatVector(q.Vector)},
		fieldEmbedding,
		entity.COSINE,
		q.Limit,
		sp,
		strong(),
	)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindStorage, err, "milvus: search %s", b.coll)
	}
	if len(results) == 0 {
		return nil, nil
	}
	sr := results[0]
	if sr.Err != nil {
		return nil, errdefs.Wrap(errdefs.KindStorage, sr.Err, "milvus: search result")
	}

	hits := make([]schema.VectorSearchResult, 0, sr.ResultCount)
	for i := 0; i < sr.ResultCount; i++ {
		row, err := readRow(sr.Fields, i)
		if err != nil {
			return nil, err
		}
		hits = append(hits, schema.VectorSearchResult{
			ID:       row.ID,
			Score:    sr.Scores[i],
			Metadata: row.Metadata,
			Content:  row.Content,
			Vector:   row.Vector,
		})
	}
	return hits, nil
}

func (b *Backend) Get(ctx context.Context, id, namespace string) (*schema.VectorRecord, error) {
	recs, err := b.query(ctx, eq(fieldID, id)+" && "+eq(fieldNamespace, namespace))
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

func (b *Backend) Delete(ctx context.Context, ids []string, namespace string) (int, error) {
	expr := idIn(ids) + " && " + eq(fieldNamespace, namespace)
	rs, err := b.client.Query(ctx, b.coll, nil, expr, []string{fieldID}, strong())
	if err != nil {
		return 0, errdefs.Wrap(errdefs.KindStorage, err, "milvus: query %s", b.coll)
	}
	col := rs.GetColumn(fieldID)
	if col == nil || col.Len() == 0 {
		return 0, nil
	}
	found := make([]string, col.Len())
	for i := range found {
		found[i], _ = col.GetAsString(i)
	}
	if err := b.client.Delete(ctx, b.coll, "", idIn(found)); err != nil {
		return 0, errdefs.Wrap(errdefs.KindStorage, err, "milvus: delete from %s", b.coll)
	}
	return len(found), nil
}

// List sorts client side: Milvus queries have no ORDER BY.
func (b *Backend) List(ctx context.Context, namespace string, limit int) ([]schema.VectorRecord, error) {
	recs, err := b.query(ctx, eq(fieldNamespace, namespace))
	if err != nil {
		return nil, err
	}
	slices.SortFunc(recs, func(a, b schema.VectorRecord) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (b *Backend) Count(ctx context.Context, namespace string) (int64, error) {
	rs, err := b.client.Query(ctx, b.coll, nil, eq(fieldNamespace, namespace), []string{"count(*)"}, strong())
	if err != nil {
		return 0, errdefs.Wrap(errdefs.KindStorage, err, "milvus: count %s", b.coll)
	}
	col := rs.GetColumn("count(*)")
	if col == nil || col.Len() == 0 {
		return 0, nil
	}
	n, err := col.GetAsInt64(0)
	if err != nil {
		return 0, errdefs.Wrap(errdefs.KindStorage, err, "milvus: count %s", b.coll)
	}
	return n, nil
}

func (b *Backend) Ping(ctx context.Context) error {
	_, err := b.client.HasCollection(ctx, b.coll)
	return err
}

// Close releases the Milvus client connection.
func (b *Backend) Close(ctx context.Context) error {
	return b.client.Close()
}

func (b *Backend) query(ctx context.Context, expr string) ([]schema.VectorRecord, error) {
	rs, err := b.client.Query(ctx, b.coll, nil, expr, recordFields, strong())
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindStorage, err, "milvus: query %s", b.coll)
	}
	col := rs.GetColumn(fieldID)
	if col == nil {
		return nil, nil
	}
	recs := make([]schema.VectorRecord, 0, col.Len())
	for i := 0; i < col.Len(); i++ {
		row, err := readRow(rs, i)
		if err != nil {
			return nil, err
		}
		recs = append(recs, row)
	}
	return recs, nil
}

type columns interface {
	GetColumn(name string) entity.Column
}

// readRow reads the fields present in cols at row i. Absent fields stay zero.
func readRow(cols columns, i int) (schema.VectorRecord, error) {
	var rec schema.VectorRecord
	if c := cols.GetColumn(fieldID); c != nil {
		rec.ID, _ = c.GetAsString(i)
	}
	if c := cols.GetColumn(fieldNamespace); c != nil {
		rec.Namespace, _ = c.GetAsString(i)
	}
	if c := cols.GetColumn(fieldContent); c != nil {
		rec.Content, _ = c.GetAsString(i)
	}
	if c, ok := cols.GetColumn(fieldMetadata).(*entity.ColumnJSONBytes); ok {
		raw, err := c.ValueByIdx(i)
		if err != nil {
			return rec, errdefs.Wrap(errdefs.KindStorage, err, "milvus: read metadata")
		}
		if len(raw) > 0 && string(raw) != "{}" && string(raw) != "null" {
			if err := json.Unmarshal(raw, &rec.Metadata); err != nil {
				return rec, errdefs.Wrap(errdefs.KindStorage, err, "milvus: decode metadata")
			}
		}
	}
	if c := cols.GetColumn(fieldCreatedAt); c != nil {
		ts, _ := c.GetAsInt64(i)
		rec.CreatedAt = time.Unix(0, ts).UTC()
	}
	if c := cols.GetColumn(fieldUpdatedAt); c != nil {
		ts, _ := c.GetAsInt64(i)
		rec.UpdatedAt = time.Unix(0, ts).UTC()
	}
	if c, ok := cols.GetColumn(fieldEmbedding).(*entity.ColumnFloatVector); ok {
		if data := c.Data(); i < len(data) {
			rec.Vector = slices.Clone(data[i])
		}
	}
	return rec, nil
}

func strong() milvusclient.SearchQueryOptionFunc {
	return milvusclient.WithSearchQueryConsistencyLevel(entity.ClStrong)
}

func eq(field, value string) string {
	return fmt.Sprintf(`%s == "%s"`, field, escapeExpr(value))
}

func idIn(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = `"` + escapeExpr(id) + `"`
	}
	return fmt.Sprintf("%s in [%s]", fieldID, strings.Join(quoted, ", "))
}

// escapeExpr escapes backslashes and double quotes in a string for Milvus
// filter expressions.
func escapeExpr(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`)
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
