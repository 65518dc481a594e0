// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlite is a single-file vector store backend for local use.
// Candidates are narrowed by namespace in SQL and ranked in Go.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
	"github.com/leseb/bedrock-gw/pkg/provider"
	"github.com/leseb/bedrock-gw/pkg/vectorstore"
)

const DefaultTable = "vector_records"

func init() {
	vectorstore.Providers.Register("sqlite", func(ctx context.Context, p provider.Params) (vectorstore.Backend, error) {
		dims, err := p.Int(vectorstore.ParamDimensions, 0)
		if err != nil {
			return nil, err
		}
		path := p.Get("path")
		if path == "" {
			path = ":memory:"
		}
		return New(ctx, path, p.Get("table"), dims)
	})
}

// Backend is a SQLite-backed vectorstore.Backend.
type Backend struct {
	db    *sql.DB
	table string
	dims  int
}

var _ vectorstore.Backend = (*Backend)(nil)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// New opens (or creates) the database at path. ":memory:" gives a private
// in-memory database.
func New(ctx context.Context, path, table string, dimensions int) (*Backend, error) {
	if table == "" {
		table = DefaultTable
	}
	if !identRe.MatchString(table) {
		return nil, errdefs.Configf("sqlite: invalid table name %q", table)
	}
	if dimensions <= 0 {
		return nil, errdefs.Configf("sqlite: dimensions must be positive, got %d", dimensions)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindConfig, err, "sqlite open")
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	b := &Backend{db: db, table: table, dims: dimensions}
	if err := b.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode = WAL`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			embedding BLOB NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			content TEXT,
			namespace TEXT NOT NULL DEFAULT '%s',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`, b.table, schema.DefaultNamespace),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_namespace ON %s(namespace, created_at)`, b.table, b.table),
	}
	for _, stmt := range stmts {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return errdefs.Wrap(errdefs.KindStorage, err, "sqlite migrate")
		}
	}

	var size int
	err := b.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT length(embedding) FROM %s LIMIT 1`, b.table)).Scan(&size)
	switch {
	case err == sql.ErrNoRows:
		return nil
	case err != nil:
		return errdefs.Wrap(errdefs.KindStorage, err, "sqlite: read embedding dimension")
	}
	if size/4 != b.dims {
		return errdefs.Configf("sqlite: table %s stores %d-dimensional vectors, configured for %d", b.table, size/4, b.dims)
	}
	return nil
}

func (b *Backend) Name() string { return "sqlite" }

func (b *Backend) Upsert(ctx context.Context, recs []schema.VectorRecord) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return errdefs.Wrap(errdefs.KindStorage, err, "sqlite begin")
	}
	defer tx.Rollback() //nolint:errcheck

	query := fmt.Sprintf(`INSERT INTO %s (id, embedding, metadata, content, namespace, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			embedding = excluded.embedding,
			metadata = excluded.metadata,
			content = excluded.content,
			namespace = excluded.namespace,
			updated_at = excluded.updated_at`, b.table)

	for _, rec := range recs {
		meta, err := json.Marshal(rec.Metadata)
		if err != nil {
			return errdefs.Wrap(errdefs.KindStorage, err, "sqlite: encode metadata")
		}
		var content any
		if rec.Content != "" {
			content = rec.Content
		}
		if _, err := tx.ExecContext(ctx, query,
			rec.ID, encodeVector(rec.Vector), string(meta), content, rec.Namespace,
			formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
		); err != nil {
			return errdefs.Wrap(errdefs.KindStorage, err, "sqlite upsert %s", rec.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return errdefs.Wrap(errdefs.KindStorage, err, "sqlite commit")
	}
	return nil
}

func (b *Backend) Search(ctx context.Context, q schema.VectorSearchQuery) ([]schema.VectorSearchResult, error) {
	rows, err := b.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, embedding, metadata, content FROM %s WHERE namespace = ?`, b.table),
		q.Namespace)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindStorage, err, "sqlite search")
	}
	defer rows.Close()

	top := vectorstore.NewTopK(q.Limit)
	for rows.Next() {
		var (
			id      string
			blob    []byte
			meta    string
			content sql.NullString
		)
		if err := rows.Scan(&id, &blob, &meta, &content); err != nil {
			return nil, errdefs.Wrap(errdefs.KindStorage, err, "sqlite scan")
		}
		m, err := decodeMetadata(meta)
		if err != nil {
			return nil, err
		}
		if q.Filter != nil && !schema.EvaluateFilter(q.Filter, m) {
			continue
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, err
		}
		if len(vec) != len(q.Vector) {
			return nil, errdefs.Storagef("sqlite: record %s has %d dimensions, query has %d", id, len(vec), len(q.Vector))
		}
		r := schema.VectorSearchResult{
			ID:       id,
			Score:    vectorstore.CosineSimilarity(q.Vector, vec),
			Metadata: m,
			Content:  content.String,
		}
		if q.IncludeVector {
			r.Vector = vec
		}
		top.Push(r)
	}
	if err := rows.Err(); err != nil {
		return nil, errdefs.Wrap(errdefs.KindStorage, err, "sqlite search")
	}
	return top.Results(), nil
}

const recordColumns = "id, embedding, metadata, content, namespace, created_at, updated_at"

func (b *Backend) Get(ctx context.Context, id, namespace string) (*schema.VectorRecord, error) {
	row := b.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE id = ? AND namespace = ?`, recordColumns, b.table),
		id, namespace)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

func (b *Backend) Delete(ctx context.Context, ids []string, namespace string) (int, error) {
	args := make([]any, 0, len(ids)+1)
	args = append(args, namespace)
	for _, id := range ids {
		args = append(args, id)
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	res, err := b.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE namespace = ? AND id IN (%s)`, b.table, marks),
		args...)
	if err != nil {
		return 0, errdefs.Wrap(errdefs.KindStorage, err, "sqlite delete")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errdefs.Wrap(errdefs.KindStorage, err, "sqlite delete")
	}
	return int(n), nil
}

func (b *Backend) List(ctx context.Context, namespace string, limit int) ([]schema.VectorRecord, error) {
	rows, err := b.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE namespace = ? ORDER BY created_at DESC, id LIMIT ?`, recordColumns, b.table),
		namespace, limit)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindStorage, err, "sqlite list")
	}
	defer rows.Close()

	var out []schema.VectorRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errdefs.Wrap(errdefs.KindStorage, err, "sqlite list")
	}
	return out, nil
}

func (b *Backend) Count(ctx context.Context, namespace string) (int64, error) {
	var n int64
	err := b.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE namespace = ?`, b.table), namespace).Scan(&n)
	if err != nil {
		return 0, errdefs.Wrap(errdefs.KindStorage, err, "sqlite count")
	}
	return n, nil
}

func (b *Backend) Ping(ctx context.Context) error { return b.db.PingContext(ctx) }

func (b *Backend) Close(context.Context) error { return b.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*schema.VectorRecord, error) {
	var (
		rec              schema.VectorRecord
		blob             []byte
		meta             string
		content          sql.NullString
		created, updated string
	)
	if err := s.Scan(&rec.ID, &blob, &meta, &content, &rec.Namespace, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, errdefs.Wrap(errdefs.KindStorage, err, "sqlite scan")
	}
	var err error
	if rec.Vector, err = decodeVector(blob); err != nil {
		return nil, err
	}
	if rec.Metadata, err = decodeMetadata(meta); err != nil {
		return nil, err
	}
	rec.Content = content.String
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &rec, nil
}

// encodeVector packs v as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, errdefs.Storagef("sqlite: vector blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

func decodeMetadata(s string) (map[string]any, error) {
	if s == "" || s == "null" || s == "{}" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, errdefs.Wrap(errdefs.KindStorage, err, "sqlite: decode metadata")
	}
	return m, nil
}

// formatTime renders t so that lexical order matches time order.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}
