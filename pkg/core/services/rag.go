// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/leseb/bedrock-gw/pkg/artifact"
	"github.com/leseb/bedrock-gw/pkg/artifact/extractor"
	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
	"github.com/leseb/bedrock-gw/pkg/vectorstore"
)

// Default prompt templates. Both receive a promptData value.
const (
	DefaultContextTemplate   = "Context:\n{{.Context}}\n\nQuestion: {{.Question}}\n\nAnswer based on the provided context:"
	DefaultNoContextTemplate = "Question: {{.Question}}\n\nAnswer:"
)

// Input types understood by embedding families that distinguish them.
const (
	InputSearchQuery    = "search_query"
	InputSearchDocument = "search_document"
)

// Metadata keys written on every ingested chunk.
const (
	MetaSource     = "source"
	MetaChunkIndex = "chunk_index"
	MetaArtifactID = "artifact_id"
)

// TextGenerator produces text for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, req schema.TextGenerationRequest) (*schema.TextGenerationResponse, error)
}

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, req schema.EmbeddingRequest) (*schema.EmbeddingResponse, error)
	EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// RAGOptions tunes retrieval and prompting. Zero values take defaults.
type RAGOptions struct {
	ContextLimit      int
	MaxContextChars   int
	ChunkSize         int
	ChunkOverlap      int
	ContextTemplate   string
	NoContextTemplate string
}

func (o *RAGOptions) setDefaults() {
	if o.ContextLimit <= 0 {
		o.ContextLimit = 5
	}
	if o.MaxContextChars <= 0 {
		o.MaxContextChars = 12000
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = vectorstore.DefaultChunkSize
	}
	if o.ChunkOverlap <= 0 || o.ChunkOverlap >= o.ChunkSize {
		o.ChunkOverlap = min(vectorstore.DefaultChunkOverlap, o.ChunkSize/2)
	}
	if o.ContextTemplate == "" {
		o.ContextTemplate = DefaultContextTemplate
	}
	if o.NoContextTemplate == "" {
		o.NoContextTemplate = DefaultNoContextTemplate
	}
}

type promptData struct {
	Context  string
	Question string
}

// RAGService sequences embedding, retrieval, prompt assembly and
// generation over one shared vector store.
type RAGService struct {
	text      TextGenerator
	embedder  Embedder
	store     *vectorstore.Store
	artifacts artifact.Store // optional; needed for ingestion by artifact id
	opts      RAGOptions
	withCtx   *template.Template
	noCtx     *template.Template
	logger    *slog.Logger
}

// NewRAGService parses the prompt templates; a bad template is a config
// error.
func NewRAGService(text TextGenerator, embedder Embedder, store *vectorstore.Store, artifacts artifact.Store, opts RAGOptions, logger *slog.Logger) (*RAGService, error) {
	if text == nil || embedder == nil || store == nil {
		return nil, errdefs.Configf("rag: text generator, embedder and vector store are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts.setDefaults()

	withCtx, err := template.New("context").Option("missingkey=error").Parse(opts.ContextTemplate)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindConfig, err, "rag: parse context template")
	}
	noCtx, err := template.New("no_context").Option("missingkey=error").Parse(opts.NoContextTemplate)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindConfig, err, "rag: parse no-context template")
	}

	return &RAGService{
		text:      text,
		embedder:  embedder,
		store:     store,
		artifacts: artifacts,
		opts:      opts,
		withCtx:   withCtx,
		noCtx:     noCtx,
		logger:    logger,
	}, nil
}

// GenerateWithContext answers req.Query using the closest stored
// documents. Zero hits is not an error: generation proceeds with the
// no-context prompt. Storage failures abort the call.
func (s *RAGService) GenerateWithContext(ctx context.Context, req schema.RAGRequest) (*schema.RAGResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, errdefs.Requestf("query is required")
	}
	limit := req.ContextLimit
	if limit <= 0 {
		limit = s.opts.ContextLimit
	}
	start := time.Now()

	hits, err := s.search(ctx, req.Query, limit, req.EmbedModel, req.Namespace, req.Filter, false)
	if err != nil {
		return nil, err
	}

	rc := s.assemble(hits)
	prompt, err := s.prompt(rc, req.Query)
	if err != nil {
		return nil, err
	}
	if rc.Len() == 0 {
		s.logger.Warn("No context retrieved, generating without it",
			"namespace", namespaceOf(req.Namespace), "limit", limit)
	}

	resp, err := s.text.Generate(ctx, schema.TextGenerationRequest{
		Prompt:      prompt,
		ModelID:     req.GenModel,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Generated answer with context",
		"model", resp.Model, "context_docs", rc.Len(), "duration", time.Since(start))
	return &schema.RAGResponse{
		Text:         resp.Text,
		Model:        resp.Model,
		FinishReason: resp.FinishReason,
		Usage:        resp.Usage,
		Context:      rc,
	}, nil
}

// EmbedAndStore embeds text and inserts it with its content and metadata.
func (s *RAGService) EmbedAndStore(ctx context.Context, text, embedModel string, metadata map[string]any, namespace string) (*schema.VectorRecord, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errdefs.Requestf("text is required")
	}
	emb, err := s.embedder.Embed(ctx, schema.EmbeddingRequest{Text: text, ModelID: embedModel, InputType: InputSearchDocument})
	if err != nil {
		return nil, err
	}

	rec := schema.VectorRecord{
		Vector:    emb.Embedding,
		Metadata:  maps.Clone(metadata),
		Content:   text,
		Namespace: namespaceOf(namespace),
	}
	id, err := s.store.Insert(ctx, rec)
	if err != nil {
		return nil, err
	}
	rec.ID = id
	return &rec, nil
}

// SemanticSearch embeds query and returns the closest records with their
// content and metadata.
func (s *RAGService) SemanticSearch(ctx context.Context, query string, limit int, embedModel, namespace string, filter schema.Filter) ([]schema.VectorSearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errdefs.Requestf("query is required")
	}
	if limit <= 0 {
		limit = s.opts.ContextLimit
	}
	return s.search(ctx, query, limit, embedModel, namespace, filter, true)
}

// IngestDocument extracts, chunks, embeds and stores one document in a
// single batch insert. Inline content is saved as a document artifact
// when an artifact store is configured.
func (s *RAGService) IngestDocument(ctx context.Context, req schema.IngestRequest) (*schema.IngestResponse, error) {
	name, content, artifactID, err := s.loadDocument(ctx, req)
	if err != nil {
		return nil, err
	}

	text, err := extractor.ExtractText(content, name)
	if err != nil {
		return nil, err
	}

	size, overlap := req.ChunkSize, req.Overlap
	if size <= 0 {
		size = s.opts.ChunkSize
	}
	if overlap <= 0 || overlap >= size {
		overlap = min(s.opts.ChunkOverlap, size/2)
	}
	chunks := vectorstore.SplitDocument(text, size, overlap)
	if len(chunks) == 0 {
		return nil, errdefs.Requestf("%s: no content to ingest", name)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, req.EmbedModel, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, errdefs.Responsef("embedding count mismatch: got %d, expected %d", len(vectors), len(chunks))
	}

	ns := namespaceOf(req.Namespace)
	recs := make([]schema.VectorRecord, len(chunks))
	for i, c := range chunks {
		meta := maps.Clone(req.Metadata)
		if meta == nil {
			meta = make(map[string]any, 3)
		}
		meta[MetaSource] = name
		meta[MetaChunkIndex] = c.Index
		if artifactID != "" {
			meta[MetaArtifactID] = artifactID
		}
		recs[i] = schema.VectorRecord{Vector: vectors[i], Metadata: meta, Content: c.Text, Namespace: ns}
	}

	ids, err := s.store.BatchInsert(ctx, recs)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Ingested document", "source", name, "namespace", ns, "chunks", len(ids))
	return &schema.IngestResponse{ArtifactID: artifactID, Source: name, Namespace: ns, Chunks: len(ids), IDs: ids}, nil
}

// loadDocument returns the document name, its bytes and its artifact id.
func (s *RAGService) loadDocument(ctx context.Context, req schema.IngestRequest) (string, []byte, string, error) {
	if req.ArtifactID != "" {
		if s.artifacts == nil {
			return "", nil, "", errdefs.Configf("no artifact store configured")
		}
		a, err := s.artifacts.Get(ctx, req.ArtifactID)
		if err != nil {
			return "", nil, "", artifactError(err, req.ArtifactID)
		}
		content, err := s.artifacts.Content(ctx, req.ArtifactID)
		if err != nil {
			return "", nil, "", artifactError(err, req.ArtifactID)
		}
		return a.Name, content, a.ID, nil
	}

	if len(req.Content) == 0 {
		return "", nil, "", errdefs.Requestf("artifact_id or document content is required")
	}
	name := req.Name
	if name == "" {
		name = "document"
	}
	if s.artifacts == nil {
		return name, req.Content, "", nil
	}
	a := artifact.New(name, artifact.KindDocument, req.Content)
	if err := s.artifacts.Put(ctx, a); err != nil {
		return "", nil, "", errdefs.Wrap(errdefs.KindStorage, err, "save document %s", name)
	}
	return name, req.Content, a.ID, nil
}

func artifactError(err error, id string) error {
	if errors.Is(err, artifact.ErrNotFound) {
		return errdefs.Wrap(errdefs.KindRequest, err, "artifact %s", id)
	}
	return errdefs.Wrap(errdefs.KindStorage, err, "artifact %s", id)
}

func (s *RAGService) search(ctx context.Context, query string, limit int, embedModel, namespace string, filter schema.Filter, withMeta bool) ([]schema.VectorSearchResult, error) {
	emb, err := s.embedder.Embed(ctx, schema.EmbeddingRequest{Text: query, ModelID: embedModel, InputType: InputSearchQuery})
	if err != nil {
		return nil, err
	}
	return s.store.Search(ctx, schema.VectorSearchQuery{
		Vector:          emb.Embedding,
		Limit:           limit,
		Namespace:       namespace,
		Filter:          filter,
		IncludeContent:  true,
		IncludeMetadata: withMeta,
	})
}

// assemble keeps hits in ranked order until MaxContextChars is reached.
// Hits without content are skipped. The first hit is truncated rather
// than dropped when it alone exceeds the budget.
func (s *RAGService) assemble(hits []schema.VectorSearchResult) schema.RagContext {
	rc := schema.RagContext{Contents: []string{}, SourceIDs: []string{}, Scores: []float32{}}
	used := 0
	for _, h := range hits {
		if h.Content == "" {
			continue
		}
		content := h.Content
		cost := utf8.RuneCountInString(content)
		if rc.Len() > 0 {
			cost += 2 // separator
		}
		if used+cost > s.opts.MaxContextChars {
			if rc.Len() > 0 {
				break
			}
			content = truncateRunes(content, s.opts.MaxContextChars)
			cost = s.opts.MaxContextChars
		}
		used += cost
		rc.Contents = append(rc.Contents, content)
		rc.SourceIDs = append(rc.SourceIDs, h.ID)
		rc.Scores = append(rc.Scores, h.Score)
	}
	return rc
}

func (s *RAGService) prompt(rc schema.RagContext, question string) (string, error) {
	tmpl := s.noCtx
	data := promptData{Question: question}
	if rc.Len() > 0 {
		tmpl = s.withCtx
		data.Context = strings.Join(rc.Contents, "\n\n")
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", errdefs.Wrap(errdefs.KindConfig, err, "render %s prompt", tmpl.Name())
	}
	return sb.String(), nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func namespaceOf(ns string) string {
	if ns == "" {
		return schema.DefaultNamespace
	}
	return ns
}
