// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/leseb/bedrock-gw/pkg/cache"
	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/profile"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
	"github.com/leseb/bedrock-gw/pkg/transport"
)

func TestTextClientGenerateDefaultModel(t *testing.T) {
	mock := transport.NewMock().On(profile.DefaultTextModel,
		`{"inputTextTokenCount":2,"results":[{"outputText":"Hi!","completionReason":"FINISH","tokenCount":1}]}`)
	c := NewTextClient(mock, "", nil)

	resp, err := c.Generate(context.Background(), schema.TextGenerationRequest{Prompt: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, "Hi!", resp.Text)
	assert.Equal(t, profile.DefaultTextModel, resp.Model)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Hello", gjson.GetBytes(calls[0].Body, "inputText").String())
	assert.False(t, calls[0].Stream)
}

func TestTextClientErrors(t *testing.T) {
	mock := transport.NewMock().On("meta.llama3-8b-instruct-v1:0", `{"unexpected":true}`)
	c := NewTextClient(mock, "", nil)
	ctx := context.Background()

	_, err := c.Generate(ctx, schema.TextGenerationRequest{Prompt: "x", ModelID: "acme.foo"})
	assert.ErrorIs(t, err, errdefs.ErrConfig)

	_, err = c.Generate(ctx, schema.TextGenerationRequest{Prompt: "x", ModelID: "meta.llama3-8b-instruct-v1:0", Provider: "anthropic"})
	assert.ErrorIs(t, err, errdefs.ErrConfig)

	_, err = c.Generate(ctx, schema.TextGenerationRequest{Prompt: "", ModelID: "meta.llama3-8b-instruct-v1:0"})
	assert.ErrorIs(t, err, errdefs.ErrRequest)

	_, err = c.Generate(ctx, schema.TextGenerationRequest{Prompt: "x", ModelID: "meta.llama3-8b-instruct-v1:0"})
	assert.ErrorIs(t, err, errdefs.ErrResponse)

	_, err = c.Generate(ctx, schema.TextGenerationRequest{Prompt: "x", ModelID: "stability.stable-diffusion-xl-v1"})
	assert.ErrorIs(t, err, errdefs.ErrRequest)

	mock.Err = errdefs.Transportf("boom")
	_, err = c.Generate(ctx, schema.TextGenerationRequest{Prompt: "x", ModelID: "meta.llama3-8b-instruct-v1:0"})
	assert.ErrorIs(t, err, errdefs.ErrTransport)
}

func TestTextClientStream(t *testing.T) {
	model := "anthropic.claude-3-haiku-20240307-v1:0"
	mock := transport.NewMock().OnStream(model,
		`{"type":"message_start","message":{}}`,
		`{"type":"content_block_delta","delta":{"type":"text_delta","text":"Hello"}}`,
		`{"type":"content_block_delta","delta":{"type":"text_delta","text":", world"}}`,
		`{"type":"message_delta","delta":{"stop_reason":"end_turn"}}`,
		`{"type":"message_stop"}`,
	)
	c := NewTextClient(mock, "", nil)

	r, err := c.GenerateStream(context.Background(), schema.TextGenerationRequest{Prompt: "hi", ModelID: model})
	require.NoError(t, err)

	var chunks []schema.StreamChunk
	for c, err := range r.All(context.Background()) {
		require.NoError(t, err)
		chunks = append(chunks, c)
	}
	require.Len(t, chunks, 3)
	assert.Equal(t, "Hello", chunks[0].Chunk)
	assert.Equal(t, ", world", chunks[1].Chunk)
	assert.Equal(t, schema.StreamChunk{Done: true, FinishReason: "end_turn"}, chunks[2])
	assert.True(t, mock.Calls()[0].Stream)
}

func TestTextClientStreamFlagCollects(t *testing.T) {
	model := "meta.llama3-8b-instruct-v1:0"
	mock := transport.NewMock().OnStream(model,
		`{"generation":"Rust ","stop_reason":null}`,
		`{"generation":"rocks","stop_reason":"stop"}`,
	)
	resp, err := NewTextClient(mock, "", nil).Generate(context.Background(),
		schema.TextGenerationRequest{Prompt: "hi", ModelID: model, Stream: true})
	require.NoError(t, err)
	assert.Equal(t, "Rust rocks", resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)
}

func TestTextClientStreamUnsupported(t *testing.T) {
	_, err := NewTextClient(transport.NewMock(), "", nil).GenerateStream(context.Background(),
		schema.TextGenerationRequest{Prompt: "hi", ModelID: "ai21.j2-ultra-v1"})
	assert.ErrorIs(t, err, errdefs.ErrRequest)
}

func TestImageClient(t *testing.T) {
	mock := transport.NewMock().On("stability.stable-diffusion-xl-v1",
		`{"result":"success","artifacts":[{"base64":"aW1n","finishReason":"SUCCESS"}]}`)
	c := NewImageClient(mock, "", nil)

	resp, err := c.Generate(context.Background(), schema.ImageGenerationRequest{
		Prompt: "a lighthouse", ModelID: "stability.stable-diffusion-xl-v1",
	})
	require.NoError(t, err)
	assert.Equal(t, "aW1n", resp.First())
}

// embedHandler answers Titan and Cohere embedding calls with one vector per
// text whose first component encodes the text length.
func embedHandler(call transport.Call) ([]byte, error) {
	if texts := gjson.GetBytes(call.Body, "texts"); texts.Exists() {
		var vecs [][]float32
		for _, t := range texts.Array() {
			vecs = append(vecs, []float32{float32(len(t.String())), 1})
		}
		return json.Marshal(map[string]any{"embeddings": vecs})
	}
	text := gjson.GetBytes(call.Body, "inputText").String()
	return json.Marshal(map[string]any{"embedding": []float32{float32(len(text)), 1}, "inputTextTokenCount": 1})
}

func TestBedrockEmbeddingClient(t *testing.T) {
	mock := transport.NewMock()
	mock.Handler = embedHandler
	c := NewBedrockEmbeddingClient(mock, "", 0, nil)

	resp, err := c.Embed(context.Background(), schema.EmbeddingRequest{Text: "abc"})
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 1}, resp.Embedding)
	assert.Equal(t, profile.DefaultEmbeddingModel, resp.Model)

	_, err = c.Embed(context.Background(), schema.EmbeddingRequest{Text: ""})
	assert.ErrorIs(t, err, errdefs.ErrRequest)

	_, err = c.Embed(context.Background(), schema.EmbeddingRequest{Text: "x", ModelID: "anthropic.claude-3-haiku-20240307-v1:0"})
	assert.ErrorIs(t, err, errdefs.ErrRequest)
}

func TestBedrockEmbeddingBatching(t *testing.T) {
	texts := make([]string, 100)
	for i := range texts {
		texts[i] = fmt.Sprintf("%0*d", i+1, 0)
	}

	t.Run("cohere batches of 96", func(t *testing.T) {
		mock := transport.NewMock()
		mock.Handler = embedHandler
		vecs, err := NewBedrockEmbeddingClient(mock, "", 0, nil).EmbedBatch(context.Background(), "cohere.embed-english-v3", texts)
		require.NoError(t, err)
		require.Len(t, vecs, 100)
		for i, v := range vecs {
			assert.Equal(t, float32(i+1), v[0])
		}
		calls := mock.Calls()
		require.Len(t, calls, 2)
		assert.Equal(t, int64(96), gjson.GetBytes(calls[0].Body, "texts.#").Int())
		assert.Equal(t, "search_document", gjson.GetBytes(calls[0].Body, "input_type").String())
	})

	t.Run("titan one per call", func(t *testing.T) {
		mock := transport.NewMock()
		mock.Handler = embedHandler
		vecs, err := NewBedrockEmbeddingClient(mock, "", 0, nil).EmbedBatch(context.Background(), "", texts[:3])
		require.NoError(t, err)
		assert.Len(t, vecs, 3)
		assert.Len(t, mock.Calls(), 3)
	})
}

func TestCachedEmbeddingClient(t *testing.T) {
	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisCache(context.Background(), cache.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer rc.Close()

	mock := transport.NewMock()
	mock.Handler = embedHandler
	c := NewCachedEmbeddingClient(NewBedrockEmbeddingClient(mock, "", 0, nil), rc, nil)
	ctx := context.Background()

	for range 3 {
		resp, err := c.Embed(ctx, schema.EmbeddingRequest{Text: "hello"})
		require.NoError(t, err)
		assert.Equal(t, []float32{5, 1}, resp.Embedding)
	}
	assert.Len(t, mock.Calls(), 1)

	vecs, err := c.EmbedBatch(ctx, "", []string{"a", "bb", "a"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 1}, {2, 1}, {1, 1}}, vecs)
	// A text repeated within one batch is embedded per occurrence; the next
	// batch is served entirely from the cache.
	before := len(mock.Calls())
	_, err = c.EmbedBatch(ctx, "", []string{"a", "bb"})
	require.NoError(t, err)
	assert.Equal(t, before, len(mock.Calls()))
}

func TestCachedEmbeddingClientKeysOnResolvedModel(t *testing.T) {
	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisCache(context.Background(), cache.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer rc.Close()

	mock := transport.NewMock()
	mock.Handler = embedHandler
	ctx := context.Background()

	v1 := NewCachedEmbeddingClient(NewBedrockEmbeddingClient(mock, "amazon.titan-embed-text-v1", 0, nil), rc, nil)
	resp, err := v1.Embed(ctx, schema.EmbeddingRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "amazon.titan-embed-text-v1", resp.Model)
	_, err = v1.EmbedBatch(ctx, "", []string{"doc"})
	require.NoError(t, err)
	require.Len(t, mock.Calls(), 2)

	// Same cache, new default model: nothing is served from the old entries.
	v2 := NewCachedEmbeddingClient(NewBedrockEmbeddingClient(mock, "amazon.titan-embed-text-v2:0", 0, nil), rc, nil)
	assert.Equal(t, "amazon.titan-embed-text-v2:0", v2.DefaultModel())
	_, err = v2.Embed(ctx, schema.EmbeddingRequest{Text: "hello"})
	require.NoError(t, err)
	_, err = v2.EmbedBatch(ctx, "", []string{"doc"})
	require.NoError(t, err)
	require.Len(t, mock.Calls(), 4)
	assert.Equal(t, "amazon.titan-embed-text-v2:0", mock.Calls()[3].ModelID)

	// Naming the default explicitly hits the same entry as leaving it empty.
	_, err = v2.Embed(ctx, schema.EmbeddingRequest{Text: "hello", ModelID: "amazon.titan-embed-text-v2:0"})
	require.NoError(t, err)
	assert.Len(t, mock.Calls(), 4)
}

func TestOpenAIEmbeddingClient(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotModel = gjson.GetBytes(body, "model").String()
		input := gjson.GetBytes(body, "input")
		var texts []string
		if input.IsArray() {
			for _, v := range input.Array() {
				texts = append(texts, v.String())
			}
		} else {
			texts = []string{input.String()}
		}
		data := make([]map[string]any, 0, len(texts))
		// Reverse order exercises index-based placement.
		for i := len(texts) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object": "embedding", "index": i, "embedding": []float64{float64(len(texts[i])), 0.5},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list", "model": gotModel, "data": data,
			"usage": map[string]any{"prompt_tokens": 3, "total_tokens": 3},
		})
	}))
	defer srv.Close()

	c := NewOpenAIEmbeddingClient(srv.URL, "", "text-embedding-3-small", 0)

	resp, err := c.Embed(context.Background(), schema.EmbeddingRequest{Text: "four"})
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 0.5}, resp.Embedding)
	assert.Equal(t, "text-embedding-3-small", gotModel)
	assert.Equal(t, 3, resp.InputTokens)

	vecs, err := c.EmbedBatch(context.Background(), "other-model", []string{"a", "bbb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0.5}, {3, 0.5}}, vecs)
	assert.Equal(t, "other-model", gotModel)
}
