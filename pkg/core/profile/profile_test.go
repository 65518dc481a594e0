// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
)

func TestResolve_PrefixTable(t *testing.T) {
	tests := []struct {
		modelID string
		want    Provider
	}{
		{"amazon.titan-text-express-v1", Amazon},
		{"anthropic.claude-3-haiku-20240307-v1:0", Anthropic},
		{"meta.llama3-8b-instruct-v1:0", Meta},
		{"mistral.mistral-7b-instruct-v0:2", Mistral},
		{"ai21.jamba-1-5-mini-v1:0", AI21},
		{"cohere.command-r-v1:0", Cohere},
		{"stability.stable-diffusion-xl-v1", StabilityAI},
	}

	for _, tt := range tests {
		t.Run(tt.modelID, func(t *testing.T) {
			prof, err := Resolve(tt.modelID, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, prof.Provider)
			assert.Equal(t, tt.modelID, prof.ModelID)
			assert.Equal(t, tt.modelID, prof.BaseID)
			assert.Equal(t, Sync, prof.Mode)
			assert.False(t, prof.InferenceProfile)
		})
	}
}

func TestResolve_ExplicitProvider(t *testing.T) {
	prof, err := Resolve("anthropic.claude-3-haiku-20240307-v1:0", Anthropic)
	require.NoError(t, err)
	assert.Equal(t, Anthropic, prof.Provider)

	_, err = Resolve("anthropic.claude-3-haiku-20240307-v1:0", Meta)
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrConfig)

	// unknown prefix is accepted with an explicit provider
	prof, err = Resolve("custom-finetune", Mistral)
	require.NoError(t, err)
	assert.Equal(t, Mistral, prof.Provider)

	_, err = Resolve("amazon.titan-text-express-v1", Provider("openai"))
	assert.ErrorIs(t, err, errdefs.ErrConfig)
}

func TestResolve_InferenceProfiles(t *testing.T) {
	prof, err := Resolve("us.anthropic.claude-3-5-sonnet-20240620-v1:0", "")
	require.NoError(t, err)
	assert.Equal(t, Anthropic, prof.Provider)
	assert.Equal(t, "anthropic.claude-3-5-sonnet-20240620-v1:0", prof.BaseID)
	assert.Equal(t, "us.anthropic.claude-3-5-sonnet-20240620-v1:0", prof.ModelID)
	assert.True(t, prof.InferenceProfile)

	arn := "arn:aws:bedrock:us-east-1:123456789012:inference-profile/my-profile"
	_, err = Resolve(arn, "")
	assert.ErrorIs(t, err, errdefs.ErrConfig)

	prof, err = Resolve(arn, Meta)
	require.NoError(t, err)
	assert.Equal(t, Meta, prof.Provider)
	assert.Empty(t, prof.BaseID)
	assert.True(t, prof.InferenceProfile)
}

func TestResolve_Errors(t *testing.T) {
	for _, id := range []string{"", "   ", "openai.gpt-4o"} {
		_, err := Resolve(id, "")
		assert.ErrorIs(t, err, errdefs.ErrConfig, "model %q", id)
	}
}

func TestResolve_Idempotent(t *testing.T) {
	for _, id := range []string{"meta.llama3-70b-instruct-v1:0", "eu.mistral.mistral-large-2402-v1:0"} {
		a, errA := Resolve(id, "")
		b, errB := Resolve(id, "")
		require.NoError(t, errA)
		require.NoError(t, errB)
		assert.Equal(t, a, b)
	}
}

func TestWithStreaming(t *testing.T) {
	tests := []struct {
		modelID string
		ok      bool
	}{
		{"anthropic.claude-3-haiku-20240307-v1:0", true},
		{"amazon.titan-text-express-v1", true},
		{"ai21.jamba-1-5-mini-v1:0", true},
		{"ai21.j2-ultra-v1", false},
		{"amazon.titan-image-generator-v1", false},
		{"stability.stable-diffusion-xl-v1", false},
		{"cohere.embed-english-v3", false},
	}
	for _, tt := range tests {
		t.Run(tt.modelID, func(t *testing.T) {
			prof, err := Resolve(tt.modelID, "")
			require.NoError(t, err)

			streamed, err := prof.WithStreaming(true)
			if !tt.ok {
				assert.ErrorIs(t, err, errdefs.ErrRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Stream, streamed.Mode)
			assert.Equal(t, Sync, prof.Mode, "original profile is not modified")

			sync, err := streamed.WithStreaming(false)
			require.NoError(t, err)
			assert.Equal(t, Sync, sync.Mode)
		})
	}
}

func TestParseProvider(t *testing.T) {
	for in, want := range map[string]Provider{
		"":            "",
		"Anthropic":   Anthropic,
		"StabilityAI": StabilityAI,
		"stability":   StabilityAI,
		"LLAMA":       Meta,
		"ai21":        AI21,
	} {
		got, err := ParseProvider(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseProvider("openai")
	assert.ErrorIs(t, err, errdefs.ErrConfig)
}

func TestCatalog(t *testing.T) {
	seen := map[Provider]bool{}
	for _, m := range Catalog() {
		prof, err := Resolve(m.ID, "")
		require.NoError(t, err, m.ID)
		assert.Equal(t, m.Provider, prof.Provider, m.ID)
		seen[m.Provider] = true
		if m.Category == CategoryEmbedding {
			assert.Positive(t, m.Dimensions, m.ID)
		}
	}
	for _, p := range Providers {
		assert.True(t, seen[p], "catalog has no %s model", p)
	}

	for _, id := range []string{DefaultTextModel, DefaultImageModel, DefaultEmbeddingModel} {
		_, ok := Lookup(id)
		assert.True(t, ok, id)
	}
	assert.Equal(t, 1536, EmbeddingDimensions(DefaultEmbeddingModel))
	assert.Equal(t, 1024, EmbeddingDimensions("us.cohere.embed-english-v3"))
	assert.Zero(t, EmbeddingDimensions("amazon.unknown"))
}
