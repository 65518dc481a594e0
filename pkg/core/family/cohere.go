// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package family

import (
	"github.com/tidwall/gjson"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/profile"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
)

var cohereLimits = textLimits{maxTokens: 4000, maxTemperature: 5}

// cohereMaxBatch is the number of texts one embed call accepts.
const cohereMaxBatch = 96

type cohereText struct{}

type cohereChatRequest struct {
	Message     string  `json:"message"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	P           float64 `json:"p"`
}

type cohereGenerateRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	P           float64 `json:"p"`
}

// Command R and newer use the chat schema.
func isCommandR(prof profile.ModelProfile) bool { return prof.Is("cohere.command-r") }

func (cohereText) BuildText(req schema.TextGenerationRequest, prof profile.ModelProfile) ([]byte, error) {
	p, err := resolveText(req, cohereLimits)
	if err != nil {
		return nil, err
	}
	if isCommandR(prof) {
		return marshal(cohereChatRequest{
			Message:     p.prompt,
			MaxTokens:   p.maxTokens,
			Temperature: p.temperature,
			P:           p.topP,
		})
	}
	return marshal(cohereGenerateRequest{
		Prompt:      p.prompt,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		P:           p.topP,
	})
}

func (cohereText) ParseText(body []byte, prof profile.ModelProfile) (*schema.TextGenerationResponse, error) {
	if err := validJSON(body, "cohere"); err != nil {
		return nil, err
	}
	text, ok := firstPresent(body, "text", "generations.0.text")
	if !ok {
		return nil, errdefs.Responsef("cohere: response has neither text nor generations[0].text")
	}
	reason, _ := firstPresent(body, "finish_reason", "generations.0.finish_reason")
	return &schema.TextGenerationResponse{
		Text:         text.String(),
		Model:        prof.ModelID,
		FinishReason: reason.String(),
		Usage: usage(gjson.GetBytes(body, "meta.billed_units.input_tokens"),
			gjson.GetBytes(body, "meta.billed_units.output_tokens")),
	}, nil
}

func (cohereText) ParseChunk(frame []byte, _ profile.ModelProfile) (*schema.StreamChunk, error) {
	if err := validJSON(frame, "cohere"); err != nil {
		return nil, err
	}
	finished := gjson.GetBytes(frame, "is_finished")
	text, hasText := firstPresent(frame, "text", "generations.0.text")
	if !finished.Exists() && !hasText {
		return nil, errdefs.Responsef("cohere: stream chunk has neither text nor is_finished")
	}
	chunk := &schema.StreamChunk{
		Chunk: text.String(),
		Done:  finished.Bool(),
	}
	if chunk.Done {
		reason, _ := firstPresent(frame, "finish_reason", "generations.0.finish_reason")
		chunk.FinishReason = reason.String()
	}
	return chunk, nil
}

type cohereEmbedding struct{}

type cohereEmbedRequest struct {
	Texts     []string `json:"texts"`
	InputType string   `json:"input_type"`
	Truncate  string   `json:"truncate"`
}

func (cohereEmbedding) MaxBatch() int { return cohereMaxBatch }

func (cohereEmbedding) BuildEmbedding(in EmbeddingInput, _ profile.ModelProfile) ([]byte, error) {
	if len(in.Texts) == 0 {
		return nil, errdefs.Requestf("text is required")
	}
	if len(in.Texts) > cohereMaxBatch {
		return nil, errdefs.Requestf("cohere: at most %d texts per request, got %d", cohereMaxBatch, len(in.Texts))
	}
	for i, t := range in.Texts {
		if t == "" {
			return nil, errdefs.Requestf("cohere: text %d is empty", i)
		}
	}
	inputType := in.InputType
	switch inputType {
	case "":
		inputType = schema.InputTypeDocument
	case schema.InputTypeDocument, schema.InputTypeQuery, "classification", "clustering":
	default:
		return nil, errdefs.Requestf("cohere: unknown input_type %q", inputType)
	}
	return marshal(cohereEmbedRequest{Texts: in.Texts, InputType: inputType, Truncate: "END"})
}

func (cohereEmbedding) ParseEmbedding(body []byte, _ profile.ModelProfile) (*EmbeddingOutput, error) {
	if err := validJSON(body, "cohere embedding"); err != nil {
		return nil, err
	}
	embs := gjson.GetBytes(body, "embeddings")
	// embedding_types responses nest the vectors under "float".
	if embs.IsObject() {
		embs = embs.Get("float")
	}
	if !embs.IsArray() || len(embs.Array()) == 0 {
		return nil, errdefs.Responsef("cohere embedding: response has no embeddings")
	}
	out := &EmbeddingOutput{}
	for i, e := range embs.Array() {
		vec, ok := floats(e)
		if !ok || len(vec) == 0 {
			return nil, errdefs.Responsef("cohere embedding: embeddings[%d] is not a numeric array", i)
		}
		out.Vectors = append(out.Vectors, vec)
	}
	return out, nil
}
