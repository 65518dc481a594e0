// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package family

import (
	"github.com/tidwall/gjson"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/profile"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
)

// AI21 serves two schemas: Jamba models take chat messages, the older
// Jurassic-2 models take a flat prompt with camelCase parameters.

var (
	jambaLimits = textLimits{maxTokens: 4096, maxTemperature: 2}
	j2Limits    = textLimits{maxTokens: 4096, maxTemperature: 1}
)

type ai21Text struct{}

type jambaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type jambaRequest struct {
	Messages    []jambaMessage `json:"messages"`
	MaxTokens   int            `json:"max_tokens"`
	Temperature float64        `json:"temperature"`
	TopP        float64        `json:"top_p"`
}

type j2Request struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"maxTokens"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"topP"`
}

func isJ2(prof profile.ModelProfile) bool { return prof.Is("ai21.j2") }

func (ai21Text) BuildText(req schema.TextGenerationRequest, prof profile.ModelProfile) ([]byte, error) {
	if isJ2(prof) {
		p, err := resolveText(req, j2Limits)
		if err != nil {
			return nil, err
		}
		return marshal(j2Request{
			Prompt:      p.prompt,
			MaxTokens:   p.maxTokens,
			Temperature: p.temperature,
			TopP:        p.topP,
		})
	}

	p, err := resolveText(req, jambaLimits)
	if err != nil {
		return nil, err
	}
	return marshal(jambaRequest{
		Messages:    []jambaMessage{{Role: "user", Content: p.prompt}},
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		TopP:        p.topP,
	})
}

func (ai21Text) ParseText(body []byte, prof profile.ModelProfile) (*schema.TextGenerationResponse, error) {
	if err := validJSON(body, "ai21"); err != nil {
		return nil, err
	}
	text, ok := firstPresent(body, "choices.0.message.content", "completions.0.data.text")
	if !ok {
		return nil, errdefs.Responsef("ai21: response has neither choices[0].message.content nor completions[0].data.text")
	}
	reason, _ := firstPresent(body, "choices.0.finish_reason", "completions.0.finishReason.reason")
	return &schema.TextGenerationResponse{
		Text:         text.String(),
		Model:        prof.ModelID,
		FinishReason: reason.String(),
		Usage:        usage(gjson.GetBytes(body, "usage.prompt_tokens"), gjson.GetBytes(body, "usage.completion_tokens")),
	}, nil
}

func (ai21Text) ParseChunk(frame []byte, _ profile.ModelProfile) (*schema.StreamChunk, error) {
	if err := validJSON(frame, "ai21"); err != nil {
		return nil, err
	}
	choice := gjson.GetBytes(frame, "choices.0")
	if !choice.Exists() {
		return nil, errdefs.Responsef("ai21: stream chunk has no choices")
	}
	reason := choice.Get("finish_reason")
	return &schema.StreamChunk{
		Chunk:        choice.Get("delta.content").String(),
		Done:         present(reason),
		FinishReason: reason.String(),
	}, nil
}
