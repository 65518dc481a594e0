// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package family

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/profile"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
)

// AnthropicVersion is the Messages API version Bedrock expects in the body.
const AnthropicVersion = "bedrock-2023-05-31"

var anthropicLimits = textLimits{maxTokens: 4096, maxTemperature: 1}

type anthropicText struct{}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float64            `json:"temperature"`
	TopP             *float64           `json:"top_p,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
}

func (anthropicText) BuildText(req schema.TextGenerationRequest, _ profile.ModelProfile) ([]byte, error) {
	p, err := resolveText(req, anthropicLimits)
	if err != nil {
		return nil, err
	}
	body := anthropicRequest{
		AnthropicVersion: AnthropicVersion,
		MaxTokens:        p.maxTokens,
		Temperature:      p.temperature,
		Messages:         []anthropicMessage{{Role: "user", Content: p.prompt}},
	}
	// Newer Claude models reject temperature and top_p together unless asked.
	if p.topPSet {
		body.TopP = &p.topP
	}
	return marshal(body)
}

func (anthropicText) ParseText(body []byte, prof profile.ModelProfile) (*schema.TextGenerationResponse, error) {
	if err := validJSON(body, "anthropic"); err != nil {
		return nil, err
	}
	content := gjson.GetBytes(body, "content")
	if !content.IsArray() {
		return nil, errdefs.Responsef("anthropic: response has no content array")
	}
	var sb strings.Builder
	found := false
	for _, block := range content.Array() {
		if block.Get("type").String() == "text" {
			sb.WriteString(block.Get("text").String())
			found = true
		}
	}
	if !found {
		return nil, errdefs.Responsef("anthropic: response has no text content block")
	}
	return &schema.TextGenerationResponse{
		Text:         sb.String(),
		Model:        prof.ModelID,
		FinishReason: gjson.GetBytes(body, "stop_reason").String(),
		Usage:        usage(gjson.GetBytes(body, "usage.input_tokens"), gjson.GetBytes(body, "usage.output_tokens")),
	}, nil
}

func (anthropicText) ParseChunk(frame []byte, _ profile.ModelProfile) (*schema.StreamChunk, error) {
	if err := validJSON(frame, "anthropic"); err != nil {
		return nil, err
	}
	typ := gjson.GetBytes(frame, "type")
	if !typ.Exists() {
		return nil, errdefs.Responsef("anthropic: stream event has no type")
	}
	switch typ.String() {
	case "content_block_delta":
		delta := gjson.GetBytes(frame, "delta")
		if delta.Get("type").String() != "text_delta" {
			return nil, nil
		}
		return &schema.StreamChunk{Chunk: delta.Get("text").String()}, nil
	case "message_delta":
		if reason := gjson.GetBytes(frame, "delta.stop_reason"); present(reason) {
			return &schema.StreamChunk{FinishReason: reason.String()}, nil
		}
		return nil, nil
	case "message_stop":
		return &schema.StreamChunk{Done: true}, nil
	case "error":
		return nil, errdefs.Transportf("anthropic: %s: %s",
			gjson.GetBytes(frame, "error.type").String(), gjson.GetBytes(frame, "error.message").String())
	}
	return nil, nil
}
