// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package family

import (
	"github.com/tidwall/gjson"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/profile"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
)

var llamaLimits = textLimits{maxTokens: 2048, maxTemperature: 1}

type llamaText struct{}

type llamaRequest struct {
	Prompt      string  `json:"prompt"`
	MaxGenLen   int     `json:"max_gen_len"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

// llama3Prompt wraps a single user turn in the Llama 3 instruct template.
func llama3Prompt(prompt string) string {
	return "<|begin_of_text|><|start_header_id|>user<|end_header_id|>\n\n" +
		prompt +
		"<|eot_id|><|start_header_id|>assistant<|end_header_id|>\n\n"
}

func (llamaText) BuildText(req schema.TextGenerationRequest, prof profile.ModelProfile) ([]byte, error) {
	p, err := resolveText(req, llamaLimits)
	if err != nil {
		return nil, err
	}
	prompt := p.prompt
	if prof.Is("meta.llama3") || prof.Is("meta.llama4") {
		prompt = llama3Prompt(prompt)
	}
	return marshal(llamaRequest{
		Prompt:      prompt,
		MaxGenLen:   p.maxTokens,
		Temperature: p.temperature,
		TopP:        p.topP,
	})
}

func (llamaText) ParseText(body []byte, prof profile.ModelProfile) (*schema.TextGenerationResponse, error) {
	if err := validJSON(body, "llama"); err != nil {
		return nil, err
	}
	gen := gjson.GetBytes(body, "generation")
	if !present(gen) {
		return nil, errdefs.Responsef("llama: response has no generation")
	}
	return &schema.TextGenerationResponse{
		Text:         gen.String(),
		Model:        prof.ModelID,
		FinishReason: gjson.GetBytes(body, "stop_reason").String(),
		Usage:        usage(gjson.GetBytes(body, "prompt_token_count"), gjson.GetBytes(body, "generation_token_count")),
	}, nil
}

func (llamaText) ParseChunk(frame []byte, _ profile.ModelProfile) (*schema.StreamChunk, error) {
	if err := validJSON(frame, "llama"); err != nil {
		return nil, err
	}
	gen := gjson.GetBytes(frame, "generation")
	reason := gjson.GetBytes(frame, "stop_reason")
	if !gen.Exists() && !reason.Exists() {
		return nil, errdefs.Responsef("llama: stream chunk has no generation")
	}
	return &schema.StreamChunk{
		Chunk:        gen.String(),
		Done:         present(reason),
		FinishReason: reason.String(),
	}, nil
}
