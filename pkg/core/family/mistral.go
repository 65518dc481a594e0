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

var mistralLimits = textLimits{maxTokens: 8192, maxTemperature: 1}

type mistralText struct{}

type mistralRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

func (mistralText) BuildText(req schema.TextGenerationRequest, _ profile.ModelProfile) ([]byte, error) {
	p, err := resolveText(req, mistralLimits)
	if err != nil {
		return nil, err
	}
	prompt := p.prompt
	if !strings.HasPrefix(prompt, "<s>") {
		prompt = "<s>[INST] " + prompt + " [/INST]"
	}
	return marshal(mistralRequest{
		Prompt:      prompt,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		TopP:        p.topP,
	})
}

func (mistralText) ParseText(body []byte, prof profile.ModelProfile) (*schema.TextGenerationResponse, error) {
	if err := validJSON(body, "mistral"); err != nil {
		return nil, err
	}
	text, ok := firstPresent(body, "outputs.0.text", "generation")
	if !ok {
		return nil, errdefs.Responsef("mistral: response has no outputs[0].text")
	}
	reason, _ := firstPresent(body, "outputs.0.stop_reason", "stop_reason")
	return &schema.TextGenerationResponse{
		Text:         text.String(),
		Model:        prof.ModelID,
		FinishReason: reason.String(),
	}, nil
}

func (mistralText) ParseChunk(frame []byte, _ profile.ModelProfile) (*schema.StreamChunk, error) {
	if err := validJSON(frame, "mistral"); err != nil {
		return nil, err
	}
	out := gjson.GetBytes(frame, "outputs.0")
	if !out.Exists() {
		return nil, errdefs.Responsef("mistral: stream chunk has no outputs")
	}
	reason := out.Get("stop_reason")
	return &schema.StreamChunk{
		Chunk:        out.Get("text").String(),
		Done:         present(reason) && reason.String() != "",
		FinishReason: reason.String(),
	}, nil
}
