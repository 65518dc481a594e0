// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package family

import (
	"github.com/tidwall/gjson"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/profile"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
)

type stabilityImage struct{}

type stabilityPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

type stabilityRequest struct {
	TextPrompts []stabilityPrompt `json:"text_prompts"`
	CfgScale    float64           `json:"cfg_scale"`
	Steps       int               `json:"steps"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Samples     int               `json:"samples"`
	Seed        *int64            `json:"seed,omitempty"`
}

func (stabilityImage) BuildImage(req schema.ImageGenerationRequest, _ profile.ModelProfile) ([]byte, error) {
	p, err := resolveImage(req)
	if err != nil {
		return nil, err
	}
	if p.seed != nil && (*p.seed < 0 || *p.seed > 4294967295) {
		return nil, errdefs.Requestf("stability: seed %d is outside [0, 4294967295]", *p.seed)
	}
	prompts := []stabilityPrompt{{Text: p.prompt, Weight: 1}}
	if p.negative != "" {
		prompts = append(prompts, stabilityPrompt{Text: p.negative, Weight: -1})
	}
	return marshal(stabilityRequest{
		TextPrompts: prompts,
		CfgScale:    7,
		Steps:       30,
		Width:       p.width,
		Height:      p.height,
		Samples:     p.numImages,
		Seed:        p.seed,
	})
}

func (stabilityImage) ParseImage(body []byte, prof profile.ModelProfile) (*schema.ImageGenerationResponse, error) {
	if err := validJSON(body, "stability"); err != nil {
		return nil, err
	}
	if result := gjson.GetBytes(body, "result"); result.Exists() && result.String() != "success" {
		return nil, errdefs.Responsef("stability: generation result %q", result.String())
	}
	artifacts := gjson.GetBytes(body, "artifacts")
	if !artifacts.IsArray() || len(artifacts.Array()) == 0 {
		return nil, errdefs.Responsef("stability: response has no artifacts")
	}
	resp := &schema.ImageGenerationResponse{Model: prof.ModelID}
	for i, a := range artifacts.Array() {
		if reason := a.Get("finishReason").String(); reason == "ERROR" || reason == "CONTENT_FILTERED" {
			return nil, errdefs.Responsef("stability: artifact %d finished with %s", i, reason)
		}
		b64 := a.Get("base64")
		if !present(b64) || b64.String() == "" {
			return nil, errdefs.Responsef("stability: artifact %d has no base64 data", i)
		}
		resp.Images = append(resp.Images, b64.String())
	}
	return resp, nil
}
