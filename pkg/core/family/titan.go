// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package family

import (
	"github.com/tidwall/gjson"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/profile"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
)

// Amazon Titan text, image and embedding models.

var titanLimits = textLimits{maxTokens: 8192, maxTemperature: 1}

type titanText struct{}

type titanTextRequest struct {
	InputText            string          `json:"inputText"`
	TextGenerationConfig titanTextConfig `json:"textGenerationConfig"`
}

type titanTextConfig struct {
	MaxTokenCount int     `json:"maxTokenCount"`
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"topP"`
}

func (titanText) BuildText(req schema.TextGenerationRequest, _ profile.ModelProfile) ([]byte, error) {
	p, err := resolveText(req, titanLimits)
	if err != nil {
		return nil, err
	}
	return marshal(titanTextRequest{
		InputText: p.prompt,
		TextGenerationConfig: titanTextConfig{
			MaxTokenCount: p.maxTokens,
			Temperature:   p.temperature,
			TopP:          p.topP,
		},
	})
}

func (titanText) ParseText(body []byte, prof profile.ModelProfile) (*schema.TextGenerationResponse, error) {
	if err := validJSON(body, "titan"); err != nil {
		return nil, err
	}
	text, ok := firstPresent(body, "results.0.outputText", "outputText")
	if !ok {
		return nil, errdefs.Responsef("titan: response has no results[0].outputText")
	}
	reason, _ := firstPresent(body, "results.0.completionReason", "completionReason")
	return &schema.TextGenerationResponse{
		Text:         text.String(),
		Model:        prof.ModelID,
		FinishReason: reason.String(),
		Usage:        usage(gjson.GetBytes(body, "inputTextTokenCount"), gjson.GetBytes(body, "results.0.tokenCount")),
	}, nil
}

func (titanText) ParseChunk(frame []byte, _ profile.ModelProfile) (*schema.StreamChunk, error) {
	if err := validJSON(frame, "titan"); err != nil {
		return nil, err
	}
	text := gjson.GetBytes(frame, "outputText")
	reason := gjson.GetBytes(frame, "completionReason")
	if !text.Exists() && !reason.Exists() {
		return nil, errdefs.Responsef("titan: stream chunk has neither outputText nor completionReason")
	}
	return &schema.StreamChunk{
		Chunk:        text.String(),
		Done:         present(reason),
		FinishReason: reason.String(),
	}, nil
}

type titanImage struct{}

type titanImageRequest struct {
	TaskType              string            `json:"taskType"`
	TextToImageParams     titanTextToImage  `json:"textToImageParams"`
	ImageGenerationConfig titanImageGenConf `json:"imageGenerationConfig"`
}

type titanTextToImage struct {
	Text         string `json:"text"`
	NegativeText string `json:"negativeText,omitempty"`
}

type titanImageGenConf struct {
	NumberOfImages int     `json:"numberOfImages"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Quality        string  `json:"quality"`
	CfgScale       float64 `json:"cfgScale"`
	Seed           *int64  `json:"seed,omitempty"`
}

func (titanImage) BuildImage(req schema.ImageGenerationRequest, _ profile.ModelProfile) ([]byte, error) {
	p, err := resolveImage(req)
	if err != nil {
		return nil, err
	}
	if p.seed != nil && (*p.seed < 0 || *p.seed > 2147483646) {
		return nil, errdefs.Requestf("titan: seed %d is outside [0, 2147483646]", *p.seed)
	}
	return marshal(titanImageRequest{
		TaskType:          "TEXT_IMAGE",
		TextToImageParams: titanTextToImage{Text: p.prompt, NegativeText: p.negative},
		ImageGenerationConfig: titanImageGenConf{
			NumberOfImages: p.numImages,
			Width:          p.width,
			Height:         p.height,
			Quality:        "standard",
			CfgScale:       8.0,
			Seed:           p.seed,
		},
	})
}

func (titanImage) ParseImage(body []byte, prof profile.ModelProfile) (*schema.ImageGenerationResponse, error) {
	if err := validJSON(body, "titan image"); err != nil {
		return nil, err
	}
	if msg := gjson.GetBytes(body, "error"); present(msg) && msg.String() != "" {
		return nil, errdefs.Responsef("titan image: %s", msg.String())
	}
	images := gjson.GetBytes(body, "images")
	if !images.IsArray() || len(images.Array()) == 0 {
		return nil, errdefs.Responsef("titan image: response has no images")
	}
	resp := &schema.ImageGenerationResponse{Model: prof.ModelID}
	for _, img := range images.Array() {
		resp.Images = append(resp.Images, img.String())
	}
	return resp, nil
}

type titanEmbedding struct{}

type titanEmbeddingRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions,omitempty"`
	Normalize  *bool  `json:"normalize,omitempty"`
}

func (titanEmbedding) MaxBatch() int { return 1 }

func (titanEmbedding) BuildEmbedding(in EmbeddingInput, prof profile.ModelProfile) ([]byte, error) {
	if len(in.Texts) != 1 {
		return nil, errdefs.Requestf("titan: embedding request takes exactly one text, got %d", len(in.Texts))
	}
	if in.Texts[0] == "" {
		return nil, errdefs.Requestf("text is required")
	}
	req := titanEmbeddingRequest{InputText: in.Texts[0]}
	// Only the v2 model accepts an output size and normalization.
	if prof.Is("amazon.titan-embed-text-v2") {
		normalize := true
		req.Normalize = &normalize
		switch in.Dimensions {
		case 0:
		case 256, 512, 1024:
			req.Dimensions = in.Dimensions
		default:
			return nil, errdefs.Requestf("titan: dimensions must be 256, 512 or 1024, got %d", in.Dimensions)
		}
	}
	return marshal(req)
}

func (titanEmbedding) ParseEmbedding(body []byte, _ profile.ModelProfile) (*EmbeddingOutput, error) {
	if err := validJSON(body, "titan embedding"); err != nil {
		return nil, err
	}
	vec, ok := floats(gjson.GetBytes(body, "embedding"))
	if !ok || len(vec) == 0 {
		return nil, errdefs.Responsef("titan embedding: response has no embedding")
	}
	return &EmbeddingOutput{
		Vectors:     [][]float32{vec},
		InputTokens: int(gjson.GetBytes(body, "inputTextTokenCount").Int()),
	}, nil
}
