// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package family maps provider-neutral requests to each Bedrock model
// family's native JSON payload, and native responses back.
//
// Every family implements a builder and a parser for each modality it
// supports. Codecs are selected by an exhaustive switch on the provider, so
// a new profile.Provider has to be handled here before it can be used.
package family

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/profile"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
)

// Defaults applied when a text request leaves a parameter unset.
const (
	DefaultMaxTokens   = 512
	DefaultTemperature = 0.7
	DefaultTopP        = 0.9
)

// TextCodec builds and parses text generation payloads for one family.
type TextCodec interface {
	BuildText(req schema.TextGenerationRequest, prof profile.ModelProfile) ([]byte, error)
	ParseText(body []byte, prof profile.ModelProfile) (*schema.TextGenerationResponse, error)
	// ParseChunk decodes one streamed frame. A nil chunk means the frame
	// carries nothing for the caller (e.g. a message_start event).
	ParseChunk(frame []byte, prof profile.ModelProfile) (*schema.StreamChunk, error)
}

// ImageCodec builds and parses image generation payloads for one family.
type ImageCodec interface {
	BuildImage(req schema.ImageGenerationRequest, prof profile.ModelProfile) ([]byte, error)
	ParseImage(body []byte, prof profile.ModelProfile) (*schema.ImageGenerationResponse, error)
}

// EmbeddingInput is one embedding invocation. Families that cannot batch
// accept exactly one text.
type EmbeddingInput struct {
	Texts      []string
	InputType  string
	Dimensions int
}

// EmbeddingOutput holds one vector per input text, in input order.
type EmbeddingOutput struct {
	Vectors     [][]float32
	InputTokens int
}

// EmbeddingCodec builds and parses embedding payloads for one family.
type EmbeddingCodec interface {
	// MaxBatch is the number of texts a single request may carry.
	MaxBatch() int
	BuildEmbedding(in EmbeddingInput, prof profile.ModelProfile) ([]byte, error)
	ParseEmbedding(body []byte, prof profile.ModelProfile) (*EmbeddingOutput, error)
}

// Text returns the text codec for p.
func Text(p profile.Provider) (TextCodec, error) {
	switch p {
	case profile.Amazon:
		return titanText{}, nil
	case profile.Anthropic:
		return anthropicText{}, nil
	case profile.Meta:
		return llamaText{}, nil
	case profile.Mistral:
		return mistralText{}, nil
	case profile.AI21:
		return ai21Text{}, nil
	case profile.Cohere:
		return cohereText{}, nil
	case profile.StabilityAI:
		return nil, unsupported(p, "text generation")
	}
	return nil, errdefs.Configf("unknown provider %q", p)
}

// Image returns the image codec for p.
func Image(p profile.Provider) (ImageCodec, error) {
	switch p {
	case profile.Amazon:
		return titanImage{}, nil
	case profile.StabilityAI:
		return stabilityImage{}, nil
	case profile.Anthropic, profile.Meta, profile.Mistral, profile.AI21, profile.Cohere:
		return nil, unsupported(p, "image generation")
	}
	return nil, errdefs.Configf("unknown provider %q", p)
}

// Embedding returns the embedding codec for p.
func Embedding(p profile.Provider) (EmbeddingCodec, error) {
	switch p {
	case profile.Amazon:
		return titanEmbedding{}, nil
	case profile.Cohere:
		return cohereEmbedding{}, nil
	case profile.Anthropic, profile.Meta, profile.Mistral, profile.AI21, profile.StabilityAI:
		return nil, unsupported(p, "embeddings")
	}
	return nil, errdefs.Configf("unknown provider %q", p)
}

func unsupported(p profile.Provider, what string) error {
	return errdefs.Requestf("%s models do not support %s", p, what)
}

// textLimits are the legal parameter ranges of one family.
type textLimits struct {
	maxTokens      int
	maxTemperature float64
}

// textParams are the request parameters after defaulting and validation.
type textParams struct {
	prompt      string
	maxTokens   int
	temperature float64
	topP        float64
	topPSet     bool
}

// resolveText applies defaults, rejects out-of-range values and clamps
// max_tokens to the family maximum.
func resolveText(req schema.TextGenerationRequest, lim textLimits) (textParams, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return textParams{}, errdefs.Requestf("prompt is required")
	}
	p := textParams{
		prompt:      req.Prompt,
		maxTokens:   min(DefaultMaxTokens, lim.maxTokens),
		temperature: DefaultTemperature,
		topP:        DefaultTopP,
	}
	if req.MaxTokens != nil {
		if *req.MaxTokens <= 0 {
			return textParams{}, errdefs.Requestf("max_tokens must be positive, got %d", *req.MaxTokens)
		}
		p.maxTokens = min(*req.MaxTokens, lim.maxTokens)
	}
	if req.Temperature != nil {
		t := *req.Temperature
		if t < 0 || t > lim.maxTemperature {
			return textParams{}, errdefs.Requestf("temperature %g is outside [0, %g]", t, lim.maxTemperature)
		}
		p.temperature = t
	}
	if req.TopP != nil {
		if *req.TopP < 0 || *req.TopP > 1 {
			return textParams{}, errdefs.Requestf("top_p %g is outside [0, 1]", *req.TopP)
		}
		p.topP = *req.TopP
		p.topPSet = true
	}
	return p, nil
}

// Image defaults and limits shared by the image families.
const (
	DefaultImageSize = 1024
	minImageSize     = 256
	maxImageSize     = 2048
	maxImages        = 5
)

type imageParams struct {
	prompt    string
	negative  string
	width     int
	height    int
	numImages int
	seed      *int64
}

func resolveImage(req schema.ImageGenerationRequest) (imageParams, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return imageParams{}, errdefs.Requestf("prompt is required")
	}
	p := imageParams{
		prompt:    req.Prompt,
		negative:  req.NegativePrompt,
		width:     DefaultImageSize,
		height:    DefaultImageSize,
		numImages: 1,
		seed:      req.Seed,
	}
	if req.Width != nil {
		p.width = *req.Width
	}
	if req.Height != nil {
		p.height = *req.Height
	}
	for _, d := range []struct {
		name string
		v    int
	}{{"width", p.width}, {"height", p.height}} {
		if d.v < minImageSize || d.v > maxImageSize || d.v%64 != 0 {
			return imageParams{}, errdefs.Requestf("%s %d must be a multiple of 64 within [%d, %d]", d.name, d.v, minImageSize, maxImageSize)
		}
	}
	if req.NumImages != nil {
		if *req.NumImages < 1 || *req.NumImages > maxImages {
			return imageParams{}, errdefs.Requestf("num_images %d is outside [1, %d]", *req.NumImages, maxImages)
		}
		p.numImages = *req.NumImages
	}
	return p, nil
}

func marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindRequest, err, "encode payload")
	}
	return b, nil
}

func validJSON(body []byte, family string) error {
	if !gjson.ValidBytes(body) {
		return errdefs.Responsef("%s: response is not valid JSON", family)
	}
	return nil
}

// present reports whether r exists and is not JSON null.
func present(r gjson.Result) bool {
	return r.Exists() && r.Type != gjson.Null
}

// firstPresent returns the first of paths that is present in body.
func firstPresent(body []byte, paths ...string) (gjson.Result, bool) {
	for _, r := range gjson.GetManyBytes(body, paths...) {
		if present(r) {
			return r, true
		}
	}
	return gjson.Result{}, false
}

func floats(r gjson.Result) ([]float32, bool) {
	if !r.IsArray() {
		return nil, false
	}
	arr := r.Array()
	out := make([]float32, len(arr))
	for i, v := range arr {
		if v.Type != gjson.Number {
			return nil, false
		}
		out[i] = float32(v.Float())
	}
	return out, true
}

func usage(in, out gjson.Result) *schema.Usage {
	if !in.Exists() && !out.Exists() {
		return nil
	}
	return &schema.Usage{InputTokens: int(in.Int()), OutputTokens: int(out.Int())}
}
