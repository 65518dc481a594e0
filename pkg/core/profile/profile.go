// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package profile resolves an opaque Bedrock model identifier into the
// provider family and invocation mode used to talk to it.
package profile

import (
	"strings"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
)

// Provider is a model family sharing one wire schema.
type Provider string

const (
	Amazon      Provider = "amazon"
	Anthropic   Provider = "anthropic"
	Meta        Provider = "meta"
	Mistral     Provider = "mistral"
	AI21        Provider = "ai21"
	Cohere      Provider = "cohere"
	StabilityAI Provider = "stability"
)

// Providers lists every supported family.
var Providers = []Provider{Amazon, Anthropic, Meta, Mistral, AI21, Cohere, StabilityAI}

// Mode is how a model is invoked.
type Mode string

const (
	Sync   Mode = "sync"
	Stream Mode = "stream"
)

// prefixes maps the vendor segment of a model id to its family.
var prefixes = map[string]Provider{
	"amazon":    Amazon,
	"anthropic": Anthropic,
	"meta":      Meta,
	"mistral":   Mistral,
	"ai21":      AI21,
	"cohere":    Cohere,
	"stability": StabilityAI,
}

// geoPrefixes are the routing prefixes of cross-region inference profiles,
// e.g. "us.anthropic.claude-3-5-sonnet-20240620-v1:0".
var geoPrefixes = []string{"us-gov.", "global.", "apac.", "us.", "eu.", "ca.", "jp.", "au."}

// ParseProvider converts a user-supplied provider name. The empty string
// parses to the empty Provider, meaning "infer from the model id".
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "amazon", "titan", "aws":
		return Amazon, nil
	case "anthropic", "claude":
		return Anthropic, nil
	case "meta", "llama":
		return Meta, nil
	case "mistral", "mistralai":
		return Mistral, nil
	case "ai21", "ai21labs":
		return AI21, nil
	case "cohere":
		return Cohere, nil
	case "stability", "stabilityai", "stability.ai":
		return StabilityAI, nil
	}
	return "", errdefs.Configf("unknown provider %q", s)
}

// Valid reports whether p is one of the supported families.
func (p Provider) Valid() bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}

// ModelProfile is the resolved identity of a model call.
type ModelProfile struct {
	Provider Provider
	// ModelID is sent to the service unchanged.
	ModelID string
	// BaseID is ModelID without any cross-region routing prefix. It is empty
	// for ARNs, whose underlying model is unknown.
	BaseID string
	Mode   Mode
	// InferenceProfile is set for cross-region profile ids and ARNs.
	InferenceProfile bool
}

// Resolve determines the provider family of modelID.
//
// An explicit provider wins, but it must not contradict an unambiguous
// vendor prefix. ARNs carry no usable prefix and require the explicit
// provider. The returned profile is always in Sync mode.
func Resolve(modelID string, explicit Provider) (ModelProfile, error) {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return ModelProfile{}, errdefs.Configf("model id is empty and no default is configured")
	}
	if explicit != "" && !explicit.Valid() {
		return ModelProfile{}, errdefs.Configf("unknown provider %q", explicit)
	}

	prof := ModelProfile{ModelID: modelID, Mode: Sync}

	if strings.HasPrefix(modelID, "arn:") {
		if explicit == "" {
			return ModelProfile{}, errdefs.Configf("model %q is an ARN; a provider must be given explicitly", modelID)
		}
		prof.Provider = explicit
		prof.InferenceProfile = true
		return prof, nil
	}

	base := modelID
	for _, geo := range geoPrefixes {
		if rest, ok := strings.CutPrefix(modelID, geo); ok {
			if _, known := prefixes[vendor(rest)]; known {
				base = rest
				prof.InferenceProfile = true
			}
			break
		}
	}
	prof.BaseID = base

	inferred, ok := prefixes[vendor(base)]
	switch {
	case explicit != "" && ok && inferred != explicit:
		return ModelProfile{}, errdefs.Configf("provider %q conflicts with model %q (a %s model)", explicit, modelID, inferred)
	case explicit != "":
		prof.Provider = explicit
	case ok:
		prof.Provider = inferred
	default:
		return ModelProfile{}, errdefs.Configf("cannot infer provider for model %q; set it explicitly", modelID)
	}
	return prof, nil
}

func vendor(id string) string {
	v, _, _ := strings.Cut(id, ".")
	return v
}

// WithStreaming returns a copy of p in Stream mode when stream is set.
// Families or models that cannot stream are rejected with a request error.
func (p ModelProfile) WithStreaming(stream bool) (ModelProfile, error) {
	if !stream {
		p.Mode = Sync
		return p, nil
	}
	if !p.CanStream() {
		return ModelProfile{}, errdefs.Requestf("model %q does not support streaming", p.ModelID)
	}
	p.Mode = Stream
	return p, nil
}

// CanStream reports whether the resolved model supports streamed responses.
func (p ModelProfile) CanStream() bool {
	switch p.Provider {
	case StabilityAI:
		return false
	case Amazon:
		return !p.Is("amazon.titan-image") && !p.Is("amazon.titan-embed")
	case AI21:
		return !p.Is("ai21.j2")
	case Cohere:
		return !p.Is("cohere.embed")
	}
	return true
}

// Is reports whether the base model id starts with prefix. ARNs never match.
func (p ModelProfile) Is(prefix string) bool {
	return p.BaseID != "" && strings.HasPrefix(p.BaseID, prefix)
}
