// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache stores computed embeddings so repeated texts are not sent
// to the model again.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
)

// EmbeddingCache maps an embedding key to its vector.
type EmbeddingCache interface {
	// Get returns the cached vector and whether it was present.
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vec []float32) error
	Close() error
}

// Key derives the cache key of text embedded by model with inputType.
func Key(model, inputType, text string) string {
	h := sha256.New()
	for _, part := range []string{model, inputType, text} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// EncodeVector packs vec as little-endian float32 values.
func EncodeVector(vec []float32) []byte {
	out := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, errdefs.Storagef("vector blob length %d is not a multiple of 4", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out, nil
}
