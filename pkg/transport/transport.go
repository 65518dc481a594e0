// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport defines how serialized model payloads reach the model
// service and how raw responses come back.
package transport

import (
	"context"
	"io"

	"github.com/leseb/bedrock-gw/pkg/core/stream"
)

// Transport invokes a model with an already-built native payload.
//
// Failures are reported as errdefs transport errors; throttling and server
// errors are flagged retryable. Transports never retry on their own.
type Transport interface {
	// Invoke sends body and returns the complete response body.
	Invoke(ctx context.Context, modelID string, body []byte) ([]byte, error)

	// InvokeStream sends body and returns the open response body together
	// with the framer that splits it. The caller closes the body.
	InvokeStream(ctx context.Context, modelID string, body []byte) (io.ReadCloser, stream.Framer, error)
}
