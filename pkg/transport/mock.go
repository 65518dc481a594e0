// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/stream"
)

// Call is one request received by a Mock.
type Call struct {
	ModelID string
	Body    []byte
	Stream  bool
}

// Mock is a scripted Transport for tests. Responses are looked up by model
// id; streamed responses are newline-delimited frames.
type Mock struct {
	// Handler, when set, answers every synchronous call.
	Handler func(call Call) ([]byte, error)
	// Err is returned by every call when set.
	Err error

	mu        sync.Mutex
	responses map[string][]byte
	streams   map[string][]byte
	calls     []Call
}

var _ Transport = (*Mock)(nil)

func NewMock() *Mock {
	return &Mock{
		responses: make(map[string][]byte),
		streams:   make(map[string][]byte),
	}
}

// On scripts the synchronous response for modelID.
func (m *Mock) On(modelID, body string) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[modelID] = []byte(body)
	return m
}

// OnStream scripts the streamed frames for modelID.
func (m *Mock) OnStream(modelID string, frames ...string) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams[modelID] = []byte(strings.Join(frames, "\n") + "\n")
	return m
}

// Calls returns a copy of every call received so far.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *Mock) record(c Call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.Body = bytes.Clone(c.Body)
	m.calls = append(m.calls, c)
}

func (m *Mock) Invoke(ctx context.Context, modelID string, body []byte) ([]byte, error) {
	call := Call{ModelID: modelID, Body: body}
	m.record(call)
	if err := ctx.Err(); err != nil {
		return nil, errdefs.Wrap(errdefs.KindTransport, err, "invoke %s", modelID)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Handler != nil {
		return m.Handler(call)
	}
	m.mu.Lock()
	resp, ok := m.responses[modelID]
	m.mu.Unlock()
	if !ok {
		return nil, errdefs.Transportf("mock: no response scripted for model %q", modelID)
	}
	return bytes.Clone(resp), nil
}

func (m *Mock) InvokeStream(ctx context.Context, modelID string, body []byte) (io.ReadCloser, stream.Framer, error) {
	m.record(Call{ModelID: modelID, Body: body, Stream: true})
	if err := ctx.Err(); err != nil {
		return nil, nil, errdefs.Wrap(errdefs.KindTransport, err, "invoke stream %s", modelID)
	}
	if m.Err != nil {
		return nil, nil, m.Err
	}
	m.mu.Lock()
	resp, ok := m.streams[modelID]
	m.mu.Unlock()
	if !ok {
		return nil, nil, errdefs.Transportf("mock: no stream scripted for model %q", modelID)
	}
	return io.NopCloser(bytes.NewReader(resp)), stream.NewLineFramer(), nil
}
