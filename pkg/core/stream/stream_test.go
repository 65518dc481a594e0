// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
)

// fragments is an io.ReadCloser returning one fragment per Read.
type fragments struct {
	parts  [][]byte
	err    error
	closed bool
}

func newFragments(parts ...string) *fragments {
	f := &fragments{}
	for _, p := range parts {
		f.parts = append(f.parts, []byte(p))
	}
	return f
}

func (f *fragments) Read(p []byte) (int, error) {
	if f.closed {
		return 0, errors.New("read on closed body")
	}
	if len(f.parts) == 0 {
		if f.err != nil {
			return 0, f.err
		}
		return 0, io.EOF
	}
	n := copy(p, f.parts[0])
	f.parts[0] = f.parts[0][n:]
	if len(f.parts[0]) == 0 {
		f.parts = f.parts[1:]
	}
	return n, nil
}

func (f *fragments) Close() error {
	f.closed = true
	return nil
}

// textParser treats every frame as plain text.
func textParser(frame []byte) (*schema.StreamChunk, error) {
	return &schema.StreamChunk{Chunk: string(frame)}, nil
}

func markerFramer() *DelimiterFramer {
	return &DelimiterFramer{Delim: []byte("\n"), EndMarker: []byte("<END>")}
}

func collect(t *testing.T, r *Reader) ([]schema.StreamChunk, error) {
	t.Helper()
	var out []schema.StreamChunk
	for c, err := range r.All(context.Background()) {
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
	return out, nil
}

func TestDecoderSplitFrames(t *testing.T) {
	dec := NewDecoder(markerFramer())

	frames, err := dec.Feed([]byte("He"))
	require.NoError(t, err)
	assert.Empty(t, frames)
	assert.Equal(t, Accumulating, dec.State())

	frames, err = dec.Feed([]byte("llo, \nwo"))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("Hello, ")}, frames)
	assert.Equal(t, Accumulating, dec.State())

	frames, err = dec.Feed([]byte("rld!<END>"))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("world!")}, frames)
	assert.Equal(t, Done, dec.State())

	frames, err = dec.Feed([]byte("ignored\n"))
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestDecoderMultipleFramesInOneFragment(t *testing.T) {
	dec := NewDecoder(NewLineFramer())
	frames, err := dec.Feed([]byte("a\nb\n\nc\r\nd"))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, frames)

	frames, err = dec.Feed([]byte("\n"))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("d")}, frames)

	_, err = dec.Finish()
	require.NoError(t, err)
	assert.Equal(t, Done, dec.State())
}

func TestDecoderLastLineWithoutNewline(t *testing.T) {
	dec := NewDecoder(NewLineFramer())
	frames, err := dec.Feed([]byte("a\nlast"))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a")}, frames)

	frames, err = dec.Finish()
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("last")}, frames)
	assert.Equal(t, Done, dec.State())

	r := NewReader(newFragments("Hel", "lo\n", "!"), NewLineFramer(), textParser)
	resp, err := r.Collect(context.Background(), "m")
	require.NoError(t, err)
	assert.Equal(t, "Hello!", resp.Text)
}

func TestDecoderTruncatedStream(t *testing.T) {
	dec := NewDecoder(markerFramer())
	_, err := dec.Feed([]byte("complete\npartial"))
	require.NoError(t, err)

	_, err = dec.Finish()
	require.ErrorIs(t, err, errdefs.ErrResponse)
	assert.Contains(t, err.Error(), "truncated")
	assert.Equal(t, Failed, dec.State())

	_, err = dec.Feed([]byte("more\n"))
	assert.ErrorIs(t, err, errdefs.ErrResponse)
}

func TestReaderYieldsTerminalChunk(t *testing.T) {
	r := NewReader(newFragments("He", "llo, \nwo", "rld!<END>"), markerFramer(), textParser)
	chunks, err := collect(t, r)
	require.NoError(t, err)

	require.Len(t, chunks, 3)
	assert.Equal(t, "Hello, ", chunks[0].Chunk)
	assert.Equal(t, "world!", chunks[1].Chunk)
	assert.True(t, chunks[2].Done)
	assert.Empty(t, chunks[2].Chunk)

	var sb strings.Builder
	for _, c := range chunks[:2] {
		assert.False(t, c.Done)
		sb.WriteString(c.Chunk)
	}
	assert.Equal(t, "Hello, world!", sb.String())
}

func TestReaderSynthesizesTerminalOnCleanEOF(t *testing.T) {
	body := newFragments("one\ntwo\n")
	r := NewReader(body, NewLineFramer(), textParser)
	ctx := context.Background()

	c, err := r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "one", c.Chunk)
	c, err = r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "two", c.Chunk)
	c, err = r.Next(ctx)
	require.NoError(t, err)
	assert.True(t, c.Done)

	_, err = r.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
	assert.True(t, body.closed)
}

func TestReaderSplitsFinalTextChunk(t *testing.T) {
	parse := func(frame []byte) (*schema.StreamChunk, error) {
		var c schema.StreamChunk
		err := json.Unmarshal(frame, &c)
		return &c, err
	}
	body := newFragments(
		`{"chunk":"a"}`+"\n",
		`{"chunk":"","finish_reason":"length"}`+"\n",
		`{"chunk":"b","done":true}`+"\n",
		`{"chunk":"never"}`+"\n",
	)
	chunks, err := collect(t, NewReader(body, NewLineFramer(), parse))
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "a", chunks[0].Chunk)
	assert.Equal(t, "b", chunks[1].Chunk)
	assert.False(t, chunks[1].Done)
	assert.Equal(t, schema.StreamChunk{Done: true, FinishReason: "length"}, chunks[2])
}

func TestReaderDeliversChunksBeforeError(t *testing.T) {
	body := newFragments("ok\n", "dangling")
	chunks, err := collect(t, NewReader(body, markerFramer(), textParser))
	require.ErrorIs(t, err, errdefs.ErrResponse)
	require.Len(t, chunks, 1)
	assert.Equal(t, "ok", chunks[0].Chunk)
	assert.True(t, body.closed)
}

func TestReaderParseError(t *testing.T) {
	parse := func(frame []byte) (*schema.StreamChunk, error) {
		if string(frame) == "bad" {
			return nil, errdefs.Responsef("bad frame")
		}
		return &schema.StreamChunk{Chunk: string(frame)}, nil
	}
	r := NewReader(newFragments("a\nbad\nc\n"), NewLineFramer(), parse)
	ctx := context.Background()

	c, err := r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", c.Chunk)

	_, err = r.Next(ctx)
	require.ErrorIs(t, err, errdefs.ErrResponse)
	_, err = r.Next(ctx)
	require.ErrorIs(t, err, errdefs.ErrResponse)
}

func TestReaderTransportError(t *testing.T) {
	body := newFragments("a\n")
	body.err = errors.New("connection reset")
	chunks, err := collect(t, NewReader(body, NewLineFramer(), textParser))
	require.ErrorIs(t, err, errdefs.ErrTransport)
	assert.Len(t, chunks, 1)
}

func TestReaderCancelledContext(t *testing.T) {
	body := newFragments("a\n", "b\n")
	r := NewReader(body, NewLineFramer(), textParser)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Next(ctx)
	require.ErrorIs(t, err, errdefs.ErrTransport)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, body.closed)
}

func TestReaderBreakClosesBody(t *testing.T) {
	body := newFragments("a\nb\nc\n")
	r := NewReader(body, NewLineFramer(), textParser)
	for range r.All(context.Background()) {
		break
	}
	assert.True(t, body.closed)

	_, err := r.Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestReaderCollect(t *testing.T) {
	r := NewReader(newFragments("Hel", "lo\n", "!\n"), NewLineFramer(), textParser)
	resp, err := r.Collect(context.Background(), "m")
	require.NoError(t, err)
	assert.Equal(t, "Hello!", resp.Text)
	assert.Equal(t, "m", resp.Model)
}

func encodeEvent(t *testing.T, msgType, kind string, payload []byte) []byte {
	t.Helper()
	var hs eventstream.Headers
	hs.Set(":message-type", eventstream.StringValue(msgType))
	switch msgType {
	case "event":
		hs.Set(":event-type", eventstream.StringValue(kind))
	case "exception":
		hs.Set(":exception-type", eventstream.StringValue(kind))
	}
	hs.Set(":content-type", eventstream.StringValue("application/json"))

	var buf bytes.Buffer
	require.NoError(t, eventstream.NewEncoder().Encode(&buf, eventstream.Message{Headers: hs, Payload: payload}))
	return buf.Bytes()
}

func chunkEvent(t *testing.T, inner string) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"bytes": base64.StdEncoding.EncodeToString([]byte(inner))})
	require.NoError(t, err)
	return encodeEvent(t, "event", "chunk", payload)
}

func TestEventStreamFramerByteAtATime(t *testing.T) {
	var stream []byte
	stream = append(stream, chunkEvent(t, `{"outputText":"Hello"}`)...)
	stream = append(stream, encodeEvent(t, "event", "metadata", []byte(`{}`))...)
	stream = append(stream, chunkEvent(t, `{"outputText":" world"}`)...)

	dec := NewDecoder(NewEventStreamFramer())
	var frames []string
	for _, b := range stream {
		out, err := dec.Feed([]byte{b})
		require.NoError(t, err)
		for _, f := range out {
			frames = append(frames, string(f))
		}
	}
	_, err := dec.Finish()
	require.NoError(t, err)
	assert.Equal(t, []string{`{"outputText":"Hello"}`, `{"outputText":" world"}`}, frames)
}

func TestEventStreamFramerException(t *testing.T) {
	stream := append(chunkEvent(t, `{"outputText":"partial"}`),
		encodeEvent(t, "exception", "throttlingException", []byte(`{"message":"slow down"}`))...)

	r := NewReader(io.NopCloser(bytes.NewReader(stream)), NewEventStreamFramer(), textParser)
	chunks, err := collect(t, r)
	require.ErrorIs(t, err, errdefs.ErrTransport)
	assert.True(t, errdefs.IsRetryable(err))
	assert.Contains(t, err.Error(), "slow down")
	require.Len(t, chunks, 1)
	assert.Equal(t, `{"outputText":"partial"}`, chunks[0].Chunk)
}

func TestEventStreamFramerCorruptMessage(t *testing.T) {
	msg := chunkEvent(t, `{"x":1}`)
	msg[len(msg)-1] ^= 0xff

	dec := NewDecoder(NewEventStreamFramer())
	_, err := dec.Feed(msg)
	require.ErrorIs(t, err, errdefs.ErrResponse)
	assert.Equal(t, Failed, dec.State())
}

func TestEventStreamFramerTruncated(t *testing.T) {
	msg := chunkEvent(t, `{"x":1}`)
	dec := NewDecoder(NewEventStreamFramer())
	_, err := dec.Feed(msg[:len(msg)-3])
	require.NoError(t, err)
	_, err = dec.Finish()
	assert.ErrorIs(t, err, errdefs.ErrResponse)
}
