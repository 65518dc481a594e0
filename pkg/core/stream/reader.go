// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
)

// ErrClosed is returned by Next after Close.
var ErrClosed = errors.New("stream: reader closed")

const readBufferSize = 32 * 1024

// ChunkParser turns one frame into a chunk. A nil chunk is skipped.
type ChunkParser func(frame []byte) (*schema.StreamChunk, error)

// Reader is a lazy, single-consumer sequence of chunks read from a
// transport body.
//
// Exactly one chunk with Done set is produced and it is always last. It
// carries no text: a provider's final chunk that also has text is split in
// two, and a clean end of stream without a provider signal synthesizes the
// terminal chunk. After an error no further chunks are produced, but chunks
// decoded before the failure are delivered first.
type Reader struct {
	body  io.ReadCloser
	dec   *Decoder
	parse ChunkParser
	buf   []byte

	pending  []schema.StreamChunk
	err      error
	reason   string
	terminal bool // terminal chunk queued
	finished bool // terminal chunk delivered

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewReader reads body through framer and parse. The Reader owns body.
func NewReader(body io.ReadCloser, framer Framer, parse ChunkParser) *Reader {
	return &Reader{
		body:  body,
		dec:   NewDecoder(framer),
		parse: parse,
	}
}

// Next returns the next chunk. After the terminal chunk it returns io.EOF.
func (r *Reader) Next(ctx context.Context) (schema.StreamChunk, error) {
	for {
		if r.closed.Load() && !r.finished && r.err == nil {
			return schema.StreamChunk{}, ErrClosed
		}
		if len(r.pending) > 0 {
			c := r.pending[0]
			r.pending = r.pending[1:]
			if c.Done {
				r.finished = true
				r.Close()
			}
			return c, nil
		}
		if r.err != nil {
			return schema.StreamChunk{}, r.err
		}
		if r.finished {
			return schema.StreamChunk{}, io.EOF
		}
		if err := ctx.Err(); err != nil {
			r.failWith(errdefs.Wrap(errdefs.KindTransport, err, "stream cancelled"))
			continue
		}
		r.fill(ctx)
	}
}

// fill performs one read and queues whatever it decodes.
func (r *Reader) fill(ctx context.Context) {
	if r.buf == nil {
		r.buf = make([]byte, readBufferSize)
	}
	n, rerr := r.body.Read(r.buf)
	if n > 0 {
		frames, err := r.dec.Feed(r.buf[:n])
		r.handle(frames)
		if err != nil {
			r.failWith(err)
			return
		}
	}
	switch {
	case r.terminal || r.err != nil:
		return
	case errors.Is(rerr, io.EOF):
		frames, err := r.dec.Finish()
		r.handle(frames)
		if err != nil {
			r.failWith(err)
			return
		}
	case rerr != nil:
		if r.closed.Load() {
			return
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			r.failWith(errdefs.Wrap(errdefs.KindTransport, ctxErr, "stream cancelled"))
			return
		}
		r.failWith(errdefs.Wrap(errdefs.KindTransport, rerr, "read stream"))
		return
	}
	if r.dec.State() == Done && !r.terminal && r.err == nil {
		r.queueTerminal()
	}
}

func (r *Reader) handle(frames [][]byte) {
	for _, frame := range frames {
		if r.terminal || r.err != nil {
			return
		}
		c, err := r.parse(frame)
		if err != nil {
			r.failWith(err)
			return
		}
		if c == nil {
			continue
		}
		if c.FinishReason != "" {
			r.reason = c.FinishReason
		}
		if c.Chunk != "" {
			r.pending = append(r.pending, schema.StreamChunk{Chunk: c.Chunk})
		}
		if c.Done {
			r.queueTerminal()
		}
	}
}

func (r *Reader) queueTerminal() {
	r.pending = append(r.pending, schema.StreamChunk{Done: true, FinishReason: r.reason})
	r.terminal = true
}

func (r *Reader) failWith(err error) {
	if r.err == nil {
		r.err = err
	}
	r.Close()
}

// Close releases the transport body. It is safe to call more than once and
// from another goroutine.
func (r *Reader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		err = r.body.Close()
	})
	return err
}

// All returns an iterator over the remaining chunks. The reader is closed
// when the loop ends, including on break.
func (r *Reader) All(ctx context.Context) iter.Seq2[schema.StreamChunk, error] {
	return func(yield func(schema.StreamChunk, error) bool) {
		defer r.Close()
		for {
			c, err := r.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(c, err) || err != nil {
				return
			}
		}
	}
}

// Collect drains the reader into a single response for model.
func (r *Reader) Collect(ctx context.Context, model string) (*schema.TextGenerationResponse, error) {
	var sb strings.Builder
	resp := &schema.TextGenerationResponse{Model: model}
	for c, err := range r.All(ctx) {
		if err != nil {
			return nil, err
		}
		sb.WriteString(c.Chunk)
		if c.Done {
			resp.FinishReason = c.FinishReason
		}
	}
	resp.Text = sb.String()
	return resp, nil
}
