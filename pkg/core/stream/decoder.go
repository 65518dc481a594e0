// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package stream reassembles a fragmented provider byte stream into frames
// and turns those frames into an ordered sequence of text chunks.
package stream

import (
	"bytes"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
)

// Framer extracts one frame from the front of buf.
//
// It returns the number of bytes consumed and the frame, if any. A framer
// that needs more input returns (0, nil, false, nil). advance may be
// positive with a nil frame when bytes are skipped (keep-alives, events
// without text). end reports an explicit end-of-stream signal. atEOF is set
// once the transport has no more bytes to give.
type Framer interface {
	Next(buf []byte, atEOF bool) (advance int, frame []byte, end bool, err error)
}

// State is the position of a Decoder in its lifecycle.
type State int

const (
	Accumulating State = iota
	EmittingFrame
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Accumulating:
		return "accumulating"
	case EmittingFrame:
		return "emitting"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Decoder is the byte reassembly state machine. One Decoder serves exactly
// one stream and is not safe for concurrent use.
type Decoder struct {
	framer Framer
	buf    []byte
	state  State
	err    error
}

// NewDecoder returns a Decoder in the Accumulating state.
func NewDecoder(f Framer) *Decoder {
	return &Decoder{framer: f}
}

// State returns the current state.
func (d *Decoder) State() State { return d.state }

// Err returns the error that moved the decoder to Failed.
func (d *Decoder) Err() error { return d.err }

// Feed appends fragment to the buffer and returns every frame that became
// complete, in order. Frames decoded before a framing error are returned
// alongside it. Input after Done is ignored.
func (d *Decoder) Feed(fragment []byte) ([][]byte, error) {
	switch d.state {
	case Done:
		return nil, nil
	case Failed:
		return nil, d.err
	}
	d.buf = append(d.buf, fragment...)
	return d.drain(false)
}

// Finish signals transport EOF. Bytes that cannot form a complete frame
// fail the stream as truncated.
func (d *Decoder) Finish() ([][]byte, error) {
	switch d.state {
	case Done:
		return nil, nil
	case Failed:
		return nil, d.err
	}
	frames, err := d.drain(true)
	if err != nil || d.state == Done {
		return frames, err
	}
	if len(bytes.TrimSpace(d.buf)) > 0 {
		return frames, d.fail(errdefs.Responsef("truncated stream: %d bytes left without a complete frame", len(d.buf)))
	}
	d.buf = nil
	d.state = Done
	return frames, nil
}

func (d *Decoder) drain(atEOF bool) ([][]byte, error) {
	var frames [][]byte
	for len(d.buf) > 0 {
		d.state = EmittingFrame
		advance, frame, end, err := d.framer.Next(d.buf, atEOF)
		if err != nil {
			return frames, d.fail(err)
		}
		if advance < 0 || advance > len(d.buf) {
			return frames, d.fail(errdefs.Responsef("framer advanced %d bytes of %d", advance, len(d.buf)))
		}
		if advance == 0 && !end {
			if frame != nil {
				return frames, d.fail(errdefs.Responsef("framer returned a frame without consuming input"))
			}
			break
		}
		if frame != nil {
			frames = append(frames, bytes.Clone(frame))
		}
		d.buf = d.buf[advance:]
		if end {
			d.buf = nil
			d.state = Done
			return frames, nil
		}
	}
	if len(d.buf) == 0 {
		d.buf = nil
	}
	d.state = Accumulating
	return frames, nil
}

func (d *Decoder) fail(err error) error {
	if errdefs.KindOf(err) == "" {
		err = errdefs.Wrap(errdefs.KindResponse, err, "malformed stream")
	}
	d.state = Failed
	d.err = err
	d.buf = nil
	return err
}
