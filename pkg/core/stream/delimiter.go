// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bytes"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
)

// DelimiterFramer splits a stream on Delim. When EndMarker is set, its first
// occurrence ends the stream and any bytes before it form the final frame.
// Without an EndMarker, bytes left at EOF form the last frame, as with
// bufio.ScanLines. Empty frames are skipped.
type DelimiterFramer struct {
	Delim     []byte
	EndMarker []byte
}

// NewLineFramer frames newline-delimited payloads such as JSON lines.
func NewLineFramer() *DelimiterFramer {
	return &DelimiterFramer{Delim: []byte("\n")}
}

func (f *DelimiterFramer) Next(buf []byte, atEOF bool) (int, []byte, bool, error) {
	if len(f.Delim) == 0 {
		return 0, nil, false, errdefs.Configf("delimiter framer has no delimiter")
	}
	di := bytes.Index(buf, f.Delim)
	if len(f.EndMarker) > 0 {
		if ei := bytes.Index(buf, f.EndMarker); ei >= 0 && (di < 0 || ei < di) {
			return ei + len(f.EndMarker), nonEmpty(buf[:ei]), true, nil
		}
	}
	if di < 0 {
		if atEOF && len(f.EndMarker) == 0 {
			return len(buf), nonEmpty(bytes.TrimSuffix(buf, []byte("\r"))), false, nil
		}
		return 0, nil, false, nil
	}
	return di + len(f.Delim), nonEmpty(bytes.TrimSuffix(buf[:di], []byte("\r"))), false, nil
}

func nonEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
