// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"
	"github.com/tidwall/gjson"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
)

const (
	preludeLen = 12
	crcLen     = 4
	// maxMessageLen bounds a single message so a corrupt prelude cannot make
	// the decoder buffer without limit.
	maxMessageLen = 24 * 1024 * 1024
)

// retryableExceptions are the stream exception types worth retrying.
var retryableExceptions = map[string]bool{
	"throttlingException":         true,
	"serviceUnavailableException": true,
	"internalServerException":     true,
	"modelNotReadyException":      true,
}

// EventStreamFramer decodes application/vnd.amazon.eventstream messages as
// sent by InvokeModelWithResponseStream. Chunk events yield the decoded
// "bytes" payload; exceptions fail the stream with a transport error.
type EventStreamFramer struct {
	dec *eventstream.Decoder
}

func NewEventStreamFramer() *EventStreamFramer {
	return &EventStreamFramer{dec: eventstream.NewDecoder()}
}

func (f *EventStreamFramer) Next(buf []byte, _ bool) (int, []byte, bool, error) {
	if len(buf) < 4 {
		return 0, nil, false, nil
	}
	total := int(binary.BigEndian.Uint32(buf[:4]))
	if total < preludeLen+crcLen || total > maxMessageLen {
		return 0, nil, false, errdefs.Responsef("eventstream: invalid message length %d", total)
	}
	if len(buf) < total {
		return 0, nil, false, nil
	}

	msg, err := f.dec.Decode(bytes.NewReader(buf[:total]), nil)
	if err != nil {
		return 0, nil, false, errdefs.Wrap(errdefs.KindResponse, err, "eventstream: decode message")
	}

	switch typ := header(msg, ":message-type"); typ {
	case "event":
		if header(msg, ":event-type") != "chunk" {
			return total, nil, false, nil
		}
		raw := gjson.GetBytes(msg.Payload, "bytes")
		if !raw.Exists() {
			return 0, nil, false, errdefs.Responsef("eventstream: chunk event has no bytes field")
		}
		frame, err := base64.StdEncoding.DecodeString(raw.String())
		if err != nil {
			return 0, nil, false, errdefs.Wrap(errdefs.KindResponse, err, "eventstream: chunk bytes")
		}
		return total, frame, false, nil
	case "exception":
		exType := header(msg, ":exception-type")
		return 0, nil, false, &errdefs.Error{
			Kind:      errdefs.KindTransport,
			Msg:       fmt.Sprintf("%s: %s", exType, gjson.GetBytes(msg.Payload, "message").String()),
			Retryable: retryableExceptions[exType],
		}
	case "error":
		return 0, nil, false, errdefs.Transportf("%s: %s", header(msg, ":error-code"), header(msg, ":error-message"))
	default:
		return 0, nil, false, errdefs.Responsef("eventstream: unknown message type %q", typ)
	}
}

func header(msg eventstream.Message, name string) string {
	v := msg.Headers.Get(name)
	if v == nil {
		return ""
	}
	return v.String()
}
