// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package extractor

import (
	"bytes"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// extractText passes text through, minus a leading byte order mark.
func extractText(content []byte) (string, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	if looksBinary(content) {
		return "", errdefs.Requestf("unsupported binary document")
	}
	return string(content), nil
}
