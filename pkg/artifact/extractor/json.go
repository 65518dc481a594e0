// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package extractor

import (
	"bytes"
	"encoding/json"
	"strings"
)

// extractJSON pretty-prints a JSON document; invalid JSON passes through
// as text.
func extractJSON(content []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimPrefix(content, utf8BOM), "", "  "); err != nil {
		return extractText(content)
	}
	return buf.String(), nil
}

// extractJSONL pretty-prints each line, separating records with a blank
// line so each one tends to land in its own chunk.
func extractJSONL(content []byte) (string, error) {
	var records []string
	for _, line := range strings.Split(string(bytes.TrimPrefix(content, utf8BOM)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(line), "", "  "); err != nil {
			records = append(records, line)
			continue
		}
		records = append(records, buf.String())
	}
	return strings.Join(records, "\n\n"), nil
}
