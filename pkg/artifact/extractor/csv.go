// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package extractor

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
)

// extractCSV treats the first record as the header and renders every
// other row as one line of "column: value" pairs, so a chunk cut from the
// middle of a table still names its columns. Empty cells are skipped.
// Malformed CSV is handled as plain text.
func extractCSV(content []byte) (string, error) {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, utf8BOM)))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var header []string
	var lines []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return extractText(content)
		}
		if header == nil {
			header = record
			continue
		}
		if line := labelRow(header, record); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return strings.Join(header, ", "), nil
	}
	return strings.Join(lines, "\n"), nil
}

func labelRow(header, row []string) string {
	pairs := make([]string, 0, len(row))
	for i, v := range row {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		name := "column " + strconv.Itoa(i+1)
		if i < len(header) && strings.TrimSpace(header[i]) != "" {
			name = strings.TrimSpace(header[i])
		}
		pairs = append(pairs, name+": "+v)
	}
	return strings.Join(pairs, "; ")
}
