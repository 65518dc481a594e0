// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package extractor turns uploaded documents into plain text for chunking.
package extractor

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
)

// Format is a document format the extractor understands.
type Format string

const (
	FormatText  Format = "text"
	FormatPDF   Format = "pdf"
	FormatHTML  Format = "html"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
)

var byExtension = map[string]Format{
	".pdf":      FormatPDF,
	".html":     FormatHTML,
	".htm":      FormatHTML,
	".csv":      FormatCSV,
	".json":     FormatJSON,
	".jsonl":    FormatJSONL,
	".ndjson":   FormatJSONL,
	".txt":      FormatText,
	".md":       FormatText,
	".markdown": FormatText,
}

// Detect picks a format from the filename, sniffing the content when the
// extension is missing or unknown.
func Detect(content []byte, filename string) Format {
	if f, ok := byExtension[strings.ToLower(filepath.Ext(filename))]; ok {
		return f
	}
	head := bytes.ToLower(bytes.TrimSpace(content[:min(len(content), 512)]))
	switch {
	case bytes.HasPrefix(head, []byte("%pdf-")):
		return FormatPDF
	case bytes.HasPrefix(head, []byte("<!doctype html")), bytes.HasPrefix(head, []byte("<html")):
		return FormatHTML
	}
	return FormatText
}

// ExtractText extracts plain text from content. Line endings are
// normalized and runs of blank lines collapse to one so paragraph
// boundaries survive for the chunker. Binary or empty input is a request
// error.
func ExtractText(content []byte, filename string) (string, error) {
	var (
		text string
		err  error
	)
	switch Detect(content, filename) {
	case FormatPDF:
		text, err = extractPDF(content)
	case FormatHTML:
		text, err = extractHTML(content)
	case FormatCSV:
		text, err = extractCSV(content)
	case FormatJSON:
		text, err = extractJSON(content)
	case FormatJSONL:
		text, err = extractJSONL(content)
	default:
		text, err = extractText(content)
	}
	if err != nil {
		return "", err
	}

	text = normalize(text)
	if text == "" {
		return "", errdefs.Requestf("%s: no extractable text", displayName(filename))
	}
	return text, nil
}

var blankRuns = regexp.MustCompile(`\n[ \t]*\n(?:[ \t]*\n)+`)

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func displayName(filename string) string {
	if filename == "" {
		return "document"
	}
	return filename
}

func looksBinary(content []byte) bool {
	return bytes.IndexByte(content[:min(len(content), 8000)], 0) >= 0 || !utf8.Valid(content)
}
