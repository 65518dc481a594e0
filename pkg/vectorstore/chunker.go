// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package vectorstore

import "strings"

// Chunking defaults, in characters.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 200
)

// TextChunk is one piece of a split document.
type TextChunk struct {
	Index  int    // position among the kept chunks, from 0
	Offset int    // rune offset of the first character in the document
	Text   string // chunk content
}

// SplitDocument cuts text into windows of chunkSize runes, each starting
// chunkSize-overlap runes after the previous one, so multi-byte text is
// never cut inside a character. A chunkSize <= 0 means DefaultChunkSize.
// An overlap outside [0, chunkSize) means DefaultChunkOverlap, or a quarter
// of chunkSize when that is still too large. Whitespace-only windows are
// dropped and Index counts only the kept chunks.
func SplitDocument(text string, chunkSize, overlap int) []TextChunk {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultChunkOverlap
		if overlap >= chunkSize {
			overlap = chunkSize / 4
		}
	}
	step := chunkSize - overlap

	runes := []rune(text)
	var out []TextChunk
	for start := 0; start < len(runes); start += step {
		end := min(start+chunkSize, len(runes))
		if window := string(runes[start:end]); strings.TrimSpace(window) != "" {
			out = append(out, TextChunk{Index: len(out), Offset: start, Text: window})
		}
		if end == len(runes) {
			break
		}
	}
	return out
}
