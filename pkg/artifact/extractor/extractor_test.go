// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package extractor

import (
	"errors"
	"strings"
	"testing"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
		contains string // substring the result should contain
		wantErr  bool
	}{
		{
			name:     "plain text passthrough",
			filename: "readme.txt",
			content:  []byte("Hello, world!"),
			contains: "Hello, world!",
		},
		{
			name:     "markdown passthrough",
			filename: "guide.md",
			content:  []byte("# Rust\n\nRust is a systems language."),
			contains: "# Rust\n\nRust is",
		},
		{
			name:     "unknown extension treated as text",
			filename: "data.xyz",
			content:  []byte("raw content"),
			contains: "raw content",
		},
		{
			name:     "HTML extraction",
			filename: "page.html",
			content:  []byte("<html><body><p>Hello</p><script>var x=1;</script><p>World</p></body></html>"),
			contains: "Hello\n\nWorld",
		},
		{
			name:     "HTML sniffed without extension",
			filename: "upload",
			content:  []byte("<!DOCTYPE html><html><body><p>sniffed</p></body></html>"),
			contains: "sniffed",
		},
		{
			name:     "CSV extraction",
			filename: "data.csv",
			content:  []byte("name,age,city\nAlice,30,NYC\nBob,25,LA"),
			contains: "name: Alice; age: 30; city: NYC",
		},
		{
			name:     "JSON pretty-print",
			filename: "config.json",
			content:  []byte(`{"key":"value","num":42}`),
			contains: "\"key\": \"value\"",
		},
		{
			name:     "JSONL records separated by blank lines",
			filename: "logs.jsonl",
			content:  []byte("{\"a\":1}\n{\"b\":2}"),
			contains: "}\n\n{",
		},
		{
			name:     "invalid JSON falls back to raw",
			filename: "bad.json",
			content:  []byte("not json at all"),
			contains: "not json at all",
		},
		{
			name:     "binary rejected",
			filename: "blob.bin",
			content:  []byte{0x00, 0x01, 0x02, 'a'},
			wantErr:  true,
		},
		{
			name:     "whitespace only rejected",
			filename: "empty.txt",
			content:  []byte(" \n\n\t"),
			wantErr:  true,
		},
		{
			name:     "broken PDF rejected",
			filename: "broken.pdf",
			content:  []byte("%PDF-1.4 truncated"),
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ExtractText(tt.content, tt.filename)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractText() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, errdefs.ErrRequest) {
					t.Errorf("expected a request error, got %v", err)
				}
				return
			}
			if !strings.Contains(result, tt.contains) {
				t.Errorf("ExtractText() = %q, want substring %q", result, tt.contains)
			}
		})
	}
}

func TestExtractHTML_SkipsStyleAndScript(t *testing.T) {
	content := []byte("<html><head><style>body{}</style></head><body><p>Content <b>here</b></p><noscript>x</noscript></body></html>")
	result, err := ExtractText(content, "test.html")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(result, "body{}") {
		t.Error("HTML extraction should strip style content")
	}
	if result != "Content here" {
		t.Errorf("expected inline text joined in one paragraph, got %q", result)
	}
}

func TestExtractCSV_LabelsColumns(t *testing.T) {
	content := []byte("id,title,notes\n1,Rust,\n2,Go,\"concurrency, channels\",extra")
	result, err := ExtractText(content, "data.csv")
	if err != nil {
		t.Fatal(err)
	}
	want := "id: 1; title: Rust\nid: 2; title: Go; notes: concurrency, channels; column 4: extra"
	if result != want {
		t.Errorf("got %q, want %q", result, want)
	}
}

func TestExtractCSV_HeaderOnly(t *testing.T) {
	result, err := ExtractText([]byte("a,b,c\n"), "data.csv")
	if err != nil {
		t.Fatal(err)
	}
	if result != "a, b, c" {
		t.Errorf("got %q", result)
	}
}

func TestNormalize(t *testing.T) {
	got, err := ExtractText([]byte("\xEF\xBB\xBFone\r\n\r\n\r\n  \n\ntwo\r\n"), "notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "one\n\ntwo" {
		t.Errorf("normalize = %q", got)
	}
}

func TestDetect(t *testing.T) {
	cases := map[string]struct {
		content  string
		filename string
		want     Format
	}{
		"extension wins":   {"<html>", "x.csv", FormatCSV},
		"case insensitive": {"", "REPORT.PDF", FormatPDF},
		"pdf magic":        {"%PDF-1.7\n", "", FormatPDF},
		"html magic":       {"  <html lang=en>", "page", FormatHTML},
		"text default":     {"plain", "", FormatText},
		"ndjson is jsonl":  {"{}", "a.ndjson", FormatJSONL},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			if got := Detect([]byte(c.content), c.filename); got != c.want {
				t.Errorf("Detect = %q, want %q", got, c.want)
			}
		})
	}
}
