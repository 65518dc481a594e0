// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package extractor

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
}

var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Li: true, atom.Tr: true, atom.Pre: true, atom.Blockquote: true, atom.Br: true,
	atom.Title: true,
}

// extractHTML returns the visible text. Block elements end a paragraph;
// inline text within a block is joined with single spaces.
func extractHTML(content []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return extractText(content)
	}

	w := &htmlText{}
	w.walk(doc)
	w.flush()
	return strings.Join(w.paragraphs, "\n\n"), nil
}

type htmlText struct {
	paragraphs []string
	current    []string
}

func (w *htmlText) walk(n *html.Node) {
	if n.Type == html.ElementNode && skipped[n.DataAtom] {
		return
	}
	if n.Type == html.TextNode {
		if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
			w.current = append(w.current, text)
		}
	}
	block := n.Type == html.ElementNode && blocks[n.DataAtom]
	if block {
		w.flush()
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
	if block {
		w.flush()
	}
}

func (w *htmlText) flush() {
	if len(w.current) == 0 {
		return
	}
	w.paragraphs = append(w.paragraphs, strings.Join(w.current, " "))
	w.current = w.current[:0]
}
