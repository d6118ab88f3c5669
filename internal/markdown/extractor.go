// Package markdown turns markdown datasets into plain text for the chunk index.
package markdown

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// Document is the plain-text rendering of a markdown source.
type Document struct {
	// Text holds one line per block, without markup.
	Text string
	// Outline holds the H1 and H2 header paths in document order, for
	// example "Installation > Prerequisites".
	Outline []string
}

// Extractor strips markdown down to text while keeping its outline.
type Extractor struct {
	parser goldmark.Markdown
}

// NewExtractor creates an extractor configured with the goldmark parser.
func NewExtractor() *Extractor {
	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
	return &Extractor{parser: md}
}

// Extract parses source and returns its text and outline.
func (e *Extractor) Extract(source []byte) (*Document, error) {
	doc := e.parser.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}

	var outline []string
	flattenOutline(tree.Items, nil, &outline)

	w := &lineWriter{}
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				w.endLine()
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			w.write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				w.write([]byte(" "))
			}
		case *ast.String:
			w.write(node.Value)
		case *ast.AutoLink:
			w.write(node.URL(source))
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				w.write([]byte(strings.TrimRight(string(seg.Value(source)), "\r\n")))
				w.endLine()
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk markdown: %w", err)
	}

	return &Document{
		Text:    strings.TrimSpace(w.b.String()),
		Outline: outline,
	}, nil
}

// flattenOutline walks TOC items depth first, building header paths.
func flattenOutline(items toc.Items, ancestors []string, out *[]string) {
	for _, item := range items {
		path := append(append([]string(nil), ancestors...), string(item.Title))
		if len(item.Title) > 0 {
			*out = append(*out, strings.Join(path, " > "))
		}
		if len(item.Items) > 0 {
			flattenOutline(item.Items, path, out)
		}
	}
}

// lineWriter collapses block boundaries into single newlines.
type lineWriter struct {
	b       strings.Builder
	midLine bool
}

func (w *lineWriter) write(p []byte) {
	if len(p) == 0 {
		return
	}
	w.b.Write(p)
	w.midLine = true
}

func (w *lineWriter) endLine() {
	if w.midLine {
		w.b.WriteByte('\n')
		w.midLine = false
	}
}
