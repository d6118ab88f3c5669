package markdown

import (
	"strings"
	"testing"
)

// TestExtract_BasicHeaders tests text and outline for an H1 with H2 sections.
func TestExtract_BasicHeaders(t *testing.T) {
	input := `# Getting Started

Introduction text here.

## Installation

Install steps here.

## Configuration

Config details here.
`

	doc, err := NewExtractor().Extract([]byte(input))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	wantText := "Getting Started\nIntroduction text here.\nInstallation\nInstall steps here.\nConfiguration\nConfig details here."
	if doc.Text != wantText {
		t.Errorf("Text: expected %q, got %q", wantText, doc.Text)
	}

	wantOutline := []string{
		"Getting Started",
		"Getting Started > Installation",
		"Getting Started > Configuration",
	}
	if len(doc.Outline) != len(wantOutline) {
		t.Fatalf("Expected %d outline entries, got %d: %v", len(wantOutline), len(doc.Outline), doc.Outline)
	}
	for i, want := range wantOutline {
		if doc.Outline[i] != want {
			t.Errorf("Outline %d: expected %q, got %q", i, want, doc.Outline[i])
		}
	}
}

// TestExtract_StripsMarkup tests that inline markup, code and lists become text.
func TestExtract_StripsMarkup(t *testing.T) {
	input := `# API Reference

Overview of the **API** with a [link](https://example.com) and ` + "`code`" + `.

` + "```go" + `
func DoSomething() error {
    return nil
}
` + "```" + `

### Details

- List item 1
- List item 2
`

	doc, err := NewExtractor().Extract([]byte(input))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	for _, want := range []string{
		"Overview of the API with a link and code.",
		"func DoSomething() error {",
		"List item 1\nList item 2",
		"Details",
	} {
		if !strings.Contains(doc.Text, want) {
			t.Errorf("Text missing %q:\n%s", want, doc.Text)
		}
	}
	for _, markup := range []string{"**", "](", "```", "# "} {
		if strings.Contains(doc.Text, markup) {
			t.Errorf("Text still contains markup %q", markup)
		}
	}

	// H3 is not part of the outline.
	if len(doc.Outline) != 1 || doc.Outline[0] != "API Reference" {
		t.Errorf("Unexpected outline: %v", doc.Outline)
	}
}

// TestExtract_NoHeaders tests a document without headers.
func TestExtract_NoHeaders(t *testing.T) {
	input := `This is a document with no headers.

Just plain text
spanning lines.
`

	doc, err := NewExtractor().Extract([]byte(input))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if len(doc.Outline) != 0 {
		t.Errorf("Expected empty outline, got %v", doc.Outline)
	}
	want := "This is a document with no headers.\nJust plain text spanning lines."
	if doc.Text != want {
		t.Errorf("Text: expected %q, got %q", want, doc.Text)
	}
}

// TestExtract_MultipleH1s tests outline paths across top-level sections.
func TestExtract_MultipleH1s(t *testing.T) {
	input := `# First Section

First content.

## First Subsection

# Second Section

## Second Subsection

Second subsection content.
`

	doc, err := NewExtractor().Extract([]byte(input))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	expected := []string{
		"First Section",
		"First Section > First Subsection",
		"Second Section",
		"Second Section > Second Subsection",
	}
	if len(doc.Outline) != len(expected) {
		t.Fatalf("Expected %d outline entries, got %v", len(expected), doc.Outline)
	}
	for i, want := range expected {
		if doc.Outline[i] != want {
			t.Errorf("Outline %d: expected %q, got %q", i, want, doc.Outline[i])
		}
	}
}

// TestExtract_Empty tests that empty input yields empty text.
func TestExtract_Empty(t *testing.T) {
	doc, err := NewExtractor().Extract(nil)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if doc.Text != "" || len(doc.Outline) != 0 {
		t.Errorf("Expected empty document, got %+v", doc)
	}
}
