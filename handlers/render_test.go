package handlers

import (
	"strings"
	"testing"
)

func TestIsRenderable(t *testing.T) {
	for mime, want := range map[string]bool{
		"text/markdown":              true,
		"text/x-org":                 true,
		"text/html; charset=utf-8":   true,
		"text/plain":                 false,
		"application/pdf":            false,
	} {
		if got := isRenderable(mime); got != want {
			t.Errorf("%s: expected %v, got %v", mime, want, got)
		}
	}
}

func TestRenderMarkdownSanitizes(t *testing.T) {
	out, err := renderMarkdown("# Title\n\n<script>alert(1)</script>\n\n**bold**")
	if err != nil {
		t.Fatalf("renderMarkdown: %v", err)
	}
	s := string(out)
	if strings.Contains(s, "<script>") {
		t.Error("script element survived sanitization")
	}
	if !strings.Contains(s, "<h1") || !strings.Contains(s, "<strong>") {
		t.Errorf("markdown structure missing: %s", s)
	}
}

func TestRenderMarkdownCodeBlocks(t *testing.T) {
	out, err := renderMarkdown("```go\npackage main\n```")
	if err != nil {
		t.Fatalf("renderMarkdown: %v", err)
	}
	if !strings.Contains(string(out), "chroma") {
		t.Errorf("expected chroma classes in %s", out)
	}
}

func TestRenderOrg(t *testing.T) {
	out, err := renderOrg("* Heading\n\nSome text.\n")
	if err != nil {
		t.Fatalf("renderOrg: %v", err)
	}
	if !strings.Contains(string(out), "Heading") {
		t.Errorf("heading missing from %s", out)
	}
}

func TestRenderHTMLIsSandboxed(t *testing.T) {
	out, err := renderHTML(`<p onclick="evil()">hi "there"</p>`)
	if err != nil {
		t.Fatalf("renderHTML: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, "<iframe") || !strings.Contains(s, `sandbox="allow-scripts"`) {
		t.Errorf("expected sandboxed iframe, got %s", s)
	}
	// The raw markup must be attribute-escaped, never inline in the page.
	if strings.Contains(s, `<p onclick`) {
		t.Error("raw HTML leaked outside srcdoc")
	}
}

func TestChromaHighlightBlock(t *testing.T) {
	if out := chromaHighlightBlock("package main", "go"); !strings.Contains(out, "chroma") {
		t.Errorf("expected highlighted output, got %q", out)
	}
	// Unknown language falls back to plain text, not an error.
	if out := chromaHighlightBlock("plain words", "nosuchlang"); out == "" {
		t.Error("fallback lexer returned empty output")
	}
}

func TestHtmlAttrEscape(t *testing.T) {
	got := htmlAttrEscape(`<a href="x">&'`)
	want := "&lt;a href=&quot;x&quot;&gt;&amp;&#39;"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
