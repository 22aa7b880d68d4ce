package testutil

import (
	"html"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteFile writes content to name under dir, creating missing parent
// directories, and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
	return path
}

// HTMLPage renders a minimal document with one <p> per paragraph inside an
// <article>. An empty title omits the <head>.
func HTMLPage(title string, paragraphs ...string) string {
	var b strings.Builder
	b.WriteString("<html>")
	if title != "" {
		b.WriteString("<head><title>")
		b.WriteString(html.EscapeString(title))
		b.WriteString("</title></head>")
	}
	b.WriteString("<body><article>")
	for _, p := range paragraphs {
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(p))
		b.WriteString("</p>")
	}
	b.WriteString("</article></body></html>")
	return b.String()
}

// WriteHTMLPage writes HTMLPage(title, paragraphs...) to name under dir.
func WriteHTMLPage(t *testing.T, dir, name, title string, paragraphs ...string) string {
	t.Helper()
	return WriteFile(t, dir, name, HTMLPage(title, paragraphs...))
}

// WriteSourceList writes a run source list with one line per entry.
// Lines are written as given, so comments and blanks can be included.
func WriteSourceList(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	return WriteFile(t, dir, name, strings.Join(lines, "\n")+"\n")
}
