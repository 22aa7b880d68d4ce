// Package page contains the domain types that flow through page processing:
// page content, long-content policies, adaptation strategies, chunks,
// token usage and the result record.
package page

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jbctechsolutions/webdistill/internal/domain/errors"
)

// Format is the rendering the content was converted to before it reached the pipeline.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatHTML     Format = "html"
)

// ParseFormat converts a string into a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatMarkdown, FormatText, FormatHTML:
		return f, nil
	case "":
		return FormatMarkdown, nil
	}
	return "", errors.NewError(errors.CodeValidation, fmt.Sprintf("unknown content format %q", s), nil)
}

// FenceLanguage returns the info string used when fencing content of this format.
func (f Format) FenceLanguage() string {
	switch f {
	case FormatHTML:
		return "html"
	case FormatText:
		return "text"
	default:
		return "markdown"
	}
}

// Content is the text of one page as handed over by the fetch and convert stages.
type Content struct {
	URL    string
	Text   string
	Format Format
	Tokens int
}

// NewContent creates page content. Tokens is filled in by the pipeline.
func NewContent(url, text string, format Format) *Content {
	return &Content{URL: url, Text: text, Format: format}
}

// Length returns the content length in characters.
func (c *Content) Length() int {
	return utf8.RuneCountInString(c.Text)
}

// Chunk is one ordered, budget-constrained slice of page content.
type Chunk struct {
	Index  int
	Text   string
	Tokens int
}

// JoinChunks concatenates chunk texts in order.
func JoinChunks(chunks []Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Text)
	}
	return b.String()
}
