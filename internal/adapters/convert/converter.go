// Package convert turns raw HTML into the markdown, plain text or reduced
// HTML that is handed to the model. Main-content extraction uses
// go-readability; rendering walks the extracted tree with goquery.
package convert

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/jbctechsolutions/webdistill/internal/application/ports"
	"github.com/jbctechsolutions/webdistill/internal/domain/errors"
	"github.com/jbctechsolutions/webdistill/internal/domain/page"
)

// blockSelector lists the elements rendered as blocks, in document order.
const blockSelector = "h1,h2,h3,h4,h5,h6,p,li,pre,blockquote,table"

// noise is removed before rendering when readability is disabled or fails.
const noise = "script,style,noscript,iframe,svg,nav,footer,header,form"

// Converter renders HTML pages.
type Converter struct {
	// Readability enables main-content extraction. When extraction fails
	// or yields nothing the whole body is rendered.
	Readability bool
}

var _ ports.ConverterPort = (*Converter)(nil)

// New returns a converter with readability extraction on.
func New() *Converter {
	return &Converter{Readability: true}
}

// Convert renders rawHTML in the requested format.
func (c *Converter) Convert(rawHTML, pageURL string, format page.Format) (string, error) {
	title, fragment := "", rawHTML
	if c.Readability {
		if t, content, ok := extract(rawHTML, pageURL); ok {
			title, fragment = t, content
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", errors.WithContext(errors.NewError(errors.CodeExecution, "failed to parse HTML", err), "page_url", pageURL)
	}
	doc.Find(noise).Remove()
	if title == "" {
		title = normalizeText(doc.Find("title").First().Text())
	}

	switch format {
	case page.FormatHTML:
		body := doc.Find("body")
		if body.Length() == 0 {
			body = doc.Selection
		}
		html, err := body.Html()
		if err != nil {
			return "", errors.WithContext(errors.NewError(errors.CodeExecution, "failed to render HTML", err), "page_url", pageURL)
		}
		return strings.TrimSpace(html), nil
	case page.FormatText:
		return renderBlocks(doc, title, false), nil
	default:
		return renderBlocks(doc, title, true), nil
	}
}

func extract(rawHTML, pageURL string) (string, string, bool) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", "", false
	}
	parser := readability.NewParser()
	article, err := parser.Parse(strings.NewReader(rawHTML), parsed)
	if err != nil || strings.TrimSpace(article.Content) == "" {
		return "", "", false
	}
	return normalizeText(article.Title), article.Content, true
}

// renderBlocks writes each block element separated by a blank line.
// Elements nested inside another rendered block are skipped since the
// outer block already carries their text.
func renderBlocks(doc *goquery.Document, title string, markdown bool) string {
	var blocks []string

	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("li,pre,blockquote,table").Length() > 0 {
			return
		}

		tag := goquery.NodeName(s)
		if block := renderBlock(tag, s, markdown); block != "" {
			blocks = append(blocks, block)
		}
	})

	if len(blocks) == 0 {
		if text := normalizeText(doc.Text()); text != "" {
			blocks = append(blocks, text)
		}
	}

	if title != "" && !startsWithTitle(blocks, title) {
		if markdown {
			blocks = append([]string{"# " + title}, blocks...)
		} else {
			blocks = append([]string{title}, blocks...)
		}
	}

	return strings.Join(blocks, "\n\n")
}

func renderBlock(tag string, s *goquery.Selection, markdown bool) string {
	switch tag {
	case "pre":
		code := strings.Trim(s.Text(), "\n")
		if strings.TrimSpace(code) == "" {
			return ""
		}
		if !markdown {
			return code
		}
		return fmt.Sprintf("```%s\n%s\n```", codeLanguage(s), code)

	case "table":
		return renderTable(s, markdown)
	}

	text := normalizeText(s.Text())
	if text == "" {
		return ""
	}

	switch {
	case tag == "li":
		return "- " + text
	case !markdown:
		return text
	case tag == "blockquote":
		return "> " + text
	case len(tag) == 2 && tag[0] == 'h':
		return strings.Repeat("#", int(tag[1]-'0')) + " " + text
	}
	return text
}

// codeLanguage reads a "language-x" class from the code element.
func codeLanguage(pre *goquery.Selection) string {
	class, _ := pre.Find("code").Attr("class")
	for _, c := range strings.Fields(class) {
		if lang, ok := strings.CutPrefix(c, "language-"); ok {
			return lang
		}
	}
	return ""
}

func renderTable(s *goquery.Selection, markdown bool) string {
	var rows [][]string
	s.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var row []string
		tr.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			row = append(row, normalizeText(cell.Text()))
		})
		if len(row) > 0 {
			rows = append(rows, row)
		}
	})
	if len(rows) == 0 {
		return ""
	}

	var b strings.Builder
	for i, row := range rows {
		if !markdown {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteString("\n")
			continue
		}
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
		if i == 0 {
			b.WriteString("|" + strings.Repeat(" --- |", len(row)) + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func startsWithTitle(blocks []string, title string) bool {
	if len(blocks) == 0 {
		return false
	}
	first := strings.TrimLeft(blocks[0], "# ")
	return strings.EqualFold(first, title)
}

// normalizeText collapses runs of whitespace and blank lines into single spaces.
func normalizeText(input string) string {
	return strings.Join(strings.Fields(input), " ")
}
